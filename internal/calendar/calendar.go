// Package calendar implements the CF-convention calendars used by daily
// climate model output. Climate projections are frequently produced on a
// 360-day or no-leap calendar, so dates are kept as plain year/month/day
// triples instead of time.Time.
package calendar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Calendar identifies a CF calendar.
type Calendar int

const (
	// Standard is the proleptic Gregorian calendar.
	Standard Calendar = iota
	// NoLeap has 365 days in every year.
	NoLeap
	// Day360 has twelve 30-day months.
	Day360
)

// Parse maps a CF "calendar" attribute value onto a Calendar. An empty name
// means the CF default (standard).
func Parse(name string) (Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return Standard, nil
	case "noleap", "365_day":
		return NoLeap, nil
	case "360_day":
		return Day360, nil
	default:
		return Standard, fmt.Errorf("unsupported calendar %q", name)
	}
}

func (c Calendar) String() string {
	switch c {
	case NoLeap:
		return "noleap"
	case Day360:
		return "360_day"
	default:
		return "standard"
	}
}

// Date is a calendar date. Its meaning depends on the Calendar it is used with.
type Date struct {
	Year  int `msgpack:"y"`
	Month int `msgpack:"m"`
	Day   int `msgpack:"d"`
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

var gregorianMonthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func isLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

// DaysInMonth returns the number of days in the given month.
func (c Calendar) DaysInMonth(year, month int) int {
	switch c {
	case Day360:
		return 30
	case NoLeap:
		return gregorianMonthDays[month-1]
	default:
		if month == 2 && isLeap(year) {
			return 29
		}
		return gregorianMonthDays[month-1]
	}
}

// DaysInYear returns the number of days in year.
func (c Calendar) DaysInYear(year int) int {
	switch c {
	case Day360:
		return 360
	case NoLeap:
		return 365
	default:
		if isLeap(year) {
			return 366
		}
		return 365
	}
}

// DayOfYear returns the 1-based ordinal day of d within its year.
func (c Calendar) DayOfYear(d Date) int {
	doy := d.Day
	for m := 1; m < d.Month; m++ {
		doy += c.DaysInMonth(d.Year, m)
	}
	return doy
}

// Valid reports whether d exists in the calendar.
func (c Calendar) Valid(d Date) bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	return d.Day <= c.DaysInMonth(d.Year, d.Month)
}

// AddDays moves d forward (or backward for negative n) by n days.
func (c Calendar) AddDays(d Date, n int) Date {
	for n > 0 {
		left := c.DaysInMonth(d.Year, d.Month) - d.Day
		if n <= left {
			d.Day += n
			return d
		}
		n -= left + 1
		d.Day = 1
		d.Month++
		if d.Month > 12 {
			d.Month = 1
			d.Year++
		}
	}
	for n < 0 {
		if -n < d.Day {
			d.Day += n
			return d
		}
		n += d.Day
		d.Month--
		if d.Month < 1 {
			d.Month = 12
			d.Year--
		}
		d.Day = c.DaysInMonth(d.Year, d.Month)
	}
	return d
}

// DaysBetween returns the number of days from a to b (negative if b is before a).
func (c Calendar) DaysBetween(a, b Date) int {
	if b.Before(a) {
		return -c.DaysBetween(b, a)
	}
	n := 0
	for y := a.Year; y < b.Year; y++ {
		n += c.DaysInYear(y)
	}
	return n + c.DayOfYear(b) - c.DayOfYear(a)
}

// Units describes a CF time axis, e.g. "days since 1970-01-01 00:00:00".
type Units struct {
	// DaysPerUnit scales one axis unit to days (1 for days, 1/24 for hours).
	DaysPerUnit float64
	Epoch       Date
}

// ParseUnits parses a CF "units" attribute of a time coordinate.
func ParseUnits(units string) (Units, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return Units{}, fmt.Errorf("time units %q: expected \"<unit> since <date>\"", units)
	}

	var u Units
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		u.DaysPerUnit = 1
	case "hours", "hour", "h":
		u.DaysPerUnit = 1.0 / 24
	case "minutes", "minute":
		u.DaysPerUnit = 1.0 / 1440
	case "seconds", "second", "s":
		u.DaysPerUnit = 1.0 / 86400
	default:
		return Units{}, fmt.Errorf("time units %q: unsupported unit %q", units, parts[0])
	}

	// Only the date part of the reference timestamp matters at daily resolution.
	ref := strings.Fields(strings.Replace(parts[1], "T", " ", 1))
	if len(ref) == 0 {
		return Units{}, fmt.Errorf("time units %q: missing reference date", units)
	}
	ymd := strings.Split(ref[0], "-")
	if len(ymd) != 3 {
		return Units{}, fmt.Errorf("time units %q: malformed reference date %q", units, ref[0])
	}
	var vals [3]int
	for i, s := range ymd {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Units{}, fmt.Errorf("time units %q: %w", units, err)
		}
		vals[i] = v
	}
	u.Epoch = Date{Year: vals[0], Month: vals[1], Day: vals[2]}
	return u, nil
}

// Dates converts raw time-axis offsets into dates. Offsets are floored to
// whole days so that mid-day stamps (e.g. 0.5, 1.5) map onto their own day.
func (c Calendar) Dates(u Units, offsets []float64) []Date {
	out := make([]Date, len(offsets))
	for i, v := range offsets {
		out[i] = c.AddDays(u.Epoch, int(math.Floor(v*u.DaysPerUnit+1e-9)))
	}
	return out
}

// Series returns n consecutive daily dates starting at start.
func (c Calendar) Series(start Date, n int) []Date {
	out := make([]Date, n)
	d := start
	for i := range out {
		out[i] = d
		d = c.AddDays(d, 1)
	}
	return out
}
