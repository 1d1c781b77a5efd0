// Package log holds the process-wide zap logger used by the ecocrop commands.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	base  *zap.Logger
)

// Init builds the package logger. Debug mode uses zap's development encoder
// and enables debug-level output; otherwise JSON production logging is used.
func Init(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	base = l
	sugar = l.Sugar()
	return nil
}

// GetZapLogger returns the underlying zap logger, e.g. for bridging GORM.
func GetZapLogger() *zap.Logger {
	ensure()
	return base
}

// GetSugaredLogger returns the sugared logger handed to services.
func GetSugaredLogger() *zap.SugaredLogger {
	ensure()
	return sugar
}

// Named returns a child logger tagged with a component name. The child does
// not inherit the package wrapper's caller skip.
func Named(component string) *zap.SugaredLogger {
	ensure()
	return base.WithOptions(zap.AddCallerSkip(-1)).Sugar().Named(component)
}

func ensure() {
	if base == nil {
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
		sugar = base.Sugar()
	}
}

// Sync flushes buffered entries.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	ensure()
	sugar.Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	ensure()
	sugar.Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	ensure()
	sugar.Info(args...)
}

func Infof(template string, args ...interface{}) {
	ensure()
	sugar.Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	ensure()
	sugar.Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	ensure()
	sugar.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	ensure()
	sugar.Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	ensure()
	sugar.Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	ensure()
	sugar.Fatalf(template, args...)
	os.Exit(1)
}
