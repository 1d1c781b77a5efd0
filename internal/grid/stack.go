package grid

import "fmt"

// Stack is a (label, y, x) array whose leading axis is an integer label
// such as a year or the first year of a decade. Data is stored
// label-major like Cube.
type Stack[T Number] struct {
	// Axis names the leading dimension ("year", "decade").
	Axis   string
	Labels []int
	Y      []float64
	X      []float64
	Data   []T
}

// NewStack allocates a zeroed stack.
func NewStack[T Number](axis string, labels []int, y, x []float64) *Stack[T] {
	return &Stack[T]{
		Axis:   axis,
		Labels: labels,
		Y:      y,
		X:      x,
		Data:   make([]T, len(labels)*len(y)*len(x)),
	}
}

// Len returns the number of labels.
func (s *Stack[T]) Len() int { return len(s.Labels) }

// Cells returns the number of (y, x) cells in one layer.
func (s *Stack[T]) Cells() int { return len(s.Y) * len(s.X) }

// Layer returns the slice of Data for label index l.
func (s *Stack[T]) Layer(l int) []T {
	n := s.Cells()
	return s.Data[l*n : (l+1)*n]
}

// At returns the value at (l, j, i).
func (s *Stack[T]) At(l, j, i int) T {
	return s.Data[(l*len(s.Y)+j)*len(s.X)+i]
}

// Validate checks that the data length matches the axes.
func (s *Stack[T]) Validate() error {
	if want := len(s.Labels) * len(s.Y) * len(s.X); len(s.Data) != want {
		return fmt.Errorf("%w: %d values for %dx%dx%d axes", ErrShape, len(s.Data), len(s.Labels), len(s.Y), len(s.X))
	}
	return nil
}
