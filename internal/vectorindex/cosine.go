package vectorindex

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is wrapped by every DimensionError.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrNonFinite is returned for vectors holding NaN or infinite values.
var ErrNonFinite = errors.New("vector holds a non-finite value")

// DimensionError is a caller contract violation: vectors are never truncated
// or padded.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// Cosine returns dot(a,b)/(|a||b|). A zero-norm operand yields 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Want: len(a), Got: len(b)}
	}
	if !finite(a) || !finite(b) {
		return 0, ErrNonFinite
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push identical vectors a hair past 1
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}
