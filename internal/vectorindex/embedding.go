package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// State tags where an embedding came from.
type State string

const (
	// StatePresent is a real embedding produced by the embedding capability.
	StatePresent State = "present"
	// StatePlaceholder is an explicit random stand-in used after an embedding
	// failure. It is scored but flagged on every hit.
	StatePlaceholder State = "placeholder"
	// StateUnavailable marks an entry without an embedding. It is stored and
	// never scored.
	StateUnavailable State = "unavailable"
)

// Embedding is a vector tagged with its State.
type Embedding struct {
	state  State
	vector []float32
}

// Present wraps a real embedding.
func Present(vector []float32) Embedding {
	return Embedding{state: StatePresent, vector: vector}
}

// Placeholder wraps a degraded stand-in vector.
func Placeholder(vector []float32) Embedding {
	return Embedding{state: StatePlaceholder, vector: vector}
}

// Unavailable records that no embedding exists.
func Unavailable() Embedding {
	return Embedding{state: StateUnavailable}
}

// RandomPlaceholder builds a unit-length random placeholder of dim values.
// The same seed yields the same vector.
func RandomPlaceholder(dim int, seed uint64) Embedding {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		v := r.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return Placeholder(vec)
}

func (e Embedding) State() State {
	if e.state == "" {
		return StateUnavailable
	}
	return e.state
}

// Vector returns a copy of the underlying values, nil when unavailable.
func (e Embedding) Vector() []float32 {
	if e.State() == StateUnavailable {
		return nil
	}
	return cloneVector(e.vector)
}

// Scorable reports whether the entry takes part in similarity search.
func (e Embedding) Scorable() bool {
	return e.State() != StateUnavailable
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// ErrZeroVector is returned for all-zero vectors, which have no direction.
var ErrZeroVector = errors.New("zero vector")

// CheckVector rejects vectors that cannot be stored as a real embedding:
// all-zero ones and those holding NaN or infinite values.
func CheckVector(v []float32) error {
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w at position %d", ErrNonFinite, i)
		}
	}
	if isZero(v) {
		return ErrZeroVector
	}
	return nil
}

func finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
