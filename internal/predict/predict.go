// Package predict defines the image classifier contract used by the
// process service, together with the reference preprocessing and a
// uniform-random stand-in for the real model.
package predict

import "math/rand/v2"

// Predictor scores a batch of preprocessed images, returning one score in
// [0,1] per input tensor.
type Predictor interface {
	Predict(batch []Tensor) ([]float64, error)
}

// Rand yields uniform draws in [0,1). It is injected wherever a random
// decision is made so those decisions are reproducible under test.
type Rand interface {
	Float64() float64
}

type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }

// SystemRand returns the process-wide generator, seeded from OS entropy
// and safe for concurrent use.
func SystemRand() Rand { return systemRand{} }

// Random is the reference predictor: it ignores the tensors and draws a
// uniform score per image.
type Random struct {
	rng Rand
}

// NewRandom returns a Random predictor drawing from rng.
func NewRandom(rng Rand) *Random { return &Random{rng: rng} }

func (r *Random) Predict(batch []Tensor) ([]float64, error) {
	var scores = make([]float64, len(batch))
	for i := range scores {
		scores[i] = r.rng.Float64()
	}
	return scores, nil
}
