package pacing

import (
	"math"
	"math/rand/v2"
	"sync"

	"lukechampine.com/frand"
)

// Sampler draws the random weights used for pauses.
type Sampler interface {
	// Uniform returns a value in [lo, hi).
	Uniform(lo, hi float64) float64
	// LogNormal returns exp(mu + sigma*Z) for a standard normal Z.
	LogNormal(mu, sigma float64) float64
}

// DefaultSampler is a ChaCha8 generator seeded from frand.
var DefaultSampler Sampler = NewChaChaSampler(frand.Entropy256())

// ChaChaSampler is a Sampler safe for concurrent use.
type ChaChaSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewChaChaSampler creates a sampler from a 256-bit seed.
func NewChaChaSampler(seed [32]byte) *ChaChaSampler {
	return &ChaChaSampler{rng: rand.New(rand.NewChaCha8(seed))}
}

func (s *ChaChaSampler) Uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *ChaChaSampler) LogNormal(mu, sigma float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return math.Exp(mu + sigma*s.rng.NormFloat64())
}
