package generation

import (
	"math/rand/v2"
	"sync"

	"github.com/gupranay/civitai/internal/domain"
)

// DefaultMaxRandomSeed bounds generated seeds when no maximum is configured.
const DefaultMaxRandomSeed int64 = 2147483647

// Normalizer fills in fields the engines need to reproduce a generation.
type Normalizer struct {
	mu  sync.Mutex
	rng *rand.Rand
	max int64
}

// NewNormalizer draws seeds from rng in [1, max]. A nil rng is seeded from
// the runtime's random source.
func NewNormalizer(rng *rand.Rand, max int64) *Normalizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if max < 1 || max > domain.MaxSeedValue {
		max = DefaultMaxRandomSeed
	}
	return &Normalizer{rng: rng, max: max}
}

// Normalize returns req with a seed assigned when it has none or has zero.
// Requests that already carry a seed are returned unchanged.
func (n *Normalizer) Normalize(req domain.GenerationRequest) domain.GenerationRequest {
	if seed := req.Seed(); seed != nil && *seed != 0 {
		return req
	}
	return req.WithSeed(n.nextSeed())
}

func (n *Normalizer) nextSeed() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return 1 + n.rng.Int64N(n.max)
}
