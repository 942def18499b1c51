package dice

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"sync"
)

func checkSides(n int) {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
}

// cryptoSource draws from crypto/rand. firearmd uses it so players cannot
// predict misfires.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source { return cryptoSource{} }

// Intn panics when n <= 0 or when the system entropy source fails.
func (cryptoSource) Intn(n int) int {
	checkSides(n)
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

// seededSource replays a math/rand sequence so firesim runs can be repeated
// with -seed.
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a deterministic Source. Two sources with the same
// seed yield the same sequence.
func NewSeededSource(seed int64) Source {
	return &seededSource{rng: mrand.New(mrand.NewSource(seed))}
}

func (s *seededSource) Intn(n int) int {
	checkSides(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
