// Package entropy provides the random sources the simulation draws from.
// Every stochastic rule (pest coin flips, respawn species, event draws)
// takes a Source so tests can pin outcomes.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source is the minimal random interface used by the garden.
type Source interface {
	// Intn returns a value in [0, n). n must be > 0.
	Intn(n int) int
}

// Seeded is a deterministic source backed by math/rand.
type Seeded struct {
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source. Not safe for concurrent use;
// wrap with NewLocked when shared.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Intn returns a pseudo-random value in [0, n).
func (s *Seeded) Intn(n int) int {
	return s.rng.Intn(n)
}

// Crypto draws from crypto/rand. Safe for concurrent use.
type Crypto struct{}

// Intn returns a value in [0, n) using crypto/rand.
func (Crypto) Intn(n int) int {
	return int(cryptoRandFloat() * float64(n))
}

// Locked serializes access to an underlying source.
type Locked struct {
	mu  sync.Mutex
	src Source
}

// NewLocked wraps src with a mutex.
func NewLocked(src Source) *Locked {
	return &Locked{src: src}
}

// Intn returns src.Intn(n) under the lock.
func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

// Fixed replays a scripted sequence of values, cycling when exhausted.
// Each value is reduced modulo n. Intended for tests.
type Fixed struct {
	Values []int
	next   int
}

// Intn returns the next scripted value modulo n.
func (f *Fixed) Intn(n int) int {
	if len(f.Values) == 0 {
		return 0
	}
	v := f.Values[f.next%len(f.Values)]
	f.next++
	if v < 0 {
		v = -v
	}
	return v % n
}

// Chance reports whether an event with probability 1/n fires.
func Chance(src Source, n int) bool {
	return src.Intn(n) == 0
}

// FromSeed returns a seeded source, or a crypto source when seed is 0.
func FromSeed(seed int64) Source {
	if seed == 0 {
		return Crypto{}
	}
	return NewLocked(NewSeeded(seed))
}

// cryptoRandFloat generates a random float64 in [0, 1) using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
