package entropy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededIsDeterministic(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for range 100 {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
}

func TestCryptoInRange(t *testing.T) {
	var c Crypto
	for range 1000 {
		v := c.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestFixedCycles(t *testing.T) {
	f := &Fixed{Values: []int{1, 7, -3}}
	assert.Equal(t, 1, f.Intn(5))
	assert.Equal(t, 2, f.Intn(5))
	assert.Equal(t, 3, f.Intn(5))
	assert.Equal(t, 1, f.Intn(5))

	assert.Equal(t, 0, (&Fixed{}).Intn(3))
}

func TestChance(t *testing.T) {
	assert.True(t, Chance(&Fixed{Values: []int{0}}, 10))
	assert.False(t, Chance(&Fixed{Values: []int{4}}, 10))
}

func TestLockedConcurrent(t *testing.T) {
	l := NewLocked(NewSeeded(1))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				v := l.Intn(10)
				assert.True(t, v >= 0 && v < 10)
			}
		}()
	}
	wg.Wait()
}

func TestFromSeed(t *testing.T) {
	assert.IsType(t, Crypto{}, FromSeed(0))
	assert.IsType(t, &Locked{}, FromSeed(9))
}
