package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewGenerator(-1)
	assert.Error(t, err)
	_, err = NewGenerator(maxNode + 1)
	assert.Error(t, err)
}

func TestNextIsMonotonicUnderFrozenClock(t *testing.T) {
	g, err := NewGenerator(7)
	require.NoError(t, err)
	frozen := epoch.Add(time.Hour)
	g.now = func() time.Time { return frozen }

	prev := g.Next()
	for i := 0; i < 10000; i++ {
		id := g.Next()
		require.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(7), prev>>seqBits&maxNode)
}

func TestGenerateConcurrentUnique(t *testing.T) {
	const workers, per = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}
