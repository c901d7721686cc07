package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("run-a")
	assert.Equal(t, "run-a", g.Generate())
	assert.Equal(t, "run-a", g.Generate())

	assert.Equal(t, "test-run-default", NewFixedIDGenerator("").Generate())
}

func TestSequenceIDGenerator(t *testing.T) {
	g := NewSequenceIDGenerator("")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())

	g.Reset()
	assert.Equal(t, "run-1", g.Generate())
}

func TestSequenceIDGeneratorConcurrent(t *testing.T) {
	g := NewSequenceIDGenerator("c")

	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}
