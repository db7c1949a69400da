package duckdb

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringCacheInterns(t *testing.T) {
	sc := NewStringCache(2)

	a := sc.GetFromBytes(0, []byte("category_a"))
	b := sc.GetFromBytes(0, []byte("category_a"))
	assert.Equal(t, "category_a", a)
	assert.Equal(t, a, b)

	hits, misses := sc.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestStringCacheLargeStringsBypass(t *testing.T) {
	sc := NewStringCache(1)
	large := make([]byte, 4096)
	for i := range large {
		large[i] = 'x'
	}

	got := sc.GetFromBytes(0, large)
	assert.Len(t, got, 4096)

	_, misses := sc.Stats()
	assert.Zero(t, misses, "large strings must not enter the intern map")
}

func TestStringCacheGrowsColumns(t *testing.T) {
	sc := NewStringCache(1)
	assert.Equal(t, "v", sc.GetFromBytes(10, []byte("v")))
}

func TestStringCacheConcurrent(t *testing.T) {
	sc := NewStringCache(4)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			values := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
			for i := 0; i < 1000; i++ {
				got := sc.GetFromBytes(g%4, values[i%3])
				if got != string(values[i%3]) {
					t.Errorf("corrupted intern result: %q", got)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestStringCacheReset(t *testing.T) {
	sc := NewStringCache(1)
	sc.GetFromBytes(0, []byte("x"))
	sc.Reset()
	hits, misses := sc.Stats()
	require.Zero(t, hits)
	require.Zero(t, misses)
}

func TestStringCacheReadsThroughVector(t *testing.T) {
	requireEngine(t)
	conn := openTestConnection(t)

	res, err := conn.Query(`SELECT CASE WHEN range % 2 = 0 THEN 'even' ELSE 'odd' END AS parity
		FROM range(100)`)
	require.NoError(t, err)
	defer res.Close()

	chunk, err := res.FetchChunk()
	require.NoError(t, err)
	defer chunk.Close()

	v, err := chunk.Vector(0)
	require.NoError(t, err)

	sc := NewStringCache(1)
	for row := 0; row < chunk.Size(); row++ {
		s, ok, err := sc.GetString(v, 0, row)
		require.NoError(t, err)
		require.True(t, ok)
		if row%2 == 0 {
			assert.Equal(t, "even", s)
		} else {
			assert.Equal(t, "odd", s)
		}
	}

	hits, misses := sc.Stats()
	assert.Equal(t, 2, misses, "only two distinct values")
	assert.Equal(t, 98, hits)
}
