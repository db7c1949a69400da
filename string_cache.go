package duckdb

import (
	"sync"
)

// StringCache deduplicates Go strings produced from repeated VARCHAR reads.
// Analytical results tend to carry heavily repeated string values (categories,
// enum-like columns); interning them keeps one Go allocation per distinct
// value instead of one per cell.
type StringCache struct {
	// Last value returned per column, for the common sorted/grouped case
	// where consecutive rows repeat.
	columnValues []string

	// Intern map for strings under the threshold. Larger strings are
	// returned directly; interning them would pin too much memory.
	internMap map[string]string

	mu sync.Mutex

	// Only strings shorter than this are interned.
	internThreshold int

	hits   int
	misses int
}

// NewStringCache creates a cache sized for the given number of columns.
func NewStringCache(columns int) *StringCache {
	return &StringCache{
		columnValues:    make([]string, columns),
		internMap:       make(map[string]string, 1024),
		internThreshold: 128,
	}
}

// GetFromBytes converts a raw cell payload to a string, reusing a previous
// allocation when the value was seen before. Safe for concurrent use.
func (sc *StringCache) GetFromBytes(colIdx int, payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	if len(payload) >= sc.internThreshold {
		return string(payload)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if colIdx >= len(sc.columnValues) {
		grown := make([]string, colIdx+1)
		copy(grown, sc.columnValues)
		sc.columnValues = grown
	}

	// Repeated-run fast path.
	if prev := sc.columnValues[colIdx]; prev == string(payload) {
		sc.hits++
		return prev
	}

	if cached, ok := sc.internMap[string(payload)]; ok {
		sc.hits++
		sc.columnValues[colIdx] = cached
		return cached
	}

	sc.misses++
	value := string(payload)
	sc.internMap[value] = value
	sc.columnValues[colIdx] = value
	return value
}

// GetString reads a VARCHAR cell through the cache.
func (sc *StringCache) GetString(v *Vector, colIdx, row int) (string, bool, error) {
	b, ok, err := GetStringBytes(v, row)
	if err != nil || !ok {
		return "", ok, err
	}
	return sc.GetFromBytes(colIdx, b), true, nil
}

// Stats returns hit and miss counts.
func (sc *StringCache) Stats() (hits, misses int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.hits, sc.misses
}

// Reset drops all interned values, keeping allocated capacity.
func (sc *StringCache) Reset() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	clear(sc.internMap)
	clear(sc.columnValues)
	sc.hits, sc.misses = 0, 0
}
