package duckdb

// Low-level helpers for crossing the C ABI. Most entry points are invoked
// through call()/mustCall() with uintptr-sized arguments; this file holds the
// pieces that need more care: C string conversion and the one entry point
// that takes a struct by value.

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Native status codes (duckdb_state).
const (
	stateSuccess = 0
	stateError   = 1
)

// cString returns s as a NUL-terminated byte buffer. The pointer stays valid
// for as long as the returned slice is reachable; callers keep it alive across
// the native call.
func cString(s string) []byte {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf
}

func cStringPtr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

// goString copies a NUL-terminated C string into Go memory.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// resultData mirrors the C duckdb_result struct. Only internalData is live in
// the modern API; the deprecated fields exist to keep the size and layout in
// sync with the engine's definition, because duckdb_fetch_chunk takes this
// struct by value.
type resultData struct {
	deprecatedColumnCount  uint64
	deprecatedRowCount     uint64
	deprecatedRowsChanged  uint64
	deprecatedColumns      uintptr
	deprecatedErrorMessage uintptr
	internalData           uintptr
}

var (
	fetchChunkOnce sync.Once
	fetchChunkErr  error
	fetchChunkFn   func(resultData) uintptr
)

// fetchChunk wraps duckdb_fetch_chunk. The struct-by-value argument cannot go
// through SyscallN, so it is registered once through purego's struct-aware
// call path.
func fetchChunk(res *resultData) (uintptr, error) {
	fetchChunkOnce.Do(func() {
		addr, err := symbol("duckdb_fetch_chunk")
		if err != nil {
			fetchChunkErr = err
			return
		}
		purego.RegisterFunc(&fetchChunkFn, addr)
	})
	if fetchChunkErr != nil {
		return 0, fetchChunkErr
	}
	return fetchChunkFn(*res), nil
}

// Version returns the engine's version string, e.g. "v1.2.1".
func Version() (string, error) {
	p, err := call("duckdb_library_version")
	if err != nil {
		return "", err
	}
	return goString(p), nil
}

// vectorSize returns the engine's maximum rows per chunk (STANDARD_VECTOR_SIZE).
func vectorSize() int {
	return int(mustCall("duckdb_vector_size"))
}

// duckdbFree releases engine-allocated memory returned by value-out calls.
func duckdbFree(p uintptr) {
	if p != 0 {
		mustCall("duckdb_free", p)
	}
}
