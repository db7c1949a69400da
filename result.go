package duckdb

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// Result owns the outcome of one query. Materialized results hold every chunk
// until Close; streamed results produce chunks one at a time, forward-only.
// Close releases all chunk memory the engine still holds for the result, even
// when the result was only partially consumed.
type Result struct {
	data      *resultData
	streaming bool
	closed    int32
}

func newResult(data *resultData, streaming bool) *Result {
	r := &Result{data: data, streaming: streaming}
	runtime.SetFinalizer(r, (*Result).Close)
	return r
}

// ColumnCount returns the number of columns in the result.
func (r *Result) ColumnCount() int {
	if atomic.LoadInt32(&r.closed) != 0 {
		return 0
	}
	return int(mustCall("duckdb_column_count", uintptr(unsafe.Pointer(r.data))))
}

// ColumnName returns the name of a column.
func (r *Result) ColumnName(col int) string {
	if atomic.LoadInt32(&r.closed) != 0 {
		return ""
	}
	return goString(mustCall("duckdb_column_name", uintptr(unsafe.Pointer(r.data)), uintptr(col)))
}

// ColumnType returns the logical type of a column.
func (r *Result) ColumnType(col int) Type {
	if atomic.LoadInt32(&r.closed) != 0 {
		return TypeInvalid
	}
	return Type(mustCall("duckdb_column_type", uintptr(unsafe.Pointer(r.data)), uintptr(col)))
}

// Streaming reports whether chunks are produced lazily.
func (r *Result) Streaming() bool {
	return r.streaming
}

// FetchChunk returns the next chunk of the result, or nil when the result is
// exhausted. The returned chunk is owned by the caller and must be closed.
func (r *Result) FetchChunk() (*DataChunk, error) {
	if atomic.LoadInt32(&r.closed) != 0 {
		return nil, NewError(ErrClosed, "result is closed")
	}

	handle, err := fetchChunk(r.data)
	if err != nil {
		return nil, err
	}
	if handle == 0 {
		return nil, nil
	}
	return newOwnedChunk(handle), nil
}

// Close destroys the result and releases all chunk memory it still holds.
// Closing twice is a no-op.
func (r *Result) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	mustCall("duckdb_destroy_result", uintptr(unsafe.Pointer(r.data)))
	runtime.SetFinalizer(r, nil)
	return nil
}
