package duckdb

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// DataChunk is a fixed-capacity batch of columnar data. Chunks fetched from a
// Result are owned by the caller and must be closed; chunks handed to a
// callback by the engine are views that become invalid when the callback
// returns and must not be closed or retained.
type DataChunk struct {
	handle uintptr
	owned  bool
	closed int32
}

func newOwnedChunk(handle uintptr) *DataChunk {
	c := &DataChunk{handle: handle, owned: true}
	runtime.SetFinalizer(c, (*DataChunk).Close)
	return c
}

func newBorrowedChunk(handle uintptr) *DataChunk {
	return &DataChunk{handle: handle}
}

// NewDataChunk allocates an empty caller-owned chunk with one column per
// type, each with the engine's standard vector capacity.
func NewDataChunk(types []Type) (*DataChunk, error) {
	if len(types) == 0 {
		return nil, NewError(ErrGeneric, "data chunk needs at least one column type")
	}
	if err := LoadLibrary(); err != nil {
		return nil, err
	}

	logical := make([]uintptr, len(types))
	for i, t := range types {
		logical[i] = mustCall("duckdb_create_logical_type", uintptr(t))
	}
	defer func() {
		for i := range logical {
			mustCall("duckdb_destroy_logical_type", uintptr(unsafe.Pointer(&logical[i])))
		}
	}()

	handle, err := call("duckdb_create_data_chunk",
		uintptr(unsafe.Pointer(&logical[0])), uintptr(len(logical)))
	if err != nil {
		return nil, err
	}
	if handle == 0 {
		return nil, NewError(ErrGeneric, "failed to create data chunk")
	}
	return newOwnedChunk(handle), nil
}

// MaxChunkSize returns the engine's maximum rows per chunk.
func MaxChunkSize() (int, error) {
	if err := LoadLibrary(); err != nil {
		return 0, err
	}
	return vectorSize(), nil
}

// ColumnCount returns the number of vectors in the chunk.
func (c *DataChunk) ColumnCount() int {
	return int(mustCall("duckdb_data_chunk_get_column_count", c.handle))
}

// Size returns the chunk's declared row count.
func (c *DataChunk) Size() int {
	return int(mustCall("duckdb_data_chunk_get_size", c.handle))
}

// SetSize declares the chunk's row count. Rows written past the declared size
// are invisible to the engine.
func (c *DataChunk) SetSize(rows int) {
	mustCall("duckdb_data_chunk_set_size", c.handle, uintptr(rows))
}

// Reset clears the chunk back to empty, keeping its column layout.
func (c *DataChunk) Reset() {
	mustCall("duckdb_data_chunk_reset", c.handle)
}

// Vector returns the chunk's column at the given index. The vector aliases
// the chunk's memory and shares its lifetime.
func (c *DataChunk) Vector(col int) (*Vector, error) {
	if col < 0 || col >= c.ColumnCount() {
		return nil, NewErrorf(ErrGeneric, "column index %d out of range", col)
	}
	handle := mustCall("duckdb_data_chunk_get_vector", c.handle, uintptr(col))
	return &Vector{handle: handle, chunk: c}, nil
}

// Close destroys a caller-owned chunk. Closing an engine-owned view or
// closing twice is a no-op.
func (c *DataChunk) Close() error {
	if !c.owned {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	mustCall("duckdb_destroy_data_chunk", uintptr(unsafe.Pointer(&c.handle)))
	c.handle = 0
	runtime.SetFinalizer(c, nil)
	return nil
}
