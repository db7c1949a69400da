package duckdb

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// Connection is a handle to one engine connection. It weak-references its
// Database: it does not keep the database alive and must be closed before it.
//
// A Connection is not safe for unsynchronized concurrent use from multiple
// goroutines; the engine makes no such guarantee and neither does this
// wrapper.
type Connection struct {
	handle uintptr
	db     *Database
	closed int32
}

// Query runs a SQL statement and returns its materialized result.
func (c *Connection) Query(sql string) (*Result, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, NewError(ErrClosed, "connection is closed")
	}

	res := new(resultData)
	cSQL := cString(sql)
	state, err := call("duckdb_query", c.handle, cStringPtr(cSQL), uintptr(unsafe.Pointer(res)))
	runtime.KeepAlive(cSQL)
	if err != nil {
		return nil, err
	}
	if state != stateSuccess {
		msg := goString(mustCall("duckdb_result_error", uintptr(unsafe.Pointer(res))))
		mustCall("duckdb_destroy_result", uintptr(unsafe.Pointer(res)))
		if msg == "" {
			msg = "query failed"
		}
		return nil, NewError(ErrQuery, msg)
	}

	return newResult(res, false), nil
}

// Exec runs a SQL statement and discards its result.
func (c *Connection) Exec(sql string) error {
	res, err := c.Query(sql)
	if err != nil {
		return err
	}
	return res.Close()
}

// Prepare compiles a SQL statement with ? placeholders for later execution.
func (c *Connection) Prepare(sql string) (*PreparedStatement, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, NewError(ErrClosed, "connection is closed")
	}

	var stmt uintptr
	cSQL := cString(sql)
	state, err := call("duckdb_prepare", c.handle, cStringPtr(cSQL), uintptr(unsafe.Pointer(&stmt)))
	runtime.KeepAlive(cSQL)
	if err != nil {
		return nil, err
	}
	if state != stateSuccess {
		msg := goString(mustCall("duckdb_prepare_error", stmt))
		mustCall("duckdb_destroy_prepare", uintptr(unsafe.Pointer(&stmt)))
		if msg == "" {
			msg = "failed to prepare statement"
		}
		return nil, NewError(ErrPrepare, msg)
	}

	s := &PreparedStatement{handle: stmt, conn: c}
	runtime.SetFinalizer(s, (*PreparedStatement).Close)
	return s, nil
}

// Close releases the connection. Closing twice is a no-op.
func (c *Connection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	mustCall("duckdb_disconnect", uintptr(unsafe.Pointer(&c.handle)))
	c.handle = 0
	runtime.SetFinalizer(c, nil)
	return nil
}
