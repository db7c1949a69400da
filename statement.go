package duckdb

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

// PreparedStatement is a compiled SQL statement with bindable ? parameters.
type PreparedStatement struct {
	handle uintptr
	conn   *Connection
	closed int32
}

// Floating-point binds cross the ABI in FP registers, which the raw syscall
// path cannot express; these two go through purego's typed call path instead.
var (
	bindFloatOnce sync.Once
	bindFloatFn   func(stmt uintptr, idx uint64, v float32) uint32
	bindDoubleFn  func(stmt uintptr, idx uint64, v float64) uint32
	bindFloatErr  error
)

func registerFloatBinds() error {
	bindFloatOnce.Do(func() {
		addr, err := symbol("duckdb_bind_float")
		if err != nil {
			bindFloatErr = err
			return
		}
		purego.RegisterFunc(&bindFloatFn, addr)

		addr, err = symbol("duckdb_bind_double")
		if err != nil {
			bindFloatErr = err
			return
		}
		purego.RegisterFunc(&bindDoubleFn, addr)
	})
	return bindFloatErr
}

// ParameterCount returns the number of ? placeholders in the statement.
func (s *PreparedStatement) ParameterCount() int {
	return int(mustCall("duckdb_nparams", s.handle))
}

// Bind sets all parameters in order, starting at the first placeholder.
func (s *PreparedStatement) Bind(args ...any) error {
	for i, arg := range args {
		if err := s.BindValue(i+1, arg); err != nil {
			return err
		}
	}
	return nil
}

// BindValue sets one parameter. Parameter indexes are 1-based, matching the
// engine's convention.
func (s *PreparedStatement) BindValue(idx int, arg any) error {
	if atomic.LoadInt32(&s.closed) != 0 {
		return NewError(ErrClosed, "statement is closed")
	}

	var state uintptr
	switch v := arg.(type) {
	case nil:
		state = mustCall("duckdb_bind_null", s.handle, uintptr(idx))
	case bool:
		b := uintptr(0)
		if v {
			b = 1
		}
		state = mustCall("duckdb_bind_boolean", s.handle, uintptr(idx), b)
	case int8:
		state = mustCall("duckdb_bind_int8", s.handle, uintptr(idx), uintptr(v))
	case int16:
		state = mustCall("duckdb_bind_int16", s.handle, uintptr(idx), uintptr(v))
	case int32:
		state = mustCall("duckdb_bind_int32", s.handle, uintptr(idx), uintptr(v))
	case int:
		state = mustCall("duckdb_bind_int64", s.handle, uintptr(idx), uintptr(v))
	case int64:
		state = mustCall("duckdb_bind_int64", s.handle, uintptr(idx), uintptr(v))
	case uint8:
		state = mustCall("duckdb_bind_uint8", s.handle, uintptr(idx), uintptr(v))
	case uint16:
		state = mustCall("duckdb_bind_uint16", s.handle, uintptr(idx), uintptr(v))
	case uint32:
		state = mustCall("duckdb_bind_uint32", s.handle, uintptr(idx), uintptr(v))
	case uint64:
		state = mustCall("duckdb_bind_uint64", s.handle, uintptr(idx), uintptr(v))
	case float32:
		if err := registerFloatBinds(); err != nil {
			return err
		}
		state = uintptr(bindFloatFn(s.handle, uint64(idx), v))
	case float64:
		if err := registerFloatBinds(); err != nil {
			return err
		}
		state = uintptr(bindDoubleFn(s.handle, uint64(idx), v))
	case string:
		buf := cString(v)
		state = mustCall("duckdb_bind_varchar_length", s.handle, uintptr(idx),
			cStringPtr(buf), uintptr(len(v)))
		runtime.KeepAlive(buf)
	case []byte:
		var p uintptr
		if len(v) > 0 {
			p = uintptr(unsafe.Pointer(&v[0]))
		}
		state = mustCall("duckdb_bind_blob", s.handle, uintptr(idx), p, uintptr(len(v)))
		runtime.KeepAlive(v)
	default:
		return NewErrorf(ErrPrepare, "cannot bind value of type %T", arg)
	}

	if state != stateSuccess {
		return NewErrorf(ErrPrepare, "failed to bind parameter %d", idx)
	}
	return nil
}

// Execute runs the statement with its current bindings and materializes the
// full result.
func (s *PreparedStatement) Execute() (*Result, error) {
	return s.execute("duckdb_execute_prepared", false)
}

// ExecuteStreaming runs the statement and returns a streamed result: chunks
// are produced one at a time, forward-only, and the result cannot be
// restarted.
func (s *PreparedStatement) ExecuteStreaming() (*Result, error) {
	return s.execute("duckdb_execute_prepared_streaming", true)
}

func (s *PreparedStatement) execute(entry string, streaming bool) (*Result, error) {
	if atomic.LoadInt32(&s.closed) != 0 {
		return nil, NewError(ErrClosed, "statement is closed")
	}

	res := new(resultData)
	state, err := call(entry, s.handle, uintptr(unsafe.Pointer(res)))
	if err != nil {
		return nil, err
	}
	if state != stateSuccess {
		msg := goString(mustCall("duckdb_result_error", uintptr(unsafe.Pointer(res))))
		mustCall("duckdb_destroy_result", uintptr(unsafe.Pointer(res)))
		if msg == "" {
			msg = "execution failed"
		}
		return nil, NewError(ErrQuery, msg)
	}

	return newResult(res, streaming), nil
}

// Close releases the statement. Closing twice is a no-op.
func (s *PreparedStatement) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	mustCall("duckdb_destroy_prepare", uintptr(unsafe.Pointer(&s.handle)))
	s.handle = 0
	runtime.SetFinalizer(s, nil)
	return nil
}
