package duckdb

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// ScalarFuncConfig describes a scalar function descriptor: its SQL name, the
// ordered parameter types and the result type.
type ScalarFuncConfig struct {
	Name       string
	InputTypes []Type
	ResultType Type

	// Volatile marks the function as non-deterministic, disabling constant
	// folding over it.
	Volatile bool
}

// ScalarFunc is a user-defined scalar function. Exec is called once per input
// chunk, possibly concurrently from multiple engine threads for different
// chunks; it must process exactly input.Size() rows (the engine submits
// partial batches, particularly the final one) and must not retain the chunk
// or the output vector past the call.
type ScalarFunc interface {
	Config() ScalarFuncConfig
	Exec(input *DataChunk, output *Vector) error
}

// One process-wide trampoline serves every registered scalar function; the
// engine's extra-info pointer carries the cgo.Handle of the Go value.
var (
	scalarTrampolineOnce sync.Once
	scalarTrampolinePtr  uintptr
	handleDeletePtr      uintptr
)

func scalarTrampolines() (uintptr, uintptr) {
	scalarTrampolineOnce.Do(func() {
		scalarTrampolinePtr = purego.NewCallback(scalarCallback)
		handleDeletePtr = purego.NewCallback(handleDeleteCallback)
	})
	return scalarTrampolinePtr, handleDeletePtr
}

// The C signatures return void; the uintptr result exists because callback
// trampolines must carry one on every platform.
func scalarCallback(info, input, output uintptr) uintptr {
	defer func() {
		if r := recover(); r != nil {
			setScalarError(info, fmt.Sprintf("panic in scalar function: %v", r))
		}
	}()

	h := cgo.Handle(mustCall("duckdb_scalar_function_get_extra_info", info))
	f := h.Value().(ScalarFunc)

	chunk := newBorrowedChunk(input)
	out := newOutputVector(output, chunk.Size())

	if err := f.Exec(chunk, out); err != nil {
		setScalarError(info, err.Error())
	}
	return 0
}

func handleDeleteCallback(extra uintptr) uintptr {
	cgo.Handle(extra).Delete()
	return 0
}

func setScalarError(info uintptr, msg string) {
	buf := cString(msg)
	mustCall("duckdb_scalar_function_set_error", info, cStringPtr(buf))
	runtime.KeepAlive(buf)
}

// RegisterScalarFunc builds a native descriptor for f and registers it on the
// connection. After successful registration the engine owns the descriptor's
// lifecycle; the Go value stays reachable until the engine drops it.
func (c *Connection) RegisterScalarFunc(f ScalarFunc) error {
	cfg := f.Config()
	if cfg.Name == "" {
		return NewError(ErrRegistration, "scalar function needs a name")
	}
	if len(cfg.InputTypes) == 0 {
		return NewError(ErrRegistration, "scalar function needs at least one parameter type")
	}
	if cfg.ResultType == TypeInvalid {
		return NewError(ErrRegistration, "scalar function needs a result type")
	}

	fn, err := call("duckdb_create_scalar_function")
	if err != nil {
		return err
	}
	defer mustCall("duckdb_destroy_scalar_function", uintptr(unsafe.Pointer(&fn)))

	name := cString(cfg.Name)
	mustCall("duckdb_scalar_function_set_name", fn, cStringPtr(name))
	runtime.KeepAlive(name)

	for _, t := range cfg.InputTypes {
		lt := mustCall("duckdb_create_logical_type", uintptr(t))
		mustCall("duckdb_scalar_function_add_parameter", fn, lt)
		mustCall("duckdb_destroy_logical_type", uintptr(unsafe.Pointer(&lt)))
	}

	lt := mustCall("duckdb_create_logical_type", uintptr(cfg.ResultType))
	mustCall("duckdb_scalar_function_set_return_type", fn, lt)
	mustCall("duckdb_destroy_logical_type", uintptr(unsafe.Pointer(&lt)))

	if cfg.Volatile {
		mustCall("duckdb_scalar_function_set_volatile", fn)
	}

	trampoline, deleter := scalarTrampolines()
	mustCall("duckdb_scalar_function_set_function", fn, trampoline)

	h := cgo.NewHandle(f)
	mustCall("duckdb_scalar_function_set_extra_info", fn, uintptr(h), deleter)

	if mustCall("duckdb_register_scalar_function", c.handle, fn) != stateSuccess {
		// The deferred destroy runs the extra-info destructor and frees h.
		return NewErrorf(ErrRegistration, "engine rejected scalar function %q", cfg.Name)
	}
	return nil
}

// preferredTileWidth is the batch width the generated callbacks unroll over.
// Full tiles run a fixed-bound inner loop the compiler can vectorize; a
// scalar remainder loop handles whatever rows are left.
const preferredTileWidth = 16

type rowFunc1[A, R fixedWidth] struct {
	cfg ScalarFuncConfig
	fn  func(A) R
}

func (f *rowFunc1[A, R]) Config() ScalarFuncConfig { return f.cfg }

func (f *rowFunc1[A, R]) Exec(input *DataChunk, output *Vector) error {
	va, err := input.Vector(0)
	if err != nil {
		return err
	}
	a, err := VectorData[A](va)
	if err != nil {
		return err
	}
	out, err := VectorData[R](output)
	if err != nil {
		return err
	}

	rows := input.Size()
	if va.validityPtr() == nil {
		tiled1(out[:rows], a[:rows], f.fn)
		return nil
	}
	for row := 0; row < rows; row++ {
		if va.IsNull(row) {
			output.SetNull(row)
			continue
		}
		out[row] = f.fn(a[row])
	}
	return nil
}

type rowFunc2[A, B, R fixedWidth] struct {
	cfg ScalarFuncConfig
	fn  func(A, B) R
}

func (f *rowFunc2[A, B, R]) Config() ScalarFuncConfig { return f.cfg }

func (f *rowFunc2[A, B, R]) Exec(input *DataChunk, output *Vector) error {
	va, err := input.Vector(0)
	if err != nil {
		return err
	}
	vb, err := input.Vector(1)
	if err != nil {
		return err
	}
	a, err := VectorData[A](va)
	if err != nil {
		return err
	}
	b, err := VectorData[B](vb)
	if err != nil {
		return err
	}
	out, err := VectorData[R](output)
	if err != nil {
		return err
	}

	rows := input.Size()
	if va.validityPtr() == nil && vb.validityPtr() == nil {
		tiled2(out[:rows], a[:rows], b[:rows], f.fn)
		return nil
	}
	for row := 0; row < rows; row++ {
		if va.IsNull(row) || vb.IsNull(row) {
			output.SetNull(row)
			continue
		}
		out[row] = f.fn(a[row], b[row])
	}
	return nil
}

// tiled1 applies fn over full tiles, then a scalar remainder loop.
func tiled1[A, R fixedWidth](out []R, a []A, fn func(A) R) {
	i := 0
	for ; i+preferredTileWidth <= len(out); i += preferredTileWidth {
		oa, ia := out[i:i+preferredTileWidth], a[i:i+preferredTileWidth]
		for j := 0; j < preferredTileWidth; j++ {
			oa[j] = fn(ia[j])
		}
	}
	for ; i < len(out); i++ {
		out[i] = fn(a[i])
	}
}

func tiled2[A, B, R fixedWidth](out []R, a []A, b []B, fn func(A, B) R) {
	i := 0
	for ; i+preferredTileWidth <= len(out); i += preferredTileWidth {
		oa, ia, ib := out[i:i+preferredTileWidth], a[i:i+preferredTileWidth], b[i:i+preferredTileWidth]
		for j := 0; j < preferredTileWidth; j++ {
			oa[j] = fn(ia[j], ib[j])
		}
	}
	for ; i < len(out); i++ {
		out[i] = fn(a[i], b[i])
	}
}

// NewScalarRowFunc1 wraps a pure one-argument Go function as a chunk-shaped
// scalar function. NULL inputs produce NULL outputs.
func NewScalarRowFunc1[A, R fixedWidth](name string, arg, result Type, fn func(A) R) ScalarFunc {
	return &rowFunc1[A, R]{
		cfg: ScalarFuncConfig{Name: name, InputTypes: []Type{arg}, ResultType: result},
		fn:  fn,
	}
}

// NewScalarRowFunc2 wraps a pure two-argument Go function as a chunk-shaped
// scalar function. A NULL in either input produces a NULL output.
func NewScalarRowFunc2[A, B, R fixedWidth](name string, argA, argB, result Type, fn func(A, B) R) ScalarFunc {
	return &rowFunc2[A, B, R]{
		cfg: ScalarFuncConfig{Name: name, InputTypes: []Type{argA, argB}, ResultType: result},
		fn:  fn,
	}
}

type batchFunc1[A, R fixedWidth] struct {
	cfg    ScalarFuncConfig
	kernel func(out []R, a []A)
}

func (f *batchFunc1[A, R]) Config() ScalarFuncConfig { return f.cfg }

func (f *batchFunc1[A, R]) Exec(input *DataChunk, output *Vector) error {
	va, err := input.Vector(0)
	if err != nil {
		return err
	}
	a, err := VectorData[A](va)
	if err != nil {
		return err
	}
	out, err := VectorData[R](output)
	if err != nil {
		return err
	}

	rows := input.Size()
	f.kernel(out[:rows], a[:rows])
	if va.validityPtr() != nil {
		for row := 0; row < rows; row++ {
			if va.IsNull(row) {
				output.SetNull(row)
			}
		}
	}
	return nil
}

// NewScalarBatchFunc1 wraps a fixed-width batch kernel as a scalar function.
// The kernel receives the full row window of each chunk; NULL rows are masked
// out of the result afterwards, so the kernel may compute over garbage cells.
func NewScalarBatchFunc1[A, R fixedWidth](name string, arg, result Type, kernel func(out []R, a []A)) ScalarFunc {
	return &batchFunc1[A, R]{
		cfg:    ScalarFuncConfig{Name: name, InputTypes: []Type{arg}, ResultType: result},
		kernel: kernel,
	}
}
