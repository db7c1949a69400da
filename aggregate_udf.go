package duckdb

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// AggregateFuncConfig describes an aggregate function descriptor.
type AggregateFuncConfig struct {
	Name       string
	InputTypes []Type
	ResultType Type
}

// State addresses one engine-allocated accumulator block. The block is
// plain-old-data: the engine allocates and zeroes it, and may move work
// between threads, so it must not contain Go pointers.
type State struct{ p unsafe.Pointer }

// StateSource is a state block being merged from. Distinct from StateTarget
// so the combine direction cannot be swapped by accident.
type StateSource struct{ p unsafe.Pointer }

// StateTarget is a state block being merged into.
type StateTarget struct{ p unsafe.Pointer }

// StateValue views a state block as a POD struct of type T. T's size must not
// exceed the declared StateSize.
func StateValue[T any](s State) *T { return (*T)(s.p) }

// SourceValue views a combine source block.
func SourceValue[T any](s StateSource) *T { return (*T)(s.p) }

// TargetValue views a combine target block.
func TargetValue[T any](s StateTarget) *T { return (*T)(s.p) }

// AggregateFunc is a user-defined aggregate driven through the engine's
// four-phase protocol. The engine may run many partial-aggregation states
// concurrently; every method must confine its effects to the state blocks it
// is handed.
type AggregateFunc interface {
	Config() AggregateFuncConfig

	// StateSize declares the fixed byte size of one accumulator block.
	StateSize() int

	// Init primes one zeroed state block. Called once per block before any
	// update.
	Init(s State)

	// Update folds one input chunk into per-row state blocks: row i of the
	// chunk belongs to states[i]. Called repeatedly; many chunks may feed
	// the same block.
	Update(input *DataChunk, states []State) error

	// Combine merges source into target. Source blocks are dead afterwards;
	// targets keep accumulating. Required for correctness under parallel
	// execution.
	Combine(source StateSource, target StateTarget)

	// Finalize produces the output value for one state block, writing it
	// (or NULL, if the block saw no rows) into row of out.
	Finalize(s State, out *Vector, row int) error
}

var (
	aggTrampolineOnce sync.Once
	aggStateSizePtr   uintptr
	aggInitPtr        uintptr
	aggUpdatePtr      uintptr
	aggCombinePtr     uintptr
	aggFinalizePtr    uintptr
)

func aggregateTrampolines() (stateSize, init, update, combine, finalize uintptr) {
	aggTrampolineOnce.Do(func() {
		aggStateSizePtr = purego.NewCallback(aggStateSizeCallback)
		aggInitPtr = purego.NewCallback(aggInitCallback)
		aggUpdatePtr = purego.NewCallback(aggUpdateCallback)
		aggCombinePtr = purego.NewCallback(aggCombineCallback)
		aggFinalizePtr = purego.NewCallback(aggFinalizeCallback)
	})
	return aggStateSizePtr, aggInitPtr, aggUpdatePtr, aggCombinePtr, aggFinalizePtr
}

// registeredAggregate pins the state size declared at registration. The
// engine queries the size through a callback, and every callback must be
// panic-proof; snapshotting the validated size here keeps user code out of
// that path entirely.
type registeredAggregate struct {
	AggregateFunc
	stateSize uintptr
}

func aggregateFromInfo(info uintptr) *registeredAggregate {
	h := cgo.Handle(mustCall("duckdb_aggregate_function_get_extra_info", info))
	return h.Value().(*registeredAggregate)
}

func setAggregateError(info uintptr, msg string) {
	buf := cString(msg)
	mustCall("duckdb_aggregate_function_set_error", info, cStringPtr(buf))
	runtime.KeepAlive(buf)
}

func aggStateSizeCallback(info uintptr) uintptr {
	return aggregateFromInfo(info).stateSize
}

func aggInitCallback(info, state uintptr) uintptr {
	defer func() {
		if r := recover(); r != nil {
			setAggregateError(info, fmt.Sprintf("panic in aggregate init: %v", r))
		}
	}()
	aggregateFromInfo(info).Init(State{p: unsafe.Pointer(state)})
	return 0
}

func aggUpdateCallback(info, input, states uintptr) uintptr {
	defer func() {
		if r := recover(); r != nil {
			setAggregateError(info, fmt.Sprintf("panic in aggregate update: %v", r))
		}
	}()

	f := aggregateFromInfo(info)
	chunk := newBorrowedChunk(input)
	rows := chunk.Size()

	ptrs := unsafe.Slice((*unsafe.Pointer)(unsafe.Pointer(states)), rows)
	blocks := make([]State, rows)
	for i, p := range ptrs {
		blocks[i] = State{p: p}
	}

	if err := f.Update(chunk, blocks); err != nil {
		setAggregateError(info, err.Error())
	}
	return 0
}

func aggCombineCallback(info, source, target, count uintptr) uintptr {
	defer func() {
		if r := recover(); r != nil {
			setAggregateError(info, fmt.Sprintf("panic in aggregate combine: %v", r))
		}
	}()

	f := aggregateFromInfo(info)
	src := unsafe.Slice((*unsafe.Pointer)(unsafe.Pointer(source)), count)
	tgt := unsafe.Slice((*unsafe.Pointer)(unsafe.Pointer(target)), count)
	for i := 0; i < int(count); i++ {
		f.Combine(StateSource{p: src[i]}, StateTarget{p: tgt[i]})
	}
	return 0
}

func aggFinalizeCallback(info, source, result, count, offset uintptr) uintptr {
	defer func() {
		if r := recover(); r != nil {
			setAggregateError(info, fmt.Sprintf("panic in aggregate finalize: %v", r))
		}
	}()

	f := aggregateFromInfo(info)
	src := unsafe.Slice((*unsafe.Pointer)(unsafe.Pointer(source)), count)
	out := newOutputVector(result, int(offset)+int(count))
	for i := 0; i < int(count); i++ {
		if err := f.Finalize(State{p: src[i]}, out, int(offset)+i); err != nil {
			setAggregateError(info, err.Error())
			return 0
		}
	}
	return 0
}

// RegisterAggregateFunc builds a native descriptor for f and registers it on
// the connection.
func (c *Connection) RegisterAggregateFunc(f AggregateFunc) error {
	cfg := f.Config()
	if cfg.Name == "" {
		return NewError(ErrRegistration, "aggregate function needs a name")
	}
	if len(cfg.InputTypes) == 0 {
		return NewError(ErrRegistration, "aggregate function needs at least one parameter type")
	}
	if cfg.ResultType == TypeInvalid {
		return NewError(ErrRegistration, "aggregate function needs a result type")
	}
	size := f.StateSize()
	if size <= 0 {
		return NewError(ErrRegistration, "aggregate state size must be positive")
	}

	fn, err := call("duckdb_create_aggregate_function")
	if err != nil {
		return err
	}
	defer mustCall("duckdb_destroy_aggregate_function", uintptr(unsafe.Pointer(&fn)))

	name := cString(cfg.Name)
	mustCall("duckdb_aggregate_function_set_name", fn, cStringPtr(name))
	runtime.KeepAlive(name)

	for _, t := range cfg.InputTypes {
		lt := mustCall("duckdb_create_logical_type", uintptr(t))
		mustCall("duckdb_aggregate_function_add_parameter", fn, lt)
		mustCall("duckdb_destroy_logical_type", uintptr(unsafe.Pointer(&lt)))
	}

	lt := mustCall("duckdb_create_logical_type", uintptr(cfg.ResultType))
	mustCall("duckdb_aggregate_function_set_return_type", fn, lt)
	mustCall("duckdb_destroy_logical_type", uintptr(unsafe.Pointer(&lt)))

	stateSize, init, update, combine, finalize := aggregateTrampolines()
	mustCall("duckdb_aggregate_function_set_functions", fn, stateSize, init, update, combine, finalize)

	_, deleter := scalarTrampolines()
	h := cgo.NewHandle(&registeredAggregate{AggregateFunc: f, stateSize: uintptr(size)})
	mustCall("duckdb_aggregate_function_set_extra_info", fn, uintptr(h), deleter)

	if mustCall("duckdb_register_aggregate_function", c.handle, fn) != stateSuccess {
		return NewErrorf(ErrRegistration, "engine rejected aggregate function %q", cfg.Name)
	}
	return nil
}

// monoidState is the accumulator for monoid-shaped aggregates: a running
// value plus the number of rows folded in, so an empty group can finalize to
// NULL instead of the identity.
type monoidState[T fixedWidth] struct {
	value T
	count uint64
}

type monoidAggregate[T fixedWidth] struct {
	cfg      AggregateFuncConfig
	identity T
	combine  func(T, T) T
}

func (m *monoidAggregate[T]) Config() AggregateFuncConfig { return m.cfg }

func (m *monoidAggregate[T]) StateSize() int {
	return int(unsafe.Sizeof(monoidState[T]{}))
}

func (m *monoidAggregate[T]) Init(s State) {
	*StateValue[monoidState[T]](s) = monoidState[T]{value: m.identity}
}

func (m *monoidAggregate[T]) Update(input *DataChunk, states []State) error {
	v, err := input.Vector(0)
	if err != nil {
		return err
	}
	data, err := VectorData[T](v)
	if err != nil {
		return err
	}
	for row := range states {
		if v.IsNull(row) {
			continue
		}
		st := StateValue[monoidState[T]](states[row])
		st.value = m.combine(st.value, data[row])
		st.count++
	}
	return nil
}

func (m *monoidAggregate[T]) Combine(source StateSource, target StateTarget) {
	src := SourceValue[monoidState[T]](source)
	tgt := TargetValue[monoidState[T]](target)
	tgt.value = m.combine(tgt.value, src.value)
	tgt.count += src.count
}

func (m *monoidAggregate[T]) Finalize(s State, out *Vector, row int) error {
	st := StateValue[monoidState[T]](s)
	if st.count == 0 {
		out.SetNull(row)
		return nil
	}
	return setFixed(out, row, st.value)
}

// NewMonoidAggregate derives a full aggregate from an identity value and a
// binary combine operator. Covers sum, product, min, max and any other
// monoid over a fixed-width type; groups with no non-NULL rows produce NULL.
func NewMonoidAggregate[T fixedWidth](name string, arg, result Type, identity T, combine func(T, T) T) AggregateFunc {
	return &monoidAggregate[T]{
		cfg:      AggregateFuncConfig{Name: name, InputTypes: []Type{arg}, ResultType: result},
		identity: identity,
		combine:  combine,
	}
}
