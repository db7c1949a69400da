package duckdb

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestState allocates one Go-backed state block of the aggregate's
// declared size and primes it, standing in for the engine's allocation.
func newTestState(f AggregateFunc) State {
	buf := make([]byte, f.StateSize())
	s := State{p: unsafe.Pointer(&buf[0])}
	f.Init(s)
	return s
}

func TestMonoidStateMachine(t *testing.T) {
	sum := NewMonoidAggregate[int64]("test_sum", TypeBigInt, TypeBigInt, 0,
		func(a, b int64) int64 { return a + b })

	require.Equal(t, int(unsafe.Sizeof(monoidState[int64]{})), sum.StateSize())

	// Two partial-aggregation units, as under parallel execution.
	left := newTestState(sum)
	right := newTestState(sum)

	foldInto := func(s State, values ...int64) {
		st := StateValue[monoidState[int64]](s)
		for _, v := range values {
			st.value += v
			st.count++
		}
	}
	foldInto(left, 1, 2, 3)
	foldInto(right, 10, 20)

	// Source merges into target; source is dead afterwards.
	sum.Combine(StateSource{p: right.p}, StateTarget{p: left.p})

	merged := StateValue[monoidState[int64]](left)
	assert.Equal(t, int64(36), merged.value)
	assert.Equal(t, uint64(5), merged.count)
}

func TestMonoidEmptyStateStaysEmptyThroughCombine(t *testing.T) {
	mx := NewMonoidAggregate[int64]("test_max", TypeBigInt, TypeBigInt, -1<<63,
		func(a, b int64) int64 {
			if a > b {
				return a
			}
			return b
		})

	a := newTestState(mx)
	b := newTestState(mx)
	mx.Combine(StateSource{p: a.p}, StateTarget{p: b.p})

	st := StateValue[monoidState[int64]](b)
	assert.Equal(t, uint64(0), st.count, "merging two empty states must stay empty")
}

func TestAggregateSumMatchesBuiltin(t *testing.T) {
	requireEngine(t)
	conn := openTestConnection(t)

	mySum := NewMonoidAggregate[int64]("my_sum", TypeBigInt, TypeBigInt, 0,
		func(a, b int64) int64 { return a + b })
	require.NoError(t, conn.RegisterAggregateFunc(mySum))

	require.NoError(t, conn.Exec(`CREATE TABLE nums AS
		SELECT CASE WHEN range % 11 = 0 THEN NULL ELSE range END AS x
		FROM range(500000)`))

	res, err := conn.Query("SELECT my_sum(x) = sum(x), my_sum(x) FROM nums")
	require.NoError(t, err)
	defer res.Close()

	chunk, err := res.FetchChunk()
	require.NoError(t, err)
	defer chunk.Close()

	v0, _ := chunk.Vector(0)
	same, ok, err := GetBool(v0, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, same, "custom sum must match the builtin under parallel execution")
}

func TestAggregateParallelMatchesSingleThreaded(t *testing.T) {
	requireEngine(t)

	run := func(threads int) int64 {
		db, err := OpenConfig(":memory:", &Config{Threads: threads})
		require.NoError(t, err)
		defer db.Close()
		conn, err := db.Connect()
		require.NoError(t, err)
		defer conn.Close()

		mySum := NewMonoidAggregate[int64]("my_sum", TypeBigInt, TypeBigInt, 0,
			func(a, b int64) int64 { return a + b })
		require.NoError(t, conn.RegisterAggregateFunc(mySum))
		require.NoError(t, conn.Exec("CREATE TABLE nums AS SELECT range AS x FROM range(1000000)"))

		res, err := conn.Query("SELECT my_sum(x) FROM nums")
		require.NoError(t, err)
		defer res.Close()

		chunk, err := res.FetchChunk()
		require.NoError(t, err)
		defer chunk.Close()

		v, _ := chunk.Vector(0)
		total, ok, err := GetInt64(v, 0)
		require.NoError(t, err)
		require.True(t, ok)
		return total
	}

	// The combine phase's source/target convention only matters once the
	// engine actually splits the aggregation across units.
	single := run(1)
	parallel := run(4)
	assert.Equal(t, single, parallel)
	assert.Equal(t, int64(499999500000), single)
}

func TestAggregateEmptyGroupYieldsNull(t *testing.T) {
	requireEngine(t)
	conn := openTestConnection(t)

	mySum := NewMonoidAggregate[int64]("my_sum", TypeBigInt, TypeBigInt, 0,
		func(a, b int64) int64 { return a + b })
	require.NoError(t, conn.RegisterAggregateFunc(mySum))

	require.NoError(t, conn.Exec("CREATE TABLE empty_t (x BIGINT)"))
	require.NoError(t, conn.Exec("INSERT INTO empty_t VALUES (NULL)"))

	res, err := conn.Query("SELECT my_sum(x) FROM empty_t")
	require.NoError(t, err)
	defer res.Close()

	chunk, err := res.FetchChunk()
	require.NoError(t, err)
	defer chunk.Close()

	v, _ := chunk.Vector(0)
	_, ok, err := GetInt64(v, 0)
	require.NoError(t, err)
	assert.False(t, ok, "aggregate over only-NULL input must be NULL, not the identity")
}

// meanAggregate shows a non-monoid state: a two-field count+total block.
type meanAggregate struct{}

type meanState struct {
	total float64
	count uint64
}

func (meanAggregate) Config() AggregateFuncConfig {
	return AggregateFuncConfig{Name: "my_mean", InputTypes: []Type{TypeDouble}, ResultType: TypeDouble}
}

func (meanAggregate) StateSize() int { return int(unsafe.Sizeof(meanState{})) }

func (meanAggregate) Init(s State) { *StateValue[meanState](s) = meanState{} }

func (meanAggregate) Update(input *DataChunk, states []State) error {
	v, err := input.Vector(0)
	if err != nil {
		return err
	}
	data, err := VectorData[float64](v)
	if err != nil {
		return err
	}
	for row := range states {
		if v.IsNull(row) {
			continue
		}
		st := StateValue[meanState](states[row])
		st.total += data[row]
		st.count++
	}
	return nil
}

func (meanAggregate) Combine(source StateSource, target StateTarget) {
	src := SourceValue[meanState](source)
	tgt := TargetValue[meanState](target)
	tgt.total += src.total
	tgt.count += src.count
}

func (meanAggregate) Finalize(s State, out *Vector, row int) error {
	st := StateValue[meanState](s)
	if st.count == 0 {
		out.SetNull(row)
		return nil
	}
	return SetFloat64(out, row, st.total/float64(st.count))
}

// onceSizeAggregate reports its state size correctly the first time and
// panics on every later call, modeling a stateful implementation that cannot
// be queried again after registration.
type onceSizeAggregate struct {
	meanAggregate
	sized bool
}

func (f *onceSizeAggregate) StateSize() int {
	if f.sized {
		panic("state size queried twice")
	}
	f.sized = true
	return f.meanAggregate.StateSize()
}

func TestAggregateStateSizeSnapshotAtRegistration(t *testing.T) {
	f := &onceSizeAggregate{}
	ra := &registeredAggregate{AggregateFunc: f, stateSize: uintptr(f.StateSize())}

	require.Equal(t, uintptr(unsafe.Sizeof(meanState{})), ra.stateSize)
	require.Panics(t, func() { f.StateSize() })

	// The snapshot, not the user method, is what the engine reads.
	assert.Equal(t, uintptr(unsafe.Sizeof(meanState{})), ra.stateSize)
}

func TestAggregateStateSizeNotReEnteredByEngine(t *testing.T) {
	requireEngine(t)
	conn := openTestConnection(t)

	f := &onceSizeAggregate{}
	require.NoError(t, conn.RegisterAggregateFunc(f))
	require.NoError(t, conn.Exec("CREATE TABLE once_vals AS SELECT range::DOUBLE AS x FROM range(11)"))

	res, err := conn.Query("SELECT my_mean(x) FROM once_vals")
	require.NoError(t, err)
	defer res.Close()

	chunk, err := res.FetchChunk()
	require.NoError(t, err)
	defer chunk.Close()

	v, _ := chunk.Vector(0)
	mean, ok, err := GetFloat64(v, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, mean)
}

func TestCustomMeanAggregate(t *testing.T) {
	requireEngine(t)
	conn := openTestConnection(t)

	require.NoError(t, conn.RegisterAggregateFunc(meanAggregate{}))
	require.NoError(t, conn.Exec("CREATE TABLE vals AS SELECT range::DOUBLE AS x FROM range(101)"))

	res, err := conn.Query("SELECT my_mean(x) FROM vals")
	require.NoError(t, err)
	defer res.Close()

	chunk, err := res.FetchChunk()
	require.NoError(t, err)
	defer chunk.Close()

	v, _ := chunk.Vector(0)
	mean, ok, err := GetFloat64(v, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50.0, mean)
}
