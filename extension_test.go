package duckdb

import (
	"testing"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntrypointName(t *testing.T) {
	ext := NewExtension("quack", func(*ExtensionContext) error { return nil })
	assert.Equal(t, "quack_init_c_api", ext.EntrypointName())
}

// fakeAccess builds an engine-shaped access table backed by Go callbacks, so
// the adapter's ABI handling is testable without loading anything.
type fakeAccess struct {
	table    accessTable
	lastErr  string
	dbHandle uintptr
}

func newFakeAccess(dbHandle uintptr) *fakeAccess {
	fa := &fakeAccess{dbHandle: dbHandle}
	fa.table.setError = purego.NewCallback(func(info, msg uintptr) uintptr {
		fa.lastErr = goString(msg)
		return 0
	})
	fa.table.getDatabase = purego.NewCallback(func(info uintptr) uintptr {
		if fa.dbHandle == 0 {
			return 0
		}
		return uintptr(unsafe.Pointer(&fa.dbHandle))
	})
	fa.table.getAPI = purego.NewCallback(func(info, version uintptr) uintptr {
		return 0
	})
	return fa
}

func (fa *fakeAccess) ptr() uintptr {
	return uintptr(unsafe.Pointer(&fa.table))
}

func TestExtensionLoadReportsMissingDatabase(t *testing.T) {
	ext := NewExtension("quack", func(*ExtensionContext) error { return nil })
	fa := newFakeAccess(0)

	ok := ext.Load(0, fa.ptr())
	assert.False(t, ok)
	assert.Contains(t, fa.lastErr, "no database handle")
}

func TestExtensionLoadCatchesPanic(t *testing.T) {
	requireEngine(t)

	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ext := NewExtension("quack", func(*ExtensionContext) error {
		panic("boom")
	})
	fa := newFakeAccess(db.handle)

	// A panic in the init routine must never escape the ABI boundary.
	ok := ext.Load(0, fa.ptr())
	assert.False(t, ok)
	assert.Contains(t, fa.lastErr, "boom")
}

func TestExtensionLoadRegistersFunctions(t *testing.T) {
	requireEngine(t)

	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ext := NewExtension("quack", func(ec *ExtensionContext) error {
		return ec.RegisterScalarFunc(NewScalarRowFunc1[int64, int64](
			"quack_twice", TypeBigInt, TypeBigInt,
			func(x int64) int64 { return x * 2 }))
	})
	fa := newFakeAccess(db.handle)

	require.True(t, ext.Load(0, fa.ptr()), "load failed: %s", fa.lastErr)

	// The function is visible on new connections to the same database.
	conn, err := db.Connect()
	require.NoError(t, err)
	defer conn.Close()

	res, err := conn.Query("SELECT quack_twice(21)")
	require.NoError(t, err)
	defer res.Close()

	chunk, err := res.FetchChunk()
	require.NoError(t, err)
	defer chunk.Close()

	v, _ := chunk.Vector(0)
	got, ok, err := GetInt64(v, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), got)
}

func TestExtensionInitErrorTranslated(t *testing.T) {
	requireEngine(t)

	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ext := NewExtension("quack", func(*ExtensionContext) error {
		return NewError(ErrGeneric, "init went sideways")
	})
	fa := newFakeAccess(db.handle)

	assert.False(t, ext.Load(0, fa.ptr()))
	assert.Contains(t, fa.lastErr, "init went sideways")
}

func TestUnstableContextExposesRawHandles(t *testing.T) {
	requireEngine(t)

	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	var gotHandle uintptr
	ext := NewUnstableExtension("quack", func(uc *UnstableExtensionContext) error {
		gotHandle = uc.DatabaseHandle()
		return nil
	})
	fa := newFakeAccess(db.handle)

	require.True(t, ext.Load(0, fa.ptr()))
	assert.Equal(t, db.handle, gotHandle)
}
