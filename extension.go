package duckdb

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

// The loadable-extension ABI: the engine resolves one exported entry point
// named "<extension>_init_c_api" with signature
//
//	bool entry(duckdb_extension_info info, duckdb_extension_access *access);
//
// and calls it with an opaque info handle plus an access table of three
// function pointers (set_error, get_database, get_api). The entry point must
// never let a failure escape across the ABI boundary; every error is reported
// through set_error and a false return.

const entrypointSuffix = "_init_c_api"

// accessTable mirrors struct duckdb_extension_access.
type accessTable struct {
	setError    uintptr
	getDatabase uintptr
	getAPI      uintptr
}

// ExtensionContext is the stable capability level handed to an extension's
// initialization routine: it exposes only operations that are safe across
// engine versions, namely the connection opened against the loading database
// and function registration through it.
type ExtensionContext struct {
	conn *Connection
}

// Connection returns the connection the extension was loaded against. It is
// valid only for the duration of the initialization routine.
func (ec *ExtensionContext) Connection() *Connection { return ec.conn }

// RegisterScalarFunc registers a scalar function on the loading connection.
func (ec *ExtensionContext) RegisterScalarFunc(f ScalarFunc) error {
	return ec.conn.RegisterScalarFunc(f)
}

// RegisterAggregateFunc registers an aggregate function on the loading
// connection.
func (ec *ExtensionContext) RegisterAggregateFunc(f AggregateFunc) error {
	return ec.conn.RegisterAggregateFunc(f)
}

// UnstableExtensionContext is the unstable capability level: everything the
// stable level offers plus raw access to the engine's handles and versioned
// API table. These operations trade forward-compatibility for full
// capability; taking this context type in the init routine is what opts an
// extension in.
type UnstableExtensionContext struct {
	ExtensionContext

	info   uintptr
	access *accessTable
	dbPtr  uintptr
}

// DatabaseHandle returns the raw native database handle the extension was
// loaded into.
func (uc *UnstableExtensionContext) DatabaseHandle() uintptr { return uc.dbPtr }

// APIStruct asks the engine for its function-pointer table for the given API
// version string (e.g. "v1.2.0"). Returns 0 if the engine cannot provide that
// version.
func (uc *UnstableExtensionContext) APIStruct(version string) uintptr {
	buf := cString(version)
	r1, _, _ := purego.SyscallN(uc.access.getAPI, uc.info, cStringPtr(buf))
	runtime.KeepAlive(buf)
	return r1
}

// InitFunc is a version-stable extension initialization routine.
type InitFunc func(*ExtensionContext) error

// UnstableInitFunc is an initialization routine that requires the unstable
// capability set.
type UnstableInitFunc func(*UnstableExtensionContext) error

// Extension adapts a Go initialization routine to the engine's
// extension-loading ABI.
type Extension struct {
	name         string
	init         InitFunc
	unstableInit UnstableInitFunc

	entryOnce sync.Once
	entryPtr  uintptr
}

// NewExtension creates an extension whose init routine uses only the stable
// capability set.
func NewExtension(name string, init InitFunc) *Extension {
	return &Extension{name: name, init: init}
}

// NewUnstableExtension creates an extension whose init routine uses the
// unstable capability set.
func NewUnstableExtension(name string, init UnstableInitFunc) *Extension {
	return &Extension{name: name, unstableInit: init}
}

// EntrypointName returns the exported symbol name the engine will resolve.
func (e *Extension) EntrypointName() string {
	return e.name + entrypointSuffix
}

// Entrypoint returns a C-callable function pointer implementing the entry
// ABI, suitable for exporting from a c-shared build or handing to a host that
// dispatches extension loads manually.
func (e *Extension) Entrypoint() uintptr {
	e.entryOnce.Do(func() {
		e.entryPtr = purego.NewCallback(func(info, access uintptr) uintptr {
			if e.Load(info, access) {
				return 1
			}
			return 0
		})
	})
	return e.entryPtr
}

// Load runs the initialization against the engine-provided handles and
// reports success. All failures, including panics, are translated into the
// engine's set_error call; nothing propagates past this function.
func (e *Extension) Load(info, access uintptr) (ok bool) {
	table := (*accessTable)(unsafe.Pointer(access))

	defer func() {
		if r := recover(); r != nil {
			reportExtensionError(table, info, fmt.Sprintf("extension %s panicked during init: %v", e.name, r))
			ok = false
		}
	}()

	if err := e.load(table, info); err != nil {
		reportExtensionError(table, info, NewErrorf(ErrExtension,
			"extension %s failed to initialize: %v", e.name, err).Message)
		return false
	}
	return true
}

func (e *Extension) load(table *accessTable, info uintptr) error {
	// The engine hands back a pointer to its own database handle.
	dbp, _, _ := purego.SyscallN(table.getDatabase, info)
	if dbp == 0 {
		return NewError(ErrExtension, "engine provided no database handle")
	}
	dbHandle := *(*uintptr)(unsafe.Pointer(dbp))

	// Borrowed wrapper: the engine owns this database, so the wrapper is
	// neutralized instead of closed when we are done.
	db := &Database{handle: dbHandle}
	defer atomic.StoreInt32(&db.closed, 1)

	conn, err := db.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	switch {
	case e.unstableInit != nil:
		return e.unstableInit(&UnstableExtensionContext{
			ExtensionContext: ExtensionContext{conn: conn},
			info:             info,
			access:           table,
			dbPtr:            dbHandle,
		})
	case e.init != nil:
		return e.init(&ExtensionContext{conn: conn})
	default:
		return NewError(ErrExtension, "extension has no init routine")
	}
}

func reportExtensionError(table *accessTable, info uintptr, msg string) {
	if table == nil || table.setError == 0 {
		return
	}
	buf := cString(msg)
	purego.SyscallN(table.setError, info, cStringPtr(buf))
	runtime.KeepAlive(buf)
}
