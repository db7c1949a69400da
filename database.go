package duckdb

import (
	"runtime"
	"sync/atomic"
	"unsafe"
)

// Database is an exclusively owned handle to an engine database instance. It
// must outlive every Connection derived from it and is released exactly once
// by Close.
type Database struct {
	handle uintptr
	closed int32
}

// Open opens a database with default options. Use ":memory:" (or the empty
// string) for a transient in-memory database.
func Open(path string) (*Database, error) {
	return OpenConfig(path, nil)
}

// OpenConfig opens a database with the given engine options.
func OpenConfig(path string, config *Config) (*Database, error) {
	if err := LoadLibrary(); err != nil {
		return nil, err
	}

	var cfg uintptr
	if _, err := call("duckdb_create_config", uintptr(unsafe.Pointer(&cfg))); err != nil {
		return nil, err
	}
	defer mustCall("duckdb_destroy_config", uintptr(unsafe.Pointer(&cfg)))

	if config != nil {
		opts, err := config.options()
		if err != nil {
			return nil, NewErrorf(ErrOpen, "bad config: %v", err)
		}
		for _, kv := range opts {
			name, value := cString(kv[0]), cString(kv[1])
			state := mustCall("duckdb_set_config", cfg, cStringPtr(name), cStringPtr(value))
			runtime.KeepAlive(name)
			runtime.KeepAlive(value)
			if state != stateSuccess {
				return nil, NewErrorf(ErrOpen, "unknown config option %q", kv[0])
			}
		}
	}

	cPath := cString(path)
	var handle uintptr
	var errMsg uintptr
	state, err := call("duckdb_open_ext",
		cStringPtr(cPath),
		uintptr(unsafe.Pointer(&handle)),
		cfg,
		uintptr(unsafe.Pointer(&errMsg)))
	runtime.KeepAlive(cPath)
	if err != nil {
		return nil, err
	}
	if state != stateSuccess {
		msg := goString(errMsg)
		duckdbFree(errMsg)
		if msg == "" {
			msg = "failed to open database"
		}
		return nil, NewError(ErrOpen, msg)
	}

	db := &Database{handle: handle}
	runtime.SetFinalizer(db, (*Database).Close)
	return db, nil
}

// Connect opens a new connection against the database.
func (db *Database) Connect() (*Connection, error) {
	if atomic.LoadInt32(&db.closed) != 0 {
		return nil, NewError(ErrClosed, "database is closed")
	}

	var conn uintptr
	state := mustCall("duckdb_connect", db.handle, uintptr(unsafe.Pointer(&conn)))
	if state != stateSuccess {
		return nil, NewError(ErrOpen, "failed to connect to database")
	}

	c := &Connection{handle: conn, db: db}
	runtime.SetFinalizer(c, (*Connection).Close)
	return c, nil
}

// Close releases the database. Closing twice is a no-op. Connections derived
// from the database must be closed first.
func (db *Database) Close() error {
	if !atomic.CompareAndSwapInt32(&db.closed, 0, 1) {
		return nil
	}
	mustCall("duckdb_close", uintptr(unsafe.Pointer(&db.handle)))
	db.handle = 0
	runtime.SetFinalizer(db, nil)
	return nil
}
