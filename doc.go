/*
Package duckdb is a CGO-free binding to the DuckDB analytical database engine.

# Overview

The engine's shared library is located and loaded at runtime; every C entry
point is resolved lazily and cached for the life of the process. On top of that
layer the package exposes ownership-aware wrappers for the engine's opaque
handles (Database, Connection, PreparedStatement, Result, DataChunk, Vector),
typed zero-copy accessors over columnar data, and a registration bridge that
lets Go functions run inside the engine's vectorized execution pipeline, both
as scalar functions and as parallel-safe aggregates.

# Basic Usage

	package main

	import (
		"fmt"
		"log"

		"github.com/duckbind/go-duckdb"
	)

	func main() {
		db, err := duckdb.Open(":memory:")
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		conn, err := db.Connect()
		if err != nil {
			log.Fatalf("failed to connect: %v", err)
		}
		defer conn.Close()

		res, err := conn.Query("SELECT 21 + 21 AS answer")
		if err != nil {
			log.Fatalf("query failed: %v", err)
		}
		defer res.Close()

		chunk, err := res.FetchChunk()
		if err != nil {
			log.Fatalf("fetch failed: %v", err)
		}
		defer chunk.Close()

		v, _ := chunk.Vector(0)
		answer, _, _ := duckdb.GetInt32(v, 0)
		fmt.Println("answer:", answer)
	}

# User-Defined Functions

Scalar functions are called once per chunk and write a full output vector;
convenience adapters accept a plain per-row Go function or a fixed-width batch
kernel. Aggregate functions follow the engine's four-phase protocol
(state size and initialize, update, combine, finalize) and must be written so
that concurrently updated partial states merge correctly; NewMonoidAggregate
derives all four phases from an identity value and a binary combine operator.

# Extensions

The extension adapter satisfies DuckDB's loadable-extension ABI: it exposes a
single entry point named <extension>_init_c_api, opens a connection against the
engine-provided handles, runs a caller-supplied initialization routine and
reports any failure through the engine's own error channel. Stable and
unstable capability levels are separate context types, so use of an
unstable-only operation from a stable routine fails at compile time.

# Library Discovery

The shared library is searched as libduckdb.so / libduckdb.dylib / duckdb.dll
in the directory named by the DUCKDB_LIBRARY environment variable, next to the
executable, in the working directory, and finally through the system loader's
default paths.

# Thread Safety

The symbol cache and registration bridge are safe for concurrent use. A single
Connection is not safe for unsynchronized concurrent queries from multiple
goroutines unless the engine's own documentation says otherwise; this package
does not add locking around engine calls.
*/
package duckdb
