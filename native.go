package duckdb

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Library loader state. The engine library is loaded at most once per process
// and never unloaded; resolved symbols are cached for the process lifetime.
var (
	nativeLibOnce    sync.Once
	nativeLibLoaded  bool
	nativeLibError   error
	nativeLibPath    string
	nativeLibHandler unsafe.Pointer

	symbolMu    sync.RWMutex
	symbolCache = make(map[string]uintptr)
)

// LibraryEnv names the environment variable that overrides library discovery.
// It may point at the shared library itself or at a directory containing it.
const LibraryEnv = "DUCKDB_LIBRARY"

// libraryName returns the platform's shared library file name.
func libraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "duckdb.dll"
	case "darwin":
		return "libduckdb.dylib"
	default:
		return "libduckdb.so"
	}
}

// LoadLibrary loads the engine's shared library if it has not been loaded yet.
// It is called implicitly by Open and by symbol resolution; calling it early is
// useful to surface a missing library before the first query.
func LoadLibrary() error {
	loadNativeLibrary()
	return nativeLibError
}

// LibraryPath returns the path of the loaded library, or the empty string when
// the library was resolved through the system loader's default search.
func LibraryPath() string {
	loadNativeLibrary()
	return nativeLibPath
}

// Attempts to load the engine library exactly once.
func loadNativeLibrary() {
	nativeLibOnce.Do(func() {
		for _, candidate := range libraryCandidates() {
			handler, err := loadDynamicLibrary(candidate)
			if err != nil {
				continue
			}
			nativeLibHandler = handler
			nativeLibPath = candidate
			nativeLibLoaded = true
			return
		}

		nativeLibError = NewErrorf(ErrLibraryNotFound,
			"shared library %q not found (set %s to its location)", libraryName(), LibraryEnv)
	})
}

// Candidate paths in resolution order. The bare name comes last so that the
// system loader's own search paths act as the fallback.
func libraryCandidates() []string {
	name := libraryName()
	var candidates []string

	if env := os.Getenv(LibraryEnv); env != "" {
		if info, err := os.Stat(env); err == nil && info.IsDir() {
			candidates = append(candidates, filepath.Join(env, name))
		} else {
			candidates = append(candidates, env)
		}
	}

	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), name))
	}

	if _, thisFile, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Join(filepath.Dir(thisFile), name))
	}

	candidates = append(candidates, filepath.Join(".", name))

	// Bare name: delegate to the loader's default search.
	candidates = append(candidates, name)

	return candidates
}

// symbol resolves a named entry point, memoizing the result. Failed lookups
// are not cached so an unrelated bad name cannot poison later resolutions.
func symbol(name string) (uintptr, error) {
	symbolMu.RLock()
	addr, ok := symbolCache[name]
	symbolMu.RUnlock()
	if ok {
		return addr, nil
	}

	loadNativeLibrary()
	if !nativeLibLoaded {
		return 0, nativeLibError
	}

	sym, err := getSymbol(nativeLibHandler, name)
	if err != nil {
		return 0, NewErrorf(ErrSymbolNotFound, "entry point %q not found in %s", name, nativeLibPath)
	}

	symbolMu.Lock()
	// First resolution wins; concurrent racers resolved the same address anyway.
	if cached, ok := symbolCache[name]; ok {
		sym = unsafe.Pointer(cached)
	} else {
		symbolCache[name] = uintptr(sym)
	}
	symbolMu.Unlock()

	return uintptr(sym), nil
}

// call invokes a cached native entry point by name with uintptr-sized args.
func call(name string, args ...uintptr) (uintptr, error) {
	addr, err := symbol(name)
	if err != nil {
		return 0, err
	}
	r1, _, _ := purego.SyscallN(addr, args...)
	return r1, nil
}

// mustCall is for entry points that are guaranteed present once any engine
// call has succeeded; a resolution failure at that point is a programming bug.
func mustCall(name string, args ...uintptr) uintptr {
	r1, err := call(name, args...)
	if err != nil {
		panic(err)
	}
	return r1
}
