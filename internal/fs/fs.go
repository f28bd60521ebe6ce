// Package fs provides the filesystem abstraction behind the document store.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the store performs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using the [os] package
//   - [Flaky]: testing implementation that fails a counted number of calls
//
// The store never touches the [os] package directly; every durable-write
// step (create temp file, write, sync, rename, cleanup) goes through [FS]
// so tests can fail any individual step deterministically.
package fs

import (
	"io"
	"os"
	"time"
)

// File represents an open file descriptor.
//
// Satisfied by [os.File]. Sync is part of the interface because the store's
// write path must force temp-file contents to stable storage before the
// atomic rename.
type File interface {
	io.ReadWriteCloser

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// Locker represents a held advisory file lock.
// Call [Locker.Close] to release the lock.
type Locker interface {
	io.Closer
}

// FS defines the filesystem operations used by the store.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection.
type FS interface {
	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// OpenFile opens a file with the given flags and permissions.
	// See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file. See [os.Rename].
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error

	// Lock acquires an exclusive advisory lock scoped to path.
	// Blocks until the lock is acquired or the timeout elapses.
	// Call [Locker.Close] to release.
	//
	// Used for coordinating access between processes; goroutines within
	// one process must serialize through their own mutex as well.
	Lock(path string, timeout time.Duration) (Locker, error)
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
