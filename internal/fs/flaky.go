package fs

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrInjected marks a failure injected by [Flaky]. Tests assert against it
// to distinguish injected faults from real OS errors.
var ErrInjected = errors.New("injected failure")

// Op identifies an [FS] operation for fault injection.
type Op string

// Injectable operations.
const (
	OpReadFile Op = "readfile"
	OpOpenFile Op = "openfile"
	OpWrite    Op = "write"
	OpSync     Op = "sync"
	OpRename   Op = "rename"
	OpRemove   Op = "remove"
	OpLock     Op = "lock"
)

// Flaky wraps an [FS] and fails a counted number of calls per operation.
//
// Unlike random fault injection, failures are fully deterministic: arm an
// operation with [Flaky.FailNext] and the next n calls of that operation
// return [ErrInjected]. Call counters let tests verify how many attempts a
// retry loop actually made.
type Flaky struct {
	inner FS

	mu        sync.Mutex
	remaining map[Op]int
	calls     map[Op]int
}

// NewFlaky returns a [Flaky] wrapping inner with no failures armed.
func NewFlaky(inner FS) *Flaky {
	return &Flaky{
		inner:     inner,
		remaining: make(map[Op]int),
		calls:     make(map[Op]int),
	}
}

// FailNext arms op to fail its next n calls.
func (f *Flaky) FailNext(op Op, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.remaining[op] = n
}

// Calls reports how many times op was invoked (failed or not).
func (f *Flaky) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

// take records a call of op and reports whether it should fail.
func (f *Flaky) take(op Op) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++

	if f.remaining[op] > 0 {
		f.remaining[op]--

		return true
	}

	return false
}

func (f *Flaky) ReadFile(path string) ([]byte, error) {
	if f.take(OpReadFile) {
		return nil, fmt.Errorf("read %s: %w", path, ErrInjected)
	}

	return f.inner.ReadFile(path)
}

func (f *Flaky) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if f.take(OpOpenFile) {
		return nil, fmt.Errorf("open %s: %w", path, ErrInjected)
	}

	file, err := f.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &flakyFile{File: file, fs: f, path: path}, nil
}

func (f *Flaky) Stat(path string) (os.FileInfo, error) {
	return f.inner.Stat(path)
}

func (f *Flaky) Exists(path string) (bool, error) {
	return f.inner.Exists(path)
}

func (f *Flaky) Remove(path string) error {
	if f.take(OpRemove) {
		return fmt.Errorf("remove %s: %w", path, ErrInjected)
	}

	return f.inner.Remove(path)
}

func (f *Flaky) Rename(oldpath, newpath string) error {
	if f.take(OpRename) {
		return fmt.Errorf("rename %s: %w", oldpath, ErrInjected)
	}

	return f.inner.Rename(oldpath, newpath)
}

func (f *Flaky) Lock(path string, timeout time.Duration) (Locker, error) {
	if f.take(OpLock) {
		return nil, fmt.Errorf("lock %s: %w", path, ErrInjected)
	}

	return f.inner.Lock(path, timeout)
}

// flakyFile intercepts Write and Sync on an open file.
type flakyFile struct {
	File

	fs   *Flaky
	path string
}

func (f *flakyFile) Write(p []byte) (int, error) {
	if f.fs.take(OpWrite) {
		return 0, fmt.Errorf("write %s: %w", f.path, ErrInjected)
	}

	return f.File.Write(p)
}

func (f *flakyFile) Sync() error {
	if f.fs.take(OpSync) {
		return fmt.Errorf("sync %s: %w", f.path, ErrInjected)
	}

	return f.File.Sync()
}

// Compile-time interface check.
var _ FS = (*Flaky)(nil)
