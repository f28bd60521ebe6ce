package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Flaky FS Tests
// =============================================================================

// TestFlaky_PassthroughByDefault verifies an unarmed Flaky behaves like its
// inner filesystem.
func TestFlaky_PassthroughByDefault(t *testing.T) {
	flaky := NewFlaky(NewReal())
	path := filepath.Join(t.TempDir(), "data.json")

	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	raw, err := flaky.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile err=%v, want=nil", err)
	}

	if got, want := string(raw), "{}"; got != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}
}

// TestFlaky_FailsArmedCallsThenRecovers verifies counted failures: exactly n
// calls fail with ErrInjected, then the operation works again.
func TestFlaky_FailsArmedCallsThenRecovers(t *testing.T) {
	flaky := NewFlaky(NewReal())
	path := filepath.Join(t.TempDir(), "data.json")

	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	flaky.FailNext(OpReadFile, 2)

	for i := 0; i < 2; i++ {
		_, err := flaky.ReadFile(path)
		if got, want := err, ErrInjected; !errors.Is(got, want) {
			t.Fatalf("call %d err=%v, want=%v", i, got, want)
		}
	}

	if _, err := flaky.ReadFile(path); err != nil {
		t.Fatalf("recovered call err=%v, want=nil", err)
	}

	if got, want := flaky.Calls(OpReadFile), 3; got != want {
		t.Fatalf("calls=%d, want=%d", got, want)
	}
}

// TestFlaky_InjectsIntoOpenFiles verifies Write and Sync faults fire on
// files opened through the wrapper.
func TestFlaky_InjectsIntoOpenFiles(t *testing.T) {
	flaky := NewFlaky(NewReal())
	path := filepath.Join(t.TempDir(), "data.json")

	flaky.FailNext(OpSync, 1)

	f, err := flaky.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile err=%v, want=nil", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte(`{}`)); err != nil {
		t.Fatalf("Write err=%v, want=nil", err)
	}

	if got, want := f.Sync(), ErrInjected; !errors.Is(got, want) {
		t.Fatalf("Sync err=%v, want=%v", got, want)
	}

	// Second sync succeeds.
	if err := f.Sync(); err != nil {
		t.Fatalf("second Sync err=%v, want=nil", err)
	}
}

// TestFlaky_OpsAreIndependent verifies arming one operation does not affect
// another.
func TestFlaky_OpsAreIndependent(t *testing.T) {
	flaky := NewFlaky(NewReal())
	dir := t.TempDir()
	src := filepath.Join(dir, "a.json")
	dst := filepath.Join(dir, "b.json")

	if err := os.WriteFile(src, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	flaky.FailNext(OpRename, 1)

	if _, err := flaky.ReadFile(src); err != nil {
		t.Fatalf("ReadFile err=%v, want=nil", err)
	}

	if got, want := flaky.Rename(src, dst), ErrInjected; !errors.Is(got, want) {
		t.Fatalf("Rename err=%v, want=%v", got, want)
	}
}
