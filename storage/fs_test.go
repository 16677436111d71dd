package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "nested", "blob.bin")

	if err := WriteFileAtomic(Default, name, []byte("hello")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	data, err := ReadFile(Default, name)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadFile() = %q, want %q", data, "hello")
	}
	if Exists(Default, name+".tmp") {
		t.Error("temporary file left behind")
	}
}

func TestFaultyFSCountsOpens(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	name := filepath.Join(dir, "meta.bin")

	if err := WriteFileAtomic(ffs, name, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(ffs, name); err != nil {
		t.Fatal(err)
	}
	if got := ffs.Writes("meta.bin"); got != 1 {
		t.Errorf("Writes() = %d, want 1", got)
	}
	if got := ffs.Opens("meta.bin"); got != 2 {
		t.Errorf("Opens() = %d, want 2", got)
	}

	ffs.Reset()
	if got := ffs.Opens("meta.bin"); got != 0 {
		t.Errorf("Opens() after Reset = %d, want 0", got)
	}
}

func TestFaultyFSInjectsErrors(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "section_1.bin")
	if err := os.WriteFile(name, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	ffs := NewFaultyFS(nil)
	ffs.AddRule("section_1", Fault{FailRead: true})

	if _, err := ReadFile(ffs, name); !errors.Is(err, ErrInjected) {
		t.Errorf("ReadFile() error = %v, want ErrInjected", err)
	}

	ffs.AddRule("section_1", Fault{FailWrite: true})
	if err := WriteFileAtomic(ffs, name, []byte("new")); !errors.Is(err, ErrInjected) {
		t.Errorf("WriteFileAtomic() error = %v, want ErrInjected", err)
	}
	if data, _ := os.ReadFile(name); string(data) != "data" {
		t.Errorf("original file modified: %q", data)
	}

	ffs.ClearRules()
	if _, err := ReadFile(ffs, name); err != nil {
		t.Errorf("ReadFile() after ClearRules error = %v", err)
	}
}
