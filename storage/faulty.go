package storage

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by FaultyFS rules.
var ErrInjected = errors.New("storage: injected fault")

// Fault defines failure behaviour for files whose name contains a pattern.
type Fault struct {
	FailOpen  bool
	FailRead  bool
	FailWrite bool
	Err       error
}

// FaultyFS wraps a FileSystem, counting opens per file and injecting errors.
type FaultyFS struct {
	FS FileSystem

	mu     sync.Mutex
	rules  map[string]Fault
	opens  map[string]int
	writes map[string]int
}

// NewFaultyFS creates a FaultyFS around fsys (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{
		FS:     fsys,
		rules:  make(map[string]Fault),
		opens:  make(map[string]int),
		writes: make(map[string]int),
	}
}

// AddRule adds a fault injection rule for names containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[pattern] = fault
}

// ClearRules removes every fault rule.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

// Opens returns how many times files containing pattern were opened.
func (f *FaultyFS) Opens(pattern string) int {
	return f.count(f.opens, pattern)
}

// Writes returns how many files containing pattern were opened for writing.
func (f *FaultyFS) Writes(pattern string) int {
	return f.count(f.writes, pattern)
}

// Reset zeroes the access counters.
func (f *FaultyFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = make(map[string]int)
	f.writes = make(map[string]int)
}

func (f *FaultyFS) count(m map[string]int, pattern string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for name, n := range m {
		if strings.Contains(name, pattern) {
			total += n
		}
	}
	return total
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f.mu.Lock()
	f.opens[name]++
	writing := flag&(os.O_WRONLY|os.O_RDWR) != 0
	if writing {
		f.writes[name]++
	}
	fault, ok := f.match(name)
	f.mu.Unlock()

	if ok && fault.FailOpen {
		return nil, fault.Err
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return file, nil
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error              { return f.FS.Remove(name) }
func (f *FaultyFS) RemoveAll(path string) error           { return f.FS.RemoveAll(path) }
func (f *FaultyFS) Rename(oldpath, newpath string) error  { return f.FS.Rename(oldpath, newpath) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return f.FS.ReadDir(name) }

type faultyFile struct {
	File
	fault Fault
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if ff.fault.FailRead {
		return 0, ff.fault.Err
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if ff.fault.FailRead {
		return 0, ff.fault.Err
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailWrite {
		return 0, ff.fault.Err
	}
	return ff.File.Write(p)
}
