// Package storage abstracts the removable-storage file system.
//
// Format loaders and the cache directory never call the os package
// directly; they go through a [FileSystem] so that tests can count
// accesses and inject failures.
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility recording reads/writes and injecting errors
//
// Production code should use storage.Default:
//
//	data, err := storage.ReadFile(storage.Default, path)
//
// Storage calls take no context.Context: an SD-card read cannot be
// interrupted once issued, so cancellation only happens between calls.
package storage
