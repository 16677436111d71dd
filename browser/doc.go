// Package browser implements the listing screens: the local library, the
// remote catalog and catalog-driven news sync share one navigation state
// machine.
//
// A Browser first checks its prerequisite (a configured server, say), then
// lists the root location of its Source. Confirming a navigation entry
// pushes the current location and lists the entry; back pops it and
// restores the selection. Confirming a leaf downloads it when a Downloader
// is set, otherwise the leaf is returned from Run as the selection.
//
// Failures while listing or downloading move to StateError, where confirm
// re-checks the prerequisite and repeats the failed step, and back pops
// history as usual.
//
// Like the reader, Run splits work between an input goroutine that never
// blocks and a worker goroutine that owns all storage and network access.
// Input posted while a download is in progress is discarded.
package browser
