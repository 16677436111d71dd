// Package reader implements the reading screen: it opens one document,
// shows one page per frame and turns pages on user input.
//
// # States
//
// A Reader starts in [StateLoading] while the document is opened (and
// indexed on first open), moves to [StateReady] where page turns happen,
// and ends in [StateExited] after [IntentBack]. A document that cannot be
// opened puts the reader in [StateError], whose only way out is back.
//
// # Goroutines
//
// [Reader.Run] starts two goroutines. The input goroutine forwards intents
// into a single-slot mailbox and never blocks; consecutive page turns are
// merged. The worker goroutine performs every storage-bound step (opening,
// section builds, page loads, prefetch) without holding any lock, then
// takes the frame lock only to update the visible state and present one
// frame to the sink.
//
//	r := reader.New(opener, sink, reader.WithStart(saved))
//	go func() { _ = r.Run(ctx, intents) }()
//	r.Post(reader.Intent{Kind: reader.IntentNextPage})
//
// Out-of-range requests clamp to the first or last page; page navigation
// never wraps.
package reader
