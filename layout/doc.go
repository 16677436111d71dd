// Package layout turns styled text blocks into screen-sized pages.
//
// Pagination is deterministic: the same blocks laid out with the same
// [Params] and [Metrics] always produce the same page boundaries. That
// property is what allows loaders to persist pages and replay them in later
// sessions.
//
// # Parameters
//
// [Params] is the versioned set of settings that influence layout (screen
// size, margins, font, line spacing). Every persisted layout blob stores
// [Params.Fingerprint]; a mismatch on load means the blob was built under
// different settings and must be rebuilt.
//
//	params := layout.DefaultParams()
//	metrics, err := layout.MetricsFor(params)
//	pages := layout.Paginate(blocks, params, metrics)
//
// # Metrics
//
// Two [Metrics] implementations are provided:
//
//   - [FaceMetrics] - glyph advances from an x/image font.Face
//   - [CellMetrics] - fixed character cells using East Asian width rules
//
// # Wrapping
//
// [WrapSpans] breaks text at whitespace and force-breaks only words wider
// than the line. Lines are returned as byte spans so the plain-text loader
// can record page offsets into the source file.
package layout
