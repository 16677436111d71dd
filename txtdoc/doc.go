// Package txtdoc loads plain-text files as paginated documents.
//
// Indexing reads the file once, wrapping it with the same routine used for
// display, and persists the byte offset at which every page starts. A page
// is later rebuilt by reading only the bytes between its offset and the
// next one and wrapping them again. Wrapping is greedy, so the rebuilt page
// always matches the page seen during indexing.
//
// Files that are not valid UTF-8 are read as Windows-1252.
package txtdoc
