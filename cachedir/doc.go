// Package cachedir maps document identities to private cache folders on
// storage.
//
// A document identity is the source path plus a content fingerprint. The
// fingerprint is part of the folder name, so replacing a file at the same
// path can never make a loader read layout data built for the old file.
//
//	dir := cachedir.New("/.crosspoint")
//	id, err := dir.Identify("epub", "/books/moby.epub", cachedir.SizeModTime)
//	folder := dir.Folder(id)
//	if data, err := folder.Read(cachedir.MetaKey); errors.Is(err, cachedir.ErrMiss) {
//	    // index the document
//	}
//
// Blobs are whole-file: Read returns the full blob and Write replaces it.
// Loaders that need several objects split them into separate keys.
package cachedir
