package inkpage

import (
	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/format"
	"github.com/tsawler/inkpage/htmldoc"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/storage"
)

// LoadOptions holds configuration for opening a document.
type LoadOptions struct {
	// Cache location; cache wins over cacheRoot when both are set
	cacheRoot string
	cache     *cachedir.Dir

	fs       storage.FileSystem
	params   layout.Params
	strategy cachedir.Strategy
	logger   *logging.Logger

	// Format override, Unknown means detect
	format    format.Format
	exclusion htmldoc.NavigationExclusionMode
}

// defaultOptions returns the default load options.
func defaultOptions() LoadOptions {
	return LoadOptions{
		fs:        storage.Default,
		params:    layout.DefaultParams(),
		strategy:  cachedir.SizeModTime,
		exclusion: htmldoc.NavigationExclusionNone,
	}
}

// clone copies the options. Params is a value and the remaining fields are
// shared handles.
func (o LoadOptions) clone() LoadOptions {
	return o
}
