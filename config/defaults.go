package config

import "github.com/tsawler/inkpage/layout"

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	p := layout.DefaultParams()
	return &Config{
		Library: LibraryConfig{
			Root:    ".",
			NewsDir: "news",
		},
		Cache: CacheConfig{
			Fingerprint: "size-mtime",
		},
		Layout: LayoutConfig{
			ScreenWidth:      p.ScreenWidth,
			ScreenHeight:     p.ScreenHeight,
			MarginTop:        p.MarginTop,
			MarginRight:      p.MarginRight,
			MarginBottom:     p.MarginBottom,
			MarginLeft:       p.MarginLeft,
			FontFace:         p.FontFace,
			FontSize:         p.FontSize,
			LineSpacing:      p.LineSpacing,
			ParagraphSpacing: p.ParagraphSpacing,
			ListIndent:       p.ListIndent,
		},
		Reader: ReaderConfig{
			RefreshEvery:      10,
			ExcludeNavigation: "none",
		},
		Catalog: CatalogConfig{
			RootPath: "opds",
			Timeout:  "30s",
			Attempts: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
