package config

// Config holds inkpage settings.
// Stored at: $HOME/.inkpage/config.yaml
type Config struct {
	Library LibraryConfig `mapstructure:"library" yaml:"library"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Layout  LayoutConfig  `mapstructure:"layout" yaml:"layout"`
	Reader  ReaderConfig  `mapstructure:"reader" yaml:"reader"`
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// LibraryConfig locates the books on disk.
type LibraryConfig struct {
	Root    string `mapstructure:"root" yaml:"root"`         // Library root listed by the browser
	NewsDir string `mapstructure:"news_dir" yaml:"news_dir"` // Where sync downloads go
}

// CacheConfig configures the derived-data cache.
type CacheConfig struct {
	Root        string `mapstructure:"root" yaml:"root"`               // Empty means the user cache dir
	Fingerprint string `mapstructure:"fingerprint" yaml:"fingerprint"` // "size-mtime" or "content"
}

// LayoutConfig mirrors layout.Params.
type LayoutConfig struct {
	ScreenWidth      int    `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight     int    `mapstructure:"screen_height" yaml:"screen_height"`
	MarginTop        int    `mapstructure:"margin_top" yaml:"margin_top"`
	MarginRight      int    `mapstructure:"margin_right" yaml:"margin_right"`
	MarginBottom     int    `mapstructure:"margin_bottom" yaml:"margin_bottom"`
	MarginLeft       int    `mapstructure:"margin_left" yaml:"margin_left"`
	FontFace         string `mapstructure:"font_face" yaml:"font_face"`
	FontSize         int    `mapstructure:"font_size" yaml:"font_size"`
	LineSpacing      int    `mapstructure:"line_spacing" yaml:"line_spacing"` // Percent
	ParagraphSpacing int    `mapstructure:"paragraph_spacing" yaml:"paragraph_spacing"`
	ListIndent       int    `mapstructure:"list_indent" yaml:"list_indent"`
}

// ReaderConfig configures the reading screen.
type ReaderConfig struct {
	RefreshEvery      int    `mapstructure:"refresh_every" yaml:"refresh_every"`           // Page turns between full refreshes
	ExcludeNavigation string `mapstructure:"exclude_navigation" yaml:"exclude_navigation"` // "none", "explicit" or "standard"
}

// CatalogConfig configures the OPDS catalog and news sync.
type CatalogConfig struct {
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`
	RootPath  string `mapstructure:"root_path" yaml:"root_path"`
	NewsPath  string `mapstructure:"news_path" yaml:"news_path"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"` // Per request, e.g. "30s"
	Attempts  int    `mapstructure:"attempts" yaml:"attempts"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Bytes per second, 0 for unlimited
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}
