package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/inkpage/cachedir"
	"github.com/tsawler/inkpage/htmldoc"
	"github.com/tsawler/inkpage/layout"
	"github.com/tsawler/inkpage/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewManager_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cm, err := NewManager("")
	require.NoError(t, err)

	cfg := cm.Get()
	assert.Equal(t, layout.DefaultParams(), cfg.LayoutParams())
	assert.Equal(t, cachedir.SizeModTime, cfg.Strategy())
	assert.Equal(t, htmldoc.NavigationExclusionNone, cfg.Exclusion())
	assert.Equal(t, "opds", cfg.Catalog.RootPath)
	assert.Equal(t, 10, cfg.Reader.RefreshEvery)

	d, err := cfg.CatalogTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestNewManager_File(t *testing.T) {
	path := writeConfig(t, `
library:
  root: /books
  news_dir: daily
cache:
  fingerprint: content
layout:
  font_face: cell
  font_size: 20
reader:
  exclude_navigation: standard
catalog:
  server_url: http://calibre.local:8083
  news_path: opds/news
`)
	cm, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, path, cm.ConfigFile())

	cfg := cm.Get()
	p := cfg.LayoutParams()
	assert.Equal(t, "cell", p.FontFace)
	assert.Equal(t, 20, p.FontSize)
	// Unset keys keep their defaults.
	assert.Equal(t, layout.DefaultParams().ScreenWidth, p.ScreenWidth)
	assert.Equal(t, "opds", cfg.Catalog.RootPath)

	assert.Equal(t, cachedir.ContentHash, cfg.Strategy())
	assert.Equal(t, htmldoc.NavigationExclusionStandard, cfg.Exclusion())
	assert.Equal(t, filepath.Join("/books", "daily"), cfg.NewsDir())
}

func TestNewManager_Env(t *testing.T) {
	t.Setenv("INKPAGE_LAYOUT_FONT_SIZE", "24")
	t.Setenv("INKPAGE_CATALOG_SERVER_URL", "http://env.local")
	path := writeConfig(t, "layout:\n  font_size: 18\n")

	cm, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 24, cm.Get().Layout.FontSize)
	assert.Equal(t, "http://env.local", cm.Get().Catalog.ServerURL)
}

func TestNewManager_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "layout: [unclosed"},
		{"no content area", "layout:\n  margin_left: 300\n  margin_right: 300\n"},
		{"bad timeout", "catalog:\n  timeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestManager_ReloadKeepsLastGoodConfig(t *testing.T) {
	path := writeConfig(t, "layout:\n  font_size: 18\n")
	cm, err := NewManager(path)
	require.NoError(t, err)

	var got []int
	cm.OnChange(func(c *Config) { got = append(got, c.Layout.FontSize) })

	require.NoError(t, os.WriteFile(path, []byte("layout:\n  font_size: 22\n"), 0o644))
	require.NoError(t, cm.v.ReadInConfig())
	require.NoError(t, cm.reload())
	assert.Equal(t, 22, cm.Get().Layout.FontSize)

	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  timeout: soon\n"), 0o644))
	require.NoError(t, cm.v.ReadInConfig())
	assert.Error(t, cm.reload())
	assert.Equal(t, 22, cm.Get().Layout.FontSize)

	assert.Equal(t, []int{22}, got)
}

func TestManager_RejectedReloadIsLogged(t *testing.T) {
	path := writeConfig(t, "layout:\n  font_size: 18\n")
	cm, err := NewManager(path)
	require.NoError(t, err)
	var buf bytes.Buffer
	cm.SetLogger(logging.NewText(&buf, slog.LevelDebug))

	require.NoError(t, os.WriteFile(path, []byte("layout:\n  line_spacing: 0\n"), 0o644))
	require.NoError(t, cm.v.ReadInConfig())
	require.Error(t, cm.reload())

	out := buf.String()
	assert.Contains(t, out, "config reload rejected")
	assert.Contains(t, out, path)
	assert.Equal(t, 18, cm.Get().Layout.FontSize)
}

func TestNewsDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Library.Root = "/lib"
	cfg.Library.NewsDir = "/var/news"
	assert.Equal(t, "/var/news", cfg.NewsDir())
	cfg.Library.NewsDir = "news"
	assert.Equal(t, filepath.Join("/lib", "news"), cfg.NewsDir())
}

func TestLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	cfg.Logger(&buf).Info("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	cfg.Log.Format = "text"
	cfg.Log.Level = "error"
	buf.Reset()
	cfg.Logger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cm, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, *DefaultConfig(), *cm.Get())
}
