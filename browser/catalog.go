package browser

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/tsawler/inkpage/netfetch"
	"github.com/tsawler/inkpage/opds"
)

// CatalogSource lists an OPDS catalog and downloads its books.
type CatalogSource struct {
	Client   *netfetch.Client
	Server   string
	RootPath string
	// Dir receives downloads.
	Dir string
	// BooksOnly drops navigation entries, as sync does.
	BooksOnly bool
	// Fallback names books whose title sanitizes to nothing.
	Fallback string
}

// Root is the feed path listed first.
func (s *CatalogSource) Root() string { return s.RootPath }

// List fetches and parses the feed at location.
func (s *CatalogSource) List(ctx context.Context, location string) ([]Entry, error) {
	var buf bytes.Buffer
	if err := s.Client.FetchIntoStream(ctx, netfetch.BuildURL(s.Server, location), &buf); err != nil {
		return nil, err
	}
	feed, err := opds.Parse(&buf)
	if err != nil {
		return nil, err
	}
	if s.BooksOnly {
		feed = opds.Books(feed)
	}

	entries := make([]Entry, 0, len(feed))
	for _, fe := range feed {
		e := Entry{
			Title:      fe.Title,
			Author:     fe.Author,
			Navigation: fe.IsNavigation(),
		}
		if e.Navigation {
			e.Location = fe.Href
		} else {
			e.Location = fe.DownloadHref()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Target returns the download path of e inside Dir.
func (s *CatalogSource) Target(e Entry) (string, error) {
	if e.Location == "" {
		return "", ErrNoLink
	}
	fallback := s.Fallback
	if fallback == "" {
		fallback = "book"
	}
	return filepath.Join(s.Dir, FileName(e, fallback)), nil
}

// Download saves e at dest.
func (s *CatalogSource) Download(ctx context.Context, e Entry, dest string, progress netfetch.Progress) error {
	return s.Client.DownloadToFile(ctx, netfetch.BuildURL(s.Server, e.Location), dest, progress)
}
