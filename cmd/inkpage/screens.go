package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/inkpage"
	"github.com/tsawler/inkpage/browser"
	"github.com/tsawler/inkpage/config"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/netfetch"
	"github.com/tsawler/inkpage/reader"
	"github.com/tsawler/inkpage/render"
)

// readLines feeds trimmed input lines until r ends.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- strings.TrimSpace(sc.Text())
		}
	}()
	return ch
}

// intents parses lines for one screen. It stops when ctx is done so the
// next screen sees the remaining input.
func intents[T any](ctx context.Context, lines <-chan string, parse func(string) (T, bool)) <-chan T {
	ch := make(chan T)
	go func() {
		defer close(ch)
		for {
			var line string
			var ok bool
			select {
			case <-ctx.Done():
				return
			case line, ok = <-lines:
				if !ok {
					return
				}
			}
			in, valid := parse(line)
			if !valid {
				continue
			}
			select {
			case ch <- in:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// readerIntent maps: n or empty next page, p previous page, ] and [
// sections, g S P jump (1-based), r reload, q back.
func readerIntent(line string) (reader.Intent, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return reader.Intent{Kind: reader.IntentNextPage}, true
	}
	switch fields[0] {
	case "n":
		return reader.Intent{Kind: reader.IntentNextPage}, true
	case "p":
		return reader.Intent{Kind: reader.IntentPrevPage}, true
	case "]":
		return reader.Intent{Kind: reader.IntentNextSection}, true
	case "[":
		return reader.Intent{Kind: reader.IntentPrevSection}, true
	case "r":
		return reader.Intent{Kind: reader.IntentReload}, true
	case "q":
		return reader.Intent{Kind: reader.IntentBack}, true
	case "g":
		var s, p int
		if len(fields) == 3 {
			fmt.Sscanf(fields[1], "%d", &s)
			fmt.Sscanf(fields[2], "%d", &p)
		} else if len(fields) == 2 {
			s = 1
			fmt.Sscanf(fields[1], "%d", &p)
		}
		return reader.Intent{Kind: reader.IntentJump, Target: model.Position{Section: s - 1, Page: p - 1}}, true
	}
	return reader.Intent{}, false
}

// browserIntent maps: j down, k up, J and K a screen, empty or o confirm,
// q back.
func browserIntent(line string) (browser.Intent, bool) {
	switch line {
	case "j":
		return browser.Intent{Kind: browser.IntentDown}, true
	case "k":
		return browser.Intent{Kind: browser.IntentUp}, true
	case "J":
		return browser.Intent{Kind: browser.IntentDown, Held: true}, true
	case "K":
		return browser.Intent{Kind: browser.IntentUp, Held: true}, true
	case "", "o":
		return browser.Intent{Kind: browser.IntentConfirm}, true
	case "q":
		return browser.Intent{Kind: browser.IntentBack}, true
	}
	return browser.Intent{}, false
}

var (
	readSection int
	readPage    int
	readWatch   bool
)

var readCmd = &cobra.Command{
	Use:   "read <file>",
	Short: "Read a document interactively (n, p, [, ], g S P, r, q)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := readDocument(cmd.Context(), args[0], model.Position{Section: readSection, Page: readPage},
			readLines(cmd.InOrStdin()), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stopped at section %d page %d\n", pos.Section+1, pos.Page+1)
		return nil
	},
}

// readDocument runs the reader screen and returns the resume position.
func readDocument(ctx context.Context, path string, start model.Position, lines <-chan string, out io.Writer) (model.Position, error) {
	open := func(context.Context) (model.Document, error) {
		return loader(path).Load()
	}
	r := reader.New(open, render.NewTextSink(out, 0),
		reader.WithLogger(log.WithDocument(path)),
		reader.WithStart(start),
		reader.WithRefreshEvery(manager.Get().Reader.RefreshEvery))

	if readWatch {
		// New layout settings re-index the document on reopen.
		manager.OnChange(func(*config.Config) { r.Reload() })
		manager.WatchConfig()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := r.Run(ctx, intents(ctx, lines, readerIntent))
	return r.Position(), err
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Browse the local library and read the chosen book",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		lines := readLines(cmd.InOrStdin())

		for {
			cfg := manager.Get()
			b := browser.New(browser.NewLocalSource(cfg.Library.Root, nil), render.NewTextSink(out, 0),
				browser.WithTitle("Library"),
				browser.WithLogger(log))
			if err := runBrowser(ctx, b, lines); err != nil {
				return err
			}
			e, ok := b.Selection()
			if !ok {
				return nil
			}
			if _, err := readDocument(ctx, e.Location, model.Position{}, lines, out); err != nil {
				return err
			}
		}
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the OPDS catalog and download books into the library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := manager.Get()
		src, err := catalogSource(cfg, cfg.Catalog.RootPath, cfg.Library.Root)
		if err != nil {
			return err
		}
		b := browser.New(src, render.NewTextSink(cmd.OutOrStdout(), 0),
			browser.WithTitle("Calibre Library"),
			browser.WithLogger(log),
			browser.WithDownloader(src),
			browser.WithPrerequisite(browser.RequireSetting("Calibre Web URL", cfg.Catalog.ServerURL)),
			browser.WithInvalidate(invalidate))
		return runBrowser(cmd.Context(), b, readLines(cmd.InOrStdin()))
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download a book from the news feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := manager.Get()
		src, err := catalogSource(cfg, cfg.Catalog.NewsPath, cfg.NewsDir())
		if err != nil {
			return err
		}
		src.BooksOnly = true
		src.Fallback = "news"
		b := browser.New(src, render.NewTextSink(cmd.OutOrStdout(), 0),
			browser.WithTitle("News"),
			browser.WithLogger(log),
			browser.WithDownloader(src),
			browser.WithSyncOnly(true),
			browser.WithPrerequisite(browser.All(
				browser.RequireSetting("Calibre Web URL", cfg.Catalog.ServerURL),
				browser.RequireSetting("News Feed Path", cfg.Catalog.NewsPath),
			)),
			browser.WithInvalidate(invalidate))
		if err := runBrowser(cmd.Context(), b, readLines(cmd.InOrStdin())); err != nil {
			return err
		}
		for _, p := range b.Downloaded() {
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s\n", p)
		}
		return nil
	},
}

func runBrowser(ctx context.Context, b *browser.Browser, lines <-chan string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return b.Run(ctx, intents(ctx, lines, browserIntent))
}

func catalogSource(cfg *config.Config, root, dir string) (*browser.CatalogSource, error) {
	timeout, err := cfg.CatalogTimeout()
	if err != nil {
		return nil, err
	}
	opts := []netfetch.Option{
		netfetch.WithLogger(log),
		netfetch.WithRateLimit(cfg.Catalog.RateLimit),
	}
	if timeout > 0 {
		opts = append(opts, netfetch.WithTimeout(timeout))
	}
	if cfg.Catalog.Attempts > 0 {
		opts = append(opts, netfetch.WithAttempts(uint(cfg.Catalog.Attempts)))
	}
	return &browser.CatalogSource{
		Client:   netfetch.New(opts...),
		Server:   cfg.Catalog.ServerURL,
		RootPath: root,
		Dir:      dir,
	}, nil
}

// invalidate drops caches left by an earlier file at path.
func invalidate(path string) error {
	return inkpage.InvalidateAll(cacheDir(), path)
}

func init() {
	readCmd.Flags().IntVar(&readSection, "section", 0, "start section (0-based)")
	readCmd.Flags().IntVar(&readPage, "page", 0, "start page in section (0-based)")
	readCmd.Flags().BoolVar(&readWatch, "watch", false, "reload when the config file changes")
}
