package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tsawler/inkpage/fsm"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/render"
	"github.com/tsawler/inkpage/storage"
)

// DefaultProgressInterval throttles download progress frames.
const DefaultProgressInterval = 500 * time.Millisecond

var errExit = errors.New("browser: exit")

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Browser) { b.log = l }
}

// WithTitle sets the title drawn above the list.
func WithTitle(title string) Option {
	return func(b *Browser) { b.title = title }
}

// WithDownloader makes confirming a leaf download it.
func WithDownloader(d Downloader) Option {
	return func(b *Browser) { b.dl = d }
}

// WithPrerequisite sets the check run before the first listing and before
// every retry.
func WithPrerequisite(p Prerequisite) Option {
	return func(b *Browser) { b.prereq = p }
}

// WithSyncOnly ends the screen in StateComplete after a download, and
// skips downloads whose target already exists.
func WithSyncOnly(on bool) Option {
	return func(b *Browser) { b.syncOnly = on }
}

// WithInvalidate sets the hook run on every downloaded path, typically
// removing stale caches of a file with the same name.
func WithInvalidate(fn func(path string) error) Option {
	return func(b *Browser) { b.invalidate = fn }
}

// WithFileSystem sets the file system used to find existing downloads.
func WithFileSystem(fsys storage.FileSystem) Option {
	return func(b *Browser) { b.fs = fsys }
}

// WithPageItems sets the number of rows per screen.
func WithPageItems(n int) Option {
	return func(b *Browser) {
		if n > 0 {
			b.pageItems = n
		}
	}
}

// WithProgressInterval sets the minimum time between progress frames.
func WithProgressInterval(d time.Duration) Option {
	return func(b *Browser) { b.progressEvery = d }
}

type visit struct {
	location string
	selected int
}

// Browser is a listing screen.
type Browser struct {
	src           Source
	sink          render.Sink
	log           *logging.Logger
	title         string
	dl            Downloader
	prereq        Prerequisite
	syncOnly      bool
	invalidate    func(path string) error
	fs            storage.FileSystem
	pageItems     int
	progressEvery time.Duration

	machine *fsm.Machine[State]
	box     *fsm.Mailbox[Intent]

	// Worker-owned.
	location  string
	history   []visit
	retry     func(ctx context.Context) error
	lastStart int

	// frameMu guards the visible state and serializes Present calls.
	frameMu    sync.Mutex
	entries    []Entry
	selected   int
	message    string
	chosen     *Entry
	downloaded []string
}

// New creates a browser over src. Nothing is listed until Run.
func New(src Source, sink render.Sink, opts ...Option) *Browser {
	b := &Browser{
		src:           src,
		sink:          sink,
		log:           logging.Noop(),
		fs:            storage.Default,
		pageItems:     DefaultPageItems,
		progressEvery: DefaultProgressInterval,
		lastStart:     -1,
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.WithScreen("browser")
	b.machine = fsm.New(StateCheckingPrerequisite, transitions, b.log)
	b.box = fsm.NewMailbox(mergeIntents)
	return b
}

// State returns the current state.
func (b *Browser) State() State { return b.machine.State() }

// OnTransition registers fn to run after every state change.
func (b *Browser) OnTransition(fn func(from, to State)) {
	b.machine.OnTransition(fn)
}

// Selected returns the index of the highlighted entry.
func (b *Browser) Selected() int {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	return b.selected
}

// Entries returns the current listing.
func (b *Browser) Entries() []Entry {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Message returns the text of the error or completion screen.
func (b *Browser) Message() string {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	return b.message
}

// Selection returns the leaf chosen when no Downloader is set.
func (b *Browser) Selection() (Entry, bool) {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	if b.chosen == nil {
		return Entry{}, false
	}
	return *b.chosen, true
}

// Downloaded returns the paths saved so far.
func (b *Browser) Downloaded() []string {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	return append([]string(nil), b.downloaded...)
}

// Post queues an intent. It never blocks.
func (b *Browser) Post(in Intent) {
	if in.Kind == IntentNone {
		return
	}
	b.box.Post(in)
}

// Run drives the screen until it exits or ctx is done. Intents arrive on
// input and through Post; input may be nil.
func (b *Browser) Run(ctx context.Context, input <-chan Intent) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case in, ok := <-input:
				if !ok {
					input = nil
					continue
				}
				b.Post(in)
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		err := b.work(gctx)
		if errors.Is(err, errExit) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func (b *Browser) work(ctx context.Context) error {
	root := b.src.Root()
	if err := b.check(ctx, func(ctx context.Context) error {
		return b.load(ctx, root, 0)
	}); err != nil {
		return err
	}
	for {
		in, err := b.box.Wait(ctx)
		if err != nil {
			return err
		}
		if err := b.handle(ctx, in); err != nil {
			return err
		}
	}
}

func (b *Browser) handle(ctx context.Context, in Intent) error {
	switch b.machine.State() {
	case StateBrowsing:
		switch in.Kind {
		case IntentUp, IntentDown:
			b.frameMu.Lock()
			b.selected = moveSelection(b.selected, len(b.entries), b.pageItems, in)
			b.frameMu.Unlock()
			return b.presentList()
		case IntentConfirm:
			return b.confirm(ctx)
		case IntentBack:
			return b.back(ctx)
		}
	case StateError:
		switch in.Kind {
		case IntentConfirm:
			retry := b.retry
			return b.check(ctx, retry)
		case IntentBack:
			return b.back(ctx)
		}
	case StateComplete:
		switch in.Kind {
		case IntentConfirm:
			if len(b.entries) == 0 {
				return b.exit()
			}
			b.machine.MustTransition(StateBrowsing)
			b.lastStart = -1
			return b.presentList()
		case IntentBack:
			return b.exit()
		}
	}
	return nil
}

func (b *Browser) confirm(ctx context.Context) error {
	b.frameMu.Lock()
	if len(b.entries) == 0 {
		b.frameMu.Unlock()
		return nil
	}
	e := b.entries[b.selected]
	sel := b.selected
	b.frameMu.Unlock()

	if e.Navigation {
		b.history = append(b.history, visit{location: b.location, selected: sel})
		return b.load(ctx, e.Location, 0)
	}
	if b.dl == nil {
		b.frameMu.Lock()
		b.chosen = &e
		b.frameMu.Unlock()
		return b.exit()
	}
	return b.download(ctx, e)
}

// back pops one location, or exits at the root.
func (b *Browser) back(ctx context.Context) error {
	if len(b.history) == 0 {
		return b.exit()
	}
	v := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	return b.load(ctx, v.location, v.selected)
}

func (b *Browser) exit() error {
	b.machine.MustTransition(StateExited)
	return errExit
}

// check runs the prerequisite, then next. A failing prerequisite leaves
// next as the step to retry.
func (b *Browser) check(ctx context.Context, next func(ctx context.Context) error) error {
	b.machine.MustTransition(StateCheckingPrerequisite)
	if b.prereq == nil {
		return next(ctx)
	}
	if err := b.present(render.Frame{Clear: true, Title: b.title, Status: "Checking...", Selected: -1}); err != nil {
		return err
	}
	if err := b.prereq.Check(ctx); err != nil {
		return b.fail(ctx, err, "", next)
	}
	return next(ctx)
}

// load lists location and selects sel.
func (b *Browser) load(ctx context.Context, location string, sel int) error {
	b.machine.MustTransition(StateLoading)
	b.location = location
	if err := b.present(render.Frame{Clear: true, Title: b.title, Status: "Loading...", Selected: -1, Footer: "Back"}); err != nil {
		return err
	}

	retry := func(ctx context.Context) error { return b.load(ctx, location, sel) }
	entries, err := b.src.List(ctx, location)
	if err != nil {
		return b.fail(ctx, err, "Failed to fetch feed", retry)
	}
	if len(entries) == 0 {
		return b.fail(ctx, ErrNoEntries, "", retry)
	}
	b.log.Debug("listed", "location", location, "entries", len(entries))

	b.frameMu.Lock()
	b.entries = entries
	b.selected = max(0, min(sel, len(entries)-1))
	b.frameMu.Unlock()
	b.lastStart = -1
	b.machine.MustTransition(StateBrowsing)
	return b.presentList()
}

// download saves e. Input posted meanwhile is dropped.
func (b *Browser) download(ctx context.Context, e Entry) error {
	retry := func(ctx context.Context) error { return b.download(ctx, e) }
	dest, err := b.dl.Target(e)
	if err != nil {
		return b.fail(ctx, err, "Download failed", retry)
	}
	if b.syncOnly && storage.Exists(b.fs, dest) {
		return b.complete("Already downloaded")
	}

	b.machine.MustTransition(StateDownloading)
	status := e.Title
	if status == "" {
		status = "Downloading..."
	}
	if err := b.present(render.Frame{Clear: true, Title: "Downloading...", Status: status, Selected: -1}); err != nil {
		return err
	}

	sometimes := &rate.Sometimes{Interval: b.progressEvery}
	if b.progressEvery <= 0 {
		sometimes = &rate.Sometimes{Every: 1}
	}
	var presentErr error
	progress := func(n, total int64) {
		sometimes.Do(func() {
			if err := b.present(render.Frame{Title: "Downloading...", Status: status, Selected: -1, Footer: progressText(n, total)}); err != nil {
				presentErr = err
			}
		})
	}

	b.log.Info("downloading", "title", e.Title, "dest", dest)
	err = b.dl.Download(ctx, e, dest, progress)
	for b.box.Pending() {
		b.box.Take()
	}
	if presentErr != nil {
		return presentErr
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return b.fail(ctx, err, "Download failed", retry)
	}

	if b.invalidate != nil {
		if err := b.invalidate(dest); err != nil {
			b.log.Warn("cache invalidation failed", "path", dest, "error", err)
		}
	}
	b.frameMu.Lock()
	b.downloaded = append(b.downloaded, dest)
	b.frameMu.Unlock()

	if b.syncOnly {
		return b.complete("Download complete")
	}
	b.machine.MustTransition(StateBrowsing)
	b.lastStart = -1
	return b.presentList()
}

func (b *Browser) complete(msg string) error {
	b.machine.MustTransition(StateComplete)
	b.frameMu.Lock()
	b.message = msg
	b.frameMu.Unlock()
	return b.present(render.Frame{Clear: true, Title: b.title, Status: msg, Selected: -1, Footer: "Back / Confirm"})
}

// fail shows err and remembers retry as the step confirm repeats.
func (b *Browser) fail(ctx context.Context, err error, fallback string, retry func(ctx context.Context) error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	msg := errorMessage(err, fallback)
	b.log.Warn("step failed", "message", msg, "error", err)
	b.retry = retry
	b.machine.MustTransition(StateError)
	b.frameMu.Lock()
	b.message = msg
	b.frameMu.Unlock()
	return b.present(render.Frame{Clear: true, Title: "Error", Status: msg, Selected: -1, Footer: "Back / Retry"})
}

// presentList draws the screen of rows holding the selection.
func (b *Browser) presentList() error {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()

	n := len(b.entries)
	start := b.selected / b.pageItems * b.pageItems
	end := min(start+b.pageItems, n)
	items := make([]string, 0, end-start)
	for _, e := range b.entries[start:end] {
		items = append(items, e.Label())
	}
	f := render.Frame{
		Clear:    start != b.lastStart,
		Title:    b.title,
		Items:    items,
		Selected: b.selected - start,
		Footer:   fmt.Sprintf("%d/%d", b.selected+1, n),
	}
	b.lastStart = start
	return b.presentLocked(f)
}

func (b *Browser) present(f render.Frame) error {
	b.frameMu.Lock()
	defer b.frameMu.Unlock()
	return b.presentLocked(f)
}

func (b *Browser) presentLocked(f render.Frame) error {
	if err := b.sink.Present(f); err != nil {
		return fmt.Errorf("browser: present: %w", err)
	}
	return nil
}

func progressText(n, total int64) string {
	if total > 0 {
		return fmt.Sprintf("%d%%", n*100/total)
	}
	return fmt.Sprintf("%d KB", n/1024)
}

func errorMessage(err error, fallback string) string {
	var se *settingError
	switch {
	case errors.As(err, &se):
		return se.Error()
	case errors.Is(err, ErrNoEntries):
		return "No entries found"
	case errors.Is(err, ErrNoLink):
		return "No download link"
	case errors.Is(err, model.ErrCorruptFormat):
		return "Failed to parse feed"
	case fallback != "":
		return fallback
	default:
		return err.Error()
	}
}
