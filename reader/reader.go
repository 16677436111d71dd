package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tsawler/inkpage/fsm"
	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
	"github.com/tsawler/inkpage/prefetch"
	"github.com/tsawler/inkpage/render"
)

// Opener opens the document shown by a Reader. It runs on the worker
// goroutine and may block on indexing.
type Opener func(ctx context.Context) (model.Document, error)

// DefaultRefreshEvery is the number of page turns between full refreshes.
const DefaultRefreshEvery = 10

var errExit = errors.New("reader: exit")

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// WithStart sets the position shown after opening, typically a saved
// resume position. It is clamped to the document.
func WithStart(pos model.Position) Option {
	return func(r *Reader) { r.start = pos }
}

// WithRefreshEvery sets how many page turns happen between full refreshes.
// Zero or less disables periodic full refreshes.
func WithRefreshEvery(n int) Option {
	return func(r *Reader) { r.refreshEvery = n }
}

// Reader is the reading screen.
type Reader struct {
	open         Opener
	sink         render.Sink
	log          *logging.Logger
	start        model.Position
	refreshEvery int

	machine *fsm.Machine[State]
	box     *fsm.Mailbox[Intent]

	// Worker-owned.
	doc   model.Document
	ring  *prefetch.Ring
	turns int

	// frameMu guards the visible state and serializes Present calls.
	frameMu sync.Mutex
	pos     model.Position
	shown   bool
	err     error
	frames  int
}

// New creates a reader. Nothing is opened until Run.
func New(open Opener, sink render.Sink, opts ...Option) *Reader {
	r := &Reader{
		open:         open,
		sink:         sink,
		log:          logging.Noop(),
		refreshEvery: DefaultRefreshEvery,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.WithScreen("reader")
	r.machine = fsm.New(StateLoading, transitions, r.log)
	r.box = fsm.NewMailbox(mergeIntents)
	return r
}

// State returns the current state.
func (r *Reader) State() State {
	return r.machine.State()
}

// OnTransition registers fn to run after every state change.
func (r *Reader) OnTransition(fn func(from, to State)) {
	r.machine.OnTransition(fn)
}

// Position returns the position of the page on screen, or the start
// position before the first page is shown. It is the resume position to
// save when the reader exits.
func (r *Reader) Position() model.Position {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if !r.shown {
		return r.start
	}
	return r.pos
}

// Err returns the error that put the reader in StateError.
func (r *Reader) Err() error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.err
}

// Post queues an intent. It never blocks.
func (r *Reader) Post(in Intent) {
	if in.Kind == IntentNone {
		return
	}
	r.box.Post(in)
}

func (r *Reader) NextPage()    { r.Post(Intent{Kind: IntentNextPage}) }
func (r *Reader) PrevPage()    { r.Post(Intent{Kind: IntentPrevPage}) }
func (r *Reader) NextSection() { r.Post(Intent{Kind: IntentNextSection}) }
func (r *Reader) PrevSection() { r.Post(Intent{Kind: IntentPrevSection}) }
func (r *Reader) Reload()      { r.Post(Intent{Kind: IntentReload}) }
func (r *Reader) Back()        { r.Post(Intent{Kind: IntentBack}) }

// JumpTo moves to pos.
func (r *Reader) JumpTo(pos model.Position) {
	r.Post(Intent{Kind: IntentJump, Target: pos})
}

// Run drives the screen until the user goes back or ctx is done. Intents
// arrive on input and through Post; input may be nil. Run returns nil after
// IntentBack.
func (r *Reader) Run(ctx context.Context, input <-chan Intent) error {
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
				r.Post(in)
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		err := r.work(gctx)
		if errors.Is(err, errExit) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func (r *Reader) work(ctx context.Context) error {
	defer r.closeDoc()

	if err := r.load(ctx); err != nil {
		return err
	}
	for {
		in, err := r.box.Wait(ctx)
		if err != nil {
			return err
		}
		if err := r.handle(ctx, in); err != nil {
			return err
		}
	}
}

func (r *Reader) handle(ctx context.Context, in Intent) error {
	if in.Kind == IntentBack {
		r.machine.MustTransition(StateExited)
		return errExit
	}
	// Error offers only back.
	if r.machine.Is(StateError) {
		return nil
	}

	cur := r.currentPos()
	switch in.Kind {
	case IntentNextPage, IntentPrevPage:
		d, _ := in.delta()
		return r.turn(ctx, cur, d)
	case IntentNextSection:
		return r.section(ctx, cur, 1)
	case IntentPrevSection:
		return r.section(ctx, cur, -1)
	case IntentJump:
		target, err := r.resolve(in.Target)
		if err != nil {
			return r.showErr(err)
		}
		r.ring.Jump()
		return r.show(ctx, target, model.DirectionUnknown, true)
	case IntentReload:
		r.start = cur
		r.machine.MustTransition(StateLoading)
		return r.load(ctx)
	}
	return nil
}

// load opens the document and shows the start page.
func (r *Reader) load(ctx context.Context) error {
	if err := r.present(render.Frame{Clear: true, Status: "Loading...", Selected: -1}); err != nil {
		return err
	}

	doc, err := r.open(ctx)
	if err != nil {
		r.log.Error("open failed", "error", err)
		r.machine.MustTransition(StateError)
		r.frameMu.Lock()
		r.err = err
		r.frameMu.Unlock()
		return r.present(render.Frame{
			Clear:    true,
			Title:    "Error",
			Status:   errorMessage(err),
			Selected: -1,
			Footer:   "Back",
		})
	}

	r.closeDoc()
	r.doc = doc
	if r.ring == nil {
		r.ring = prefetch.New(doc, prefetch.WithLogger(r.log))
	} else {
		r.ring.Reset(doc)
	}

	start, err := r.resolve(r.start)
	if err != nil {
		r.log.Warn("start position unavailable", "section", r.start.Section, "page", r.start.Page, "error", err)
		start = model.Position{}
	}
	r.machine.MustTransition(StateReady)
	r.log.Info("document ready", "title", doc.Metadata().Title, "sections", doc.SectionCount())
	return r.show(ctx, start, model.DirectionUnknown, true)
}

// turn moves delta pages, stopping at either end of the document.
func (r *Reader) turn(ctx context.Context, cur model.Position, delta int) error {
	dir := model.DirectionForward
	if delta < 0 {
		dir = model.DirectionBackward
		delta = -delta
	}
	target := cur
	for range delta {
		next, ok, err := prefetch.Step(r.doc, target, dir)
		if err != nil {
			return r.showErr(err)
		}
		if !ok {
			break
		}
		target = next
	}
	if target == cur {
		return nil
	}
	return r.show(ctx, target, dir, false)
}

// section moves to the first page of the next or previous non-empty
// section. A section that cannot be built is a stop too, reported by show.
func (r *Reader) section(ctx context.Context, cur model.Position, step int) error {
	for s := cur.Section + step; s >= 0 && s < r.doc.SectionCount(); s += step {
		n, err := r.doc.PageCount(s)
		if err != nil {
			r.log.Warn("section unavailable", "section", s, "error", err)
		}
		if err != nil || n > 0 {
			r.ring.Jump()
			dir := model.DirectionForward
			if step < 0 {
				dir = model.DirectionBackward
			}
			return r.show(ctx, model.Position{Section: s}, dir, true)
		}
	}
	return nil
}

// resolve clamps pos to the document and moves off empty sections.
func (r *Reader) resolve(pos model.Position) (model.Position, error) {
	pos, err := prefetch.Clamp(r.doc, pos)
	if err != nil {
		// Damaged section: stop at its first page and let show report it.
		return model.Position{Section: pos.Section}, nil
	}
	n, err := r.doc.PageCount(pos.Section)
	if err != nil {
		return model.Position{Section: pos.Section}, nil
	}
	if n > 0 {
		return pos, nil
	}
	if next, ok, err := prefetch.Next(r.doc, pos); err != nil || ok {
		return next, err
	}
	prev, _, err := prefetch.Prev(r.doc, pos)
	return prev, err
}

// show resolves the page outside the frame lock, presents it, then
// prefetches the next one.
func (r *Reader) show(ctx context.Context, pos model.Position, dir model.Direction, clear bool) error {
	page, err := r.ring.Get(ctx, pos, dir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Warn("page load failed", "section", pos.Section, "page", pos.Page, "error", err)
		r.setPos(pos)
		return r.present(render.Frame{Clear: true, Status: errorMessage(err), Selected: -1, Footer: r.footer(pos)})
	}

	r.turns++
	if r.refreshEvery > 0 && r.turns >= r.refreshEvery {
		clear = true
	}
	if clear {
		r.turns = 0
	}
	r.setPos(pos)
	if err := r.present(render.Frame{
		Clear:    clear,
		Title:    r.doc.Metadata().Title,
		Page:     page,
		Selected: -1,
		Footer:   r.footer(pos),
	}); err != nil {
		return err
	}

	if err := r.ring.Prefetch(ctx); err != nil {
		r.log.Debug("prefetch skipped", "error", err)
	}
	return nil
}

// showErr reports a local failure without leaving Ready.
func (r *Reader) showErr(err error) error {
	r.log.Warn("navigation failed", "error", err)
	return r.present(render.Frame{Status: errorMessage(err), Selected: -1, Footer: r.footer(r.currentPos())})
}

func (r *Reader) present(f render.Frame) error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if err := r.sink.Present(f); err != nil {
		return fmt.Errorf("reader: present: %w", err)
	}
	r.frames++
	return nil
}

func (r *Reader) setPos(pos model.Position) {
	r.frameMu.Lock()
	r.pos, r.shown = pos, true
	r.frameMu.Unlock()
}

func (r *Reader) currentPos() model.Position {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.pos
}

func (r *Reader) footer(pos model.Position) string {
	var parts []string
	if n, err := r.doc.PageCount(pos.Section); err == nil {
		parts = append(parts, fmt.Sprintf("%d/%d", pos.Page+1, n))
	}
	if sections := r.doc.SectionCount(); sections > 1 {
		parts = append(parts, fmt.Sprintf("ch %d/%d", pos.Section+1, sections))
	}
	return strings.Join(parts, "  ")
}

func (r *Reader) closeDoc() {
	if r.doc == nil {
		return
	}
	if err := r.doc.Close(); err != nil {
		r.log.Warn("close failed", "error", err)
	}
	r.doc = nil
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrOpen):
		return "Cannot open document"
	case errors.Is(err, model.ErrCorruptFormat):
		return "Document is damaged"
	case errors.Is(err, model.ErrOutOfBounds):
		return "Page not available"
	default:
		return "Error: " + err.Error()
	}
}
