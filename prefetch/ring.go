// Package prefetch holds the two-slot in-memory page cache used while
// reading: the page on screen and the one the reader is most likely to turn
// to next.
package prefetch

import (
	"context"
	"sync/atomic"

	"github.com/tsawler/inkpage/logging"
	"github.com/tsawler/inkpage/model"
)

type slot struct {
	pos  model.Position
	page *model.Page
}

func (s *slot) holds(pos model.Position) bool {
	return s.page != nil && s.pos == pos
}

func (s *slot) clear() {
	*s = slot{}
}

// Ring is the prefetch ring. It is owned by one worker goroutine and is not
// safe for concurrent use, apart from the counters.
type Ring struct {
	src      Source
	log      *logging.Logger
	current  slot
	adjacent slot

	last    model.Position
	served  bool
	lastDir model.Direction

	hits       atomic.Int64
	loads      atomic.Int64
	prefetches atomic.Int64
}

// Option configures a Ring.
type Option func(*Ring)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Ring) { r.log = l }
}

// New creates an empty ring over src.
func New(src Source, opts ...Option) *Ring {
	r := &Ring{src: src, log: logging.Noop()}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.WithComponent("prefetch")
	return r
}

// Get returns the page at pos, recording dir as the last move. A hit in the
// adjacent slot promotes it to current. A miss loads synchronously; when
// pos is not one step away from the last served page, both slots are
// dropped first.
func (r *Ring) Get(ctx context.Context, pos model.Position, dir model.Direction) (*model.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case r.current.holds(pos):
		r.hits.Add(1)
	case r.adjacent.holds(pos):
		r.hits.Add(1)
		r.current = r.adjacent
		r.adjacent.clear()
	default:
		if !r.isStep(pos) {
			r.Jump()
		}
		page, err := r.src.LoadPage(pos)
		r.loads.Add(1)
		if err != nil {
			return nil, err
		}
		r.current = slot{pos: pos, page: page}
		if r.adjacent.holds(pos) {
			r.adjacent.clear()
		}
	}

	r.last, r.served, r.lastDir = pos, true, dir
	return r.current.page, nil
}

// isStep reports whether pos is the page right before or after the last
// served one.
func (r *Ring) isStep(pos model.Position) bool {
	if !r.served {
		return false
	}
	if next, ok, _ := Next(r.src, r.last); ok && next == pos {
		return true
	}
	if prev, ok, _ := Prev(r.src, r.last); ok && prev == pos {
		return true
	}
	return false
}

// Prefetch loads the page after the last served one (before it when the
// last move was backward) into the adjacent slot. It is best effort: a
// failure leaves the slot empty and is returned only for logging.
func (r *Ring) Prefetch(ctx context.Context) error {
	if !r.served {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	target, ok, err := Step(r.src, r.last, r.lastDir)
	if err != nil || !ok {
		return err
	}
	if r.adjacent.holds(target) || r.current.holds(target) {
		return nil
	}

	page, err := r.src.LoadPage(target)
	r.prefetches.Add(1)
	if err != nil {
		r.adjacent.clear()
		r.log.Debug("prefetch failed", "section", target.Section, "page", target.Page, "error", err)
		return err
	}
	r.adjacent = slot{pos: target, page: page}
	return nil
}

// Jump drops both slots.
func (r *Ring) Jump() {
	r.current.clear()
	r.adjacent.clear()
}

// Reset drops both slots and forgets the last position, e.g. after the
// document was reopened with new layout params.
func (r *Ring) Reset(src Source) {
	r.Jump()
	r.src = src
	r.served = false
	r.lastDir = model.DirectionUnknown
}

// Current returns the position in the current slot.
func (r *Ring) Current() (model.Position, bool) {
	return r.current.pos, r.current.page != nil
}

// Adjacent returns the position in the adjacent slot.
func (r *Ring) Adjacent() (model.Position, bool) {
	return r.adjacent.pos, r.adjacent.page != nil
}

// Stats is a snapshot of the ring's counters.
type Stats struct {
	Hits       int64 // served from a slot
	Loads      int64 // synchronous loads on the render path
	Prefetches int64 // background loads into the adjacent slot
}

// Stats returns the counters.
func (r *Ring) Stats() Stats {
	return Stats{
		Hits:       r.hits.Load(),
		Loads:      r.loads.Load(),
		Prefetches: r.prefetches.Load(),
	}
}
