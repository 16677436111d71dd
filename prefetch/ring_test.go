package prefetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/inkpage/model"
)

// fakeDoc has sections of the given page counts and counts loads.
type fakeDoc struct {
	counts []int
	loads  map[model.Position]int
	fail   map[model.Position]error
	broken map[int]error
}

func newFakeDoc(counts ...int) *fakeDoc {
	return &fakeDoc{
		counts: counts,
		loads:  make(map[model.Position]int),
		fail:   make(map[model.Position]error),
		broken: make(map[int]error),
	}
}

func (d *fakeDoc) SectionCount() int { return len(d.counts) }

func (d *fakeDoc) PageCount(s int) (int, error) {
	if s < 0 || s >= len(d.counts) {
		return 0, model.OutOfBounds("page count", s, len(d.counts))
	}
	if err := d.broken[s]; err != nil {
		return 0, err
	}
	return d.counts[s], nil
}

func (d *fakeDoc) LoadPage(pos model.Position) (*model.Page, error) {
	d.loads[pos]++
	if err := d.fail[pos]; err != nil {
		return nil, err
	}
	n, err := d.PageCount(pos.Section)
	if err != nil {
		return nil, err
	}
	if pos.Page < 0 || pos.Page >= n {
		return nil, model.OutOfBounds("load page", pos.Page, n)
	}
	return &model.Page{Number: pos.Page + 1}, nil
}

func pos(s, p int) model.Position { return model.Position{Section: s, Page: p} }

func TestRing_PrefetchedPageIsServedWithoutLoad(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(10)
	r := New(doc)

	_, err := r.Get(ctx, pos(0, 3), model.DirectionForward)
	require.NoError(t, err)
	require.NoError(t, r.Prefetch(ctx))

	adj, ok := r.Adjacent()
	require.True(t, ok)
	assert.Equal(t, pos(0, 4), adj)

	page, err := r.Get(ctx, pos(0, 4), model.DirectionForward)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Number)
	assert.Equal(t, 1, doc.loads[pos(0, 4)], "adjacent page loaded twice")

	st := r.Stats()
	assert.Equal(t, int64(1), st.Loads)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Prefetches)

	cur, _ := r.Current()
	assert.Equal(t, pos(0, 4), cur)
	_, ok = r.Adjacent()
	assert.False(t, ok, "promoted slot should leave adjacent empty")
}

func TestRing_BackwardPrefetch(t *testing.T) {
	ctx := context.Background()
	r := New(newFakeDoc(10))

	_, err := r.Get(ctx, pos(0, 5), model.DirectionBackward)
	require.NoError(t, err)
	require.NoError(t, r.Prefetch(ctx))

	adj, ok := r.Adjacent()
	require.True(t, ok)
	assert.Equal(t, pos(0, 4), adj)
}

func TestRing_RepeatedGetIsHit(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(3)
	r := New(doc)

	for range 3 {
		_, err := r.Get(ctx, pos(0, 1), model.DirectionUnknown)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, doc.loads[pos(0, 1)])
	assert.Equal(t, int64(2), r.Stats().Hits)
}

func TestRing_JumpForcesFreshLoad(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(20)
	r := New(doc)

	_, err := r.Get(ctx, pos(0, 0), model.DirectionForward)
	require.NoError(t, err)
	require.NoError(t, r.Prefetch(ctx))

	_, err = r.Get(ctx, pos(0, 10), model.DirectionForward)
	require.NoError(t, err)
	_, ok := r.Adjacent()
	assert.False(t, ok, "a jump must clear the adjacent slot")

	// Going back to page 1 is a jump too: it must load again.
	_, err = r.Get(ctx, pos(0, 1), model.DirectionBackward)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.loads[pos(0, 1)])
	assert.Equal(t, int64(3), r.Stats().Loads)
}

func TestRing_ExplicitJump(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(5)
	r := New(doc)

	_, err := r.Get(ctx, pos(0, 2), model.DirectionForward)
	require.NoError(t, err)
	require.NoError(t, r.Prefetch(ctx))
	r.Jump()

	_, ok := r.Current()
	assert.False(t, ok)
	_, err = r.Get(ctx, pos(0, 2), model.DirectionForward)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.loads[pos(0, 2)])
}

func TestRing_CrossesSections(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(2, 0, 3)
	r := New(doc)

	_, err := r.Get(ctx, pos(0, 1), model.DirectionForward)
	require.NoError(t, err)
	require.NoError(t, r.Prefetch(ctx))
	adj, ok := r.Adjacent()
	require.True(t, ok)
	assert.Equal(t, pos(2, 0), adj, "empty section is skipped")

	_, err = r.Get(ctx, pos(2, 0), model.DirectionForward)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Stats().Hits)

	// Backward from the section start reaches the last page of section 0,
	// which is a step and keeps the slots.
	_, err = r.Get(ctx, pos(0, 1), model.DirectionBackward)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.loads[pos(0, 1)])
}

func TestRing_PrefetchAtEnd(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(2)
	r := New(doc)

	_, err := r.Get(ctx, pos(0, 1), model.DirectionForward)
	require.NoError(t, err)
	require.NoError(t, r.Prefetch(ctx))
	_, ok := r.Adjacent()
	assert.False(t, ok)
	assert.Equal(t, int64(0), r.Stats().Prefetches)
}

func TestRing_PrefetchFailureIsLocal(t *testing.T) {
	ctx := context.Background()
	doc := newFakeDoc(5)
	boom := errors.New("boom")
	doc.fail[pos(0, 1)] = boom
	r := New(doc)

	_, err := r.Get(ctx, pos(0, 0), model.DirectionForward)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Prefetch(ctx), boom)
	_, ok := r.Adjacent()
	assert.False(t, ok)

	// The failed page is retried lazily on request.
	delete(doc.fail, pos(0, 1))
	page, err := r.Get(ctx, pos(0, 1), model.DirectionForward)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
}

func TestRing_LoadError(t *testing.T) {
	r := New(newFakeDoc(2))
	_, err := r.Get(context.Background(), pos(0, 2), model.DirectionForward)
	assert.ErrorIs(t, err, model.ErrOutOfBounds)
}

func TestRing_CanceledContext(t *testing.T) {
	doc := newFakeDoc(2)
	r := New(doc)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Get(ctx, pos(0, 0), model.DirectionForward)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, doc.loads[pos(0, 0)])
}

func TestAdjacency(t *testing.T) {
	doc := newFakeDoc(2, 0, 3)
	tests := []struct {
		name string
		fn   func(Source, model.Position) (model.Position, bool, error)
		in   model.Position
		want model.Position
		ok   bool
	}{
		{"next in section", Next, pos(0, 0), pos(0, 1), true},
		{"next skips empty section", Next, pos(0, 1), pos(2, 0), true},
		{"next at end", Next, pos(2, 2), pos(2, 2), false},
		{"prev in section", Prev, pos(2, 2), pos(2, 1), true},
		{"prev skips empty section", Prev, pos(2, 0), pos(0, 1), true},
		{"prev at start", Prev, pos(0, 0), pos(0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := tt.fn(doc, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdjacency_DamagedSectionIsAStop(t *testing.T) {
	doc := newFakeDoc(2, 2, 0, 2)
	doc.broken[1] = model.Wrap(model.ErrCorruptFormat, "build section", errors.New("bad chapter"))
	tests := []struct {
		name string
		fn   func(Source, model.Position) (model.Position, bool, error)
		in   model.Position
		want model.Position
	}{
		{"next enters damaged section", Next, pos(0, 1), pos(1, 0)},
		{"next leaves damaged section", Next, pos(1, 0), pos(3, 0)},
		{"prev enters damaged section", Prev, pos(3, 0), pos(1, 0)},
		{"prev leaves damaged section", Prev, pos(1, 0), pos(0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := tt.fn(doc, tt.in)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRing_WalksPastDamagedSection(t *testing.T) {
	doc := newFakeDoc(1, 3, 1)
	doc.broken[1] = model.Wrap(model.ErrCorruptFormat, "build section", errors.New("bad chapter"))
	r := New(doc)
	ctx := context.Background()

	_, err := r.Get(ctx, pos(0, 0), model.DirectionForward)
	require.NoError(t, err)
	assert.Error(t, r.Prefetch(ctx))

	_, err = r.Get(ctx, pos(1, 0), model.DirectionForward)
	assert.ErrorIs(t, err, model.ErrCorruptFormat)

	next, ok, err := Next(doc, pos(1, 0))
	require.NoError(t, err)
	require.True(t, ok)
	page, err := r.Get(ctx, next, model.DirectionForward)
	require.NoError(t, err)
	assert.Equal(t, pos(2, 0), next)
	assert.Equal(t, 1, page.Number)
}

func TestClamp(t *testing.T) {
	doc := newFakeDoc(4, 2)
	tests := []struct {
		in, want model.Position
	}{
		{pos(0, 9), pos(0, 3)},
		{pos(0, -3), pos(0, 0)},
		{pos(5, 1), pos(1, 1)},
		{pos(-1, 1), pos(0, 1)},
	}
	for _, tt := range tests {
		got, err := Clamp(doc, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Clamp(%+v)", tt.in)
	}
}
