// internal/layout/engine_test.go
package layout

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-layout/internal/config"
	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// -- Scenarios --

func TestBlockRootFillsViewport(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	e := f.engine()
	f.compute(e)

	r := f.result(e, root)
	assert.Equal(t, 800.0, r.Box.Content.Width)
	assert.Zero(t, r.Box.Content.Height)
	assert.False(t, r.ChildrenOverflow)
}

func TestBlockStacking(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	a := f.add(root, "height: 50px; margin: 10px")
	b := f.add(root, "height: 20px; padding: 5px")
	e := f.engine()
	f.compute(e)

	boxA, boxB := f.box(e, a), f.box(e, b)
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 780, Height: 50}, boxA.Content)
	assert.Equal(t, Rect{X: 5, Y: 75, Width: 790, Height: 20}, boxB.Content)

	r := f.result(e, root)
	assert.Equal(t, 100.0, r.Box.Content.Height)
	assert.Equal(t, 100.0, r.IntrinsicHeight)
	assert.Equal(t, 800.0, r.IntrinsicWidth)
	assert.Equal(t, Definite(100), r.Baseline)
	assert.False(t, r.ChildrenOverflow)

	t.Run("Absolute boxes accumulate parent origins", func(t *testing.T) {
		nested := newFixture(t)
		outer := nested.root("padding: 7px")
		inner := nested.add(outer, "margin-top: 3px; height: 4px")
		leaf := nested.add(inner, "height: 1px; padding-left: 2px")
		ne := nested.engine()
		nested.compute(ne)

		abs := ne.AbsoluteBoxes(nested.doc)
		require.Len(t, abs, 3)
		assert.Equal(t, 7.0, abs[inner].Content.X)
		assert.Equal(t, 10.0, abs[inner].Content.Y)
		assert.Equal(t, 9.0, abs[leaf].Content.X)
		assert.Equal(t, 10.0, abs[leaf].Content.Y)
		assert.Equal(t, 2.0, nested.box(ne, leaf).Content.X, "cached boxes stay parent relative")
	})
}

func TestBlockOverflow(t *testing.T) {
	f := newFixture(t)
	root := f.root("height: 40px")
	f.add(root, "height: 70px")
	wide := f.add(root, "width: 900px")
	e := f.engine()
	f.compute(e)

	r := f.result(e, root)
	assert.Equal(t, 40.0, r.Box.Content.Height)
	assert.True(t, r.ChildrenOverflow)
	assert.Equal(t, 900.0, f.box(e, wide).Content.Width)
}

func TestInlineAndHiddenNodes(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	hidden := f.add(root, "display: none; height: 30px")
	hiddenChild := f.add(hidden, "height: 30px")
	inline := f.add(root, "display: inline; width: 50px; height: 10px")
	inlineChild := f.add(inline, "height: 99px")
	e := f.engine()
	f.compute(e)

	assert.Equal(t, LayoutBox{}, f.box(e, hidden))
	_, ok := e.GetLayoutBox(hiddenChild)
	assert.False(t, ok, "hidden subtrees are not descended")

	r := f.result(e, inline)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 50, Height: 10}, r.Box.Content, "hidden siblings take no space")
	assert.InDelta(t, 8, r.Baseline.Value, tolerance)
	_, ok = e.GetLayoutBox(inlineChild)
	assert.False(t, ok, "inline boxes do not lay out children")
}

func TestTextNodes(t *testing.T) {
	f := newFixture(t)
	root := f.root("width: 60px")
	text := f.text(root, "hello world foo")
	e := f.engine()
	f.compute(e)

	r := f.result(e, text)
	assert.InDelta(t, 48, r.Box.Content.Width, tolerance)
	assert.InDelta(t, 57.6, r.Box.Content.Height, tolerance)
	assert.InDelta(t, 16*1.2*0.8, r.Baseline.Value, tolerance)
	assert.InDelta(t, 57.6, f.box(e, root).Content.Height, tolerance)

	t.Run("Line height forms", func(t *testing.T) {
		assert.Equal(t, 30.0, resolveLineHeight(styleMap{"line-height": css.Length(30)}, 10))
		assert.Equal(t, 15.0, resolveLineHeight(styleMap{"line-height": css.Number(1.5)}, 10))
		assert.Equal(t, 20.0, resolveLineHeight(styleMap{"line-height": css.Integer(2)}, 10))
		assert.Equal(t, 25.0, resolveLineHeight(styleMap{"line-height": css.Percentage(250)}, 10))
		assert.InDelta(t, 12, resolveLineHeight(styleMap{"line-height": css.Keyword("normal")}, 10), tolerance)
	})
}

// -- Cache, Invalidation and Metrics --

func TestCacheCorrectness(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	child := f.add(root, "height: 10px")
	e := f.engine()
	f.compute(e)

	before := e.Metrics()
	width, height := e.Viewport()
	c := LayoutConstraints{AvailableWidth: Definite(width), AvailableHeight: Definite(height)}

	first, err := e.LayoutNode(context.Background(), f.doc, f.styles, root, c, e.Generation())
	require.NoError(t, err)
	second, err := e.LayoutNode(context.Background(), f.doc, f.styles, root, c, e.Generation())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	after := e.Metrics()
	assert.Equal(t, before.CacheHits+2, after.CacheHits)
	assert.Equal(t, before.CacheMisses, after.CacheMisses)

	t.Run("Different constraints miss", func(t *testing.T) {
		_, err := e.LayoutNode(context.Background(), f.doc, f.styles, child, LayoutConstraints{}, e.Generation())
		require.NoError(t, err)
		assert.Equal(t, after.CacheMisses+1, e.Metrics().CacheMisses)
	})
}

func TestCacheDisabledStillRecordsRows(t *testing.T) {
	f := newFixture(t)
	root := f.root("display: flex; width: 300px")
	item := f.add(root, "flex-grow: 1")
	e := f.engine(WithCache(false))
	f.compute(e)

	assert.Zero(t, e.Metrics().CacheHits)
	assert.Equal(t, 300.0, f.box(e, item).Content.Width)
}

func TestInvalidation(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	a := f.add(root, "height: 10px")
	a1 := f.add(a, "height: 5px")
	b := f.add(root, "height: 10px")
	e := f.engine()
	f.compute(e)

	t.Run("Node", func(t *testing.T) {
		e.InvalidateNode(a1)
		_, ok := e.GetLayoutBox(a1)
		assert.False(t, ok)
		_, ok = e.GetLayoutBox(b)
		assert.True(t, ok, "siblings keep their rows")
	})

	t.Run("Subtree", func(t *testing.T) {
		f.compute(e)
		assert.Equal(t, 2, e.InvalidateSubtree(f.doc, a))
		for _, id := range []dom.NodeID{a, a1} {
			_, ok := e.GetLayoutBox(id)
			assert.False(t, ok)
		}
		_, ok := e.GetLayoutBox(b)
		assert.True(t, ok)

		misses := e.Metrics().CacheMisses
		f.compute(e)
		assert.GreaterOrEqual(t, e.Metrics().CacheMisses-misses, uint64(2))
		assert.Equal(t, 10.0, f.box(e, b).Content.Y, "out of subtree results are unchanged")
	})

	t.Run("Subtree visits shared children once", func(t *testing.T) {
		tree := &fakeTree{root: 1, children: map[dom.NodeID][]dom.NodeID{1: {2, 3}, 2: {4}, 3: {4}}}
		assert.Equal(t, 4, NewEngine(100, 100).InvalidateSubtree(tree, 1))
	})

	t.Run("Subtree follows recorded children", func(t *testing.T) {
		tree := &fakeTree{root: 1, children: map[dom.NodeID][]dom.NodeID{1: {2}, 2: {3}}}
		detached := NewEngine(100, 100)
		require.NoError(t, detached.ComputeLayout(context.Background(), tree, allStyles{}))
		_, ok := detached.GetLayoutBox(3)
		require.True(t, ok)

		// Node 2 leaves the tree after the pass; its rows must still go.
		tree.children[1] = nil
		assert.Equal(t, 3, detached.InvalidateSubtree(tree, 1))
		for _, id := range []dom.NodeID{1, 2, 3} {
			_, ok := detached.GetLayoutBox(id)
			assert.False(t, ok, "node %d", id)
		}
	})
}

func TestResizeViewport(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	e := f.engine()
	f.compute(e)
	require.Positive(t, e.CacheStats().CacheSize)

	require.NoError(t, e.ResizeViewport(1024, 768))
	assert.Zero(t, e.CacheStats().CacheSize)
	_, ok := e.GetLayoutBox(root)
	assert.False(t, ok)

	misses := e.Metrics().CacheMisses
	_, err := e.LayoutNode(context.Background(), f.doc, f.styles, root,
		LayoutConstraints{AvailableWidth: Definite(800), AvailableHeight: Definite(600)}, e.Generation())
	require.NoError(t, err)
	assert.Equal(t, misses+1, e.Metrics().CacheMisses, "previously cached node misses")

	f.compute(e)
	assert.Equal(t, 1024.0, f.box(e, root).Content.Width)

	t.Run("Invalid sizes", func(t *testing.T) {
		for _, size := range [][2]float64{{-1, 10}, {10, math.NaN()}, {math.Inf(1), 10}} {
			err := e.ResizeViewport(size[0], size[1])
			assert.True(t, IsKind(err, KindConstraintResolution), "size %v", size)
		}
		w, h := e.Viewport()
		assert.Equal(t, [2]float64{1024, 768}, [2]float64{w, h})
	})
}

func TestMetricsAndStats(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	f.add(root, "height: 1px")
	e := f.engine()
	f.compute(e)
	f.compute(e)

	m := e.Metrics()
	assert.Equal(t, uint64(2), m.TotalLayouts)
	assert.Positive(t, m.AverageLayoutTimeMicros)
	assert.LessOrEqual(t, m.AverageLayoutTimeMicros, m.MaxLayoutTimeMicros)
	assert.Equal(t, 2*CacheEntrySize(), m.MemoryUsageBytes)

	stats := e.CacheStats()
	assert.Equal(t, 2, stats.CacheSize)
	assert.Equal(t, 2, stats.CurrentGenerationRows)

	data, err := jsoniter.Marshal(stats)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	for _, key := range []string{"cache_size", "total_layouts", "cache_hits", "cache_misses",
		"cache_hit_ratio", "parallel_layouts", "average_layout_time_us", "max_layout_time_us",
		"memory_usage_mb", "current_generation_rows"} {
		assert.Contains(t, decoded, key)
	}

	t.Run("Clear resets metrics", func(t *testing.T) {
		e.ClearCache()
		assert.Equal(t, Metrics{}, e.Metrics())
		assert.Zero(t, e.CacheStats().CacheHitRatio)
	})
}

func TestPruneCache(t *testing.T) {
	f := newFixture(t)
	root := f.root("")
	section := f.add(root, "")
	f.add(section, "height: 1px")
	f.add(section, "height: 1px")
	e := f.engine()
	f.compute(e)
	assert.Zero(t, e.PruneCache(), "every row is current")

	require.NoError(t, f.styles.SetDeclarations(section, "display: none"))
	f.compute(e)
	assert.Equal(t, 2, e.PruneCache(), "rows of the hidden children are stale")
	assert.Equal(t, 2, e.CacheStats().CacheSize)
}

func TestDeterminism(t *testing.T) {
	f := newFixture(t)
	root := f.root("padding: 4px")
	row := f.add(root, "display: flex; column-gap: 6px; flex-wrap: wrap")
	for i := 0; i < 5; i++ {
		item := f.add(row, "flex-grow: 1; flex-shrink: 1; width: 130px; padding: 3px")
		f.text(item, "lorem ipsum dolor sit amet")
	}
	grid := f.add(root, "display: grid; grid-template-columns: 100px 1fr 2fr; gap: 5px")
	for i := 1; i <= 3; i++ {
		f.add(grid, "height: 12px; grid-column: "+string(rune('0'+i)))
	}
	e := f.engine()

	snapshot := func() map[dom.NodeID]LayoutResult {
		f.compute(e)
		out := make(map[dom.NodeID]LayoutResult)
		for id := range e.AbsoluteBoxes(f.doc) {
			out[id] = f.result(e, id)
		}
		return out
	}
	first := snapshot()
	e.ClearCache()
	second := snapshot()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("layout is not deterministic (-first +second):\n%s", diff)
	}
}

func TestParallelLayoutMatchesSequential(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	root := f.root("")
	for i := 0; i < 150; i++ {
		child := f.add(root, "height: 2px; margin-bottom: 1px")
		f.add(child, "height: 1px")
	}

	parallel := f.engine(WithParallelThreshold(100), WithParallelWorkers(4))
	sequential := f.engine(WithParallelLayout(false))
	f.compute(parallel)
	f.compute(sequential)

	assert.Equal(t, uint64(1), parallel.Metrics().ParallelLayouts)
	assert.Zero(t, sequential.Metrics().ParallelLayouts)
	if diff := cmp.Diff(sequential.AbsoluteBoxes(f.doc), parallel.AbsoluteBoxes(f.doc)); diff != "" {
		t.Errorf("parallel layout differs (-sequential +parallel):\n%s", diff)
	}
	assert.Equal(t, 450.0, f.box(parallel, root).Content.Height)
}

// -- Failures --

// fakeTree is a Tree that may contain cycles.
type fakeTree struct {
	root     dom.NodeID
	children map[dom.NodeID][]dom.NodeID
}

func (t *fakeTree) Root() (dom.NodeID, bool)             { return t.root, true }
func (t *fakeTree) Children(id dom.NodeID) []dom.NodeID { return t.children[id] }

type allStyles struct{}

func (allStyles) ComputedStyles(dom.NodeID) (css.Styles, bool) { return styleMap{}, true }

func TestFailures(t *testing.T) {
	t.Run("Circular dependency", func(t *testing.T) {
		tree := &fakeTree{root: 1, children: map[dom.NodeID][]dom.NodeID{1: {2}, 2: {1}}}
		e := NewEngine(100, 100)
		err := e.ComputeLayout(context.Background(), tree, allStyles{})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindCircularDependency))

		var le *Error
		require.ErrorAs(t, err, &le)
		assert.Equal(t, dom.NodeID(1), le.Node)
	})

	t.Run("Missing styles", func(t *testing.T) {
		f := newFixture(t)
		root := f.root("")
		orphan, err := f.doc.AppendElement(root, "div", nil)
		require.NoError(t, err)

		e := f.engine()
		err = e.ComputeLayout(context.Background(), f.doc, f.styles)
		require.Error(t, err)
		var le *Error
		require.ErrorAs(t, err, &le)
		assert.Equal(t, KindComputation, le.Kind)
		assert.Equal(t, orphan, le.Node)
		assert.Contains(t, err.Error(), "no computed styles")

		_, ok := e.GetLayoutBox(root)
		assert.False(t, ok, "a failed subtree publishes no parent box")
	})

	t.Run("Cancelled context", func(t *testing.T) {
		f := newFixture(t)
		f.root("")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := f.engine().ComputeLayout(ctx, f.doc, f.styles)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Empty document starts a new generation", func(t *testing.T) {
		f := newFixture(t)
		root := f.root("")
		e := f.engine()
		f.compute(e)
		require.Equal(t, uint64(1), e.Generation())

		require.NoError(t, e.ComputeLayout(context.Background(), dom.NewDocument(), allStyles{}))
		assert.Equal(t, uint64(2), e.Generation())
		assert.Equal(t, uint64(2), e.Metrics().TotalLayouts)
		_, ok := e.GetLayoutBox(root)
		assert.False(t, ok, "rows of the previous pass are no longer current")
		_, ok = e.GetLayoutResult(root)
		assert.False(t, ok)
		assert.Empty(t, e.AbsoluteBoxes(f.doc))

		fresh := NewEngine(100, 100)
		require.NoError(t, fresh.ComputeLayout(context.Background(), dom.NewDocument(), allStyles{}))
		assert.Equal(t, uint64(1), fresh.Generation())
		assert.Zero(t, fresh.CacheStats().CacheSize)
	})
}

func TestErrorFormatting(t *testing.T) {
	err := newNodeError(KindComputation, 4, "flex layout failed")
	err.Err = flexErrorf(InvalidFlexValue, "negative flex-grow")
	assert.Equal(t, "layout computation error at node 4: flex layout failed: invalid flex value error: negative flex-grow", err.Error())
	assert.Equal(t, "layout memory error: too big", newError(KindMemory, "too big").Error())

	var fe *FlexError
	assert.True(t, errors.As(err, &fe))
	assert.False(t, IsKind(errors.New("plain"), KindComputation))

	wrapped := wrapAlgorithmError(9, gridErrorf(TrackSizing, "bad"))
	assert.True(t, IsKind(wrapped, KindComputation))
	passthrough := newError(KindInvalidTree, "x")
	assert.Same(t, passthrough, wrapAlgorithmError(9, passthrough))
}

func TestNewEngineFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Layout
	cfg.ParallelWorkers = 3
	e := NewEngineFromConfig(cfg, zap.NewNop())

	w, h := e.Viewport()
	assert.Equal(t, 1280.0, w)
	assert.Equal(t, 720.0, h)
	assert.True(t, e.parallel)
	assert.Equal(t, 100, e.parallelThreshold)
	assert.Equal(t, 3, e.workers)
	assert.True(t, e.cacheEnabled)
}

func TestPassID(t *testing.T) {
	_, ok := PassID(context.Background())
	assert.False(t, ok)
	ctx := context.WithValue(context.Background(), passIDKey{}, "abc")
	id, ok := PassID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
