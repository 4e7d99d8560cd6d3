// internal/layout/engine.go
package layout

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scalpel-layout/internal/config"
	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// Tree is the read-only document structure the engine walks.
type Tree interface {
	Root() (dom.NodeID, bool)
	Children(id dom.NodeID) []dom.NodeID
}

// TextSource is optionally implemented by a Tree whose leaves carry text.
type TextSource interface {
	TextContent(id dom.NodeID) (string, bool)
}

// StyleProvider supplies computed styles per node.
type StyleProvider interface {
	ComputedStyles(id dom.NodeID) (css.Styles, bool)
}

const (
	defaultParallelThreshold = 100
	defaultFontSize          = 16.0
	lineHeightFactor         = 1.2
	inlineBaselineFactor     = 0.8
)

// Engine computes layout boxes for a styled tree. It is safe for concurrent
// use; a single ComputeLayout pass may fan out over goroutines for blocks
// with many children.
type Engine struct {
	logger *zap.Logger
	cache  *layoutCache

	generation atomic.Uint64

	viewportMu     sync.RWMutex
	viewportWidth  float64
	viewportHeight float64

	metricsMu sync.RWMutex
	metrics   Metrics

	queueMu sync.Mutex
	queue   []dom.NodeID

	parallel          bool
	parallelThreshold int
	workers           int
	cacheEnabled      bool
	measurer          TextMeasurer
	fontSize          float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithParallelThreshold sets the child count above which a block lays out
// its children concurrently.
func WithParallelThreshold(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelThreshold = n
		}
	}
}

// WithParallelWorkers bounds the goroutines used per fanned-out block.
func WithParallelWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithParallelLayout turns concurrent child layout on or off.
func WithParallelLayout(enabled bool) Option {
	return func(e *Engine) { e.parallel = enabled }
}

// WithCache turns result reuse on or off. Rows are still recorded so that
// GetLayoutBox keeps working; lookups simply always miss.
func WithCache(enabled bool) Option {
	return func(e *Engine) { e.cacheEnabled = enabled }
}

// WithTextMeasurer replaces the approximate text measurer.
func WithTextMeasurer(m TextMeasurer) Option {
	return func(e *Engine) {
		if m != nil {
			e.measurer = m
		}
	}
}

// WithDefaultFontSize sets the font size used when a text node has none.
func WithDefaultFontSize(px float64) Option {
	return func(e *Engine) {
		if px > 0 {
			e.fontSize = px
		}
	}
}

// NewEngine creates an engine for a viewport of the given size.
func NewEngine(width, height float64, opts ...Option) *Engine {
	e := &Engine{
		logger:            zap.NewNop(),
		cache:             newLayoutCache(),
		viewportWidth:     width,
		viewportHeight:    height,
		parallel:          true,
		parallelThreshold: defaultParallelThreshold,
		workers:           runtime.GOMAXPROCS(0),
		cacheEnabled:      true,
		measurer:          ApproximateTextMeasurer{},
		fontSize:          defaultFontSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "layout_engine"))
	return e
}

// NewEngineFromConfig creates an engine from the layout configuration section.
func NewEngineFromConfig(cfg config.LayoutConfig, logger *zap.Logger) *Engine {
	return NewEngine(cfg.ViewportWidth, cfg.ViewportHeight,
		WithLogger(logger),
		WithParallelLayout(cfg.EnableParallelLayout),
		WithParallelThreshold(cfg.ParallelThreshold),
		WithParallelWorkers(cfg.ParallelWorkers),
		WithCache(cfg.EnableLayoutCache),
		WithDefaultFontSize(cfg.DefaultFontSize),
	)
}

type passIDKey struct{}

// PassID returns the identifier of the layout pass running under ctx.
func PassID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(passIDKey{}).(string)
	return id, ok
}

// ComputeLayout lays out the whole tree under the current viewport. Every
// call starts a new generation, so rows of earlier passes stop being visible
// even when the tree has no root; that case is counted and otherwise a no-op.
func (e *Engine) ComputeLayout(ctx context.Context, tree Tree, styles StyleProvider) error {
	start := time.Now()
	e.drainInvalidations()
	gen := e.generation.Add(1)

	passID := uuid.NewString()
	ctx = context.WithValue(ctx, passIDKey{}, passID)
	logger := e.logger.With(zap.String("pass_id", passID), zap.Uint64("generation", gen))

	root, ok := tree.Root()
	if !ok {
		e.recordPass(time.Since(start))
		logger.Debug("Layout pass over an empty tree.")
		return nil
	}

	width, height := e.Viewport()
	constraints := LayoutConstraints{
		AvailableWidth:  Definite(width),
		AvailableHeight: Definite(height),
	}
	if _, err := e.LayoutNode(ctx, tree, styles, root, constraints, gen); err != nil {
		logger.Debug("Layout pass failed.", zap.Error(err))
		return err
	}

	elapsed := time.Since(start)
	e.recordPass(elapsed)
	logger.Debug("Layout pass complete.", zap.Duration("elapsed", elapsed))
	return nil
}

// LayoutNode measures one node and its subtree under constraints for the
// given generation. Flex and grid containers re-enter it for their items.
func (e *Engine) LayoutNode(ctx context.Context, tree Tree, styles StyleProvider, id dom.NodeID, c LayoutConstraints, gen uint64) (LayoutResult, error) {
	if e.cacheEnabled {
		if r, ok := e.cache.lookup(id, gen, c); ok {
			e.recordLookup(true)
			return r, nil
		}
	}
	e.recordLookup(false)

	if err := ctx.Err(); err != nil {
		return LayoutResult{}, fmt.Errorf("layout of node %d interrupted: %w", id, err)
	}
	if onPath(ctx, id) {
		return LayoutResult{}, newNodeError(KindCircularDependency, id, "node is its own ancestor")
	}
	ctx = withPath(ctx, id)

	st, ok := styles.ComputedStyles(id)
	if !ok {
		return LayoutResult{}, newNodeError(KindComputation, id, "no computed styles")
	}

	var (
		result   LayoutResult
		children []dom.NodeID
		err      error
	)
	if text, isText := textOf(tree, id); isText {
		result = e.layoutText(st, c, text)
	} else {
		switch keywordProp(st, "display", "block") {
		case "none":
			// Hidden subtrees produce an empty box and are not descended.
		case "inline":
			result = layoutInline(st, c)
		case "flex", "inline-flex":
			children = tree.Children(id)
			result, err = e.layoutFlex(ctx, tree, styles, id, st, c, gen)
		case "grid", "inline-grid":
			children = tree.Children(id)
			result, err = e.layoutGrid(ctx, tree, styles, id, st, c, gen)
		default:
			children = tree.Children(id)
			result, err = e.layoutBlock(ctx, tree, styles, st, children, c, gen)
		}
	}
	if err != nil {
		return LayoutResult{}, wrapAlgorithmError(id, err)
	}

	e.cache.store(id, cacheEntry{
		constraints:  c,
		result:       result,
		generation:   gen,
		dependencies: children,
	})
	return result, nil
}

func textOf(tree Tree, id dom.NodeID) (string, bool) {
	ts, ok := tree.(TextSource)
	if !ok {
		return "", false
	}
	return ts.TextContent(id)
}

// -- Recursion Path --

// pathNode is the chain of ancestors of the node being laid out.
type pathNode struct {
	id     dom.NodeID
	parent *pathNode
}

type pathKey struct{}

func onPath(ctx context.Context, id dom.NodeID) bool {
	for p, _ := ctx.Value(pathKey{}).(*pathNode); p != nil; p = p.parent {
		if p.id == id {
			return true
		}
	}
	return false
}

func withPath(ctx context.Context, id dom.NodeID) context.Context {
	parent, _ := ctx.Value(pathKey{}).(*pathNode)
	return context.WithValue(ctx, pathKey{}, &pathNode{id: id, parent: parent})
}

// -- Flow Layout --

func (e *Engine) layoutBlock(ctx context.Context, tree Tree, styles StyleProvider, st css.Styles, children []dom.NodeID, c LayoutConstraints, gen uint64) (LayoutResult, error) {
	bm := resolveBoxModel(st, c)
	box := bm.box

	childConstraints := LayoutConstraints{}
	if bm.widthDefinite {
		childConstraints.AvailableWidth = Definite(box.Content.Width)
	}
	if bm.heightExplicit || bm.heightPinned() {
		childConstraints.AvailableHeight = Definite(box.Content.Height)
	}

	results, err := e.layoutChildren(ctx, tree, styles, children, childConstraints, gen)
	if err != nil {
		return LayoutResult{}, err
	}

	// Stacking is sequential and in document order.
	var stacked, intrinsicWidth float64
	overflow := false
	for i, child := range children {
		r, ok := e.cache.place(child, gen, 0, stacked)
		if !ok {
			r = results[i]
			r.Box.MoveTo(0, stacked)
		}
		stacked += r.Box.Outer(Vertical)
		outer := r.Box.Outer(Horizontal)
		intrinsicWidth = math.Max(intrinsicWidth, math.Max(outer, r.IntrinsicWidth+r.Box.Static(Horizontal)))
		if r.ChildrenOverflow || (bm.widthDefinite && outer > box.Content.Width+constraintEpsilon) {
			overflow = true
		}
	}

	box.Content.Height = bm.autoHeight(stacked)
	if stacked > box.Content.Height+constraintEpsilon {
		overflow = true
	}

	return LayoutResult{
		Box:              box,
		Baseline:         Definite(box.Content.Y + box.Content.Height),
		IntrinsicWidth:   intrinsicWidth,
		IntrinsicHeight:  stacked,
		ChildrenOverflow: overflow,
	}, nil
}

// layoutChildren measures each child under the same constraints. Above the
// parallel threshold children run on an errgroup; each goroutine writes only
// its own slot.
func (e *Engine) layoutChildren(ctx context.Context, tree Tree, styles StyleProvider, children []dom.NodeID, c LayoutConstraints, gen uint64) ([]LayoutResult, error) {
	results := make([]LayoutResult, len(children))

	if !e.parallel || len(children) <= e.parallelThreshold {
		for i, child := range children {
			r, err := e.LayoutNode(ctx, tree, styles, child, c, gen)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	e.metricsMu.Lock()
	e.metrics.ParallelLayouts++
	e.metricsMu.Unlock()
	passID, _ := PassID(ctx)
	e.logger.Debug("Laying out children in parallel.",
		zap.String("pass_id", passID),
		zap.Int("children", len(children)),
		zap.Int("workers", e.workers))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, child := range children {
		g.Go(func() error {
			r, err := e.LayoutNode(groupCtx, tree, styles, child, c, gen)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// layoutInline sizes an inline box from its box model alone.
func layoutInline(st css.Styles, c LayoutConstraints) LayoutResult {
	box := resolveBoxModel(st, c).box
	return LayoutResult{
		Box:             box,
		Baseline:        Definite(box.Content.Y + box.Content.Height*inlineBaselineFactor),
		IntrinsicWidth:  box.Content.Width,
		IntrinsicHeight: box.Content.Height,
	}
}

func (e *Engine) layoutText(st css.Styles, c LayoutConstraints, text string) LayoutResult {
	fontSize := lengthProp(st, "font-size", Extent{}).Or(e.fontSize)
	if fontSize <= 0 {
		fontSize = e.fontSize
	}
	lineHeight := resolveLineHeight(st, fontSize)

	maxWidth := minExtent(c.AvailableWidth, c.MaxWidth)
	m := e.measurer.MeasureText(text, fontSize, lineHeight, maxWidth)

	box := LayoutBox{Content: Rect{
		Width:  ClampSize(m.Width, c.MinWidth, c.MaxWidth),
		Height: ClampSize(m.Height, c.MinHeight, c.MaxHeight),
	}}
	return LayoutResult{
		Box:              box,
		Baseline:         Definite(lineHeight * inlineBaselineFactor),
		IntrinsicWidth:   m.Width,
		IntrinsicHeight:  m.Height,
		ChildrenOverflow: m.Overflows,
	}
}

func resolveLineHeight(st css.Styles, fontSize float64) float64 {
	v, err := st.Value("line-height")
	if err != nil {
		return fontSize * lineHeightFactor
	}
	switch v.Kind {
	case css.KindLength:
		return v.Num
	case css.KindNumber:
		return v.Num * fontSize
	case css.KindInteger:
		return float64(v.Int) * fontSize
	case css.KindPercentage:
		return ResolvePercentage(v.Num, fontSize, fontSize*lineHeightFactor)
	}
	return fontSize * lineHeightFactor
}

// -- Queries --

// Viewport returns the current viewport size.
func (e *Engine) Viewport() (width, height float64) {
	e.viewportMu.RLock()
	defer e.viewportMu.RUnlock()
	return e.viewportWidth, e.viewportHeight
}

// Generation returns the generation of the most recent pass.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// GetLayoutBox returns the box computed for id in the most recent pass.
func (e *Engine) GetLayoutBox(id dom.NodeID) (LayoutBox, bool) {
	r, ok := e.cache.latest(id, e.generation.Load())
	return r.Box, ok
}

// GetLayoutResult returns the full result computed for id in the most recent pass.
func (e *Engine) GetLayoutResult(id dom.NodeID) (LayoutResult, bool) {
	return e.cache.latest(id, e.generation.Load())
}

// AbsoluteBoxes converts the parent-relative boxes of the most recent pass
// into page coordinates. Nodes without a current row are skipped along with
// their subtrees.
func (e *Engine) AbsoluteBoxes(tree Tree) map[dom.NodeID]LayoutBox {
	out := make(map[dom.NodeID]LayoutBox)
	root, ok := tree.Root()
	if !ok {
		return out
	}
	gen := e.generation.Load()

	type frame struct {
		id     dom.NodeID
		dx, dy float64
	}
	stack := []frame{{id: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := out[f.id]; seen {
			continue
		}
		r, ok := e.cache.latest(f.id, gen)
		if !ok {
			continue
		}
		abs := r.Box.Translated(f.dx, f.dy)
		out[f.id] = abs
		for _, child := range tree.Children(f.id) {
			stack = append(stack, frame{id: child, dx: abs.Content.X, dy: abs.Content.Y})
		}
	}
	return out
}

// -- Invalidation and Cache Control --

// InvalidateNode evicts the row for id. The id is also queued and evicted
// again at the start of the next pass, which covers a row written back by a
// pass that was still in flight.
func (e *Engine) InvalidateNode(id dom.NodeID) {
	e.cache.remove(id)
	e.queueMu.Lock()
	e.queue = append(e.queue, id)
	e.queueMu.Unlock()
}

// InvalidateSubtree invalidates id and every descendant exactly once and
// returns how many nodes were invalidated. Children recorded by the last
// layout of a node are followed too, so nodes detached from the tree since
// then are still evicted.
func (e *Engine) InvalidateSubtree(tree Tree, id dom.NodeID) int {
	visited := make(map[dom.NodeID]struct{})
	stack := []dom.NodeID{id}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[n]; seen {
			continue
		}
		visited[n] = struct{}{}
		recorded := e.cache.dependencies(n)
		e.InvalidateNode(n)
		stack = append(stack, tree.Children(n)...)
		stack = append(stack, recorded...)
	}
	e.logger.Debug("Invalidated subtree.", zap.Uint32("root", uint32(id)), zap.Int("nodes", len(visited)))
	return len(visited)
}

func (e *Engine) drainInvalidations() {
	e.queueMu.Lock()
	pending := e.queue
	e.queue = nil
	e.queueMu.Unlock()
	for _, id := range pending {
		e.cache.remove(id)
	}
}

// ResizeViewport changes the viewport and drops every cached row.
func (e *Engine) ResizeViewport(width, height float64) error {
	if !validViewport(width) || !validViewport(height) {
		return newError(KindConstraintResolution, fmt.Sprintf("invalid viewport %vx%v", width, height))
	}
	e.viewportMu.Lock()
	e.viewportWidth, e.viewportHeight = width, height
	e.viewportMu.Unlock()
	e.cache.clear()
	e.logger.Debug("Viewport resized.", zap.Float64("width", width), zap.Float64("height", height))
	return nil
}

func validViewport(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ClearCache drops every cached row and resets the metrics.
func (e *Engine) ClearCache() {
	e.cache.clear()
	e.metricsMu.Lock()
	e.metrics = Metrics{}
	e.metricsMu.Unlock()
	e.logger.Debug("Layout cache cleared.")
}

// PruneCache drops rows from generations before the current one and returns
// how many were removed.
func (e *Engine) PruneCache() int {
	removed := e.cache.pruneBefore(e.generation.Load())
	if removed > 0 {
		e.logger.Debug("Pruned stale layout rows.", zap.Int("removed", removed))
	}
	return removed
}
