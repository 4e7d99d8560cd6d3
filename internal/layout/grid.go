// internal/layout/grid.go
package layout

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// maxGridTracks bounds the implicit grid.
const maxGridTracks = 1000

// TrackSizeKind tags the variant held by a TrackSize.
type TrackSizeKind int

const (
	TrackLength TrackSizeKind = iota
	TrackPercentage
	TrackFr
	TrackMinContent
	TrackMaxContent
	TrackAuto
	TrackMinMax
	TrackFitContent
)

// TrackSize is a single track sizing function.
type TrackSize struct {
	Kind  TrackSizeKind
	Value float64
	// Min and Max are set for TrackMinMax.
	Min, Max *TrackSize
}

// isFlexible reports whether the track takes a share of leftover space.
func (t TrackSize) isFlexible() bool {
	return t.Kind == TrackFr || (t.Kind == TrackMinMax && t.Max.Kind == TrackFr)
}

func (t TrackSize) flexFactor() float64 {
	if t.Kind == TrackFr {
		return t.Value
	}
	if t.Kind == TrackMinMax && t.Max.Kind == TrackFr {
		return t.Max.Value
	}
	return 0
}

// growsWithContent reports whether single-span items may raise the base size.
func (t TrackSize) growsWithContent() bool {
	switch t.Kind {
	case TrackFr, TrackMinContent, TrackMaxContent, TrackAuto, TrackFitContent:
		return true
	case TrackMinMax:
		switch t.Min.Kind {
		case TrackMinContent, TrackMaxContent, TrackAuto:
			return true
		}
	}
	return false
}

// GridTrack is one row or column with its working sizes.
type GridTrack struct {
	Size        TrackSize
	BaseSize    float64
	GrowthLimit float64
}

// GridLineKind tags a GridLine.
type GridLineKind int

const (
	LineAuto GridLineKind = iota
	LineNumber
	LineSpan
)

// GridLine is a placement reference: a 1-based line number (negative counts
// from the end), a span, or auto.
type GridLine struct {
	Kind GridLineKind
	N    int
}

// GridArea is an item's placement as written.
type GridArea struct {
	RowStart, RowEnd       GridLine
	ColumnStart, ColumnEnd GridLine
}

// ResolvedGridArea holds 0-based, end-exclusive track indices.
type ResolvedGridArea struct {
	RowStart, RowEnd       int
	ColumnStart, ColumnEnd int
}

// Span returns the number of tracks covered on the axis (Vertical = rows).
func (a ResolvedGridArea) Span(axis Axis) int {
	if axis == Horizontal {
		return a.ColumnEnd - a.ColumnStart
	}
	return a.RowEnd - a.RowStart
}

func (a ResolvedGridArea) start(axis Axis) int {
	if axis == Horizontal {
		return a.ColumnStart
	}
	return a.RowStart
}

// GridItem binds a node to its area and measurement.
type GridItem struct {
	Node     dom.NodeID
	Order    int
	Area     GridArea
	Resolved ResolvedGridArea
	Result   LayoutResult

	style        css.Styles
	edges        LayoutBox
	natural      LayoutResult
	justifySelf  ItemAlignment
	alignSelf    ItemAlignment
	widthAuto    bool
	heightAuto   bool
	contribution [2]float64
}

// GridContainer holds the container properties of one grid layout.
type GridContainer struct {
	Rows, Columns      []GridTrack
	RowGap, ColumnGap  float64
	JustifyItems       ItemAlignment
	AlignItems         ItemAlignment
	JustifyContent     SpaceDistribution
	AlignContent       SpaceDistribution
	ImplicitRowSize    TrackSize
	ImplicitColumnSize TrackSize
	// AutoFlowColumn and Dense are parsed for completeness; placement is
	// explicit or anchored at line 1.
	AutoFlowColumn bool
	Dense          bool
}

// ensureTracks appends implicit tracks until the axis has n tracks.
func (g *GridContainer) ensureTracks(axis Axis, n int) {
	if axis == Horizontal {
		for len(g.Columns) < n {
			g.Columns = append(g.Columns, GridTrack{Size: g.ImplicitColumnSize})
		}
		return
	}
	for len(g.Rows) < n {
		g.Rows = append(g.Rows, GridTrack{Size: g.ImplicitRowSize})
	}
}

// -- Property Parsing --

func (e *Engine) parseGridContainer(st css.Styles, widthBasis Extent) (*GridContainer, error) {
	g := &GridContainer{
		JustifyItems:       parseItemAlignment(keywordProp(st, "justify-items", "stretch"), AlignStretch),
		AlignItems:         parseItemAlignment(keywordProp(st, "align-items", "stretch"), AlignStretch),
		JustifyContent:     parseContentDistribution(keywordProp(st, "justify-content", "normal")),
		AlignContent:       parseContentDistribution(keywordProp(st, "align-content", "normal")),
		ImplicitRowSize:    TrackSize{Kind: TrackAuto},
		ImplicitColumnSize: TrackSize{Kind: TrackAuto},
	}
	if g.JustifyItems == AlignAuto || g.JustifyItems == AlignBaseline {
		g.JustifyItems = AlignStretch
	}
	if g.AlignItems == AlignAuto {
		g.AlignItems = AlignStretch
	}
	g.RowGap, g.ColumnGap = parseGaps(st, widthBasis)

	var err error
	if g.Rows, err = e.parseTrackList(st, "grid-template-rows"); err != nil {
		return nil, err
	}
	if g.Columns, err = e.parseTrackList(st, "grid-template-columns"); err != nil {
		return nil, err
	}
	if v, verr := st.Value("grid-auto-rows"); verr == nil {
		if g.ImplicitRowSize, err = parseTrackSize(firstItem(v)); err != nil {
			return nil, err
		}
	}
	if v, verr := st.Value("grid-auto-columns"); verr == nil {
		if g.ImplicitColumnSize, err = parseTrackSize(firstItem(v)); err != nil {
			return nil, err
		}
	}

	flow := keywordProp(st, "grid-auto-flow", "row")
	g.AutoFlowColumn = strings.Contains(flow, "column")
	g.Dense = strings.Contains(flow, "dense")
	return g, nil
}

// parseContentDistribution maps normal to stretch, as grid containers do.
func parseContentDistribution(keyword string) SpaceDistribution {
	if keyword == "normal" {
		return DistributeStretch
	}
	return parseSpaceDistribution(keyword, DistributeStart)
}

func firstItem(v css.Value) css.Value {
	if v.Kind == css.KindList && len(v.Items) > 0 {
		return v.Items[0]
	}
	return v
}

// parseTrackList reads a grid-template property, expanding repeat().
func (e *Engine) parseTrackList(st css.Styles, prop string) ([]GridTrack, error) {
	v, err := st.Value(prop)
	if err != nil || v.IsKeyword("none") {
		return nil, nil
	}
	values := []css.Value{v}
	if v.Kind == css.KindList {
		values = v.Items
	}

	var tracks []GridTrack
	for _, tv := range values {
		if tv.Kind == css.KindFunction && tv.Name == "repeat" {
			if len(tv.Items) < 2 || tv.Items[0].Kind != css.KindInteger || tv.Items[0].Int <= 0 {
				e.logger.Warn("Dropping unsupported repeat() in track list.",
					zap.String("property", prop), zap.String("value", tv.String()))
				continue
			}
			var pattern []css.Value
			for _, arg := range tv.Items[1:] {
				if arg.Kind == css.KindList {
					pattern = append(pattern, arg.Items...)
				} else {
					pattern = append(pattern, arg)
				}
			}
			if tv.Items[0].Int*len(pattern) > maxGridTracks {
				return nil, gridErrorf(TrackSizing, "%s repeats past the %d track limit", prop, maxGridTracks)
			}
			for i := 0; i < tv.Items[0].Int; i++ {
				for _, pv := range pattern {
					ts, err := parseTrackSize(pv)
					if err != nil {
						return nil, err
					}
					tracks = append(tracks, GridTrack{Size: ts})
				}
			}
			continue
		}
		ts, err := parseTrackSize(tv)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, GridTrack{Size: ts})
	}
	if len(tracks) > maxGridTracks {
		return nil, gridErrorf(TrackSizing, "%s declares %d tracks, limit is %d", prop, len(tracks), maxGridTracks)
	}
	return tracks, nil
}

func parseTrackSize(v css.Value) (TrackSize, error) {
	switch v.Kind {
	case css.KindLength, css.KindNumber, css.KindInteger:
		px, _ := v.Float()
		if px < 0 {
			return TrackSize{}, gridErrorf(TrackSizing, "negative track size %s", v)
		}
		return TrackSize{Kind: TrackLength, Value: px}, nil
	case css.KindPercentage:
		if v.Num < 0 {
			return TrackSize{}, gridErrorf(TrackSizing, "negative track size %s", v)
		}
		return TrackSize{Kind: TrackPercentage, Value: v.Num}, nil
	case css.KindAuto:
		return TrackSize{Kind: TrackAuto}, nil
	case css.KindKeyword:
		switch v.Keyword {
		case "auto":
			return TrackSize{Kind: TrackAuto}, nil
		case "min-content":
			return TrackSize{Kind: TrackMinContent}, nil
		case "max-content":
			return TrackSize{Kind: TrackMaxContent}, nil
		}
		if f, ok := strings.CutSuffix(v.Keyword, "fr"); ok {
			factor, err := strconv.ParseFloat(f, 64)
			if err == nil {
				if factor < 0 {
					return TrackSize{}, gridErrorf(InvalidGridValue, "negative flex factor %s", v.Keyword)
				}
				return TrackSize{Kind: TrackFr, Value: factor}, nil
			}
		}
	case css.KindFunction:
		switch v.Name {
		case "minmax":
			if len(v.Items) != 2 {
				return TrackSize{}, gridErrorf(InvalidGridValue, "minmax() takes two arguments, got %s", v)
			}
			lo, err := parseTrackSize(v.Items[0])
			if err != nil {
				return TrackSize{}, err
			}
			hi, err := parseTrackSize(v.Items[1])
			if err != nil {
				return TrackSize{}, err
			}
			if lo.Kind == TrackFr {
				return TrackSize{}, gridErrorf(InvalidGridValue, "flexible minimum in %s", v)
			}
			return TrackSize{Kind: TrackMinMax, Min: &lo, Max: &hi}, nil
		case "fit-content":
			if len(v.Items) != 1 {
				return TrackSize{}, gridErrorf(InvalidGridValue, "fit-content() takes one argument, got %s", v)
			}
			limit := pixels(v.Items[0], Extent{})
			if !limit.Valid || limit.Value < 0 {
				return TrackSize{}, gridErrorf(InvalidGridValue, "invalid fit-content() limit %s", v)
			}
			return TrackSize{Kind: TrackFitContent, Value: limit.Value}, nil
		}
	}
	return TrackSize{}, gridErrorf(InvalidGridValue, "unsupported track size %s", v)
}

func parseGridLine(v css.Value) (GridLine, error) {
	switch v.Kind {
	case css.KindInteger:
		return GridLine{Kind: LineNumber, N: v.Int}, nil
	case css.KindKeyword:
		if rest, ok := strings.CutPrefix(v.Keyword, "span "); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil || n <= 0 {
				return GridLine{}, gridErrorf(InvalidGridValue, "invalid span %q", v.Keyword)
			}
			return GridLine{Kind: LineSpan, N: n}, nil
		}
	}
	// auto and named lines resolve to the origin.
	return GridLine{Kind: LineAuto}, nil
}

// parseGridArea reads the item placement. grid-area, when set, overrides the longhands.
func parseGridArea(st css.Styles) (GridArea, error) {
	props := [4]string{"grid-row-start", "grid-column-start", "grid-row-end", "grid-column-end"}
	var lines [4]GridLine
	for i, prop := range props {
		v, err := st.Value(prop)
		if err != nil {
			continue
		}
		if lines[i], err = parseGridLine(v); err != nil {
			return GridArea{}, err
		}
	}
	if v, err := st.Value("grid-area"); err == nil {
		values := []css.Value{v}
		if v.Kind == css.KindList {
			values = v.Items
		}
		for i := range lines {
			lines[i] = GridLine{}
			if i < len(values) {
				if lines[i], err = parseGridLine(values[i]); err != nil {
					return GridArea{}, err
				}
			}
		}
	}
	return GridArea{RowStart: lines[0], ColumnStart: lines[1], RowEnd: lines[2], ColumnEnd: lines[3]}, nil
}

// -- Placement --

func lineIndex(l GridLine, count int) int {
	switch {
	case l.Kind != LineNumber || l.N == 0:
		return 0
	case l.N > 0:
		return l.N - 1
	default:
		return max(0, count+l.N)
	}
}

// resolveLines converts a start/end pair into a 0-based, end-exclusive range.
func resolveLines(start, end GridLine, count int) (int, int) {
	var s, e int
	switch {
	case start.Kind == LineSpan && end.Kind == LineSpan:
		s, e = 0, end.N
	case start.Kind == LineSpan && end.Kind == LineNumber:
		e = lineIndex(end, count)
		s = max(0, e-start.N)
	case start.Kind == LineSpan:
		s, e = 0, start.N
	case end.Kind == LineSpan:
		s = lineIndex(start, count)
		e = s + end.N
	case end.Kind == LineNumber:
		s, e = lineIndex(start, count), lineIndex(end, count)
	default:
		s = lineIndex(start, count)
		e = s + 1
	}
	if e <= s {
		e = s + 1
	}
	return s, e
}

// placeItems resolves every item's area and grows the implicit grid to fit.
func placeItems(g *GridContainer, items []*GridItem) error {
	explicitRows, explicitCols := len(g.Rows), len(g.Columns)
	for _, it := range items {
		rs, re := resolveLines(it.Area.RowStart, it.Area.RowEnd, explicitRows)
		cs, ce := resolveLines(it.Area.ColumnStart, it.Area.ColumnEnd, explicitCols)
		if re > maxGridTracks || ce > maxGridTracks {
			return gridErrorf(ItemPlacement, "item %d spans past the %d track limit", it.Node, maxGridTracks)
		}
		it.Resolved = ResolvedGridArea{RowStart: rs, RowEnd: re, ColumnStart: cs, ColumnEnd: ce}
		g.ensureTracks(Vertical, re)
		g.ensureTracks(Horizontal, ce)
	}
	return nil
}

// -- Track Sizing --

func initTrack(t *GridTrack, available Extent) {
	base, limit := 0.0, math.Inf(1)
	switch t.Size.Kind {
	case TrackLength:
		base, limit = t.Size.Value, t.Size.Value
	case TrackPercentage:
		if available.Valid {
			base = ResolvePercentage(t.Size.Value, available.Value, 0)
			limit = base
		}
	case TrackFitContent:
		limit = t.Size.Value
	case TrackMinMax:
		var lo, hi GridTrack
		lo.Size, hi.Size = *t.Size.Min, *t.Size.Max
		initTrack(&lo, available)
		initTrack(&hi, available)
		base = lo.BaseSize
		if hi.Size.Kind == TrackLength || (hi.Size.Kind == TrackPercentage && available.Valid) {
			limit = math.Max(base, hi.GrowthLimit)
		}
	}
	t.BaseSize, t.GrowthLimit = base, limit
}

// sizeTracks runs the simplified track sizing algorithm on one axis.
func sizeTracks(tracks []GridTrack, items []*GridItem, axis Axis, available Extent, gap float64, dist SpaceDistribution) {
	for i := range tracks {
		// Percentages of an indefinite size behave as auto.
		if tracks[i].Size.Kind == TrackPercentage && !available.Valid {
			tracks[i].Size = TrackSize{Kind: TrackAuto}
		}
		initTrack(&tracks[i], available)
	}

	// Single-span items raise intrinsic track bases.
	for _, it := range items {
		if it.Resolved.Span(axis) != 1 {
			continue
		}
		t := &tracks[it.Resolved.start(axis)]
		if !t.Size.growsWithContent() {
			continue
		}
		t.BaseSize = math.Max(t.BaseSize, it.contribution[axis])
		if t.Size.Kind == TrackFitContent {
			t.BaseSize = math.Min(t.BaseSize, t.GrowthLimit)
		}
	}

	// Maximize.
	for i := range tracks {
		t := &tracks[i]
		if math.IsInf(t.GrowthLimit, 1) || t.GrowthLimit < t.BaseSize {
			t.GrowthLimit = t.BaseSize
		}
	}
	if !available.Valid {
		return
	}

	gaps := gap * float64(max(len(tracks)-1, 0))
	free := available.Value - gaps - sumBase(tracks)
	if free > 0 {
		// Bounded minmax() tracks grow towards their limits with an equal share.
		var growable int
		for _, t := range tracks {
			if t.Size.Kind == TrackMinMax && !t.Size.isFlexible() && t.GrowthLimit > t.BaseSize {
				growable++
			}
		}
		if growable > 0 {
			share := free / float64(growable)
			for i := range tracks {
				t := &tracks[i]
				if t.Size.Kind == TrackMinMax && !t.Size.isFlexible() && t.GrowthLimit > t.BaseSize {
					t.BaseSize = math.Min(t.GrowthLimit, t.BaseSize+share)
				}
			}
		}
	}

	// Expand flexible tracks.
	var totalFr, nonFlexible float64
	for _, t := range tracks {
		if t.Size.isFlexible() {
			totalFr += t.Size.flexFactor()
		} else {
			nonFlexible += t.BaseSize
		}
	}
	if totalFr > 0 {
		leftover := math.Max(0, available.Value-gaps-nonFlexible)
		for i := range tracks {
			t := &tracks[i]
			if t.Size.isFlexible() {
				t.BaseSize = math.Max(t.BaseSize, t.Size.flexFactor()*leftover/totalFr)
				t.GrowthLimit = t.BaseSize
			}
		}
		return
	}

	// Stretch content distribution grows auto tracks.
	if dist == DistributeStretch {
		var autos int
		for _, t := range tracks {
			if t.Size.Kind == TrackAuto {
				autos++
			}
		}
		if free = available.Value - gaps - sumBase(tracks); free > 0 && autos > 0 {
			for i := range tracks {
				if tracks[i].Size.Kind == TrackAuto {
					tracks[i].BaseSize += free / float64(autos)
				}
			}
		}
	}
}

func sumBase(tracks []GridTrack) float64 {
	total := 0.0
	for _, t := range tracks {
		total += t.BaseSize
	}
	return total
}

// trackOffsets returns each track's start and the total grid extent.
func trackOffsets(tracks []GridTrack, available Extent, gap float64, dist SpaceDistribution) ([]float64, float64) {
	sizes := make([]float64, len(tracks))
	for i, t := range tracks {
		sizes[i] = t.BaseSize
	}
	extent := sumBase(tracks) + gap*float64(max(len(tracks)-1, 0))
	container := available.Or(extent)
	starts := DistributeSpace(container, sizes, gap, dist)
	if n := len(starts); n > 0 {
		extent = math.Max(extent, starts[n-1]+sizes[n-1])
	}
	return starts, extent
}

func cellSpan(tracks []GridTrack, starts []float64, from, to int) (float64, float64) {
	if from >= len(tracks) {
		return 0, 0
	}
	to = min(to, len(tracks))
	origin := starts[from]
	last := to - 1
	return origin, starts[last] + tracks[last].BaseSize - origin
}

// -- Grid Layout --

func (e *Engine) layoutGrid(ctx context.Context, tree Tree, styles StyleProvider, id dom.NodeID, st css.Styles, c LayoutConstraints, gen uint64) (LayoutResult, error) {
	bm := resolveBoxModel(st, c)
	box := bm.box

	var width, height Extent
	if bm.widthDefinite {
		width = Definite(box.Content.Width)
	}
	if bm.heightExplicit || bm.heightPinned() {
		height = Definite(box.Content.Height)
	}

	g, err := e.parseGridContainer(st, width)
	if err != nil {
		return LayoutResult{}, err
	}

	var items []*GridItem
	for _, child := range tree.Children(id) {
		cst, ok := styles.ComputedStyles(child)
		if !ok {
			return LayoutResult{}, gridErrorf(GridComputation, "item %d of container %d has no computed styles", child, id)
		}
		if keywordProp(cst, "display", "") == "none" {
			if _, err := e.LayoutNode(ctx, tree, styles, child, LayoutConstraints{}, gen); err != nil {
				return LayoutResult{}, err
			}
			continue
		}
		area, err := parseGridArea(cst)
		if err != nil {
			return LayoutResult{}, err
		}
		items = append(items, &GridItem{
			Node:        child,
			Order:       intProp(cst, "order", 0),
			Area:        area,
			style:       cst,
			edges:       resolveBoxModel(cst, LayoutConstraints{}).box,
			justifySelf: parseItemAlignment(keywordProp(cst, "justify-self", "auto"), AlignAuto),
			alignSelf:   parseItemAlignment(keywordProp(cst, "align-self", "auto"), AlignAuto),
			widthAuto:   isAuto(cst, "width"),
			heightAuto:  isAuto(cst, "height"),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })

	if err := placeItems(g, items); err != nil {
		return LayoutResult{}, err
	}

	// Columns first, from each item's unconstrained size.
	for _, it := range items {
		r, err := e.LayoutNode(ctx, tree, styles, it.Node, LayoutConstraints{}, gen)
		if err != nil {
			return LayoutResult{}, err
		}
		it.natural = r
		it.contribution[Horizontal] = r.naturalSize(Horizontal) + it.edges.Static(Horizontal)
	}
	sizeTracks(g.Columns, items, Horizontal, width, g.ColumnGap, g.JustifyContent)
	colStarts, gridWidth := trackOffsets(g.Columns, width, g.ColumnGap, g.JustifyContent)

	// Rows from each item's height at its column width.
	for _, it := range items {
		_, cellW := cellSpan(g.Columns, colStarts, it.Resolved.ColumnStart, it.Resolved.ColumnEnd)
		r, err := e.LayoutNode(ctx, tree, styles, it.Node, LayoutConstraints{AvailableWidth: Definite(cellW)}, gen)
		if err != nil {
			return LayoutResult{}, err
		}
		it.contribution[Vertical] = r.naturalSize(Vertical) + it.edges.Static(Vertical)
	}
	sizeTracks(g.Rows, items, Vertical, height, g.RowGap, g.AlignContent)
	rowStarts, gridHeight := trackOffsets(g.Rows, height, g.RowGap, g.AlignContent)

	overflow := false
	for _, it := range items {
		cellX, cellW := cellSpan(g.Columns, colStarts, it.Resolved.ColumnStart, it.Resolved.ColumnEnd)
		cellY, cellH := cellSpan(g.Rows, rowStarts, it.Resolved.RowStart, it.Resolved.RowEnd)

		justify := it.justifySelf
		if justify == AlignAuto || justify == AlignBaseline {
			justify = g.JustifyItems
		}
		align := it.alignSelf
		if align == AlignAuto || align == AlignBaseline {
			align = g.AlignItems
		}

		cons := LayoutConstraints{AvailableWidth: Definite(cellW), AvailableHeight: Definite(cellH)}
		if it.widthAuto {
			w := math.Max(0, cellW-it.edges.Static(Horizontal))
			if justify != AlignStretch {
				w = math.Min(w, it.natural.naturalSize(Horizontal))
			}
			cons = cons.fixed(Horizontal, w, cellW)
		}
		if it.heightAuto && align == AlignStretch {
			cons = cons.fixed(Vertical, math.Max(0, cellH-it.edges.Static(Vertical)), cellH)
		}
		r, err := e.LayoutNode(ctx, tree, styles, it.Node, cons, gen)
		if err != nil {
			return LayoutResult{}, err
		}

		x := cellX + alignOffset(justify, cellW, r.Box.Outer(Horizontal))
		y := cellY + alignOffset(align, cellH, r.Box.Outer(Vertical))
		placed, ok := e.cache.place(it.Node, gen, x, y)
		if !ok {
			placed = r
			placed.Box.MoveTo(x, y)
		}
		it.Result = placed
		if placed.ChildrenOverflow {
			overflow = true
		}
	}

	box.Content.Width = bm.autoWidth(gridWidth)
	box.Content.Height = bm.autoHeight(gridHeight)
	if gridWidth > box.Content.Width+constraintEpsilon || gridHeight > box.Content.Height+constraintEpsilon {
		overflow = true
	}

	return LayoutResult{
		Box:              box,
		Baseline:         Definite(box.Content.Y + box.Content.Height),
		IntrinsicWidth:   sumBase(g.Columns) + g.ColumnGap*float64(max(len(g.Columns)-1, 0)),
		IntrinsicHeight:  sumBase(g.Rows) + g.RowGap*float64(max(len(g.Rows)-1, 0)),
		ChildrenOverflow: overflow,
	}, nil
}

func alignOffset(a ItemAlignment, cell, outer float64) float64 {
	switch a {
	case AlignEnd:
		return cell - outer
	case AlignCenter:
		return (cell - outer) / 2
	}
	return 0
}
