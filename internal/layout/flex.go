// internal/layout/flex.go
package layout

import (
	"context"
	"math"
	"sort"

	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// FlexDirection is the flex-direction property.
type FlexDirection int

const (
	FlexRow FlexDirection = iota
	FlexRowReverse
	FlexColumn
	FlexColumnReverse
)

// MainAxis returns the axis items are laid out along.
func (d FlexDirection) MainAxis() Axis {
	if d == FlexColumn || d == FlexColumnReverse {
		return Vertical
	}
	return Horizontal
}

// Reversed reports whether items run from the main end.
func (d FlexDirection) Reversed() bool {
	return d == FlexRowReverse || d == FlexColumnReverse
}

// FlexWrap is the flex-wrap property.
type FlexWrap int

const (
	NoWrap FlexWrap = iota
	Wrap
	WrapReverse
)

// ItemAlignment covers align-items and align-self.
type ItemAlignment int

const (
	AlignAuto ItemAlignment = iota
	AlignStart
	AlignEnd
	AlignCenter
	AlignBaseline
	AlignStretch
)

func parseItemAlignment(keyword string, def ItemAlignment) ItemAlignment {
	switch keyword {
	case "auto":
		return AlignAuto
	case "flex-start", "start", "self-start":
		return AlignStart
	case "flex-end", "end", "self-end":
		return AlignEnd
	case "center":
		return AlignCenter
	case "baseline", "first baseline":
		return AlignBaseline
	case "stretch", "normal":
		return AlignStretch
	}
	return def
}

// FlexContainer holds the container properties of one flex layout.
type FlexContainer struct {
	Direction      FlexDirection
	Wrap           FlexWrap
	JustifyContent SpaceDistribution
	AlignItems     ItemAlignment
	AlignContent   SpaceDistribution
	RowGap         float64
	ColumnGap      float64
}

// MainGap is the gap between items on a line.
func (fc FlexContainer) MainGap() float64 {
	if fc.Direction.MainAxis() == Horizontal {
		return fc.ColumnGap
	}
	return fc.RowGap
}

// CrossGap is the gap between lines.
func (fc FlexContainer) CrossGap() float64 {
	if fc.Direction.MainAxis() == Horizontal {
		return fc.RowGap
	}
	return fc.ColumnGap
}

// FlexItem is the working state of one item during a flex layout.
type FlexItem struct {
	Node      dom.NodeID
	Grow      float64
	Shrink    float64
	Basis     Extent
	AlignSelf ItemAlignment
	Order     int

	FlexBaseSize         float64
	HypotheticalMainSize float64
	TargetMainSize       float64
	CrossSize            float64
	Result               LayoutResult

	style             css.Styles
	mainStatic        float64
	crossStatic       float64
	minMain, minCross float64
	maxMain, maxCross Extent
	crossAuto         bool
	alignment         ItemAlignment
	baselineAbove     float64
}

func (it *FlexItem) outerHypothetical() float64 { return it.HypotheticalMainSize + it.mainStatic }
func (it *FlexItem) outerTarget() float64       { return it.TargetMainSize + it.mainStatic }

// FlexLine is a run of items that share a cross size.
type FlexLine struct {
	Items     []*FlexItem
	MainSize  float64
	CrossSize float64
	Baseline  float64
}

// parseFlexContainer reads container properties. Gap percentages resolve
// against basis when it is definite.
func parseFlexContainer(st css.Styles, basis Extent) FlexContainer {
	fc := FlexContainer{
		JustifyContent: parseSpaceDistribution(keywordProp(st, "justify-content", "flex-start"), DistributeStart),
		AlignItems:     parseItemAlignment(keywordProp(st, "align-items", "stretch"), AlignStretch),
		AlignContent:   parseSpaceDistribution(keywordProp(st, "align-content", "stretch"), DistributeStretch),
	}
	if fc.AlignItems == AlignAuto {
		fc.AlignItems = AlignStretch
	}
	if fc.JustifyContent == DistributeStretch {
		fc.JustifyContent = DistributeStart
	}
	switch keywordProp(st, "flex-direction", "row") {
	case "row-reverse":
		fc.Direction = FlexRowReverse
	case "column":
		fc.Direction = FlexColumn
	case "column-reverse":
		fc.Direction = FlexColumnReverse
	}
	switch keywordProp(st, "flex-wrap", "nowrap") {
	case "wrap":
		fc.Wrap = Wrap
	case "wrap-reverse":
		fc.Wrap = WrapReverse
	}
	fc.RowGap, fc.ColumnGap = parseGaps(st, basis)
	return fc
}

// parseGaps reads row-gap and column-gap, back-filling unset longhands from
// gap. A two-value gap sets the row gap then the column gap.
func parseGaps(st css.Styles, basis Extent) (row, column float64) {
	rowGap := lengthProp(st, "row-gap", basis)
	colGap := lengthProp(st, "column-gap", basis)
	if !rowGap.Valid || !colGap.Valid {
		if v, err := st.Value("gap"); err == nil {
			var r, c Extent
			if v.Kind == css.KindList && len(v.Items) >= 2 {
				r, c = pixels(v.Items[0], basis), pixels(v.Items[1], basis)
			} else {
				r = pixels(v, basis)
				c = r
			}
			if !rowGap.Valid {
				rowGap = r
			}
			if !colGap.Valid {
				colGap = c
			}
		}
	}
	return math.Max(0, rowGap.Or(0)), math.Max(0, colGap.Or(0))
}

func sizeProp(axis Axis) string {
	if axis == Horizontal {
		return "width"
	}
	return "height"
}

// -- Flex Layout --

func (e *Engine) layoutFlex(ctx context.Context, tree Tree, styles StyleProvider, id dom.NodeID, st css.Styles, c LayoutConstraints, gen uint64) (LayoutResult, error) {
	bm := resolveBoxModel(st, c)
	box := bm.box
	heightDefinite := bm.heightExplicit || bm.heightPinned()

	var widthExt, heightExt Extent
	if bm.widthDefinite {
		widthExt = Definite(box.Content.Width)
	}
	if heightDefinite {
		heightExt = Definite(box.Content.Height)
	}

	fc := parseFlexContainer(st, widthExt)
	mainAxis := fc.Direction.MainAxis()
	crossAxis := mainAxis.Cross()
	containerMain, containerCross := widthExt, heightExt
	if mainAxis == Vertical {
		containerMain, containerCross = heightExt, widthExt
	}

	items, err := e.collectFlexItems(ctx, tree, styles, id, containerMain, containerCross, mainAxis, gen)
	if err != nil {
		return LayoutResult{}, err
	}

	// Line breaking runs against the definite main size, or at infinity.
	mainGap, crossGap := fc.MainGap(), fc.CrossGap()
	available := math.Inf(1)
	if containerMain.Valid {
		available = containerMain.Value
	}
	lines := breakFlexLines(items, fc.Wrap, available, mainGap)

	intrinsicMain := 0.0
	for _, line := range lines {
		intrinsicMain = math.Max(intrinsicMain, lineOuterHypothetical(line, mainGap))
	}
	mainSize := containerMain.Value
	if !containerMain.Valid {
		if mainAxis == Horizontal {
			mainSize = bm.autoWidth(intrinsicMain)
		} else {
			mainSize = bm.autoHeight(intrinsicMain)
		}
	}

	for _, line := range lines {
		resolveFlexibleLengths(line, mainSize, mainGap)
	}

	// Cross size of each item with its main size fixed.
	for _, it := range items {
		cons := LayoutConstraints{}.fixed(mainAxis, it.TargetMainSize, it.outerTarget())
		if crossAxis == Vertical && containerCross.Valid {
			cons.AvailableHeight = containerCross
		}
		r, err := e.LayoutNode(ctx, tree, styles, it.Node, cons, gen)
		if err != nil {
			return LayoutResult{}, err
		}
		it.Result = r
		it.CrossSize = ClampSize(r.naturalSize(crossAxis), it.minCross, it.maxCross)
		it.alignment = it.AlignSelf
		if it.alignment == AlignAuto {
			it.alignment = fc.AlignItems
		}
		if it.alignment == AlignBaseline && mainAxis != Horizontal {
			it.alignment = AlignStart
		}
	}

	for _, line := range lines {
		sizeFlexLineCross(line)
	}
	if fc.Wrap == NoWrap && containerCross.Valid && len(lines) == 1 {
		lines[0].CrossSize = containerCross.Value
	}

	totalCross := crossGap * float64(max(len(lines)-1, 0))
	for _, line := range lines {
		totalCross += line.CrossSize
	}
	crossSize := containerCross.Value
	if !containerCross.Valid {
		if crossAxis == Vertical {
			crossSize = bm.autoHeight(totalCross)
		} else {
			crossSize = bm.autoWidth(totalCross)
		}
	}

	lineOffsets := alignFlexLines(lines, fc, crossSize, crossGap)

	// Stretch and fit-content items are re-measured with the cross size fixed.
	for _, line := range lines {
		for _, it := range line.Items {
			target := it.CrossSize
			if it.alignment == AlignStretch && it.crossAuto {
				target = ClampSize(math.Max(0, line.CrossSize-it.crossStatic), it.minCross, it.maxCross)
			}
			if math.Abs(it.Result.Box.Size(crossAxis)-target) <= constraintEpsilon {
				continue
			}
			cons := LayoutConstraints{}.
				fixed(mainAxis, it.TargetMainSize, it.outerTarget()).
				fixed(crossAxis, target, target+it.crossStatic)
			r, err := e.LayoutNode(ctx, tree, styles, it.Node, cons, gen)
			if err != nil {
				return LayoutResult{}, err
			}
			it.Result = r
			it.CrossSize = target
		}
	}

	// Positioning.
	overflow := false
	baseline := Extent{}
	for li, line := range lines {
		sizes := make([]float64, len(line.Items))
		used := mainGap * float64(max(len(line.Items)-1, 0))
		for i, it := range line.Items {
			sizes[i] = it.outerTarget()
			used += sizes[i]
		}
		if used > mainSize+constraintEpsilon {
			overflow = true
		}
		positions := DistributeSpace(mainSize, sizes, mainGap, fc.JustifyContent)

		lineStart := lineOffsets[li]
		if fc.Wrap == WrapReverse {
			lineStart = crossSize - lineStart - line.CrossSize
		}

		for i, it := range line.Items {
			mainPos := positions[i]
			if fc.Direction.Reversed() {
				mainPos = mainSize - mainPos - sizes[i]
			}
			outerCross := it.Result.Box.Outer(crossAxis)
			crossPos := lineStart
			switch it.alignment {
			case AlignEnd:
				crossPos += line.CrossSize - outerCross
			case AlignCenter:
				crossPos += (line.CrossSize - outerCross) / 2
			case AlignBaseline:
				crossPos += line.Baseline - it.baselineAbove
			}

			x, y := mainPos, crossPos
			if mainAxis == Vertical {
				x, y = crossPos, mainPos
			}
			placed, ok := e.cache.place(it.Node, gen, x, y)
			if !ok {
				placed = it.Result
				placed.Box.MoveTo(x, y)
			}
			it.Result = placed
			if placed.ChildrenOverflow {
				overflow = true
			}
			if !baseline.Valid && li == 0 {
				if b := placed.Baseline; b.Valid {
					baseline = Definite(box.Content.Y + y + b.Value)
				}
			}
		}
	}
	if totalCross > crossSize+constraintEpsilon {
		overflow = true
	}

	box.SetSize(mainAxis, mainSize)
	box.SetSize(crossAxis, crossSize)
	if !baseline.Valid {
		baseline = Definite(box.Content.Y + box.Content.Height)
	}

	result := LayoutResult{
		Box:              box,
		Baseline:         baseline,
		IntrinsicWidth:   intrinsicMain,
		IntrinsicHeight:  totalCross,
		ChildrenOverflow: overflow,
	}
	if mainAxis == Vertical {
		result.IntrinsicWidth, result.IntrinsicHeight = totalCross, intrinsicMain
	}
	return result, nil
}

// collectFlexItems reads item properties, orders the items and computes
// their flex base and hypothetical main sizes.
func (e *Engine) collectFlexItems(ctx context.Context, tree Tree, styles StyleProvider, id dom.NodeID, containerMain, containerCross Extent, mainAxis Axis, gen uint64) ([]*FlexItem, error) {
	crossAxis := mainAxis.Cross()
	var items []*FlexItem
	for _, child := range tree.Children(id) {
		st, ok := styles.ComputedStyles(child)
		if !ok {
			return nil, flexErrorf(FlexComputation, "item %d of container %d has no computed styles", child, id)
		}
		if keywordProp(st, "display", "") == "none" {
			if _, err := e.LayoutNode(ctx, tree, styles, child, LayoutConstraints{}, gen); err != nil {
				return nil, err
			}
			continue
		}

		it := &FlexItem{
			Node:      child,
			Grow:      numberProp(st, "flex-grow", 0),
			Shrink:    numberProp(st, "flex-shrink", 0),
			AlignSelf: parseItemAlignment(keywordProp(st, "align-self", "auto"), AlignAuto),
			Order:     intProp(st, "order", 0),
			style:     st,
			crossAuto: isAuto(st, sizeProp(crossAxis)),
		}
		if it.Grow < 0 || math.IsNaN(it.Grow) {
			return nil, flexErrorf(InvalidFlexValue, "negative flex-grow %v on item %d", it.Grow, child)
		}
		if it.Shrink < 0 || math.IsNaN(it.Shrink) {
			return nil, flexErrorf(InvalidFlexValue, "negative flex-shrink %v on item %d", it.Shrink, child)
		}
		if v, err := st.Value("flex-basis"); err == nil {
			it.Basis = pixels(v, containerMain)
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })

	for _, it := range items {
		edges := resolveBoxModel(it.style, LayoutConstraints{})
		it.mainStatic = edges.box.Static(mainAxis)
		it.crossStatic = edges.box.Static(crossAxis)

		mainBase, crossBase := containerMain, containerCross
		it.minMain = lengthProp(it.style, "min-"+sizeProp(mainAxis), mainBase).Or(0)
		it.maxMain = lengthProp(it.style, "max-"+sizeProp(mainAxis), mainBase)
		it.minCross = lengthProp(it.style, "min-"+sizeProp(crossAxis), crossBase).Or(0)
		it.maxCross = lengthProp(it.style, "max-"+sizeProp(crossAxis), crossBase)

		switch {
		case it.Basis.Valid:
			it.FlexBaseSize = it.Basis.Value
		case lengthProp(it.style, sizeProp(mainAxis), mainBase).Valid:
			size := lengthProp(it.style, sizeProp(mainAxis), mainBase).Value
			if keywordProp(it.style, "box-sizing", "content-box") == "border-box" {
				size -= edges.box.Padding.Sum(mainAxis) + edges.box.Border.Sum(mainAxis)
			}
			it.FlexBaseSize = math.Max(0, size)
		default:
			cons := LayoutConstraints{}
			if mainAxis == Vertical && containerCross.Valid {
				cons.AvailableWidth = containerCross
			}
			r, err := e.LayoutNode(ctx, tree, styles, it.Node, cons, gen)
			if err != nil {
				return nil, err
			}
			it.FlexBaseSize = r.naturalSize(mainAxis)
		}
		if math.IsNaN(it.FlexBaseSize) || math.IsInf(it.FlexBaseSize, 0) {
			return nil, flexErrorf(ItemSizing, "non-finite base size for item %d", it.Node)
		}
		it.HypotheticalMainSize = ClampSize(it.FlexBaseSize, it.minMain, it.maxMain)
		it.TargetMainSize = it.HypotheticalMainSize
	}
	return items, nil
}

// breakFlexLines collects items into lines. Every line holds at least one item.
func breakFlexLines(items []*FlexItem, wrap FlexWrap, available, gap float64) []*FlexLine {
	if len(items) == 0 {
		return nil
	}
	if wrap == NoWrap {
		return []*FlexLine{{Items: items}}
	}
	var lines []*FlexLine
	current := &FlexLine{}
	used := 0.0
	for _, it := range items {
		outer := it.outerHypothetical()
		if len(current.Items) > 0 && used+gap+outer > available+constraintEpsilon {
			lines = append(lines, current)
			current = &FlexLine{}
			used = 0
		}
		if len(current.Items) > 0 {
			used += gap
		}
		used += outer
		current.Items = append(current.Items, it)
	}
	return append(lines, current)
}

func lineOuterHypothetical(line *FlexLine, gap float64) float64 {
	total := gap * float64(max(len(line.Items)-1, 0))
	for _, it := range line.Items {
		total += it.outerHypothetical()
	}
	return total
}

// resolveFlexibleLengths distributes free space in a single round. Growth is
// proportional to flex-grow; shrinking is proportional to flex-shrink times
// the base size and never goes below zero. Min and max sizes are applied
// afterwards without redistributing what they absorb.
func resolveFlexibleLengths(line *FlexLine, mainSize, gap float64) {
	line.MainSize = mainSize
	free := mainSize - lineOuterHypothetical(line, gap)

	var totalGrow, totalScaledShrink float64
	for _, it := range line.Items {
		totalGrow += it.Grow
		totalScaledShrink += it.Shrink * it.FlexBaseSize
	}

	for _, it := range line.Items {
		target := it.HypotheticalMainSize
		switch {
		case free > 0 && totalGrow > 0:
			target += free * it.Grow / totalGrow
		case free < 0 && totalScaledShrink > 0:
			target += free * (it.Shrink * it.FlexBaseSize) / totalScaledShrink
		}
		it.TargetMainSize = ClampSize(math.Max(0, target), it.minMain, it.maxMain)
	}
}

// sizeFlexLineCross sets the line's cross size from its items, taking
// baseline-aligned items' shared baseline into account.
func sizeFlexLineCross(line *FlexLine) {
	var maxOuter, maxAbove, maxBelow float64
	for _, it := range line.Items {
		outer := it.CrossSize + it.crossStatic
		maxOuter = math.Max(maxOuter, outer)
		if it.alignment == AlignBaseline {
			it.baselineAbove = it.Result.Baseline.Or(outer)
			maxAbove = math.Max(maxAbove, it.baselineAbove)
			maxBelow = math.Max(maxBelow, outer-it.baselineAbove)
		}
	}
	line.Baseline = maxAbove
	line.CrossSize = math.Max(maxOuter, maxAbove+maxBelow)
}

// alignFlexLines applies align-content and returns each line's cross offset.
// Stretch grows the lines; single-line containers are left alone.
func alignFlexLines(lines []*FlexLine, fc FlexContainer, crossSize, gap float64) []float64 {
	sizes := make([]float64, len(lines))
	for i, line := range lines {
		sizes[i] = line.CrossSize
	}
	if fc.Wrap == NoWrap || len(lines) == 0 {
		return DistributeSpace(crossSize, sizes, gap, DistributeStart)
	}
	if fc.AlignContent == DistributeStretch {
		used := gap * float64(len(lines)-1)
		for _, s := range sizes {
			used += s
		}
		if free := crossSize - used; free > 0 {
			extra := free / float64(len(lines))
			for i, line := range lines {
				line.CrossSize += extra
				sizes[i] = line.CrossSize
			}
		}
	}
	return DistributeSpace(crossSize, sizes, gap, fc.AlignContent)
}
