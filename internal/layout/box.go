// internal/layout/box.go
package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/scalpel-layout/internal/css"
)

// -- Box Model Resolution --

// boxModel is a resolved LayoutBox plus what the owning algorithm needs to
// know about how its content size was decided.
type boxModel struct {
	box LayoutBox

	// widthDefinite is true when the content width is known before children
	// are measured (explicit, filled from available space, or pinned).
	widthDefinite  bool
	widthExplicit  bool
	heightExplicit bool

	minWidth, minHeight float64
	maxWidth, maxHeight Extent
}

// resolveBoxModel turns computed styles into a box under constraints. It is
// a pure function: the content origin sits at (0,0) of the margin box.
func resolveBoxModel(st css.Styles, c LayoutConstraints) boxModel {
	var bm boxModel
	b := &bm.box
	base := c.AvailableWidth

	b.Padding = Edges{
		Top:    math.Max(0, lengthProp(st, "padding-top", base).Or(0)),
		Right:  math.Max(0, lengthProp(st, "padding-right", base).Or(0)),
		Bottom: math.Max(0, lengthProp(st, "padding-bottom", base).Or(0)),
		Left:   math.Max(0, lengthProp(st, "padding-left", base).Or(0)),
	}
	b.Border = Edges{
		Top:    borderWidth(st, "top"),
		Right:  borderWidth(st, "right"),
		Bottom: borderWidth(st, "bottom"),
		Left:   borderWidth(st, "left"),
	}
	b.Margin = Edges{
		Top:    math.Max(0, lengthProp(st, "margin-top", base).Or(0)),
		Right:  math.Max(0, lengthProp(st, "margin-right", base).Or(0)),
		Bottom: math.Max(0, lengthProp(st, "margin-bottom", base).Or(0)),
		Left:   math.Max(0, lengthProp(st, "margin-left", base).Or(0)),
	}

	borderBox := keywordProp(st, "box-sizing", "content-box") == "border-box"

	// Width.
	bm.minWidth = math.Max(c.MinWidth, lengthProp(st, "min-width", base).Or(0))
	bm.maxWidth = minExtent(c.MaxWidth, lengthProp(st, "max-width", base))
	width := 0.0
	if w := lengthProp(st, "width", base); w.Valid {
		width = w.Value
		if borderBox {
			width -= b.Padding.Sum(Horizontal) + b.Border.Sum(Horizontal)
		}
		width = math.Max(0, width)
		bm.widthExplicit = true
		bm.widthDefinite = true
	} else if base.Valid {
		width = CalculateAvailableSpace(base.Value, Horizontal, b)
		bm.widthDefinite = true
	}
	if pinned(c.MinWidth, c.MaxWidth) {
		bm.widthDefinite = true
	}
	width = ClampSize(width, bm.minWidth, bm.maxWidth)
	b.Content.Width = width

	// Auto horizontal margins absorb the free space of an explicit width.
	autoLeft, autoRight := isExplicitAuto(st, "margin-left"), isExplicitAuto(st, "margin-right")
	if bm.widthExplicit && base.Valid && (autoLeft || autoRight) {
		free := math.Max(0, base.Value-width-b.Padding.Sum(Horizontal)-b.Border.Sum(Horizontal)-
			b.Margin.Left-b.Margin.Right)
		switch {
		case autoLeft && autoRight:
			b.Margin.Left += free / 2
			b.Margin.Right += free / 2
		case autoLeft:
			b.Margin.Left += free
		default:
			b.Margin.Right += free
		}
	}

	// Height never fills the available space. Percentages need a definite
	// containing block height.
	hbase := c.AvailableHeight
	bm.minHeight = math.Max(c.MinHeight, lengthProp(st, "min-height", hbase).Or(0))
	bm.maxHeight = minExtent(c.MaxHeight, lengthProp(st, "max-height", hbase))
	height := 0.0
	if h := lengthProp(st, "height", hbase); h.Valid {
		height = h.Value
		if borderBox {
			height -= b.Padding.Sum(Vertical) + b.Border.Sum(Vertical)
		}
		height = math.Max(0, height)
		bm.heightExplicit = true
	}
	b.Content.Height = ClampSize(height, bm.minHeight, bm.maxHeight)

	b.Content.X = b.LeadingStatic(Horizontal)
	b.Content.Y = b.LeadingStatic(Vertical)
	return bm
}

// heightPinned reports whether the constraints fix the content height.
func (bm boxModel) heightPinned() bool {
	return bm.maxHeight.Valid && bm.minHeight >= bm.maxHeight.Value-constraintEpsilon
}

// autoHeight resolves the content height from the extent of the content
// when no explicit height is set.
func (bm boxModel) autoHeight(content float64) float64 {
	if bm.heightExplicit {
		return bm.box.Content.Height
	}
	return ClampSize(content, bm.minHeight, bm.maxHeight)
}

// autoWidth is autoHeight for the horizontal axis.
func (bm boxModel) autoWidth(content float64) float64 {
	if bm.widthDefinite {
		return bm.box.Content.Width
	}
	return ClampSize(content, bm.minWidth, bm.maxWidth)
}

func pinned(min float64, max Extent) bool {
	return max.Valid && min >= max.Value-constraintEpsilon
}

func minExtent(a, b Extent) Extent {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	default:
		return Definite(math.Min(a.Value, b.Value))
	}
}

var borderKeywordWidths = map[string]float64{
	"thin":   1,
	"medium": 3,
	"thick":  5,
}

func borderWidth(st css.Styles, side string) float64 {
	switch keywordProp(st, "border-"+side+"-style", "") {
	case "none", "hidden":
		return 0
	}
	v, err := st.Value("border-" + side + "-width")
	if err != nil {
		return 0
	}
	if v.Kind == css.KindKeyword {
		return borderKeywordWidths[v.Keyword]
	}
	return math.Max(0, pixels(v, Extent{}).Or(0))
}

// -- Property Helpers --

// pixels resolves a single value to pixels. Unitless numbers are treated as
// pixels; percentages need a definite base.
func pixels(v css.Value, base Extent) Extent {
	switch v.Kind {
	case css.KindLength, css.KindNumber:
		return Definite(v.Num)
	case css.KindInteger:
		return Definite(float64(v.Int))
	case css.KindPercentage:
		if base.Valid {
			return Definite(ResolvePercentage(v.Num, base.Value, 0))
		}
	}
	return Extent{}
}

// lengthProp reads a length property. Missing, auto and unresolvable values are unset.
func lengthProp(st css.Styles, prop string, base Extent) Extent {
	v, err := st.Value(prop)
	if err != nil {
		return Extent{}
	}
	return pixels(v, base)
}

// keywordProp reads a keyword property, returning def when it is missing.
func keywordProp(st css.Styles, prop, def string) string {
	v, err := st.Value(prop)
	if err != nil {
		return def
	}
	switch v.Kind {
	case css.KindKeyword:
		return v.Keyword
	case css.KindAuto:
		return "auto"
	case css.KindList:
		// "row dense", "column wrap" and similar compound keywords.
		parts := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			parts = append(parts, item.String())
		}
		return strings.Join(parts, " ")
	}
	return def
}

// numberProp reads a unitless number property.
func numberProp(st css.Styles, prop string, def float64) float64 {
	v, err := st.Value(prop)
	if err != nil {
		return def
	}
	if f, ok := v.Float(); ok && v.Kind != css.KindPercentage {
		return f
	}
	if v.Kind == css.KindKeyword {
		if f, err := strconv.ParseFloat(v.Keyword, 64); err == nil {
			return f
		}
	}
	return def
}

// intProp reads an integer property.
func intProp(st css.Styles, prop string, def int) int {
	v, err := st.Value(prop)
	if err != nil {
		return def
	}
	switch v.Kind {
	case css.KindInteger:
		return v.Int
	case css.KindNumber:
		return int(v.Num)
	}
	return def
}

// isExplicitAuto reports whether prop is set to auto.
func isExplicitAuto(st css.Styles, prop string) bool {
	v, err := st.Value(prop)
	return err == nil && v.Kind == css.KindAuto
}

// isAuto reports whether prop is missing or auto.
func isAuto(st css.Styles, prop string) bool {
	v, err := st.Value(prop)
	return err != nil || v.Kind == css.KindAuto
}
