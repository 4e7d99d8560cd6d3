// internal/layout/geometry.go
package layout

import "math"

// -- Core Structures: Box Model and Dimensions --

// Axis represents the primary layout direction.
type Axis int

const (
	// Horizontal axis for layout calculations.
	Horizontal Axis = iota
	// Vertical axis for layout calculations.
	Vertical
)

// Cross returns the perpendicular axis.
func (a Axis) Cross() Axis {
	if a == Horizontal {
		return Vertical
	}
	return Horizontal
}

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

type Rect struct {
	X, Y, Width, Height float64
}

// ExpandedBy returns a new rectangle expanded by the edge sizes.
func (r Rect) ExpandedBy(e Edges) Rect {
	return Rect{
		X:      r.X - e.Left,
		Y:      r.Y - e.Top,
		Width:  r.Width + e.Left + e.Right,
		Height: r.Height + e.Top + e.Bottom,
	}
}

// Translated returns the rectangle moved by (dx, dy).
func (r Rect) Translated(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Start is an axis-agnostic helper for Rect.
func (r Rect) Start(axis Axis) float64 {
	if axis == Horizontal {
		return r.X
	}
	return r.Y
}

// Size is an axis-agnostic helper for Rect.
func (r Rect) Size(axis Axis) float64 {
	if axis == Horizontal {
		return r.Width
	}
	return r.Height
}

// Contains reports whether r fully encloses o on both axes.
func (r Rect) Contains(o Rect) bool {
	const eps = 1e-6
	return o.X >= r.X-eps && o.Y >= r.Y-eps &&
		o.X+o.Width <= r.X+r.Width+eps && o.Y+o.Height <= r.Y+r.Height+eps
}

type Edges struct {
	Top, Right, Bottom, Left float64
}

// Start is an axis-agnostic helper for Edges.
func (e Edges) Start(axis Axis) float64 {
	if axis == Horizontal {
		return e.Left
	}
	return e.Top
}

// End is an axis-agnostic helper for Edges.
func (e Edges) End(axis Axis) float64 {
	if axis == Horizontal {
		return e.Right
	}
	return e.Bottom
}

// Sum returns start + end on the axis.
func (e Edges) Sum(axis Axis) float64 {
	return e.Start(axis) + e.End(axis)
}

// LayoutBox is the geometry of one node. Content is relative to the content
// box origin of the parent.
type LayoutBox struct {
	Content Rect

	Padding Edges
	Border  Edges
	Margin  Edges
}

// MarginBox returns the rectangle enclosing the margin area.
func (b LayoutBox) MarginBox() Rect {
	return b.BorderBox().ExpandedBy(b.Margin)
}

// BorderBox returns the rectangle enclosing the border area.
func (b LayoutBox) BorderBox() Rect {
	return b.PaddingBox().ExpandedBy(b.Border)
}

// PaddingBox returns the rectangle enclosing the padding area.
func (b LayoutBox) PaddingBox() Rect {
	return b.Content.ExpandedBy(b.Padding)
}

// Size returns the content size on the axis.
func (b LayoutBox) Size(axis Axis) float64 {
	return b.Content.Size(axis)
}

// SetSize sets the content size on the axis.
func (b *LayoutBox) SetSize(axis Axis, size float64) {
	if axis == Horizontal {
		b.Content.Width = size
	} else {
		b.Content.Height = size
	}
}

// Static returns the total size occupied by margins, borders, and paddings on the axis.
func (b LayoutBox) Static(axis Axis) float64 {
	return b.Margin.Sum(axis) + b.Border.Sum(axis) + b.Padding.Sum(axis)
}

// LeadingStatic returns margin + border + padding before the content on the axis.
func (b LayoutBox) LeadingStatic(axis Axis) float64 {
	return b.Margin.Start(axis) + b.Border.Start(axis) + b.Padding.Start(axis)
}

// Outer returns the margin-box size on the axis.
func (b LayoutBox) Outer(axis Axis) float64 {
	return b.Size(axis) + b.Static(axis)
}

// MoveTo positions the box so its margin-box origin is at (x, y).
func (b *LayoutBox) MoveTo(x, y float64) {
	b.Content.X = x + b.LeadingStatic(Horizontal)
	b.Content.Y = y + b.LeadingStatic(Vertical)
}

// Translated returns the box moved by (dx, dy).
func (b LayoutBox) Translated(dx, dy float64) LayoutBox {
	b.Content = b.Content.Translated(dx, dy)
	return b
}

// ContainsPoint is a hit test against the border box.
func (b LayoutBox) ContainsPoint(x, y float64) bool {
	r := b.BorderBox()
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether the border boxes overlap. Touching edges count.
func (b LayoutBox) Intersects(other LayoutBox) bool {
	r1, r2 := b.BorderBox(), other.BorderBox()
	return !(r1.X+r1.Width < r2.X || r2.X+r2.Width < r1.X ||
		r1.Y+r1.Height < r2.Y || r2.Y+r2.Height < r1.Y)
}

// IsNested reports whether content ⊆ padding ⊆ border ⊆ margin holds.
func (b LayoutBox) IsNested() bool {
	content, padding, border, margin := b.Content, b.PaddingBox(), b.BorderBox(), b.MarginBox()
	return padding.Contains(content) && border.Contains(padding) && margin.Contains(border)
}

// -- Constraints and Results --

// Extent is an optional length. The zero value is unset.
type Extent struct {
	Value float64
	Valid bool
}

// Definite returns a set extent.
func Definite(v float64) Extent {
	return Extent{Value: v, Valid: true}
}

// Or returns the value, or fallback when unset.
func (e Extent) Or(fallback float64) float64 {
	if e.Valid {
		return e.Value
	}
	return fallback
}

const constraintEpsilon = 1e-3

func (e Extent) equal(o Extent) bool {
	if e.Valid != o.Valid {
		return false
	}
	return !e.Valid || math.Abs(e.Value-o.Value) < constraintEpsilon
}

// LayoutConstraints describe the space a node is measured in. Constraints
// are compared with a 1e-3 tolerance for cache validity.
type LayoutConstraints struct {
	AvailableWidth  Extent
	AvailableHeight Extent
	MinWidth        float64
	MinHeight       float64
	MaxWidth        Extent
	MaxHeight       Extent
	Baseline        Extent
}

// Equal reports whether two constraint sets would produce the same layout.
// The inherited baseline does not influence sizing and is ignored.
func (c LayoutConstraints) Equal(o LayoutConstraints) bool {
	return c.AvailableWidth.equal(o.AvailableWidth) &&
		c.AvailableHeight.equal(o.AvailableHeight) &&
		math.Abs(c.MinWidth-o.MinWidth) < constraintEpsilon &&
		math.Abs(c.MinHeight-o.MinHeight) < constraintEpsilon &&
		c.MaxWidth.equal(o.MaxWidth) &&
		c.MaxHeight.equal(o.MaxHeight)
}

// Available returns the available size on the axis.
func (c LayoutConstraints) Available(axis Axis) Extent {
	if axis == Horizontal {
		return c.AvailableWidth
	}
	return c.AvailableHeight
}

// fixed returns constraints that pin the content size on axis to size.
// outer is the available size handed to the node (content plus its edges).
func (c LayoutConstraints) fixed(axis Axis, size, outer float64) LayoutConstraints {
	if axis == Horizontal {
		c.AvailableWidth = Definite(outer)
		c.MinWidth = size
		c.MaxWidth = Definite(size)
	} else {
		c.AvailableHeight = Definite(outer)
		c.MinHeight = size
		c.MaxHeight = Definite(size)
	}
	return c
}

// LayoutResult is the outcome of measuring one node. Baseline is measured
// from the top of the node's margin box.
type LayoutResult struct {
	Box              LayoutBox
	Baseline         Extent
	IntrinsicWidth   float64
	IntrinsicHeight  float64
	ChildrenOverflow bool
}

// Intrinsic returns the intrinsic content size on the axis.
func (r LayoutResult) Intrinsic(axis Axis) float64 {
	if axis == Horizontal {
		return r.IntrinsicWidth
	}
	return r.IntrinsicHeight
}

// naturalSize is the larger of the laid-out content size and the intrinsic
// size, i.e. what the content wants when nothing forces it smaller.
func (r LayoutResult) naturalSize(axis Axis) float64 {
	return math.Max(r.Box.Size(axis), r.Intrinsic(axis))
}
