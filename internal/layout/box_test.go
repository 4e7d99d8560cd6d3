// internal/layout/box_test.go
package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scalpel-layout/internal/css"
)

func TestResolveBoxModel(t *testing.T) {
	avail := LayoutConstraints{AvailableWidth: Definite(200)}

	t.Run("Fills available width", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"padding-left":      css.Length(10),
			"border-left-width": css.Length(2),
			"margin-right":      css.Length(8),
		}, avail)
		assert.Equal(t, 180.0, bm.box.Content.Width)
		assert.Equal(t, 12.0, bm.box.Content.X)
		assert.True(t, bm.widthDefinite)
		assert.False(t, bm.widthExplicit)
		assert.Zero(t, bm.box.Content.Height, "height never fills")
	})

	t.Run("Unconstrained width is zero", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{}, LayoutConstraints{})
		assert.Zero(t, bm.box.Content.Width)
		assert.False(t, bm.widthDefinite)
	})

	t.Run("Percentages resolve against available width", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"width":        css.Percentage(50),
			"padding-left": css.Percentage(10),
			"margin-top":   css.Percentage(5),
		}, avail)
		assert.Equal(t, 100.0, bm.box.Content.Width)
		assert.Equal(t, 20.0, bm.box.Padding.Left)
		assert.Equal(t, 10.0, bm.box.Margin.Top)
	})

	t.Run("Auto margins center an explicit width", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"width":        css.Length(100),
			"margin-left":  css.Auto(),
			"margin-right": css.Auto(),
		}, avail)
		assert.Equal(t, 50.0, bm.box.Margin.Left)
		assert.Equal(t, 50.0, bm.box.Margin.Right)
		assert.Equal(t, 50.0, bm.box.Content.X)
	})

	t.Run("Unset margins are zero, not auto", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{"width": css.Length(100)}, avail)
		assert.Zero(t, bm.box.Margin.Left)
		assert.Zero(t, bm.box.Margin.Right)
	})

	t.Run("Border box sizing", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"box-sizing":         css.Keyword("border-box"),
			"width":              css.Length(100),
			"padding-left":       css.Length(10),
			"padding-right":      css.Length(10),
			"border-left-width":  css.Length(5),
			"border-right-width": css.Length(5),
		}, avail)
		assert.Equal(t, 70.0, bm.box.Content.Width)
		assert.Equal(t, 100.0, bm.box.BorderBox().Width)
	})

	t.Run("Border styles and keywords", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"border-top-width":    css.Length(4),
			"border-top-style":    css.Keyword("none"),
			"border-left-width":   css.Keyword("thin"),
			"border-right-width":  css.Keyword("thick"),
			"border-bottom-width": css.Length(2),
		}, avail)
		assert.Equal(t, Edges{Top: 0, Right: 5, Bottom: 2, Left: 1}, bm.box.Border)
	})

	t.Run("Min wins over max", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"width":     css.Length(500),
			"max-width": css.Length(300),
		}, avail)
		assert.Equal(t, 300.0, bm.box.Content.Width)

		bm = resolveBoxModel(styleMap{
			"width":     css.Length(500),
			"max-width": css.Length(300),
			"min-width": css.Length(400),
		}, avail)
		assert.Equal(t, 400.0, bm.box.Content.Width)
	})

	t.Run("Negative edges are floored", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{
			"margin-left": css.Length(-20),
			"padding-top": css.Length(-3),
		}, avail)
		assert.Zero(t, bm.box.Margin.Left)
		assert.Zero(t, bm.box.Padding.Top)
		assert.True(t, bm.box.IsNested())
	})

	t.Run("Pinned constraints make the width definite", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{}, LayoutConstraints{}.fixed(Horizontal, 42, 42))
		assert.True(t, bm.widthDefinite)
		assert.Equal(t, 42.0, bm.box.Content.Width)

		bm = resolveBoxModel(styleMap{}, LayoutConstraints{}.fixed(Vertical, 9, 9))
		assert.True(t, bm.heightPinned())
		assert.Equal(t, 9.0, bm.autoHeight(100))
	})

	t.Run("Auto height clamps content", func(t *testing.T) {
		bm := resolveBoxModel(styleMap{"max-height": css.Length(30)}, avail)
		assert.Equal(t, 30.0, bm.autoHeight(80))
		bm = resolveBoxModel(styleMap{"height": css.Length(10)}, avail)
		assert.Equal(t, 10.0, bm.autoHeight(80), "explicit height ignores content")
	})
}

func TestPropertyHelpers(t *testing.T) {
	st := styleMap{
		"flex-grow":      css.Integer(2),
		"flex-shrink":    css.Number(0.5),
		"order":          css.Integer(-1),
		"grid-auto-flow": css.List(css.Keyword("row"), css.Keyword("dense")),
		"width":          css.Auto(),
	}
	assert.Equal(t, 2.0, numberProp(st, "flex-grow", 0))
	assert.Equal(t, 0.5, numberProp(st, "flex-shrink", 0))
	assert.Equal(t, 7.0, numberProp(st, "missing", 7))
	assert.Equal(t, -1, intProp(st, "order", 0))
	assert.Equal(t, "row dense", keywordProp(st, "grid-auto-flow", ""))
	assert.Equal(t, "auto", keywordProp(st, "width", ""))
	assert.True(t, isAuto(st, "width"))
	assert.True(t, isAuto(st, "height"))
	assert.True(t, isExplicitAuto(st, "width"))
	assert.False(t, isExplicitAuto(st, "height"))
	assert.False(t, lengthProp(st, "width", Definite(10)).Valid)
}
