// internal/layout/text.go
package layout

import (
	"math"
	"strings"
	"unicode/utf8"
)

// TextMetrics describes a measured run of text.
type TextMetrics struct {
	Width      float64
	Height     float64
	Ascent     float64
	Descent    float64
	LineHeight float64
	LineCount  int
	// Overflows is set when a single word is wider than the available width.
	Overflows bool
}

// TextMeasurer measures text for text nodes. Implementations must be safe
// for concurrent use.
type TextMeasurer interface {
	MeasureText(text string, fontSize, lineHeight float64, maxWidth Extent) TextMetrics
}

const (
	charWidthFactor = 0.6
	ascentFactor    = 0.8
	descentFactor   = 0.2
)

// ApproximateTextMeasurer uses a fixed average glyph width of 0.6em. It needs
// no font data and is deterministic.
type ApproximateTextMeasurer struct{}

// MeasureText implements TextMeasurer.
func (ApproximateTextMeasurer) MeasureText(text string, fontSize, lineHeight float64, maxWidth Extent) TextMetrics {
	charWidth := fontSize * charWidthFactor
	m := TextMetrics{
		Ascent:     fontSize * ascentFactor,
		Descent:    fontSize * descentFactor,
		LineHeight: lineHeight,
		LineCount:  1,
		Height:     lineHeight,
	}
	words := strings.Fields(text)

	if !maxWidth.Valid {
		m.Width = float64(runeLen(strings.Join(words, " "))) * charWidth
		return m
	}

	perLine := charsPerLine(maxWidth.Value, charWidth)
	if perLine == 0 {
		return m
	}

	lines := wrapWords(words, perLine)
	widest := 0.0
	for _, line := range lines {
		widest = math.Max(widest, float64(runeLen(line))*charWidth)
	}
	m.LineCount = max(len(lines), 1)
	m.Height = float64(m.LineCount) * lineHeight
	m.Overflows = widest > maxWidth.Value+constraintEpsilon
	m.Width = math.Min(widest, maxWidth.Value)
	return m
}

// BreakTextIntoLines greedily wraps text at word boundaries using the
// approximate glyph width. It always returns at least one line.
func BreakTextIntoLines(text string, maxWidth, fontSize float64) []string {
	perLine := charsPerLine(maxWidth, fontSize*charWidthFactor)
	if perLine == 0 {
		return []string{text}
	}
	lines := wrapWords(strings.Fields(text), perLine)
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

func charsPerLine(width, charWidth float64) int {
	if charWidth <= 0 || width <= 0 || math.IsNaN(width) {
		return 0
	}
	return int(width / charWidth)
}

func wrapWords(words []string, perLine int) []string {
	var lines []string
	var current strings.Builder
	currentLen := 0
	for _, word := range words {
		wl := runeLen(word)
		switch {
		case currentLen == 0:
			current.WriteString(word)
			currentLen = wl
		case currentLen+1+wl <= perLine:
			current.WriteByte(' ')
			current.WriteString(word)
			currentLen += 1 + wl
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			currentLen = wl
		}
	}
	if currentLen > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
