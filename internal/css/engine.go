// internal/css/engine.go
package css

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xkilldash9x/scalpel-layout/internal/dom"
	"go.uber.org/zap"
)

// ErrPropertyNotSet is returned for properties with no computed value.
var ErrPropertyNotSet = errors.New("property not set")

// Styles is the read side of a node's computed style.
type Styles interface {
	Value(property string) (Value, error)
}

// ComputedStyles maps property names to computed values. Once published by a
// StyleEngine it is never mutated, so readers need no locking.
type ComputedStyles struct {
	props map[string]Value
}

// NewComputedStyles returns an empty style set.
func NewComputedStyles() *ComputedStyles {
	return &ComputedStyles{props: make(map[string]Value)}
}

// Value returns the computed value of a property.
func (c *ComputedStyles) Value(property string) (Value, error) {
	if v, ok := c.props[property]; ok {
		return v, nil
	}
	return Value{}, fmt.Errorf("%s: %w", property, ErrPropertyNotSet)
}

// Properties lists the set properties in sorted order.
func (c *ComputedStyles) Properties() []string {
	names := make([]string, 0, len(c.props))
	for name := range c.props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *ComputedStyles) clone() *ComputedStyles {
	out := &ComputedStyles{props: make(map[string]Value, len(c.props)+1)}
	for k, v := range c.props {
		out.props[k] = v
	}
	return out
}

// blockElements get display:block from the user agent sheet. Everything
// else not listed is inline.
var blockElements = map[string]string{
	"html": "block", "body": "block", "div": "block", "p": "block",
	"section": "block", "article": "block", "header": "block", "footer": "block",
	"main": "block", "nav": "block", "aside": "block", "form": "block",
	"ul": "block", "ol": "block", "li": "block", "pre": "block",
	"blockquote": "block", "figure": "block", "h1": "block", "h2": "block",
	"h3": "block", "h4": "block", "h5": "block", "h6": "block",
	"table": "table", "tr": "table-row", "td": "table-cell", "th": "table-cell",
	"button": "inline-block", "img": "inline-block",
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32,
}

// StyleEngine holds computed styles per node. It is a deliberately small
// cascade: user agent display defaults, stylesheet rules by specificity and
// source order, then the style attribute.
type StyleEngine struct {
	mu     sync.RWMutex
	styles map[dom.NodeID]*ComputedStyles
	base   ParseContext
	logger *zap.Logger
}

// NewStyleEngine creates an engine resolving relative units against base.
func NewStyleEngine(logger *zap.Logger, base ParseContext) *StyleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base.FontSize <= 0 {
		base.FontSize = 16
	}
	if base.RootFontSize <= 0 {
		base.RootFontSize = base.FontSize
	}
	return &StyleEngine{
		styles: make(map[dom.NodeID]*ComputedStyles),
		base:   base,
		logger: logger.With(zap.String("component", "style_engine")),
	}
}

// ComputedStyles returns the computed style for id.
func (e *StyleEngine) ComputedStyles(id dom.NodeID) (Styles, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cs, ok := e.styles[id]
	if !ok {
		return nil, false
	}
	return cs, true
}

// Set assigns a single property, creating the node's styles if needed.
func (e *StyleEngine) Set(id dom.NodeID, property string, v Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.current(id).clone()
	next.props[property] = v
	e.styles[id] = next
}

// SetDeclarations parses `prop: value; ...` text and merges it into the
// node's styles, expanding shorthands.
func (e *StyleEngine) SetDeclarations(id dom.NodeID, text string) error {
	decls := ParseInline(text)
	if len(decls) == 0 && strings.TrimSpace(text) != "" {
		return fmt.Errorf("no valid declarations in %q", text)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.current(id).clone()
	ctx := e.base
	if fs, ok := next.props["font-size"]; ok && fs.Kind == KindLength {
		ctx.FontSize = fs.Num
	}
	var errs []error
	for _, d := range decls {
		if err := applyDeclaration(next, d, ctx); err != nil {
			errs = append(errs, err)
		}
	}
	e.styles[id] = next
	return errors.Join(errs...)
}

// Remove drops the styles of id.
func (e *StyleEngine) Remove(id dom.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.styles, id)
}

// current must be called with the lock held.
func (e *StyleEngine) current(id dom.NodeID) *ComputedStyles {
	if cs, ok := e.styles[id]; ok {
		return cs
	}
	return NewComputedStyles()
}

type matchedRule struct {
	decl        Declaration
	a, b, c     int
	order       int
	fromElement bool
}

// Apply computes styles for every node of doc, replacing what was there.
// Declarations that fail to parse are logged and skipped.
func (e *StyleEngine) Apply(doc *dom.Document, sheets ...StyleSheet) {
	root, ok := doc.Root()
	if !ok {
		return
	}

	computed := make(map[dom.NodeID]*ComputedStyles, doc.Len())
	var visit func(id dom.NodeID, parent *ComputedStyles, parentFont float64)
	visit = func(id dom.NodeID, parent *ComputedStyles, parentFont float64) {
		cs := NewComputedStyles()

		if _, isText := doc.TextContent(id); isText {
			cs.props["display"] = Keyword("inline")
			cs.props["font-size"] = Length(parentFont)
			if parent != nil {
				if lh, ok := parent.props["line-height"]; ok {
					cs.props["line-height"] = lh
				}
			}
			computed[id] = cs
			return
		}

		display := "inline"
		if d, ok := blockElements[doc.Tag(id)]; ok {
			display = d
		}
		cs.props["display"] = Keyword(display)

		decls := e.cascade(doc, id, sheets)

		font := parentFont
		for _, d := range decls {
			if d.Property == "font-size" {
				font = resolveFontSize(d.Value, parentFont, e.base)
			}
		}
		cs.props["font-size"] = Length(font)
		if parent != nil {
			if lh, ok := parent.props["line-height"]; ok {
				cs.props["line-height"] = lh
			}
		}

		ctx := e.base
		ctx.FontSize = font
		for _, d := range decls {
			if d.Property == "font-size" {
				continue
			}
			if err := applyDeclaration(cs, d, ctx); err != nil {
				e.logger.Debug("Skipping declaration",
					zap.String("node", doc.XPath(id)),
					zap.String("property", d.Property),
					zap.Error(err))
			}
		}

		computed[id] = cs
		for _, child := range doc.Children(id) {
			visit(child, cs, font)
		}
	}
	visit(root, nil, e.base.FontSize)

	e.mu.Lock()
	e.styles = computed
	e.mu.Unlock()
}

// cascade orders the declarations that apply to id, lowest priority first.
func (e *StyleEngine) cascade(doc *dom.Document, id dom.NodeID, sheets []StyleSheet) []Declaration {
	var matched []matchedRule
	order := 0
	for _, sheet := range sheets {
		for _, rule := range sheet.Rules {
			best, hit := -1, false
			var ba, bb, bc int
			for _, sel := range rule.Selectors {
				if !Matches(doc, id, sel) {
					continue
				}
				a, b, c := sel.Specificity()
				if score := a*10000 + b*100 + c; score > best {
					best, hit = score, true
					ba, bb, bc = a, b, c
				}
			}
			if !hit {
				continue
			}
			for _, d := range rule.Declarations {
				matched = append(matched, matchedRule{decl: d, a: ba, b: bb, c: bc, order: order})
				order++
			}
		}
	}

	if inline, ok := doc.Attr(id, "style"); ok {
		for _, d := range ParseInline(inline) {
			matched = append(matched, matchedRule{decl: d, order: order, fromElement: true})
			order++
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		x, y := matched[i], matched[j]
		if x.decl.Important != y.decl.Important {
			return !x.decl.Important
		}
		if x.fromElement != y.fromElement {
			return !x.fromElement
		}
		if x.a != y.a {
			return x.a < y.a
		}
		if x.b != y.b {
			return x.b < y.b
		}
		if x.c != y.c {
			return x.c < y.c
		}
		return x.order < y.order
	})

	out := make([]Declaration, len(matched))
	for i, m := range matched {
		out[i] = m.decl
	}
	return out
}

func resolveFontSize(text string, parentFont float64, base ParseContext) float64 {
	if px, ok := fontSizeKeywords[strings.ToLower(strings.TrimSpace(text))]; ok {
		return px
	}
	ctx := base
	ctx.FontSize = parentFont
	v, err := ParseValue(text, ctx)
	if err != nil {
		return parentFont
	}
	switch v.Kind {
	case KindLength:
		if v.Num > 0 {
			return v.Num
		}
	case KindPercentage:
		return parentFont * v.Num / 100
	}
	return parentFont
}

// Matches reports whether the element id matches sel.
func Matches(doc *dom.Document, id dom.NodeID, sel ComplexSelector) bool {
	if len(sel.Parts) == 0 {
		return false
	}
	return matchFrom(doc, id, sel.Parts, len(sel.Parts)-1)
}

func matchFrom(doc *dom.Document, id dom.NodeID, parts []SelectorPart, i int) bool {
	if !matchCompound(doc, id, parts[i].Compound) {
		return false
	}
	if i == 0 {
		return true
	}
	switch parts[i].Combinator {
	case CombinatorChild:
		parent, ok := doc.Parent(id)
		return ok && matchFrom(doc, parent, parts, i-1)
	default:
		for anc, ok := doc.Parent(id); ok; anc, ok = doc.Parent(anc) {
			if matchFrom(doc, anc, parts, i-1) {
				return true
			}
		}
		return false
	}
}

func matchCompound(doc *dom.Document, id dom.NodeID, s CompoundSelector) bool {
	if doc.Kind(id) != dom.ElementNode {
		return false
	}
	if s.TagName != "" && s.TagName != "*" && s.TagName != doc.Tag(id) {
		return false
	}
	if s.ID != "" {
		if v, _ := doc.Attr(id, "id"); v != s.ID {
			return false
		}
	}
	if len(s.Classes) > 0 {
		have := make(map[string]bool)
		for _, c := range doc.Classes(id) {
			have[c] = true
		}
		for _, want := range s.Classes {
			if !have[want] {
				return false
			}
		}
	}
	return true
}
