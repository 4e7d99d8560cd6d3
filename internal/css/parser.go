// internal/css/parser.go
package css

import (
	"fmt"
	"strings"
)

// Declaration is a property/value pair such as `display: flex`.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// RuleSet is a group of selectors sharing a declaration block.
type RuleSet struct {
	Selectors    []ComplexSelector
	Declarations []Declaration
}

// StyleSheet is the parsed form of one <style> block or file.
type StyleSheet struct {
	Rules []RuleSet
}

// ComplexSelector is a sequence of compound selectors joined by combinators,
// e.g. "section > p.note".
type ComplexSelector struct {
	Parts []SelectorPart
}

// SelectorPart pairs a compound selector with the combinator that precedes it.
type SelectorPart struct {
	Combinator Combinator
	Compound   CompoundSelector
}

// CompoundSelector is e.g. div#main.card.wide. An empty TagName or "*" matches any tag.
type CompoundSelector struct {
	TagName string
	ID      string
	Classes []string
}

// Combinator defines the relationship between compound selectors.
type Combinator int

const (
	CombinatorNone       Combinator = iota // first part
	CombinatorDescendant                   // whitespace
	CombinatorChild                        // >
)

// Specificity returns the (ids, classes, tags) triple of the selector.
func (cs ComplexSelector) Specificity() (a, b, c int) {
	for _, p := range cs.Parts {
		if p.Compound.ID != "" {
			a++
		}
		b += len(p.Compound.Classes)
		if p.Compound.TagName != "" && p.Compound.TagName != "*" {
			c++
		}
	}
	return a, b, c
}

func (s CompoundSelector) isValid() bool {
	return s.TagName != "" || s.ID != "" || len(s.Classes) > 0
}

// Parser holds the state of the CSS parser.
type Parser struct {
	input string
	pos   int
}

func NewParser(input string) *Parser {
	return &Parser{input: input}
}

// Parse reads the whole input as a stylesheet. Malformed rules and at-rules
// are skipped.
func (p *Parser) Parse() StyleSheet {
	var rules []RuleSet
	for {
		p.consumeWhitespace()
		if p.eof() {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == '@' {
			p.skipAtRule()
			continue
		}

		selectors := p.parseSelectorList()
		if len(selectors) == 0 {
			p.skipTo('{')
			if !p.eof() {
				p.skipBlock('{', '}')
			}
			continue
		}

		declarations, err := p.parseBlock()
		if err != nil {
			continue
		}
		if len(declarations) > 0 {
			rules = append(rules, RuleSet{Selectors: selectors, Declarations: declarations})
		}
	}
	return StyleSheet{Rules: rules}
}

// ParseInline parses the body of a style="" attribute.
func ParseInline(input string) []Declaration {
	p := NewParser(input)
	var declarations []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() {
			return declarations
		}
		start := p.pos
		if d, ok := p.parseDeclaration(); ok {
			declarations = append(declarations, d)
		}
		if p.pos == start {
			// A stray '}' would otherwise stall the loop.
			p.consumeChar()
		}
	}
}

func (p *Parser) parseSelectorList() []ComplexSelector {
	var list []ComplexSelector
	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '{' {
			break
		}
		complex, ok := p.parseComplexSelector()
		if !ok {
			// One bad selector invalidates the whole list.
			return nil
		}
		list = append(list, complex)

		p.consumeWhitespace()
		if !p.eof() && p.currentChar() == ',' {
			p.consumeChar()
			continue
		}
		break
	}
	return list
}

func (p *Parser) parseComplexSelector() (ComplexSelector, bool) {
	var complex ComplexSelector
	combinator := CombinatorNone

	for {
		sawSpace := p.consumeWhitespace()
		if p.eof() || p.currentChar() == '{' || p.currentChar() == ',' {
			break
		}
		if p.currentChar() == '>' {
			p.consumeChar()
			combinator = CombinatorChild
			continue
		}
		if len(complex.Parts) > 0 && combinator == CombinatorNone && sawSpace {
			combinator = CombinatorDescendant
		}

		compound, err := p.parseCompoundSelector()
		if err != nil {
			return ComplexSelector{}, false
		}
		complex.Parts = append(complex.Parts, SelectorPart{Combinator: combinator, Compound: compound})
		combinator = CombinatorNone
	}
	return complex, len(complex.Parts) > 0
}

func (p *Parser) parseCompoundSelector() (CompoundSelector, error) {
	selector := CompoundSelector{}

	if ch := p.currentChar(); ch == '*' {
		p.consumeChar()
		selector.TagName = "*"
	} else if isValidIdentifierStart(ch) {
		selector.TagName = strings.ToLower(p.parseIdentifier())
	}

	for !p.eof() {
		switch p.currentChar() {
		case '#':
			p.consumeChar()
			selector.ID = p.parseIdentifier()
		case '.':
			p.consumeChar()
			selector.Classes = append(selector.Classes, p.parseIdentifier())
		default:
			if !selector.isValid() {
				return selector, fmt.Errorf("unsupported selector at offset %d", p.pos)
			}
			return selector, nil
		}
	}
	if !selector.isValid() {
		return selector, fmt.Errorf("empty selector")
	}
	return selector, nil
}

// parseBlock parses `{ ... }`.
func (p *Parser) parseBlock() ([]Declaration, error) {
	p.consumeWhitespace()
	if p.eof() || p.currentChar() != '{' {
		return nil, fmt.Errorf("expected '{' at start of declarations")
	}
	p.consumeChar()

	var declarations []Declaration
	for {
		p.consumeWhitespace()
		if p.eof() || p.currentChar() == '}' {
			break
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if d, ok := p.parseDeclaration(); ok {
			declarations = append(declarations, d)
		}
	}

	if !p.eof() {
		p.consumeChar() // '}'
	}
	return declarations, nil
}

// parseDeclaration parses a single 'property: value;' pair, consuming the
// trailing semicolon. ok is false for malformed input.
func (p *Parser) parseDeclaration() (d Declaration, ok bool) {
	if !isValidIdentifierStart(p.currentChar()) {
		p.skipPastDeclaration()
		return d, false
	}
	prop := p.parseIdentifier()
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ':' {
		p.skipPastDeclaration()
		return d, false
	}
	p.consumeChar()
	p.consumeWhitespace()

	val := p.parseValue()
	important := false
	if strings.HasSuffix(strings.ToLower(val), "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}

	p.consumeWhitespace()
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
	if val == "" {
		return d, false
	}
	return Declaration{Property: strings.ToLower(prop), Value: val, Important: important}, true
}

func (p *Parser) skipPastDeclaration() {
	p.skipTo(';', '}')
	if !p.eof() && p.currentChar() == ';' {
		p.consumeChar()
	}
}

// parseValue reads a value up to ';' or '}' keeping parentheses and strings intact.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if ch == ';' || ch == '}' {
			break
		}
		if ch == '"' || ch == '\'' {
			p.skipQuotedString(ch)
			continue
		}
		if ch == '(' {
			p.skipBlock('(', ')')
			continue
		}
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

// -- Lexer helpers --

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeChar() byte {
	ch := p.currentChar()
	if !p.eof() {
		p.pos++
	}
	return ch
}

// consumeWhitespace reports whether anything was skipped.
func (p *Parser) consumeWhitespace() bool {
	start := p.pos
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
	return p.pos > start
}

func (p *Parser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) skipComment() {
	p.pos += 2
	if end := strings.Index(p.input[p.pos:], "*/"); end == -1 {
		p.pos = len(p.input)
	} else {
		p.pos += end + 2
	}
}

func (p *Parser) skipTo(targets ...byte) {
	for !p.eof() {
		if strings.IndexByte(string(targets), p.currentChar()) >= 0 {
			return
		}
		p.pos++
	}
}

// skipBlock expects the opening delimiter to be consumed or current.
func (p *Parser) skipBlock(open, close byte) {
	if p.currentChar() == open {
		p.consumeChar()
	}
	depth := 1
	for !p.eof() {
		switch p.consumeChar() {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuotedString(quote byte) {
	p.consumeChar()
	for !p.eof() {
		ch := p.consumeChar()
		if ch == '\\' {
			p.consumeChar()
		} else if ch == quote {
			return
		}
	}
}

func (p *Parser) skipAtRule() {
	p.consumeChar() // '@'
	_ = p.parseIdentifier()
	for !p.eof() {
		switch p.currentChar() {
		case '{':
			p.skipBlock('{', '}')
			return
		case ';':
			p.consumeChar()
			return
		}
		p.pos++
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}
