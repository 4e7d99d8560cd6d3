// internal/css/value.go
package css

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindLength Kind = iota
	KindPercentage
	KindKeyword
	KindAuto
	KindInteger
	KindNumber
	KindList
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindLength:
		return "length"
	case KindPercentage:
		return "percentage"
	case KindKeyword:
		return "keyword"
	case KindAuto:
		return "auto"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a computed CSS value. Lengths are in CSS pixels.
type Value struct {
	Kind    Kind
	Num     float64 // Length, Percentage, Number
	Int     int     // Integer
	Keyword string  // Keyword
	Name    string  // Function name
	Items   []Value // List items or Function args
}

func Length(px float64) Value      { return Value{Kind: KindLength, Num: px} }
func Percentage(p float64) Value   { return Value{Kind: KindPercentage, Num: p} }
func Keyword(k string) Value       { return Value{Kind: KindKeyword, Keyword: k} }
func Auto() Value                  { return Value{Kind: KindAuto} }
func Integer(i int) Value          { return Value{Kind: KindInteger, Int: i} }
func Number(f float64) Value       { return Value{Kind: KindNumber, Num: f} }
func List(items ...Value) Value    { return Value{Kind: KindList, Items: items} }
func Function(name string, args ...Value) Value {
	return Value{Kind: KindFunction, Name: name, Items: args}
}

// IsKeyword reports whether v is the keyword k.
func (v Value) IsKeyword(k string) bool {
	return v.Kind == KindKeyword && v.Keyword == k
}

// Float returns the numeric payload of numeric kinds.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindLength, KindPercentage, KindNumber:
		return v.Num, true
	case KindInteger:
		return float64(v.Int), true
	}
	return 0, false
}

// String renders v back into CSS text.
func (v Value) String() string {
	switch v.Kind {
	case KindLength:
		return formatFloat(v.Num) + "px"
	case KindPercentage:
		return formatFloat(v.Num) + "%"
	case KindKeyword:
		return v.Keyword
	case KindAuto:
		return "auto"
	case KindInteger:
		return strconv.Itoa(v.Int)
	case KindNumber:
		return formatFloat(v.Num)
	case KindList:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return strings.Join(parts, " ")
	case KindFunction:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return v.Name + "(" + strings.Join(parts, ", ") + ")"
	}
	return ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseContext supplies the references needed to turn relative units into pixels.
type ParseContext struct {
	FontSize       float64
	RootFontSize   float64
	ViewportWidth  float64
	ViewportHeight float64
}

// DefaultParseContext uses a 16px font and no viewport.
func DefaultParseContext() ParseContext {
	return ParseContext{FontSize: 16, RootFontSize: 16}
}

// ParseValue parses the text of a declaration value. Slash separated forms
// (grid-row: 1 / 3) and space separated forms become a List.
func ParseValue(text string, ctx ParseContext) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Value{}, fmt.Errorf("empty value")
	}

	if segments := splitTopLevel(text, '/'); len(segments) > 1 {
		items := make([]Value, 0, len(segments))
		for _, seg := range segments {
			v, err := parseSpaceList(seg, ctx)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items...), nil
	}
	return parseSpaceList(text, ctx)
}

func parseSpaceList(text string, ctx ParseContext) (Value, error) {
	tokens := splitTopLevelFunc(strings.TrimSpace(text), isSpace)
	if len(tokens) == 0 {
		return Value{}, fmt.Errorf("empty value")
	}
	// "span 2" is a single grid line reference.
	if len(tokens) == 2 && strings.EqualFold(tokens[0], "span") {
		return Keyword("span " + tokens[1]), nil
	}
	if len(tokens) == 1 {
		return parseToken(tokens[0], ctx)
	}
	items := make([]Value, 0, len(tokens))
	for _, tok := range tokens {
		v, err := parseToken(tok, ctx)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return List(items...), nil
}

func parseToken(tok string, ctx ParseContext) (Value, error) {
	lower := strings.ToLower(tok)

	if open := strings.IndexByte(lower, '('); open > 0 && strings.HasSuffix(lower, ")") {
		name := lower[:open]
		inner := tok[open+1 : len(tok)-1]
		var args []Value
		for _, raw := range splitTopLevel(inner, ',') {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			arg, err := parseSpaceList(raw, ctx)
			if err != nil {
				return Value{}, fmt.Errorf("invalid argument to %s(): %w", name, err)
			}
			args = append(args, arg)
		}
		return Function(name, args...), nil
	}

	if lower == "auto" {
		return Auto(), nil
	}

	type unit struct {
		suffix string
		scale  func(float64) Value
	}
	units := []unit{
		{"px", func(f float64) Value { return Length(f) }},
		{"rem", func(f float64) Value { return Length(f * ctx.RootFontSize) }},
		{"em", func(f float64) Value { return Length(f * ctx.FontSize) }},
		{"vw", func(f float64) Value { return Length(f * ctx.ViewportWidth / 100) }},
		{"vh", func(f float64) Value { return Length(f * ctx.ViewportHeight / 100) }},
		{"%", func(f float64) Value { return Percentage(f) }},
	}
	for _, u := range units {
		if !strings.HasSuffix(lower, u.suffix) {
			continue
		}
		f, err := strconv.ParseFloat(lower[:len(lower)-len(u.suffix)], 64)
		if err != nil {
			break
		}
		return u.scale(f), nil
	}

	// fr tracks stay keywords; the grid parser reads the factor.
	if strings.HasSuffix(lower, "fr") {
		if _, err := strconv.ParseFloat(lower[:len(lower)-2], 64); err == nil {
			return Keyword(lower), nil
		}
	}

	if i, err := strconv.Atoi(lower); err == nil {
		return Integer(i), nil
	}
	if f, err := strconv.ParseFloat(lower, 64); err == nil {
		return Number(f), nil
	}

	// Hex colors and strings carry no geometry but must not poison a list.
	if strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "\"") || strings.HasPrefix(lower, "'") {
		return Keyword(tok), nil
	}
	if !isIdentifier(lower) {
		return Value{}, fmt.Errorf("unrecognized value %q", tok)
	}
	return Keyword(lower), nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isValidIdentifierChar(s[i]) {
			return false
		}
	}
	return isValidIdentifierStart(s[0])
}

// splitTopLevel splits on sep outside of parentheses.
func splitTopLevel(s string, sep rune) []string {
	return splitTopLevelFunc(s, func(r rune) bool { return r == sep })
}

func splitTopLevelFunc(s string, isSep func(rune) bool) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && isSep(r):
			if part := strings.TrimSpace(s[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts
}
