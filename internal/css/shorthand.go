// internal/css/shorthand.go
package css

import (
	"fmt"
)

var sides = [4]string{"top", "right", "bottom", "left"}

// applyDeclaration parses d and stores it, expanding shorthands into longhands.
func applyDeclaration(cs *ComputedStyles, d Declaration, ctx ParseContext) error {
	v, err := ParseValue(d.Value, ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Property, err)
	}

	switch d.Property {
	case "padding", "margin":
		vals, err := fourSides(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Property, err)
		}
		for i, side := range sides {
			cs.props[d.Property+"-"+side] = vals[i]
		}
	case "border-width", "border-style":
		vals, err := fourSides(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Property, err)
		}
		suffix := d.Property[len("border"):]
		for i, side := range sides {
			cs.props["border-"+side+suffix] = vals[i]
		}
	case "border":
		expandBorder(cs, v)
	case "flex":
		grow, shrink, basis, err := expandFlex(v)
		if err != nil {
			return err
		}
		cs.props["flex-grow"] = grow
		cs.props["flex-shrink"] = shrink
		cs.props["flex-basis"] = basis
	case "flex-flow":
		for _, item := range listItems(v) {
			if item.Kind != KindKeyword {
				continue
			}
			switch item.Keyword {
			case "row", "row-reverse", "column", "column-reverse":
				cs.props["flex-direction"] = item
			default:
				cs.props["flex-wrap"] = item
			}
		}
	case "grid-row", "grid-column":
		items := []Value{v}
		if v.Kind == KindList {
			items = v.Items
		}
		if len(items) > 2 {
			return fmt.Errorf("%s: expected at most two lines, got %d", d.Property, len(items))
		}
		cs.props[d.Property+"-start"] = items[0]
		if len(items) == 2 {
			cs.props[d.Property+"-end"] = items[1]
		}
	default:
		cs.props[d.Property] = v
	}
	return nil
}

func listItems(v Value) []Value {
	if v.Kind == KindList {
		return v.Items
	}
	return []Value{v}
}

// fourSides applies the CSS 1-4 value box rule.
func fourSides(v Value) ([4]Value, error) {
	items := listItems(v)
	switch len(items) {
	case 1:
		return [4]Value{items[0], items[0], items[0], items[0]}, nil
	case 2:
		return [4]Value{items[0], items[1], items[0], items[1]}, nil
	case 3:
		return [4]Value{items[0], items[1], items[2], items[1]}, nil
	case 4:
		return [4]Value{items[0], items[1], items[2], items[3]}, nil
	}
	return [4]Value{}, fmt.Errorf("expected 1 to 4 values, got %d", len(items))
}

func expandBorder(cs *ComputedStyles, v Value) {
	for _, item := range listItems(v) {
		switch {
		case item.Kind == KindLength, item.Kind == KindInteger, item.Kind == KindNumber:
			for _, side := range sides {
				cs.props["border-"+side+"-width"] = item
			}
		case item.IsKeyword("thin"), item.IsKeyword("medium"), item.IsKeyword("thick"):
			for _, side := range sides {
				cs.props["border-"+side+"-width"] = item
			}
		case item.Kind == KindKeyword:
			// Anything else is treated as the line style; colors are ignored
			// because they never influence geometry.
			switch item.Keyword {
			case "none", "hidden", "solid", "dashed", "dotted", "double", "groove", "ridge", "inset", "outset":
				for _, side := range sides {
					cs.props["border-"+side+"-style"] = item
				}
			}
		}
	}
}

func isNumeric(v Value) bool {
	return v.Kind == KindNumber || v.Kind == KindInteger
}

// expandFlex follows the flex shorthand grammar.
func expandFlex(v Value) (grow, shrink, basis Value, err error) {
	switch {
	case v.IsKeyword("none"):
		return Number(0), Number(0), Auto(), nil
	case v.Kind == KindAuto:
		return Number(1), Number(1), Auto(), nil
	case v.IsKeyword("initial"):
		return Number(0), Number(1), Auto(), nil
	}

	grow, shrink, basis = Number(1), Number(1), Length(0)
	items := listItems(v)
	if len(items) > 3 {
		return grow, shrink, basis, fmt.Errorf("flex: too many values")
	}

	numbers := 0
	for _, item := range items {
		switch {
		case isNumeric(item) && numbers == 0:
			grow = item
			numbers++
		case isNumeric(item) && numbers == 1:
			shrink = item
			numbers++
		case item.Kind == KindLength, item.Kind == KindPercentage, item.Kind == KindAuto, item.IsKeyword("content"):
			basis = item
		default:
			return grow, shrink, basis, fmt.Errorf("flex: unexpected value %s", item)
		}
	}
	return grow, shrink, basis, nil
}
