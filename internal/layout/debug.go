// internal/layout/debug.go
package layout

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// Issue is a geometric problem found in a computed layout.
type Issue struct {
	Node    dom.NodeID `json:"node"`
	Message string     `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("node %d: %s", i.Node, i.Message)
}

// ValidateLayout checks the boxes of the most recent pass for negative sizes,
// non-finite coordinates and broken nesting. Nodes without a current row are
// skipped.
func (e *Engine) ValidateLayout(tree Tree) ([]Issue, error) {
	root, ok := tree.Root()
	if !ok {
		return nil, newError(KindInvalidTree, "tree has no root")
	}
	gen := e.generation.Load()

	var issues []Issue
	visited := make(map[dom.NodeID]struct{})
	stack := []dom.NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		stack = append(stack, tree.Children(id)...)

		r, ok := e.cache.latest(id, gen)
		if !ok {
			continue
		}
		b := r.Box
		if b.Content.Width < 0 || b.Content.Height < 0 {
			issues = append(issues, Issue{Node: id, Message: fmt.Sprintf("negative content size %vx%v", b.Content.Width, b.Content.Height)})
		}
		if !finite(b.Content.X) || !finite(b.Content.Y) || !finite(b.Content.Width) || !finite(b.Content.Height) {
			issues = append(issues, Issue{Node: id, Message: "non-finite geometry"})
			continue
		}
		if !b.IsNested() {
			issues = append(issues, Issue{Node: id, Message: "box areas are not nested"})
		}
	}
	return issues, nil
}

// HitTest returns the deepest node of the most recent pass whose border box
// contains the page point (x, y). Later siblings win over earlier ones.
func (e *Engine) HitTest(tree Tree, x, y float64) (dom.NodeID, bool) {
	root, ok := tree.Root()
	if !ok {
		return 0, false
	}
	boxes := e.AbsoluteBoxes(tree)
	b, ok := boxes[root]
	if !ok || !b.ContainsPoint(x, y) {
		return 0, false
	}

	hit := root
	visited := map[dom.NodeID]struct{}{root: {}}
	for {
		next, found := hit, false
		for _, child := range tree.Children(hit) {
			if _, seen := visited[child]; seen {
				continue
			}
			if cb, ok := boxes[child]; ok && cb.ContainsPoint(x, y) {
				next, found = child, true
			}
		}
		if !found {
			return hit, true
		}
		visited[next] = struct{}{}
		hit = next
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PrintTree writes an indented dump of the absolute boxes of the most recent
// pass, one node per line.
func (e *Engine) PrintTree(w io.Writer, tree Tree) error {
	root, ok := tree.Root()
	if !ok {
		return newError(KindInvalidTree, "tree has no root")
	}
	boxes := e.AbsoluteBoxes(tree)
	var describe func(id dom.NodeID) string
	if named, ok := tree.(interface{ Tag(dom.NodeID) string }); ok {
		describe = func(id dom.NodeID) string {
			if tag := named.Tag(id); tag != "" {
				return tag
			}
			return "#text"
		}
	} else {
		describe = func(dom.NodeID) string { return "node" }
	}

	type frame struct {
		id    dom.NodeID
		depth int
	}
	visited := make(map[dom.NodeID]struct{})
	stack := []frame{{id: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[f.id]; seen {
			continue
		}
		visited[f.id] = struct{}{}

		indent := strings.Repeat("  ", f.depth)
		var line string
		if b, ok := boxes[f.id]; ok {
			c := b.Content
			line = fmt.Sprintf("%s%s %d [x=%.2f y=%.2f w=%.2f h=%.2f]\n", indent, describe(f.id), f.id, c.X, c.Y, c.Width, c.Height)
		} else {
			line = fmt.Sprintf("%s%s %d (no layout)\n", indent, describe(f.id), f.id)
		}
		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("writing layout tree: %w", err)
		}

		children := tree.Children(f.id)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], depth: f.depth + 1})
		}
	}
	return nil
}
