// internal/dom/document.go
package dom

import (
	"fmt"
	"strings"
	"sync"
)

// NodeID is an opaque handle into a Document. It is only a lookup token.
type NodeID uint32

// NodeKind distinguishes element nodes from text runs.
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
)

type node struct {
	kind     NodeKind
	tag      string
	attrs    map[string]string
	text     string
	parent   NodeID
	hasPar   bool
	children []NodeID
}

// Document is an arena-allocated tree. Nodes are addressed by NodeID and never
// own each other. It is safe for concurrent readers; writers take the lock.
type Document struct {
	mu    sync.RWMutex
	nodes []node
	root  NodeID
	ok    bool
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// SetRoot creates the root element. Calling it twice is an error.
func (d *Document) SetRoot(tag string, attrs map[string]string) (NodeID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ok {
		return 0, fmt.Errorf("document already has a root (%d)", d.root)
	}
	id := d.alloc(node{kind: ElementNode, tag: strings.ToLower(tag), attrs: attrs})
	d.root, d.ok = id, true
	return id, nil
}

// AppendElement appends a new element under parent.
func (d *Document) AppendElement(parent NodeID, tag string, attrs map[string]string) (NodeID, error) {
	return d.append(parent, node{kind: ElementNode, tag: strings.ToLower(tag), attrs: attrs})
}

// AppendText appends a text run under parent.
func (d *Document) AppendText(parent NodeID, text string) (NodeID, error) {
	return d.append(parent, node{kind: TextNode, text: text})
}

func (d *Document) append(parent NodeID, n node) (NodeID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(parent) >= len(d.nodes) {
		return 0, fmt.Errorf("parent node %d does not exist", parent)
	}
	if d.nodes[parent].kind == TextNode {
		return 0, fmt.Errorf("parent node %d is a text node", parent)
	}
	n.parent, n.hasPar = parent, true
	id := d.alloc(n)
	d.nodes[parent].children = append(d.nodes[parent].children, id)
	return id, nil
}

func (d *Document) alloc(n node) NodeID {
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

// Root returns the root node, if one has been created.
func (d *Document) Root() (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root, d.ok
}

// Children returns the ordered children of id. The slice is a copy.
func (d *Document) Children(id NodeID) []NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.nodes) {
		return nil
	}
	return append([]NodeID(nil), d.nodes[id].children...)
}

// Parent returns the parent of id, or false for the root and unknown ids.
func (d *Document) Parent(id NodeID) (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.nodes) {
		return 0, false
	}
	return d.nodes[id].parent, d.nodes[id].hasPar
}

// Kind reports whether id is an element or a text node.
func (d *Document) Kind(id NodeID) NodeKind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.nodes) {
		return ElementNode
	}
	return d.nodes[id].kind
}

// Tag returns the lowercase tag name of an element, or "#text".
func (d *Document) Tag(id NodeID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.nodes) {
		return ""
	}
	if d.nodes[id].kind == TextNode {
		return "#text"
	}
	return d.nodes[id].tag
}

// Attr returns an attribute value of an element.
func (d *Document) Attr(id NodeID, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.nodes) {
		return "", false
	}
	v, ok := d.nodes[id].attrs[strings.ToLower(name)]
	return v, ok
}

// Classes returns the whitespace separated class list of an element.
func (d *Document) Classes(id NodeID) []string {
	v, _ := d.Attr(id, "class")
	return strings.Fields(v)
}

// TextContent returns the text of a text node. Elements report false.
func (d *Document) TextContent(id NodeID) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if int(id) >= len(d.nodes) || d.nodes[id].kind != TextNode {
		return "", false
	}
	return d.nodes[id].text, true
}

// Len returns the number of nodes allocated.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// Walk visits every node reachable from the root in document order.
func (d *Document) Walk(fn func(id NodeID, depth int)) {
	root, ok := d.Root()
	if !ok {
		return
	}
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		fn(id, depth)
		for _, c := range d.Children(id) {
			visit(c, depth+1)
		}
	}
	visit(root, 0)
}
