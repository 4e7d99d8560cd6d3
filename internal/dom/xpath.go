// internal/dom/xpath.go
package dom

import (
	"fmt"
	"strings"
)

// XPath builds a readable XPath for a node. An element with an id becomes the
// anchor and stops the upward walk. Text nodes are addressed with text().
func (d *Document) XPath(id NodeID) string {
	if int(id) >= d.Len() {
		return ""
	}

	var path []string
	for n, ok := id, true; ok; n, ok = d.Parent(n) {
		if d.Kind(n) == TextNode {
			path = append(path, fmt.Sprintf("text()[%d]", d.siblingIndex(n)))
			continue
		}

		if anchor, has := d.Attr(n, "id"); has && anchor != "" {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, anchor))
			break
		}
		path = append(path, fmt.Sprintf("%s[%d]", d.Tag(n), d.siblingIndex(n)))
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// siblingIndex is the 1-based position of id among siblings of the same tag.
func (d *Document) siblingIndex(id NodeID) int {
	parent, ok := d.Parent(id)
	if !ok {
		return 1
	}
	tag := d.Tag(id)
	index := 1
	for _, sib := range d.Children(parent) {
		if sib == id {
			break
		}
		if d.Tag(sib) == tag {
			index++
		}
	}
	return index
}
