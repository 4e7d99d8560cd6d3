// internal/dom/html.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// elements that never produce boxes.
var skippedElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
	"meta":     true,
	"link":     true,
	"title":    true,
}

// ParseHTML builds a Document from HTML. The <body> element becomes the root.
// Contents of <style> elements anywhere in the input are collected and
// returned in source order so a style engine can apply them.
func ParseHTML(r io.Reader) (*Document, []string, error) {
	tree, err := html.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse html: %w", err)
	}

	sheets := collectStyleSheets(tree)

	body := findElement(tree, "body")
	if body == nil {
		return nil, nil, fmt.Errorf("html document has no body element")
	}

	doc := NewDocument()
	root, err := doc.SetRoot(body.Data, attrMap(body))
	if err != nil {
		return nil, nil, err
	}
	if err := doc.importChildren(root, body); err != nil {
		return nil, nil, err
	}
	return doc, sheets, nil
}

func (d *Document) importChildren(parent NodeID, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			if skippedElements[strings.ToLower(c.Data)] {
				continue
			}
			id, err := d.AppendElement(parent, c.Data, attrMap(c))
			if err != nil {
				return err
			}
			if err := d.importChildren(id, c); err != nil {
				return err
			}
		case html.TextNode:
			text := strings.Join(strings.Fields(c.Data), " ")
			if text == "" {
				continue
			}
			if _, err := d.AppendText(parent, text); err != nil {
				return err
			}
		}
	}
	return nil
}

func attrMap(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	return attrs
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectStyleSheets(n *html.Node) []string {
	var sheets []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "style") {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			sheets = append(sheets, b.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sheets
}
