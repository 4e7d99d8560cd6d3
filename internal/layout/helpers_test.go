// internal/layout/helpers_test.go
package layout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
)

// styleMap is a minimal css.Styles for unit tests.
type styleMap map[string]css.Value

func (m styleMap) Value(property string) (css.Value, error) {
	v, ok := m[property]
	if !ok {
		return css.Value{}, css.ErrPropertyNotSet
	}
	return v, nil
}

// fixture builds a styled document for engine level tests.
type fixture struct {
	t      *testing.T
	doc    *dom.Document
	styles *css.StyleEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:      t,
		doc:    dom.NewDocument(),
		styles: css.NewStyleEngine(zaptest.NewLogger(t), css.DefaultParseContext()),
	}
}

func (f *fixture) root(decls string) dom.NodeID {
	f.t.Helper()
	id, err := f.doc.SetRoot("div", nil)
	require.NoError(f.t, err)
	require.NoError(f.t, f.styles.SetDeclarations(id, decls))
	return id
}

func (f *fixture) add(parent dom.NodeID, decls string) dom.NodeID {
	f.t.Helper()
	id, err := f.doc.AppendElement(parent, "div", nil)
	require.NoError(f.t, err)
	require.NoError(f.t, f.styles.SetDeclarations(id, decls))
	return id
}

func (f *fixture) text(parent dom.NodeID, text string) dom.NodeID {
	f.t.Helper()
	id, err := f.doc.AppendText(parent, text)
	require.NoError(f.t, err)
	require.NoError(f.t, f.styles.SetDeclarations(id, ""))
	return id
}

func (f *fixture) engine(opts ...Option) *Engine {
	return NewEngine(800, 600, append([]Option{WithLogger(zaptest.NewLogger(f.t))}, opts...)...)
}

func (f *fixture) compute(e *Engine) {
	f.t.Helper()
	require.NoError(f.t, e.ComputeLayout(context.Background(), f.doc, f.styles))
}

func (f *fixture) box(e *Engine, id dom.NodeID) LayoutBox {
	f.t.Helper()
	b, ok := e.GetLayoutBox(id)
	require.True(f.t, ok, "node %d has no layout", id)
	return b
}

func (f *fixture) result(e *Engine, id dom.NodeID) LayoutResult {
	f.t.Helper()
	r, ok := e.GetLayoutResult(id)
	require.True(f.t, ok, "node %d has no layout", id)
	return r
}

const tolerance = 1e-6
