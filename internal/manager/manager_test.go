// internal/manager/manager_test.go
package manager

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/scalpel-layout/internal/config"
	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
	"github.com/xkilldash9x/scalpel-layout/internal/layout"
)

// page is a small styled document: a root, a section and n leaves under it.
type page struct {
	doc     *dom.Document
	styles  *css.StyleEngine
	root    dom.NodeID
	section dom.NodeID
}

func newPage(t *testing.T, leaves int) *page {
	t.Helper()
	p := &page{doc: dom.NewDocument(), styles: css.NewStyleEngine(zap.NewNop(), css.DefaultParseContext())}
	var err error
	p.root, err = p.doc.SetRoot("body", nil)
	require.NoError(t, err)
	require.NoError(t, p.styles.SetDeclarations(p.root, "padding: 8px"))
	p.section, err = p.doc.AppendElement(p.root, "section", nil)
	require.NoError(t, err)
	require.NoError(t, p.styles.SetDeclarations(p.section, ""))
	for i := 0; i < leaves; i++ {
		id, err := p.doc.AppendElement(p.section, "div", nil)
		require.NoError(t, err)
		require.NoError(t, p.styles.SetDeclarations(id, "height: 10px"))
	}
	return p
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Layout.ViewportWidth, cfg.Layout.ViewportHeight = 800, 600
	cfg.Manager.MaxLayoutTime = 5 * time.Second
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, opts ...Option) *Manager {
	t.Helper()
	m, err := New(cfg, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	t.Run("Nil config", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("Invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Manager.MaxMemoryMB = 0
		_, err := New(cfg)
		assert.ErrorContains(t, err, "max_memory_mb")
	})

	t.Run("Engine from config", func(t *testing.T) {
		m := newTestManager(t, testConfig())
		w, h := m.Engine().Viewport()
		assert.Equal(t, 800.0, w)
		assert.Equal(t, 600.0, h)
		assert.Nil(t, m.limiter, "pacing is off by default")
	})

	t.Run("Supplied engine", func(t *testing.T) {
		e := layout.NewEngine(10, 20)
		m := newTestManager(t, testConfig(), WithEngine(e))
		assert.Same(t, e, m.Engine())
	})
}

func TestComputeLayout(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPage(t, 3)
	m := newTestManager(t, testConfig())
	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))

	box, ok := m.GetLayoutBox(p.section)
	require.True(t, ok)
	assert.Equal(t, 784.0, box.Content.Width)
	assert.Equal(t, 30.0, box.Content.Height)

	r, ok := m.GetLayoutResult(p.root)
	require.True(t, ok)
	assert.Equal(t, 30.0, r.Box.Content.Height)
	assert.Len(t, m.AbsoluteBoxes(p.doc), 5)

	mon := m.PerformanceMetrics()
	assert.Equal(t, uint64(2), mon.TotalLayouts)
	assert.False(t, mon.LastLayout.IsZero())
	assert.LessOrEqual(t, mon.AverageLayoutTimeMs, mon.MaxLayoutTimeMs)
	assert.Greater(t, mon.MemoryUsageMB, 0.0)

	t.Run("Pass-throughs", func(t *testing.T) {
		assert.Equal(t, 4, m.InvalidateSubtree(p.doc, p.section))
		_, ok := m.GetLayoutBox(p.section)
		assert.False(t, ok)

		m.InvalidateNode(p.root)
		_, ok = m.GetLayoutBox(p.root)
		assert.False(t, ok)

		require.NoError(t, m.ResizeViewport(400, 300))
		require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
		box, _ := m.GetLayoutBox(p.section)
		assert.Equal(t, 384.0, box.Content.Width)
		assert.Equal(t, 5, m.CacheStats().CacheSize)

		m.ClearCache()
		assert.Zero(t, m.CacheStats().CacheSize)
		assert.Zero(t, m.PerformanceMetrics().MemoryUsageMB)
	})
}

func TestComputeLayoutErrors(t *testing.T) {
	t.Run("Engine errors are wrapped", func(t *testing.T) {
		p := newPage(t, 0)
		_, err := p.doc.AppendElement(p.root, "div", nil)
		require.NoError(t, err)

		m := newTestManager(t, testConfig())
		err = m.ComputeLayout(context.Background(), p.doc, p.styles)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindEngine))
		assert.True(t, layout.IsKind(err, layout.KindComputation))
		assert.Zero(t, m.PerformanceMetrics().TotalLayouts)
	})

	t.Run("Cancelled context is not a timeout", func(t *testing.T) {
		p := newPage(t, 1)
		m := newTestManager(t, testConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := m.ComputeLayout(ctx, p.doc, p.styles)
		assert.True(t, IsKind(err, KindEngine))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// stallingStyles blocks every lookup until release is closed.
type stallingStyles struct {
	inner   layout.StyleProvider
	release chan struct{}
}

func (s *stallingStyles) ComputedStyles(id dom.NodeID) (css.Styles, bool) {
	<-s.release
	return s.inner.ComputedStyles(id)
}

func TestComputeLayoutTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newPage(t, 2)
	cfg := testConfig()
	cfg.Manager.MaxLayoutTime = 20 * time.Millisecond
	core, logs := observer.New(zap.WarnLevel)
	m, err := New(cfg, WithLogger(zap.New(core)))
	require.NoError(t, err)

	styles := &stallingStyles{inner: p.styles, release: make(chan struct{})}
	defer close(styles.release)

	start := time.Now()
	err = m.ComputeLayout(context.Background(), p.doc, styles)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second, "the caller is released at the deadline")
	assert.Equal(t, 1, logs.FilterMessage("Layout pass exceeded its time budget.").Len())
}

func TestFramePacing(t *testing.T) {
	p := newPage(t, 1)
	cfg := testConfig()
	cfg.Manager.MaxFPS = 20
	m := newTestManager(t, cfg)
	require.NotNil(t, m.limiter)

	start := time.Now()
	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "second pass waits for its frame slot")

	t.Run("Cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := m.ComputeLayout(ctx, p.doc, p.styles)
		assert.True(t, IsKind(err, KindTimeout))
	})

	t.Run("Update disables pacing", func(t *testing.T) {
		next := m.Config()
		next.MaxFPS = 0
		require.NoError(t, m.UpdateConfig(next))
		assert.Nil(t, m.limiter)

		next.MaxLayoutTime = 0
		assert.Error(t, m.UpdateConfig(next))
		assert.Equal(t, 5*time.Second, m.Config().MaxLayoutTime, "invalid updates are rejected")
	})
}

func TestMemoryCeiling(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Enough rows to pass one megabyte.
	leaves := bytesPerMB/layout.CacheEntrySize() + 16

	t.Run("A single pass over the ceiling clears the cache", func(t *testing.T) {
		p := newPage(t, leaves)
		cfg := testConfig()
		cfg.Manager.MaxMemoryMB = 1
		m := newTestManager(t, cfg)

		err := m.ComputeLayout(context.Background(), p.doc, p.styles)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindMemoryLimit))
		assert.Zero(t, m.CacheStats().CacheSize)
	})

	t.Run("Stale rows are pruned first", func(t *testing.T) {
		p := newPage(t, leaves)
		core, logs := observer.New(zap.WarnLevel)
		m, err := New(testConfig(), WithLogger(zap.New(core)))
		require.NoError(t, err)
		require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))

		next := m.Config()
		next.MaxMemoryMB = 1
		require.NoError(t, m.UpdateConfig(next))
		require.NoError(t, p.styles.SetDeclarations(p.section, "display: none"))

		require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
		assert.Equal(t, 2, m.CacheStats().CacheSize)
		assert.Equal(t, 1, logs.FilterMessage("Layout cache reached the memory ceiling, pruned stale rows.").Len())
	})
}

func TestCacheSizeLimit(t *testing.T) {
	p := newPage(t, 3)
	cfg := testConfig()
	cfg.Manager.CacheSizeLimit = 3
	m := newTestManager(t, cfg)

	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
	assert.Equal(t, 5, m.CacheStats().CacheSize, "current rows are never pruned")

	require.NoError(t, p.styles.SetDeclarations(p.section, "display: none"))
	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))
	assert.Equal(t, 2, m.CacheStats().CacheSize)
}

func TestValidateAndPrint(t *testing.T) {
	p := newPage(t, 2)
	m := newTestManager(t, testConfig())
	require.NoError(t, m.ComputeLayout(context.Background(), p.doc, p.styles))

	issues, err := m.Validate(p.doc)
	require.NoError(t, err)
	assert.Empty(t, issues)

	var buf bytes.Buffer
	require.NoError(t, m.PrintTree(&buf, p.doc))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "body 0 [x=8.00 y=8.00 w=784.00 h=20.00]"), out)
	assert.Contains(t, out, "\n  section 1 ")
	assert.Equal(t, 4, strings.Count(out, "\n"))

	hit, ok := m.HitTest(p.doc, 10, 10)
	require.True(t, ok)
	assert.Equal(t, dom.NodeID(2), hit, "the first leaf sits at the body content origin")

	_, err = m.Validate(dom.NewDocument())
	assert.True(t, IsKind(err, KindInvalidTree))
	assert.True(t, IsKind(m.PrintTree(&buf, dom.NewDocument()), KindInvalidTree))
}

func TestErrorFormatting(t *testing.T) {
	err := newError(KindTimeout, "layout exceeded 16ms", context.DeadlineExceeded)
	assert.Equal(t, "layout manager timeout error: layout exceeded 16ms: context deadline exceeded", err.Error())
	assert.Equal(t, "layout manager memory limit error: too big", newError(KindMemoryLimit, "too big", nil).Error())
	assert.Equal(t, "kind(9)", ErrorKind(9).String())
}
