// internal/manager/manager.go
package manager

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/scalpel-layout/internal/config"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
	"github.com/xkilldash9x/scalpel-layout/internal/layout"
)

const bytesPerMB = 1024 * 1024

// PerformanceMonitor summarises the passes run through a Manager.
type PerformanceMonitor struct {
	TotalLayouts        uint64    `json:"total_layouts"`
	AverageLayoutTimeMs float64   `json:"average_layout_time_ms"`
	MaxLayoutTimeMs     float64   `json:"max_layout_time_ms"`
	CacheHitRate        float64   `json:"cache_hit_rate"`
	MemoryUsageMB       float64   `json:"memory_usage_mb"`
	LastLayout          time.Time `json:"last_layout"`
}

// Manager wraps a layout engine with a per-pass time budget, a cache memory
// ceiling and optional frame pacing.
type Manager struct {
	engine *layout.Engine
	logger *zap.Logger

	cfgMu   sync.RWMutex
	cfg     config.ManagerConfig
	limiter *rate.Limiter

	monitorMu sync.RWMutex
	monitor   PerformanceMonitor
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and the engine it creates.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEngine supplies an existing engine instead of building one from the
// layout configuration.
func WithEngine(e *layout.Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// New creates a Manager from the application configuration.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{logger: zap.NewNop(), cfg: cfg.Manager}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = layout.NewEngineFromConfig(cfg.Layout, m.logger)
	}
	m.logger = m.logger.With(zap.String("component", "layout_manager"))
	m.limiter = newLimiter(cfg.Manager.MaxFPS)
	return m, nil
}

func newLimiter(fps float64) *rate.Limiter {
	if fps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(fps), 1)
}

// Engine returns the wrapped engine.
func (m *Manager) Engine() *layout.Engine {
	return m.engine
}

// Config returns a copy of the current manager configuration.
func (m *Manager) Config() config.ManagerConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// UpdateConfig validates and installs a new manager configuration.
func (m *Manager) UpdateConfig(cfg config.ManagerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfgMu.Lock()
	m.cfg = cfg
	m.limiter = newLimiter(cfg.MaxFPS)
	m.cfgMu.Unlock()
	m.logger.Info("Layout manager configuration updated.",
		zap.Duration("max_layout_time", cfg.MaxLayoutTime),
		zap.Int("max_memory_mb", cfg.MaxMemoryMB),
		zap.Float64("max_fps", cfg.MaxFPS))
	return nil
}

// ComputeLayout runs one engine pass under the configured time budget, then
// enforces the cache limits.
func (m *Manager) ComputeLayout(ctx context.Context, tree layout.Tree, styles layout.StyleProvider) error {
	cfg, limiter := m.settings()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return newError(KindTimeout, "waiting for a frame slot", err)
		}
	}

	start := time.Now()
	passCtx, cancel := context.WithTimeout(ctx, cfg.MaxLayoutTime)
	defer cancel()

	// The engine notices cancellation on its next cache miss; the select
	// returns as soon as the budget is spent even if a collaborator stalls.
	done := make(chan error, 1)
	go func() {
		done <- m.engine.ComputeLayout(passCtx, tree, styles)
	}()

	var err error
	select {
	case err = <-done:
	case <-passCtx.Done():
		err = passCtx.Err()
	}
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			m.logger.Warn("Layout pass exceeded its time budget.",
				zap.Duration("budget", cfg.MaxLayoutTime),
				zap.Duration("elapsed", elapsed))
			return newError(KindTimeout, "layout exceeded "+cfg.MaxLayoutTime.String(), err)
		}
		return newError(KindEngine, "layout pass failed", err)
	}

	m.recordPass(elapsed)
	return m.enforceLimits(cfg)
}

func (m *Manager) settings() (config.ManagerConfig, *rate.Limiter) {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg, m.limiter
}

func (m *Manager) recordPass(elapsed time.Duration) {
	metrics := m.engine.Metrics()
	ms := float64(elapsed.Nanoseconds()) / 1e6

	m.monitorMu.Lock()
	defer m.monitorMu.Unlock()
	mon := &m.monitor
	mon.TotalLayouts++
	mon.AverageLayoutTimeMs += (ms - mon.AverageLayoutTimeMs) / float64(mon.TotalLayouts)
	mon.MaxLayoutTimeMs = math.Max(mon.MaxLayoutTimeMs, ms)
	mon.CacheHitRate = metrics.HitRatio()
	mon.MemoryUsageMB = float64(metrics.MemoryUsageBytes) / bytesPerMB
	mon.LastLayout = time.Now()
}

// enforceLimits keeps the cache under the memory ceiling and the row limit.
// Stale generations go first; if the current pass alone is over the ceiling
// the cache is cleared and MemoryLimit is returned.
func (m *Manager) enforceLimits(cfg config.ManagerConfig) error {
	ceiling := cfg.MaxMemoryMB * bytesPerMB
	if used := m.engine.Metrics().MemoryUsageBytes; used > ceiling {
		pruned := m.engine.PruneCache()
		used = m.engine.Metrics().MemoryUsageBytes
		if used > ceiling {
			m.logger.Warn("Layout cache exceeds the memory ceiling, clearing.",
				zap.Int("used_bytes", used),
				zap.Int("ceiling_rows", ceiling/layout.CacheEntrySize()),
				zap.Int("ceiling_mb", cfg.MaxMemoryMB))
			m.engine.ClearCache()
			m.setMemoryUsage(0)
			return newError(KindMemoryLimit, "a single layout pass needs more cache memory than allowed", nil)
		}
		m.logger.Warn("Layout cache reached the memory ceiling, pruned stale rows.",
			zap.Int("pruned", pruned),
			zap.Int("used_bytes", used))
		m.setMemoryUsage(used)
	}

	if size := m.engine.CacheStats().CacheSize; size > cfg.CacheSizeLimit {
		pruned := m.engine.PruneCache()
		m.logger.Debug("Layout cache over its size limit, pruned stale rows.",
			zap.Int("size", size),
			zap.Int("limit", cfg.CacheSizeLimit),
			zap.Int("pruned", pruned))
		m.setMemoryUsage(m.engine.Metrics().MemoryUsageBytes)
	}
	return nil
}

func (m *Manager) setMemoryUsage(bytes int) {
	m.monitorMu.Lock()
	m.monitor.MemoryUsageMB = float64(bytes) / bytesPerMB
	m.monitorMu.Unlock()
}

// PerformanceMetrics returns a snapshot of the monitor.
func (m *Manager) PerformanceMetrics() PerformanceMonitor {
	m.monitorMu.RLock()
	defer m.monitorMu.RUnlock()
	return m.monitor
}

// -- Pass-throughs --

// InvalidateNode drops the cached layout of one node.
func (m *Manager) InvalidateNode(id dom.NodeID) {
	m.engine.InvalidateNode(id)
}

// InvalidateSubtree drops the cached layout of id and its descendants.
func (m *Manager) InvalidateSubtree(tree layout.Tree, id dom.NodeID) int {
	return m.engine.InvalidateSubtree(tree, id)
}

// ResizeViewport changes the viewport size.
func (m *Manager) ResizeViewport(width, height float64) error {
	return m.engine.ResizeViewport(width, height)
}

// GetLayoutBox returns the most recent box for id.
func (m *Manager) GetLayoutBox(id dom.NodeID) (layout.LayoutBox, bool) {
	return m.engine.GetLayoutBox(id)
}

// GetLayoutResult returns the most recent result for id.
func (m *Manager) GetLayoutResult(id dom.NodeID) (layout.LayoutResult, bool) {
	return m.engine.GetLayoutResult(id)
}

// AbsoluteBoxes returns the most recent boxes in page coordinates.
func (m *Manager) AbsoluteBoxes(tree layout.Tree) map[dom.NodeID]layout.LayoutBox {
	return m.engine.AbsoluteBoxes(tree)
}

// HitTest returns the deepest laid-out node under the page point (x, y).
func (m *Manager) HitTest(tree layout.Tree, x, y float64) (dom.NodeID, bool) {
	return m.engine.HitTest(tree, x, y)
}

// CacheStats returns the engine's cache summary.
func (m *Manager) CacheStats() layout.CacheStats {
	return m.engine.CacheStats()
}

// ClearCache drops every cached row.
func (m *Manager) ClearCache() {
	m.engine.ClearCache()
	m.setMemoryUsage(0)
}

// -- Debugging --

// Validate checks the most recent layout of tree.
func (m *Manager) Validate(tree layout.Tree) ([]layout.Issue, error) {
	issues, err := m.engine.ValidateLayout(tree)
	if err != nil {
		if layout.IsKind(err, layout.KindInvalidTree) {
			return nil, newError(KindInvalidTree, "cannot validate layout", err)
		}
		return nil, newError(KindEngine, "validating layout", err)
	}
	for _, issue := range issues {
		m.logger.Debug("Layout validation issue.", zap.Uint32("node", uint32(issue.Node)), zap.String("issue", issue.Message))
	}
	return issues, nil
}

// PrintTree writes an indented dump of the most recent layout of tree.
func (m *Manager) PrintTree(w io.Writer, tree layout.Tree) error {
	if err := m.engine.PrintTree(w, tree); err != nil {
		if layout.IsKind(err, layout.KindInvalidTree) {
			return newError(KindInvalidTree, "cannot print layout", err)
		}
		return err
	}
	return nil
}
