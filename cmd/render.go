// File: cmd/render.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-layout/internal/config"
	"github.com/xkilldash9x/scalpel-layout/internal/css"
	"github.com/xkilldash9x/scalpel-layout/internal/dom"
	"github.com/xkilldash9x/scalpel-layout/internal/layout"
	"github.com/xkilldash9x/scalpel-layout/internal/manager"
	"github.com/xkilldash9x/scalpel-layout/internal/observability"
)

const (
	formatTree = "tree"
	formatJSON = "json"
)

type renderOptions struct {
	File     string
	Width    float64
	Height   float64
	Format   string
	Validate bool
}

// renderNode is one row of the JSON output.
type renderNode struct {
	ID     dom.NodeID `json:"id"`
	Tag    string     `json:"tag"`
	XPath  string     `json:"xpath"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
}

type renderReport struct {
	Viewport    [2]float64                 `json:"viewport"`
	Nodes       []renderNode               `json:"nodes"`
	CacheStats  layout.CacheStats          `json:"cache_stats"`
	Performance manager.PerformanceMonitor `json:"performance"`
	Issues      []string                   `json:"issues,omitempty"`
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Lay out an HTML document and print the resulting boxes",
		Long: `Loads an HTML file, applies the <style> sheets and inline styles it contains,
computes the layout for the configured viewport and prints the box tree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.Component("render")
			return runRender(ctx, logger, cfg, cmd.OutOrStdout(), opts)
		},
	}

	renderCmd.Flags().StringVarP(&opts.File, "file", "f", "", "HTML file to lay out (required)")
	renderCmd.Flags().Float64Var(&opts.Width, "width", 0, "viewport width override in px")
	renderCmd.Flags().Float64Var(&opts.Height, "height", 0, "viewport height override in px")
	renderCmd.Flags().StringVar(&opts.Format, "format", formatTree, "output format (tree, json)")
	renderCmd.Flags().BoolVar(&opts.Validate, "validate", false, "check the computed layout and fail on problems")
	_ = renderCmd.MarkFlagRequired("file")

	return renderCmd
}

// runRender is the testable core of the render command.
func runRender(ctx context.Context, logger *zap.Logger, cfg *config.Config, out io.Writer, opts renderOptions) error {
	format := strings.ToLower(opts.Format)
	if format != formatTree && format != formatJSON {
		return fmt.Errorf("unsupported format %q (use %s or %s)", opts.Format, formatTree, formatJSON)
	}

	path, err := homedir.Expand(opts.File)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", opts.File, err)
	}

	// Overrides apply to a copy so the shared config stays untouched.
	local := *cfg
	if opts.Width > 0 {
		local.Layout.ViewportWidth = opts.Width
	}
	if opts.Height > 0 {
		local.Layout.ViewportHeight = opts.Height
	}

	doc, styles, err := loadDocument(logger, path)
	if err != nil {
		return err
	}

	mgr, err := manager.New(&local, manager.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create layout manager: %w", err)
	}

	logger.Info("Computing layout.",
		zap.String("file", path),
		zap.Int("nodes", doc.Len()),
		zap.Float64("viewport_width", local.Layout.ViewportWidth),
		zap.Float64("viewport_height", local.Layout.ViewportHeight))

	if err := mgr.ComputeLayout(ctx, doc, styles); err != nil {
		return fmt.Errorf("layout failed: %w", err)
	}

	var issues []layout.Issue
	if opts.Validate {
		if issues, err = mgr.Validate(doc); err != nil {
			return err
		}
	}

	switch format {
	case formatJSON:
		err = writeJSONReport(out, doc, mgr, local.Layout, issues)
	default:
		err = writeTreeReport(out, doc, mgr, issues)
	}
	if err != nil {
		return err
	}

	if len(issues) > 0 {
		return fmt.Errorf("layout validation found %d issue(s)", len(issues))
	}
	return nil
}

func loadDocument(logger *zap.Logger, path string) (*dom.Document, *css.StyleEngine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, sheetTexts, err := dom.ParseHTML(f)
	if err != nil {
		return nil, nil, err
	}

	sheets := make([]css.StyleSheet, 0, len(sheetTexts))
	for _, text := range sheetTexts {
		sheets = append(sheets, css.NewParser(text).Parse())
	}

	styles := css.NewStyleEngine(logger, css.DefaultParseContext())
	styles.Apply(doc, sheets...)
	logger.Debug("Applied style sheets.", zap.Int("sheets", len(sheets)))
	return doc, styles, nil
}

func writeTreeReport(out io.Writer, doc *dom.Document, mgr *manager.Manager, issues []layout.Issue) error {
	if err := mgr.PrintTree(out, doc); err != nil {
		return err
	}
	for _, issue := range issues {
		if _, err := fmt.Fprintf(out, "issue: %s\n", issue); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONReport(out io.Writer, doc *dom.Document, mgr *manager.Manager, lc config.LayoutConfig, issues []layout.Issue) error {
	boxes := mgr.AbsoluteBoxes(doc)
	ids := make([]dom.NodeID, 0, len(boxes))
	for id := range boxes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	report := renderReport{
		Viewport:    [2]float64{lc.ViewportWidth, lc.ViewportHeight},
		Nodes:       make([]renderNode, 0, len(ids)),
		CacheStats:  mgr.CacheStats(),
		Performance: mgr.PerformanceMetrics(),
	}
	for _, id := range ids {
		border := boxes[id].BorderBox()
		report.Nodes = append(report.Nodes, renderNode{
			ID:     id,
			Tag:    doc.Tag(id),
			XPath:  doc.XPath(id),
			X:      border.X,
			Y:      border.Y,
			Width:  border.Width,
			Height: border.Height,
		})
	}
	for _, issue := range issues {
		report.Issues = append(report.Issues, issue.String())
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode layout report: %w", err)
	}
	return nil
}
