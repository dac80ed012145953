package export

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/mealplanner/internal/domain/mealplan"
	apperrors "github.com/yanqian/mealplanner/pkg/errors"
	"github.com/yanqian/mealplanner/pkg/util"
)

const (
	defaultFilename    = "weekly-meal-plan.pdf"
	defaultConcurrency = 4
)

// Exporter renders weekly plans into paginated documents.
type Exporter struct {
	cfg       Config
	newCanvas CanvasFactory
	images    ImageSource
	logger    *slog.Logger
}

// NewExporter wires the export pipeline.
func NewExporter(cfg Config, newCanvas CanvasFactory, images ImageSource, logger *slog.Logger) *Exporter {
	if cfg.Filename == "" {
		cfg.Filename = defaultFilename
	}
	if cfg.ImageConcurrency <= 0 {
		cfg.ImageConcurrency = defaultConcurrency
	}
	return &Exporter{
		cfg:       cfg,
		newCanvas: newCanvas,
		images:    images,
		logger:    logger.With("component", "export.exporter"),
	}
}

// Export lays out the snapshot and returns the encoded document. Image
// failures degrade to a placeholder; anything else aborts with no output.
func (e *Exporter) Export(ctx context.Context, snapshot mealplan.Snapshot) (Result, error) {
	if snapshot.Len() == 0 {
		return Result{}, apperrors.Wrap("empty_plan", "please generate a meal plan first", ErrEmptyPlan)
	}

	images := e.prefetch(ctx, snapshot)
	if err := ctx.Err(); err != nil {
		return Result{}, apperrors.Wrap("export_failed", "could not create PDF", err)
	}

	canvas := e.newCanvas()
	l := newLayout(canvas, images)
	l.render(snapshot)
	if err := canvas.Err(); err != nil {
		e.logger.Error("render meal plan", "error", err)
		return Result{}, apperrors.Wrap("export_failed", "could not create PDF", err)
	}

	var buf bytes.Buffer
	if err := canvas.Output(&buf); err != nil {
		e.logger.Error("encode meal plan", "error", err)
		return Result{}, apperrors.Wrap("export_failed", "could not create PDF", err)
	}

	e.logger.Info("meal plan exported", "pages", len(l.pages), "meals", l.meals, "images", len(images), "bytes", buf.Len())
	return Result{
		Filename: e.cfg.Filename,
		Content:  buf.Bytes(),
		Pages:    len(l.pages),
		Meals:    l.meals,
		Trace:    l.pages,
	}, nil
}

// prefetch resolves every distinct image concurrently. Failed lookups are
// simply absent from the result.
func (e *Exporter) prefetch(ctx context.Context, snapshot mealplan.Snapshot) map[string]Image {
	out := make(map[string]Image)
	if e.images == nil {
		return out
	}

	uris := make(map[string]struct{})
	for _, slot := range snapshot.Slots() {
		if slot.Recipe.Image != "" {
			uris[slot.Recipe.Image] = struct{}{}
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ImageConcurrency)
	for uri := range uris {
		g.Go(func() error {
			img, err := e.images.Fetch(gctx, uri)
			if err != nil {
				e.logger.Warn("image not available", "uri", util.Abbrev(uri, 96), "error", err)
				return nil
			}
			mu.Lock()
			out[uri] = img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
