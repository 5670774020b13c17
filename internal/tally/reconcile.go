package tally

import (
	"context"
	"fmt"
	"time"

	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/store"
	"github.com/frewsxcv/template-tally/internal/types"
)

// Report is a point-in-time partition of the discovered templates.
type Report struct {
	Rendered    []types.TemplateID `json:"rendered" yaml:"rendered"`
	Unrendered  []types.TemplateID `json:"unrendered" yaml:"unrendered"`
	Total       int                `json:"total" yaml:"total"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`

	// Window is how far back a render keeps a template in Rendered.
	Window        time.Duration `json:"-" yaml:"-"`
	WindowSeconds int64         `json:"window_seconds" yaml:"window_seconds"`
}

// Coverage returns the rendered fraction of all templates, 0 when there are none.
func (r *Report) Coverage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(len(r.Rendered)) / float64(r.Total)
}

// RenderedTemplates returns the discovered templates with a live render
// record, in discovery order.
func (t *Tracker) RenderedTemplates(ctx context.Context) ([]types.TemplateID, error) {
	report, err := t.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Rendered, nil
}

// UnrenderedTemplates returns the discovered templates without a live render
// record, in discovery order.
func (t *Tracker) UnrenderedTemplates(ctx context.Context) ([]types.TemplateID, error) {
	report, err := t.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Unrendered, nil
}

// Report discovers all templates, looks up their render records in a single
// round trip and partitions them.
func (t *Tracker) Report(ctx context.Context) (*Report, error) {
	s := t.currentStore()
	if s == nil {
		return nil, errors.ErrNotConfigured
	}

	templates, err := t.discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Rendered:      make([]types.TemplateID, 0, len(templates)),
		Unrendered:    make([]types.TemplateID, 0, len(templates)),
		Total:         len(templates),
		GeneratedAt:   time.Now().UTC(),
		Window:        t.ttl,
		WindowSeconds: int64(t.ttl / time.Second),
	}
	if len(templates) == 0 {
		return report, nil
	}

	keys := make([]string, len(templates))
	for i, id := range templates {
		keys[i] = store.Key(t.keyPrefix, id)
	}

	values, err := s.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	if len(values) != len(keys) {
		return nil, errors.NewInternalError(errors.ErrCodeLookupMismatch,
			fmt.Sprintf("lookup returned %d values for %d keys", len(values), len(keys)), nil).
			WithComponent("tally")
	}

	for i, id := range templates {
		if store.Present(values[i]) {
			report.Rendered = append(report.Rendered, id)
		} else {
			report.Unrendered = append(report.Unrendered, id)
		}
	}

	t.logger.Debug(ctx, "Reconciled templates",
		"total", report.Total,
		"rendered", len(report.Rendered),
		"unrendered", len(report.Unrendered))
	return report, nil
}
