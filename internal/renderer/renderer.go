// Package renderer is a small host rendering pipeline for template-tally.
//
// ViewRenderer renders the templates of a views directory with pongo2 and
// publishes a render event for every template and partial it renders, the way
// an application framework instruments its view layer. A template exposes a
// partial(name) function that renders another template of the same directory
// inline. Publication failures are logged and never fail a render.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/types"
)

// maxPartialDepth bounds partial(...) nesting so a self-including template fails.
const maxPartialDepth = 16

// Publisher receives the render events of the pipeline.
type Publisher interface {
	Publish(ctx context.Context, event types.RenderEvent) error
}

// ViewRenderer renders templates from a views directory.
type ViewRenderer struct {
	viewsDir   string
	set        *pongo2.TemplateSet
	publisher  Publisher
	logger     logging.Logger
	notifier   errors.Notifier
	errHandler *errors.Handler
	globals    pongo2.Context
	now        func() time.Time
	requests   atomic.Uint64
}

// Option configures a ViewRenderer.
type Option func(*ViewRenderer)

// WithLogger sets the renderer's logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *ViewRenderer) {
		r.logger = logger.WithComponent("renderer")
	}
}

// WithNotifier sets where connectivity failures reported by subscribers go.
func WithNotifier(notifier errors.Notifier) Option {
	return func(r *ViewRenderer) {
		r.notifier = notifier
	}
}

// WithGlobals seeds values available to every template.
func WithGlobals(globals map[string]any) Option {
	return func(r *ViewRenderer) {
		for key, value := range globals {
			r.globals[strings.TrimSpace(key)] = value
		}
	}
}

// WithClock overrides the time source used to stamp render events.
func WithClock(now func() time.Time) Option {
	return func(r *ViewRenderer) {
		r.now = now
	}
}

// NewViewRenderer creates a renderer for the templates below viewsDir.
func NewViewRenderer(viewsDir string, publisher Publisher, opts ...Option) (*ViewRenderer, error) {
	absDir, err := filepath.Abs(viewsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving views directory %s: %w", viewsDir, err)
	}

	loader, err := pongo2.NewLocalFileSystemLoader(absDir)
	if err != nil {
		return nil, fmt.Errorf("creating template loader: %w", err)
	}

	r := &ViewRenderer{
		viewsDir:  absDir,
		set:       pongo2.NewSet("views", loader),
		publisher: publisher,
		logger:    logging.NewNopLogger(),
		globals:   pongo2.Context{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.errHandler = errors.NewHandler(r.logger, r.notifier)

	return r, nil
}

// ViewsDir returns the absolute views directory.
func (r *ViewRenderer) ViewsDir() string {
	return r.viewsDir
}

// RenderView renders the template name, relative to the views directory,
// with data and writes the output to w.
func (r *ViewRenderer) RenderView(ctx context.Context, name string, data map[string]any, w io.Writer) error {
	txn := strconv.FormatUint(r.requests.Add(1), 10)

	out, err := r.render(ctx, name, data, types.EventRenderTemplate, txn, 0)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, out)
	return err
}

func (r *ViewRenderer) render(ctx context.Context, name string, data map[string]any, category types.EventCategory, txn string, depth int) (string, error) {
	if depth > maxPartialDepth {
		return "", fmt.Errorf("partial nesting deeper than %d rendering %s", maxPartialDepth, name)
	}

	clean, err := validateTemplateName(name)
	if err != nil {
		return "", fmt.Errorf("invalid template name: %w", err)
	}

	tmpl, err := r.set.FromCache(clean)
	if err != nil {
		return "", fmt.Errorf("loading template %s: %w", clean, err)
	}

	viewContext := pongo2.Context{}
	viewContext.Update(r.globals)
	viewContext.Update(pongo2.Context(data))
	viewContext["partial"] = func(partial string) (*pongo2.Value, error) {
		html, err := r.render(ctx, partial, data, types.EventRenderPartial, txn, depth+1)
		if err != nil {
			return nil, err
		}
		return pongo2.AsSafeValue(html), nil
	}

	start := r.now()
	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext, &buf); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", clean, err)
	}

	r.publish(ctx, types.RenderEvent{
		Category:      category,
		Identifier:    filepath.Join(r.viewsDir, filepath.FromSlash(clean)),
		Start:         start,
		End:           r.now(),
		TransactionID: txn,
	})

	return buf.String(), nil
}

// publish hands event to the publisher. Subscriber errors go to the error
// handler and never reach the caller.
func (r *ViewRenderer) publish(ctx context.Context, event types.RenderEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.errHandler.Handle(ctx, err)
	}
}

// validateTemplateName rejects names that would escape the views directory.
func validateTemplateName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty template name")
	}

	slashed := filepath.ToSlash(name)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute path not allowed: %s", name)
	}
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", fmt.Errorf("path traversal attempt detected: %s", name)
		}
	}

	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(name)), "./"), nil
}
