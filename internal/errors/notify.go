package errors

import (
	"context"
	"errors"
	"sync"
)

// Notifier receives failures that should reach an external alerting system.
// Implementations must not block for long: they are called on the render path.
type Notifier interface {
	Notify(ctx context.Context, err error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, err error)

// Notify calls f(ctx, err).
func (f NotifierFunc) Notify(ctx context.Context, err error) {
	f(ctx, err)
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// LogNotifier reports errors by logging them. It is the default sink when no
// alerting integration is wired.
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs err with its structured context.
func (n *LogNotifier) Notify(ctx context.Context, err error) {
	if n == nil || n.logger == nil || err == nil {
		return
	}

	n.logger.Error(ctx, err, "Notified error", ContextFields(err)...)
}

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []Notifier

// Notify forwards err to every non-nil notifier.
func (m MultiNotifier) Notify(ctx context.Context, err error) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, err)
		}
	}
}

// Recorder is a Notifier that keeps every error it receives.
type Recorder struct {
	mu     sync.Mutex
	errors []error
}

// Notify records err.
func (r *Recorder) Notify(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// Errors returns a copy of the recorded errors.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]error, len(r.errors))
	copy(result, r.errors)
	return result
}

// Count returns the number of recorded errors.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// Handler provides centralized error handling for errors that escape a
// component: it logs by type and forwards connectivity failures to the
// notifier.
type Handler struct {
	logger   Logger
	notifier Notifier
}

// NewHandler creates a new error handler.
func NewHandler(logger Logger, notifier Notifier) *Handler {
	return &Handler{
		logger:   logger,
		notifier: notifier,
	}
}

// Handle processes an error with appropriate logging and notifications.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var te *TallyError
	if !errors.As(err, &te) {
		if h.logger != nil {
			h.logger.Error(ctx, err, "Unhandled error occurred")
		}
		return
	}

	switch te.Type {
	case ErrorTypeConnectivity:
		if h.logger != nil {
			h.logger.Warn(ctx, err, "Store unreachable",
				"code", te.Code,
				"template", te.Template)
		}
		if h.notifier != nil {
			h.notifier.Notify(ctx, err)
		}
	case ErrorTypeValidation:
		if h.logger != nil {
			h.logger.Warn(ctx, err, "Validation error occurred",
				"code", te.Code,
				"component", te.Component)
		}
	default:
		if h.logger != nil {
			h.logger.Error(ctx, err, "Error occurred",
				"type", te.Type,
				"code", te.Code,
				"component", te.Component)
		}
	}
}
