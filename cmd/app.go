package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frewsxcv/template-tally/internal/config"
	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/notifications"
	"github.com/frewsxcv/template-tally/internal/scanner"
	"github.com/frewsxcv/template-tally/internal/store"
	"github.com/frewsxcv/template-tally/internal/tally"
	"github.com/frewsxcv/template-tally/internal/types"
)

// app is a configured tracker and everything it was built from.
type app struct {
	config     *config.Config
	logger     *logging.TallyLogger
	root       string
	categories []types.EventCategory

	bus           *notifications.Bus
	subscriptions []*notifications.Subscription
	scanner       *scanner.Scanner
	store         store.Store
	tracker       *tally.Tracker
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})

	root, err := filepath.Abs(cfg.Tally.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", cfg.Tally.Root, err)
	}

	categories, err := cfg.Tally.ParsedCategories()
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:     cfg,
		logger:     logger,
		root:       root,
		categories: categories,
		bus:        notifications.NewBus(),
		scanner: scanner.NewForRoot(root,
			scanner.WithExtensions(cfg.Tally.Extensions...),
			scanner.WithExcludeMarkers(cfg.Tally.Exclude...),
			scanner.WithLogger(logger),
		),
		store: s,
	}
	a.tracker = tally.New(a.bus, a.scanner,
		tally.WithRoot(root),
		tally.WithKeyPrefix(cfg.Tally.KeyPrefix),
		tally.WithTTL(cfg.Tally.TTL),
		tally.WithCategories(categories...),
		tally.WithLogger(logger),
	)

	if err := a.tracker.Configure(s); err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Debug(context.Background(), "Tracker ready",
		"root", root,
		"store", cfg.Store.Driver,
		"pattern", a.scanner.Pattern())

	return a, nil
}

// subscribe registers handler on the bus for every monitored category. Close
// revokes the subscriptions.
func (a *app) subscribe(handler notifications.Handler) {
	for _, category := range a.categories {
		a.subscriptions = append(a.subscriptions, a.bus.Subscribe(category, handler))
	}
}

// Close revokes the app's subscriptions, tears the tracker down and releases
// the store.
func (a *app) Close() error {
	for _, sub := range a.subscriptions {
		a.bus.Unsubscribe(sub)
	}
	a.subscriptions = nil

	a.tracker.Unconfigure()
	return a.store.Close()
}
