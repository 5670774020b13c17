// Package tally is the template render tracking engine.
//
// A Tracker subscribes to render events on a notifications.Bus and writes one
// render record per distinct template to a store.Store, at most once per
// tracker lifetime. On demand it reconciles the templates discovered on disk
// against those records, partitioning them into rendered and unrendered.
//
// Store connectivity failures on the render path are reported to an
// errors.Notifier and swallowed so that tracking never breaks a page render.
package tally

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/notifications"
	"github.com/frewsxcv/template-tally/internal/store"
	"github.com/frewsxcv/template-tally/internal/types"
)

// EventBus is the part of notifications.Bus the tracker depends on.
type EventBus interface {
	Subscribe(category types.EventCategory, handler notifications.Handler) *notifications.Subscription
	Unsubscribe(sub *notifications.Subscription) bool
}

// Discoverer enumerates the template identifiers of a project.
type Discoverer interface {
	Discover(ctx context.Context) ([]types.TemplateID, error)
}

// Tracker owns the tracking state of one application: the store reference,
// the seen set and the bus subscriptions.
type Tracker struct {
	bus        EventBus
	discoverer Discoverer
	seen       *SeenSet

	root       string
	keyPrefix  string
	ttl        time.Duration
	categories []types.EventCategory
	logger     logging.Logger
	notifier   errors.Notifier

	mutex         sync.RWMutex
	store         store.Store
	subscriptions []*notifications.Subscription
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRoot sets the project root that event paths are made relative to.
func WithRoot(root string) Option {
	return func(t *Tracker) {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		t.root = filepath.Clean(root)
	}
}

// WithKeyPrefix sets the prefix of render record keys.
func WithKeyPrefix(prefix string) Option {
	return func(t *Tracker) {
		t.keyPrefix = prefix
	}
}

// WithTTL sets how long a render record lives.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		t.ttl = ttl
	}
}

// WithCategories sets the event categories the tracker subscribes to.
func WithCategories(categories ...types.EventCategory) Option {
	return func(t *Tracker) {
		t.categories = append([]types.EventCategory(nil), categories...)
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(logger logging.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger.WithComponent("tally")
	}
}

// WithNotifier sets the sink that receives store connectivity failures.
func WithNotifier(notifier errors.Notifier) Option {
	return func(t *Tracker) {
		t.notifier = notifier
	}
}

// New creates an unconfigured tracker. Events are ignored until Configure is
// called with a store.
func New(bus EventBus, discoverer Discoverer, opts ...Option) *Tracker {
	t := &Tracker{
		bus:        bus,
		discoverer: discoverer,
		seen:       NewSeenSet(),
		root:       string(filepath.Separator),
		keyPrefix:  store.DefaultKeyPrefix,
		ttl:        store.DefaultTTL,
		categories: types.DefaultCategories(),
		logger:     logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.notifier == nil {
		t.notifier = errors.NewLogNotifier(t.logger)
	}
	return t
}

// Configure stores s and subscribes to every monitored category. Calling it
// again replaces the store and the subscriptions without duplicating
// handlers; the seen set is kept.
func (t *Tracker) Configure(s store.Store) error {
	if s == nil {
		return errors.NewValidationError(errors.ErrCodeStoreRequired, "configure requires a store", nil).
			WithComponent("tally")
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.revokeLocked()
	t.store = s
	for _, category := range t.categories {
		t.subscriptions = append(t.subscriptions, t.bus.Subscribe(category, t.handle))
	}

	t.logger.Info(context.Background(), "Tracker configured",
		"categories", len(t.categories),
		"ttl", t.ttl.String(),
		"root", t.root)
	return nil
}

// Unconfigure clears the seen set, revokes all subscriptions and drops the
// store. It is safe to call at any time, any number of times.
func (t *Tracker) Unconfigure() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.seen.Reset()
	t.revokeLocked()
	t.store = nil
}

func (t *Tracker) revokeLocked() {
	for _, sub := range t.subscriptions {
		t.bus.Unsubscribe(sub)
	}
	t.subscriptions = nil
}

// Configured reports whether the tracker currently has a store.
func (t *Tracker) Configured() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.store != nil
}

// SubscriptionCount returns the number of subscriptions the tracker holds.
func (t *Tracker) SubscriptionCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.subscriptions)
}

// Seen returns the tracker's seen set.
func (t *Tracker) Seen() *SeenSet {
	return t.seen
}

// TTL returns the lifetime of the render records the tracker writes.
func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

// Identify normalizes an absolute template path against the tracker root.
func (t *Tracker) Identify(absPath string) (types.TemplateID, error) {
	id, err := types.IdentifierFromAbsolute(t.root, absPath)
	if err != nil {
		return "", errors.ErrInvalidIdentifier(absPath, err).WithComponent("tally")
	}
	return id, nil
}

func (t *Tracker) currentStore() store.Store {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.store
}

// handle persists the render record of the event's template the first time
// the template is seen.
func (t *Tracker) handle(ctx context.Context, event types.RenderEvent) error {
	if err := event.Validate(); err != nil {
		return errors.ErrInvalidEvent(err).WithComponent("tally")
	}

	id, err := t.Identify(event.Identifier)
	if err != nil {
		return err
	}

	s := t.currentStore()
	if s == nil {
		return nil
	}

	if !t.seen.Claim(id) {
		return nil
	}

	key := store.Key(t.keyPrefix, id)
	if err := s.Set(ctx, key, store.PresenceValue, t.ttl); err != nil {
		if errors.IsConnectivityError(err) {
			t.logger.Warn(ctx, err, "Render record not persisted", "template", id.String())
			t.notifier.Notify(ctx, err)
			return nil
		}
		return err
	}

	t.logger.Debug(ctx, "Render recorded", "template", id.String(), "key", key)
	return nil
}
