package tally

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frewsxcv/template-tally/internal/errors"
	"github.com/frewsxcv/template-tally/internal/notifications"
	"github.com/frewsxcv/template-tally/internal/scanner"
	"github.com/frewsxcv/template-tally/internal/store"
	"github.com/frewsxcv/template-tally/internal/types"
)

func strPtr(s string) *string { return &s }

func TestReconcileScenario(t *testing.T) {
	fs := &fakeStore{
		lookup: func(keys []string) ([]*string, error) {
			return []*string{strPtr("1"), nil}, nil
		},
	}
	tracker := New(notifications.NewBus(), staticDiscoverer{
		templates: []types.TemplateID{"/a.haml", "/b.haml"},
	})
	require.NoError(t, tracker.Configure(fs))
	defer tracker.Unconfigure()

	rendered, err := tracker.RenderedTemplates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.TemplateID{"/a.haml"}, rendered)

	unrendered, err := tracker.UnrenderedTemplates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.TemplateID{"/b.haml"}, unrendered)

	require.Len(t, fs.lookups, 2)
	assert.Equal(t, []string{"template-tally:/a.haml", "template-tally:/b.haml"}, fs.lookups[0])
}

func TestReportPartitionPreservesOrder(t *testing.T) {
	discovered := []types.TemplateID{"/e.haml", "/d.erb", "/c.builder", "/b.mustache", "/a.haml"}
	fs := &fakeStore{
		lookup: func(keys []string) ([]*string, error) {
			return []*string{nil, strPtr("1"), strPtr(""), strPtr("1"), nil}, nil
		},
	}
	tracker := New(notifications.NewBus(), staticDiscoverer{templates: discovered}, WithTTL(time.Hour))
	require.NoError(t, tracker.Configure(fs))
	defer tracker.Unconfigure()

	report, err := tracker.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.TemplateID{"/d.erb", "/b.mustache"}, report.Rendered)
	assert.Equal(t, []types.TemplateID{"/e.haml", "/c.builder", "/a.haml"}, report.Unrendered)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, time.Hour, report.Window)
	assert.Equal(t, int64(3600), report.WindowSeconds)
	assert.InDelta(t, 0.4, report.Coverage(), 1e-9)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestReportEmptyDiscoverySkipsStore(t *testing.T) {
	fs := &fakeStore{}
	tracker := New(notifications.NewBus(), staticDiscoverer{})
	require.NoError(t, tracker.Configure(fs))
	defer tracker.Unconfigure()

	report, err := tracker.Report(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Rendered)
	assert.Empty(t, report.Unrendered)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, float64(0), report.Coverage())
	assert.Empty(t, fs.lookups)
}

func TestReportErrors(t *testing.T) {
	lookupErr := errors.NewConnectivityError("redis mget failed", fmt.Errorf("dial tcp: refused"))
	discoveryErr := errors.NewDiscoveryError("template discovery failed", fmt.Errorf("permission denied"))

	tests := []struct {
		name       string
		discoverer Discoverer
		lookup     func(keys []string) ([]*string, error)
		wantErr    error
		wantCode   string
	}{
		{
			name:       "discovery failure",
			discoverer: staticDiscoverer{err: discoveryErr},
			wantErr:    discoveryErr,
		},
		{
			name:       "lookup failure",
			discoverer: staticDiscoverer{templates: []types.TemplateID{"/a.haml"}},
			lookup: func([]string) ([]*string, error) {
				return nil, lookupErr
			},
			wantErr: lookupErr,
		},
		{
			name:       "misaligned lookup",
			discoverer: staticDiscoverer{templates: []types.TemplateID{"/a.haml", "/b.haml"}},
			lookup: func([]string) ([]*string, error) {
				return []*string{strPtr("1")}, nil
			},
			wantCode: errors.ErrCodeLookupMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := New(notifications.NewBus(), tt.discoverer)
			require.NoError(t, tracker.Configure(&fakeStore{lookup: tt.lookup}))
			defer tracker.Unconfigure()

			_, err := tracker.RenderedTemplates(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantCode != "" {
				var te *errors.TallyError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.wantCode, te.Code)
			}

			_, err = tracker.UnrenderedTemplates(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestReportNotConfigured(t *testing.T) {
	tracker := New(notifications.NewBus(), staticDiscoverer{templates: []types.TemplateID{"/a.haml"}})

	_, err := tracker.Report(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotConfigured)
}

// TestEndToEndWithRedis wires the scanner, bus, tracker and a Redis server
// together the way the CLI does.
func TestEndToEndWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rs := store.NewRedisStore(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rs.Close()

	fsys := afero.NewBasePathFs(afero.NewMemMapFs(), "/")
	for _, name := range []string{
		"app/views/home.haml",
		"app/views/users/_row.html.erb",
		"app/views/user_mailer/welcome.haml",
		"app/views/feed.builder",
	} {
		require.NoError(t, afero.WriteFile(fsys, name, nil, 0o644))
	}

	bus := notifications.NewBus()
	tracker := New(bus, scanner.New(fsys), WithRoot(testRoot))
	require.NoError(t, tracker.Configure(rs))
	defer tracker.Unconfigure()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, renderEvent("/app/views/home.haml")))
	partial := renderEvent("/app/views/users/_row.html.erb")
	partial.Category = types.EventRenderPartial
	require.NoError(t, bus.Publish(ctx, partial))

	assert.Equal(t, 1209600*time.Second, mr.TTL("template-tally:/app/views/home.haml"))

	report, err := tracker.Report(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.TemplateID{"/app/views/home.haml", "/app/views/users/_row.html.erb"}, report.Rendered)
	assert.Equal(t, []types.TemplateID{"/app/views/feed.builder"}, report.Unrendered)

	mr.FastForward(store.DefaultTTL)
	unrendered, err := tracker.UnrenderedTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, unrendered, 3, "records expire after the window")
}
