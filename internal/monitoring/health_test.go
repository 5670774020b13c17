package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/store"
	"github.com/frewsxcv/template-tally/internal/types"
)

type staticDiscoverer struct {
	ids []types.TemplateID
	err error
}

func (d staticDiscoverer) Discover(context.Context) ([]types.TemplateID, error) {
	return d.ids, d.err
}

func fixedCheck(name string, critical bool, status HealthStatus) HealthChecker {
	return NewHealthCheckFunc(name, critical, func(context.Context) HealthCheck {
		return HealthCheck{Status: status}
	})
}

func TestHealthCheckFunc(t *testing.T) {
	check := NewHealthCheckFunc("test_check", true, func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusHealthy, Message: "All good"}
	})

	assert.Equal(t, "test_check", check.Name())
	assert.True(t, check.IsCritical())
	assert.Equal(t, "All good", check.Check(context.Background()).Message)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthChecker
		want   HealthStatus
	}{
		{name: "no checks", want: HealthStatusHealthy},
		{
			name:   "all healthy",
			checks: []HealthChecker{fixedCheck("a", true, HealthStatusHealthy), fixedCheck("b", false, HealthStatusHealthy)},
			want:   HealthStatusHealthy,
		},
		{
			name:   "non-critical unhealthy degrades",
			checks: []HealthChecker{fixedCheck("a", true, HealthStatusHealthy), fixedCheck("b", false, HealthStatusUnhealthy)},
			want:   HealthStatusDegraded,
		},
		{
			name:   "critical unhealthy",
			checks: []HealthChecker{fixedCheck("a", true, HealthStatusUnhealthy), fixedCheck("b", false, HealthStatusDegraded)},
			want:   HealthStatusUnhealthy,
		},
		{
			name:   "missing status is unknown",
			checks: []HealthChecker{fixedCheck("a", false, "")},
			want:   HealthStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthMonitor(logging.NewNopLogger())
			for _, check := range tt.checks {
				hm.RegisterCheck(check)
			}

			health := hm.GetHealth(context.Background())
			assert.Equal(t, tt.want, health.Status)
			assert.Equal(t, len(tt.checks), health.Summary.Total)
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	hm := NewHealthMonitor(logging.NewNopLogger())
	hm.SetTimeout(20 * time.Millisecond)
	hm.RegisterCheck(NewHealthCheckFunc("slow", true, func(ctx context.Context) HealthCheck {
		<-ctx.Done()
		return HealthCheck{Status: HealthStatusUnhealthy, Message: ctx.Err().Error()}
	}))

	health := hm.GetHealth(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Equal(t, "context deadline exceeded", health.Checks["slow"].Message)
}

func TestStoreHealthChecker(t *testing.T) {
	ms := store.NewMemoryStore()
	check := StoreHealthChecker(ms)

	assert.Equal(t, HealthStatusHealthy, check.Check(context.Background()).Status)

	require.NoError(t, ms.Close())
	result := check.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "memory store closed")
}

func TestDiscoveryHealthChecker(t *testing.T) {
	result := DiscoveryHealthChecker(staticDiscoverer{ids: []types.TemplateID{"/a.haml", "/b.erb"}}).Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, result.Status)
	assert.Equal(t, 2, result.Metadata["templates"])

	result = DiscoveryHealthChecker(staticDiscoverer{}).Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, result.Status)

	result = DiscoveryHealthChecker(staticDiscoverer{err: fmt.Errorf("permission denied")}).Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.False(t, DiscoveryHealthChecker(staticDiscoverer{}).IsCritical())
}

func TestHTTPHandler(t *testing.T) {
	ms := store.NewMemoryStore()
	hm := NewHealthMonitor(logging.NewNopLogger())
	hm.RegisterCheck(StoreHealthChecker(ms))
	hm.RegisterCheck(GoroutineHealthChecker())
	assert.Equal(t, []string{"goroutines", "store"}, hm.CheckNames())

	rec := httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Equal(t, 2, health.Summary.Healthy)
	assert.Equal(t, 1, health.Summary.Critical)

	require.NoError(t, ms.Close())
	rec = httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	hm.UnregisterCheck("store")
	assert.Equal(t, []string{"goroutines"}, hm.CheckNames())
}
