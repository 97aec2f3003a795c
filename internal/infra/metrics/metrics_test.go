//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncCacheRequest(t *testing.T) {
	IncCacheRequest(" Session ", "HIT")

	got := testutil.ToFloat64(cacheRequestsTotal.WithLabelValues("session", "hit"))
	if got != 1 {
		t.Fatalf("cache_requests_total{cache=%q,result=%q} = %v, want 1", "session", "hit", got)
	}
}

func TestSetDBPoolStats(t *testing.T) {
	SetDBPoolStats(10, 4, 6)

	if got := testutil.ToFloat64(dbPoolConnections.WithLabelValues("in_use")); got != 6 {
		t.Fatalf("db_pool_connections{state=%q} = %v, want 6", "in_use", got)
	}
	if got := testutil.ToFloat64(dbPoolConnections.WithLabelValues("idle")); got != 4 {
		t.Fatalf("db_pool_connections{state=%q} = %v, want 4", "idle", got)
	}
}
