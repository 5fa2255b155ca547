package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/runstash/internal/metrics"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := New(Config{Bind: "not an address"}, Deps{State: f.store, Timers: f.sched}); err == nil {
		t.Error("expected error for invalid bind")
	}
	if _, err := New(Config{}, Deps{}); err == nil {
		t.Error("expected error for missing sources")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pinger Pinger
		want   int
		status string
	}{
		{"no pinger", nil, http.StatusOK, "ok"},
		{"store up", fakePinger{}, http.StatusOK, "ok"},
		{"store down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := newTestGateway(t, newFixture(t), Config{}, tt.pinger)
			rr := httptest.NewRecorder()
			g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("status = %q, want %q", resp.Status, tt.status)
			}
		})
	}
}

func TestAPI_NotMountedWithoutToken(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, newFixture(t), Config{}, nil)
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestAPI_RequiresBearer(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, newFixture(t), Config{BearerToken: "secret"}, nil)
	for _, header := range []string{"", "Bearer wrong", "Basic c2VjcmV0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		g.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: status = %d, want 401", header, rr.Code)
		}
	}
}

func authed(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer secret")
	return req
}

func TestAPI_State(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seed(t, f)
	g := newTestGateway(t, f, Config{BearerToken: "secret"}, nil)

	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, authed(http.MethodGet, "/api/state"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}

	var resp StateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Identity != "alice" {
		t.Errorf("identity = %q", resp.Identity)
	}
	if resp.Values["progress"] != "7" || len(resp.Values) != 1 {
		t.Errorf("values = %v, want only progress=7", resp.Values)
	}
	if resp.Lease == nil || resp.Lease.Generation != 1 || resp.Lease.Phase != "running" {
		t.Errorf("lease = %+v, want 1:running", resp.Lease)
	}
}

func TestAPI_ListAndClearTriggers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seed(t, f)
	g := newTestGateway(t, f, Config{BearerToken: "secret"}, nil)

	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, authed(http.MethodGet, "/api/triggers"))
	var list TriggersResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Timers) != 3 {
		t.Fatalf("timers = %d, want 3", len(list.Timers))
	}

	rr = httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, authed(http.MethodDelete, "/api/triggers"))
	var cleared ClearResponse
	if err := json.NewDecoder(rr.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rr.Code != http.StatusOK || cleared.Deleted != 3 {
		t.Errorf("clear = %d %+v, want 200 with 3 deleted", rr.Code, cleared)
	}
	if f.host.Len() != 0 {
		t.Errorf("host still has %d timers", f.host.Len())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Stash("ok")

	f := newFixture(t)
	g, err := New(Config{}, Deps{State: f.store, Timers: f.sched, Gatherer: reg})
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `runstash_stash_total{status="ok"} 1`) {
		t.Errorf("metrics body missing stash counter:\n%s", rr.Body)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, newFixture(t), Config{Bind: "127.0.0.1:0"}, nil)
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
