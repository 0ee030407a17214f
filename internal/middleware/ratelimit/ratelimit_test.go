package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{Limit: limit, Window: time.Minute, Idle: time.Hour})
	t.Cleanup(l.Stop)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWindow(t *testing.T) {
	l, now := newTestLimiter(t, 2)

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("request %d must pass", i+1)
		}
	}

	*now = now.Add(20 * time.Second)
	ok, retry := l.Allow("a")
	if ok {
		t.Fatal("third request within the window must be rejected")
	}
	if retry != 40*time.Second {
		t.Errorf("retry = %v, want 40s", retry)
	}
	if ok, _ := l.Allow("b"); !ok {
		t.Fatal("clients are limited independently")
	}

	*now = now.Add(40 * time.Second)
	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("new window must reset the counter")
	}

	if m := l.GetMetrics(); m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Window: 2 * time.Hour}.withDefaults()
	if c.Limit != 60 || c.Window != 2*time.Hour || c.Idle != 2*time.Hour {
		t.Errorf("withDefaults() = %+v", c)
	}
	if c := (Config{}).withDefaults(); c != DefaultConfig() {
		t.Errorf("zero config = %+v, want %+v", c, DefaultConfig())
	}
}

func TestSweepForgetsIdleClients(t *testing.T) {
	l, now := newTestLimiter(t, 5)
	l.Allow("old")
	*now = now.Add(61 * time.Minute)
	l.Allow("fresh")

	if removed := l.sweep(); removed != 1 {
		t.Errorf("sweep() removed %d, want 1", removed)
	}
	if m := l.GetMetrics(); m.ClientCount != 1 {
		t.Errorf("expected only the fresh client, got %d", m.ClientCount)
	}
}

func TestMiddlewareOnlyLimitsListedMethods(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "10.0.0.1" }
	h := l.Middleware(ip, nil, http.MethodPost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/entries", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("second POST = %d, headers %v", rec.Code, rec.Header())
	}
	for i := 0; i < 3; i++ {
		if rec := do(http.MethodGet); rec.Code != http.StatusNoContent {
			t.Fatalf("GET must not be limited, got %d", rec.Code)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(Config{})
	l.Stop()
	l.Stop()
}
