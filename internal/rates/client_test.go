package rates

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-key", time.Second, WithBaseURL(srv.URL+"/v6/"))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ", time.Second)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFetchParsesConversionRates(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"EUR":0.9134,"TRY":32.5}}`))
	})

	table, err := c.Fetch(context.Background(), core.USD)
	require.NoError(t, err)
	assert.Equal(t, "/v6/test-key/latest/USD", gotPath)
	assert.True(t, table[core.EUR].Equal(decimal.RequireFromString("0.9134")))
	assert.True(t, table[core.TRY].Equal(decimal.RequireFromString("32.5")))
	assert.True(t, table[core.USD].Equal(decimal.NewFromInt(1)))
}

func TestFetchUpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error result", http.StatusOK, `{"result":"error","error-type":"invalid-key"}`},
		{"non 2xx with error type", http.StatusForbidden, `{"result":"error","error-type":"inactive-account"}`},
		{"non 2xx plain", http.StatusBadGateway, `bad gateway`},
		{"malformed body", http.StatusOK, `{"conversion_rates":`},
		{"no rates", http.StatusOK, `{"result":"success"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Fetch(context.Background(), core.EUR)
			assert.ErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestFetchCollapsesConcurrentCalls(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"EUR":1,"USD":1.1}}`))
	})

	var wg sync.WaitGroup
	results := make([]core.RateTable, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			table, err := c.Fetch(context.Background(), core.EUR)
			assert.NoError(t, err)
			results[i] = table
		}(i)
	}
	// Let all callers join the in-flight request before answering.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.NotNil(t, r)
		assert.True(t, r[core.USD].Equal(decimal.RequireFromString("1.1")))
	}

	// Tables are independent copies
	results[0][core.USD] = decimal.Zero
	assert.True(t, results[1][core.USD].Equal(decimal.RequireFromString("1.1")))
}

func TestFetchHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, core.TRY)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestWithHTTPClientUsesGivenTransport(t *testing.T) {
	var host string
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		host = r.URL.Host
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"result":"success","base_code":"EUR","conversion_rates":{"EUR":1,"USD":1.1}}`)),
			Request:    r,
		}, nil
	})}

	c, err := NewClient("k", time.Second, WithHTTPClient(hc), WithBaseURL("https://rates.internal/v6"))
	require.NoError(t, err)

	table, err := c.Fetch(context.Background(), core.EUR)
	require.NoError(t, err)
	assert.Equal(t, "rates.internal", host)
	assert.True(t, table[core.USD].Equal(decimal.RequireFromString("1.1")))
}
