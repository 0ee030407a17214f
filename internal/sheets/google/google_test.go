package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
)

type fakeSheets struct {
	mu      sync.Mutex
	calls   []string
	written [][]any
	fail    bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
		return
	}
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.calls = append(f.calls, "clear")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update:"+r.URL.Query().Get("valueInputOption"))
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.written = vr.Values
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	c, err := NewWithService(svc, "sheet-1", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestReplaceClearsThenWrites(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	entries := []core.Entry{
		{ID: 1, Activity: core.Expense, Amount: decimal.RequireFromString("9.99"), Currency: core.USD},
		{ID: 2, Activity: core.Income, Amount: decimal.NewFromInt(100), Currency: core.EUR},
	}
	if err := c.Replace(context.Background(), entries); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if strings.Join(fake.calls, ",") != "clear,update:USER_ENTERED" {
		t.Fatalf("calls = %v", fake.calls)
	}
	if len(fake.written) != 3 {
		t.Fatalf("expected header and 2 rows, got %v", fake.written)
	}
	if fake.written[0][0] != "ID" || fake.written[2][1] != "Income" || fake.written[1][2] != "9.99" {
		t.Fatalf("unexpected rows %v", fake.written)
	}
}

func TestReplaceReportsAPIError(t *testing.T) {
	c := newTestClient(t, &fakeSheets{fail: true})
	if err := c.Replace(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewWithServiceDefaults(t *testing.T) {
	if _, err := NewWithService(nil, " ", "Ledger"); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	c, err := NewWithService(nil, "id", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.sheetName != DefaultSheetName {
		t.Fatalf("sheet name = %q", c.sheetName)
	}
	if err := c.Replace(context.Background(), nil); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	ctx := context.Background()

	got, err := loadCredentials(ctx, Credentials{JSON: `{"type":"service_account"}`, File: "/nope"})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Fatalf("inline json: %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = loadCredentials(ctx, Credentials{File: path})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Fatalf("file: %q, %v", got, err)
	}

	if _, err := loadCredentials(ctx, Credentials{}); err == nil {
		t.Fatal("expected error without credentials")
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	if _, err := loadCredentials(ctx, Credentials{}); err != nil {
		t.Fatalf("application default file: %v", err)
	}
}
