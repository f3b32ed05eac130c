package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenso/internal/core"
	applog "expenso/internal/log"
)

func TestFindRow(t *testing.T) {
	rows := [][]interface{}{
		header,
		{"u1", "a", "2024-03-01", "Lunch", "Food & Dining", "12.50"},
		{"u2", "a", "2024-03-01", "Taxi", "Transportation", "8.00"},
		{"u1", "b"},
	}
	tests := []struct {
		user, id string
		want     int
	}{
		{"u1", "a", 1},
		{"u2", "a", 2},
		{"u1", "b", 3},
		{"u3", "a", -1},
	}
	for _, tt := range tests {
		if got := findRow(rows, tt.user, tt.id); got != tt.want {
			t.Errorf("findRow(%s,%s) = %d, want %d", tt.user, tt.id, got, tt.want)
		}
	}
}

func TestKeepOthers(t *testing.T) {
	rows := [][]interface{}{
		header,
		{"u1", "a"},
		{"u2", "b"},
		{"u1", "c"},
	}
	got := keepOthers(rows, "u1")
	if len(got) != 2 || cell(got[1], 1) != "b" {
		t.Fatalf("keepOthers = %v", got)
	}
	if cell(got[0], 0) != "User" {
		t.Errorf("header missing: %v", got[0])
	}

	if got := keepOthers(nil, "u1"); len(got) != 1 {
		t.Errorf("empty sheet should yield just the header, got %v", got)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, applog.Discard())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	if _, err := readCredentials(""); err == nil {
		t.Error("expected error without credentials")
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	got, err := readCredentials("/does/not/exist")
	if err != nil || !strings.Contains(string(got), "service_account") {
		t.Errorf("inline credentials should win: %q %v", got, err)
	}
}

// fakeSheets records the calls the client makes against the Sheets REST API.
type fakeSheets struct {
	mu    sync.Mutex
	rows  [][]interface{}
	calls []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/") {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"values": f.rows})
		return
	}
	_, _ = io.Copy(io.Discard, r.Body)
	_, _ = w.Write([]byte(`{}`))
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return NewWithService(svc, "sid", "Expenses", applog.Discard())
}

func TestClientAppend(t *testing.T) {
	e := core.Expense{ID: "a", Name: "Lunch", Amount: core.Cents(1250), Date: core.NewDate(2024, 3, 1)}

	t.Run("new row appends", func(t *testing.T) {
		f := &fakeSheets{}
		c := newFakeClient(t, f)
		if err := c.Append(context.Background(), "u1", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
		last := f.calls[len(f.calls)-1]
		if !strings.HasPrefix(last, "POST") || !strings.HasSuffix(last, ":append") {
			t.Errorf("expected an append call, got %v", f.calls)
		}
	})

	t.Run("existing row updates", func(t *testing.T) {
		f := &fakeSheets{rows: [][]interface{}{header, {"u1", "a"}}}
		c := newFakeClient(t, f)
		if err := c.Append(context.Background(), "u1", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
		last := f.calls[len(f.calls)-1]
		if !strings.HasPrefix(last, "PUT") {
			t.Errorf("expected an update call, got %v", f.calls)
		}
	})

	t.Run("invalid expense never reaches the API", func(t *testing.T) {
		f := &fakeSheets{}
		c := newFakeClient(t, f)
		if err := c.Append(context.Background(), "u1", core.Expense{ID: "x"}); err == nil {
			t.Fatal("expected validation error")
		}
		if len(f.calls) != 0 {
			t.Errorf("unexpected calls: %v", f.calls)
		}
	})
}

func TestClientDeleteMissingRow(t *testing.T) {
	f := &fakeSheets{rows: [][]interface{}{header, {"u2", "a"}}}
	c := newFakeClient(t, f)
	if err := c.Delete(context.Background(), "u1", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("only the read should happen, got %v", f.calls)
	}
}
