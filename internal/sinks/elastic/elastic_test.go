package elastic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenso/internal/core"
	applog "expenso/internal/log"
	"expenso/internal/sinks"
)

type recorded struct {
	method, path string
	body         string
}

type fakeES struct {
	mu     sync.Mutex
	reqs   []recorded
	status int
	reply  string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.reqs = append(f.reqs, recorded{r.Method, r.URL.Path, string(body)})
	status, reply := f.status, f.reply
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	if reply == "" {
		reply = `{}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func newFake(t *testing.T, f *fakeES) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New([]string{srv.URL}, "expenso-test", applog.Discard())
	require.NoError(t, err)
	return c
}

var lunch = core.Expense{ID: "e1", Name: "Lunch", Amount: core.Cents(1250), Category: core.FoodDining, Date: core.NewDate(2024, 3, 1)}

func TestAppendIndexesDocument(t *testing.T) {
	f := &fakeES{status: http.StatusCreated, reply: `{"result":"created"}`}
	c := newFake(t, f)

	require.NoError(t, c.Append(context.Background(), "u1", lunch))
	require.Len(t, f.reqs, 1)
	assert.Contains(t, f.reqs[0].path, "/expenso-test/_doc/u1:e1")

	var doc sinks.Document
	require.NoError(t, json.Unmarshal([]byte(f.reqs[0].body), &doc))
	assert.Equal(t, "u1", doc.UserID)
	assert.Equal(t, int64(1250), doc.AmountCents)
	assert.Equal(t, "12.50", doc.Amount)
	assert.Equal(t, "2024-03-01", doc.Date)
	assert.Equal(t, "2024-03", doc.Month)
}

func TestAppendSurfacesErrors(t *testing.T) {
	f := &fakeES{status: http.StatusBadRequest, reply: `{"error":{"type":"mapper_parsing_exception","reason":"bad date"}}`}
	c := newFake(t, f)

	err := c.Append(context.Background(), "u1", lunch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestDeleteIgnoresMissing(t *testing.T) {
	f := &fakeES{status: http.StatusNotFound, reply: `{"result":"not_found"}`}
	c := newFake(t, f)
	assert.NoError(t, c.Delete(context.Background(), "u1", "e1"))
	require.Len(t, f.reqs, 1)
	assert.Equal(t, http.MethodDelete, f.reqs[0].method)
}

func TestResyncEmptyOnlyDeletes(t *testing.T) {
	f := &fakeES{reply: `{"deleted":3}`}
	c := newFake(t, f)
	require.NoError(t, c.Resync(context.Background(), "u1", nil))
	require.Len(t, f.reqs, 1)
	assert.True(t, strings.HasSuffix(f.reqs[0].path, "/_delete_by_query"))
	assert.Contains(t, f.reqs[0].body, `"userId":"u1"`)
}

func TestDocumentForBlankCategory(t *testing.T) {
	e := lunch
	e.Category = ""
	doc := sinks.NewDocument("u1", e)
	assert.Equal(t, "Uncategorized", doc.Category)
	assert.Equal(t, "u1:e1", sinks.DocumentID("u1", "e1"))
}
