package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/notification_central/internal/ratelimit"
)

var testProps = PropertyNames{
	Title:         "Name",
	Active:        "Is Active?",
	Tempo:         "Tempo",
	Primed:        "Primed?",
	TriggerKey:    "Trigger: Key",
	TriggerToggle: "Trigger: Toggle",
}

const firstPage = `{
  "object": "list",
  "results": [
    {
      "object": "page",
      "id": "page-1",
      "properties": {
        "Name": {"type": "title", "title": [{"plain_text": "Morning "}, {"plain_text": "standup"}]},
        "Is Active?": {"type": "checkbox", "checkbox": true},
        "Tempo": {"type": "rich_text", "rich_text": [{"plain_text": " 9.1, 13.3 "}]},
        "Primed?": {"type": "formula", "formula": {"type": "boolean", "boolean": true}},
        "Trigger: Toggle": {"type": "checkbox", "checkbox": false}
      }
    },
    {"object": "database", "id": "not-a-page", "properties": {}}
  ],
  "has_more": true,
  "next_cursor": "cursor-2"
}`

const secondPage = `{
  "object": "list",
  "results": [
    {
      "object": "page",
      "id": "page-2",
      "properties": {
        "Name": {"type": "title", "title": []},
        "Is Active?": {"type": "checkbox", "checkbox": false},
        "Tempo": {"type": "formula", "formula": {"type": "string", "string": "7.4"}},
        "Trigger: Toggle": {"type": "rich_text", "rich_text": []}
      }
    }
  ],
  "has_more": false,
  "next_cursor": null
}`

type countingBucket struct{ n atomic.Int32 }

func (b *countingBucket) Acquire() { b.n.Add(1) }

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type fakeNotion struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r recordedRequest)
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	_ = json.Unmarshal(raw, &rec.Body)
	if r.Header.Get("Notion-Version") == "" {
		http.Error(w, "missing version", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handler(w, rec)
}

func newTestStore(t *testing.T, f *fakeNotion, bucket *countingBucket) *Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	var acq ratelimit.Acquirer
	if bucket != nil {
		acq = bucket
	}
	client, err := NewClient(ClientConfig{APIKey: "secret_test", BaseURL: srv.URL}, acq)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewStore(client, "db-1", testProps, "NC_TRIGGER_V1", zerolog.Nop())
}

func TestFetchAllPagesAndDecodes(t *testing.T) {
	f := &fakeNotion{handler: func(w http.ResponseWriter, r recordedRequest) {
		if r.Body["start_cursor"] == "cursor-2" {
			io.WriteString(w, secondPage)
			return
		}
		io.WriteString(w, firstPage)
	}}
	bucket := &countingBucket{}
	store := newTestStore(t, f, bucket)

	defs, err := store.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	if bucket.n.Load() != 2 {
		t.Fatalf("bucket acquired %d times, want one per query page", bucket.n.Load())
	}

	first := defs[0]
	if first.ID != "page-1" || first.Name != "Morning standup" || !first.Active || first.Tempo != "9.1, 13.3" {
		t.Fatalf("unexpected first definition: %+v", first)
	}
	if first.Primed == nil || !*first.Primed {
		t.Fatal("primed formula should decode to true")
	}
	if first.TriggerToggle == nil || *first.TriggerToggle {
		t.Fatal("trigger toggle should decode to false")
	}

	second := defs[1]
	if second.Name != "page-2" {
		t.Fatalf("blank title should fall back to page id, got %q", second.Name)
	}
	if second.Active || second.Tempo != "7.4" {
		t.Fatalf("unexpected second definition: %+v", second)
	}
	if second.TriggerToggle != nil || second.Primed != nil {
		t.Fatalf("non-checkbox or missing flags should be unknown: %+v", second)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests[0].Path != "/databases/db-1/query" || f.requests[0].Auth != "Bearer secret_test" {
		t.Fatalf("unexpected request: %+v", f.requests[0])
	}
	if size, _ := f.requests[0].Body["page_size"].(float64); size != 100 {
		t.Fatalf("page_size = %v, want 100", f.requests[0].Body["page_size"])
	}
	if _, ok := f.requests[0].Body["start_cursor"]; ok {
		t.Fatal("first query must not send a cursor")
	}
}

func TestFetchAllSurfacesAPIError(t *testing.T) {
	f := &fakeNotion{handler: func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`)
	}}
	store := newTestStore(t, f, nil)

	_, err := store.FetchAll(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("FetchAll() error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "unauthorized" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestWriteTriggerPatchesPage(t *testing.T) {
	f := &fakeNotion{handler: func(w http.ResponseWriter, _ recordedRequest) {
		io.WriteString(w, `{"object":"page","id":"page-1"}`)
	}}
	bucket := &countingBucket{}
	store := newTestStore(t, f, bucket)

	if err := store.WriteTrigger(context.Background(), "page-1"); err != nil {
		t.Fatalf("WriteTrigger() error = %v", err)
	}
	if bucket.n.Load() != 0 {
		t.Fatal("write path must not acquire from the bucket")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	req := f.requests[0]
	if req.Method != http.MethodPatch || req.Path != "/pages/page-1" {
		t.Fatalf("unexpected request %s %s", req.Method, req.Path)
	}
	encoded, _ := json.Marshal(req.Body)
	for _, want := range []string{
		`"Trigger: Toggle":{"checkbox":true}`,
		`"content":"NC_TRIGGER_V1"`,
	} {
		if !strings.Contains(string(encoded), want) {
			t.Fatalf("body %s missing %s", encoded, want)
		}
	}
}

func TestWriteTriggerNonJSONError(t *testing.T) {
	f := &fakeNotion{handler: func(w http.ResponseWriter, _ recordedRequest) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	}}
	store := newTestStore(t, f, nil)

	err := store.WriteTrigger(context.Background(), "page-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Fatalf("WriteTrigger() error = %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, nil); err == nil {
		t.Fatal("expected missing key to fail")
	}
}
