package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/careflow-io/careflow/internal/middleware"
)

// mockKV is an in-memory stand-in for the JetStream KV bucket.
type mockKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockEntry{key: key, value: v}, nil
}

func (m *mockKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return 1, nil
}

// Remaining jetstream.KeyValue interface methods are unused no-ops.
func (m *mockKV) Bucket() string { return "test" }
func (m *mockKV) Create(_ context.Context, _ string, _ []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	return 0, nil
}
func (m *mockKV) Update(_ context.Context, _ string, _ []byte, _ uint64) (uint64, error) {
	return 0, nil
}
func (m *mockKV) PutString(_ context.Context, _, _ string) (uint64, error)             { return 0, nil }
func (m *mockKV) Delete(_ context.Context, _ string, _ ...jetstream.KVDeleteOpt) error { return nil }
func (m *mockKV) Purge(_ context.Context, _ string, _ ...jetstream.KVDeleteOpt) error  { return nil }
func (m *mockKV) GetRevision(_ context.Context, _ string, _ uint64) (jetstream.KeyValueEntry, error) {
	return nil, nil
}
func (m *mockKV) Keys(_ context.Context, _ ...jetstream.WatchOpt) ([]string, error) { return nil, nil }
func (m *mockKV) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	return nil, nil
}
func (m *mockKV) ListKeysFiltered(_ context.Context, _ ...string) (jetstream.KeyLister, error) {
	return nil, nil
}
func (m *mockKV) History(_ context.Context, _ string, _ ...jetstream.WatchOpt) ([]jetstream.KeyValueEntry, error) {
	return nil, nil
}
func (m *mockKV) Watch(_ context.Context, _ string, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return nil, nil
}
func (m *mockKV) WatchAll(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return nil, nil
}
func (m *mockKV) WatchFiltered(_ context.Context, _ []string, _ ...jetstream.WatchOpt) (jetstream.KeyWatcher, error) {
	return nil, nil
}
func (m *mockKV) Status(_ context.Context) (jetstream.KeyValueStatus, error)      { return nil, nil }
func (m *mockKV) PurgeDeletes(_ context.Context, _ ...jetstream.KVPurgeOpt) error { return nil }

// mockEntry implements jetstream.KeyValueEntry.
type mockEntry struct {
	key   string
	value []byte
}

func (e *mockEntry) Bucket() string                  { return "test" }
func (e *mockEntry) Key() string                     { return e.key }
func (e *mockEntry) Value() []byte                   { return e.value }
func (e *mockEntry) Revision() uint64                { return 1 }
func (e *mockEntry) Created() time.Time              { return time.Time{} }
func (e *mockEntry) Delta() uint64                   { return 0 }
func (e *mockEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

// submissionHandler simulates the message endpoint: each real invocation is
// a workflow run, so replays must not increment the counter.
func submissionHandler(runs *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*runs++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"run":%d}`, *runs)
	})
}

func TestIdempotencyNoHeaderPassesThrough(t *testing.T) {
	runs := 0
	handler := middleware.Idempotency(newMockKV())(submissionHandler(&runs))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || runs != 1 {
		t.Fatalf("code=%d runs=%d, want 200 and 1 run", rec.Code, runs)
	}
}

func TestIdempotencyReplaysRepeatSubmission(t *testing.T) {
	runs := 0
	handler := middleware.Idempotency(newMockKV())(submissionHandler(&runs))

	for i := range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", http.NoBody)
		req.Header.Set("Idempotency-Key", "turn-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: code = %d, want 200", i+1, rec.Code)
		}
		if body := rec.Body.String(); body != `{"run":1}` {
			t.Fatalf("attempt %d: body = %s, want the first run's response", i+1, body)
		}
	}
	if runs != 1 {
		t.Fatalf("workflow ran %d times, want exactly 1", runs)
	}
}

func TestIdempotencyDistinctKeysRunSeparately(t *testing.T) {
	runs := 0
	handler := middleware.Idempotency(newMockKV())(submissionHandler(&runs))

	for _, key := range []string{"turn-1", "turn-2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", http.NoBody)
		req.Header.Set("Idempotency-Key", key)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if runs != 2 {
		t.Fatalf("workflow ran %d times, want 2", runs)
	}
}

func TestIdempotencyIgnoresReads(t *testing.T) {
	runs := 0
	handler := middleware.Idempotency(newMockKV())(submissionHandler(&runs))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", http.NoBody)
	req.Header.Set("Idempotency-Key", "turn-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), req.Clone(req.Context()))

	if runs != 2 {
		t.Fatalf("reads deduplicated: runs = %d, want 2", runs)
	}
}
