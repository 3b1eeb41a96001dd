package intentapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/careflow-io/careflow/internal/adapter/intentapi"
	"github.com/careflow-io/careflow/internal/domain"
	"github.com/careflow-io/careflow/internal/domain/intent"
	"github.com/careflow-io/careflow/internal/resilience"
)

func testClient(url string, maxRetries int) *intentapi.Client {
	retry := resilience.NewRetryPolicy(time.Second, maxRetries, time.Millisecond, 2)
	return intentapi.NewClient(url, retry, resilience.NewBreaker(100, time.Minute))
}

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"intent":"REFUND_REQUEST","confidence":0.92}`))
	}))
	defer srv.Close()

	pred, err := testClient(srv.URL, 0).Classify(context.Background(), "refund for ORD001, damaged")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if pred.Intent != intent.RefundRequest || pred.Confidence != 0.92 {
		t.Errorf("pred = %+v", pred)
	}
}

func TestClassifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"intent":"STATUS_QUERY","confidence":0.8}`))
	}))
	defer srv.Close()

	pred, err := testClient(srv.URL, 2).Classify(context.Background(), "where is my order")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if pred.Intent != intent.StatusQuery {
		t.Errorf("intent = %s", pred.Intent)
	}
}

func TestClassifyExhaustedRetriesReturnUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Classify(context.Background(), "hello")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (2 retries)", calls.Load())
	}
}

func TestClassifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, 2).Classify(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"TRACKING","confidence":1.7}`))
	}))
	defer srv.Close()

	pred, err := testClient(srv.URL, 0).Classify(context.Background(), "track it")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if pred.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", pred.Confidence)
	}
}
