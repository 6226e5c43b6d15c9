package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fecha,hora,ocupacion\n10/6/24,9:05,40\n"))
	}))
	defer srv.Close()

	f := New(testLogger(), srv.Client(), nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if body == "" {
		t.Error("expected a non-empty body")
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(testLogger(), srv.Client(), nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(testLogger(), srv.Client(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error %v is not ErrTransport", err)
	}
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testLogger(), srv.Client(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("error %v is not ErrTransport", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 was retried: %d calls", calls.Load())
	}
}

func TestFetchUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("cached body"))
	}))
	defer srv.Close()

	f := New(testLogger(), srv.Client(), NewCache(time.Minute))
	for range 3 {
		body, err := f.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if body != "cached body" {
			t.Errorf("body = %q", body)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("origin saw %d calls, want 1", calls.Load())
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("k", []byte("v"))
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected fresh entry to be present")
	}
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}
