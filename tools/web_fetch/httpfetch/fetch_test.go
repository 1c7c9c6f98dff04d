package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetSendsHeadersAndReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte("<html><body><p>hi</p></body></html>"))
	}))
	defer srv.Close()

	status, html, err := New().Get(context.Background(), srv.URL, map[string]string{"User-Agent": "test-agent"}, time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != http.StatusOK || html != "<html><body><p>hi</p></body></html>" {
		t.Fatalf("unexpected response %d %q", status, html)
	}
}

func TestGetReturnsNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	status, _, err := New().Get(context.Background(), srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestGetTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	if _, _, err := New().Get(context.Background(), srv.URL, nil, 50*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}
