package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetcherFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  这是一段视频文字稿内容。\n"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(0)
	text, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if text != "这是一段视频文字稿内容。" {
		t.Fatalf("unexpected transcript: %q", text)
	}
}

func TestHTTPFetcherFetchEmptyReference(t *testing.T) {
	fetcher := NewHTTPFetcher(0)
	text, err := fetcher.Fetch(context.Background(), "   ")
	if err != nil {
		t.Fatalf("empty reference should not error, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
}

func TestHTTPFetcherFetchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(0)
	_, err := fetcher.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestHTTPFetcherFetchRespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1024)))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(16)
	text, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(text) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(text))
	}
}
