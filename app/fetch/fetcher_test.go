package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcher_Get_SendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	f := NewFetcher(nil, "Mozilla/5.0 Test", 5*time.Second, 0)

	data, err := f.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(data), "ok") {
		t.Errorf("Unexpected body: %s", data)
	}
	if gotUA != "Mozilla/5.0 Test" {
		t.Errorf("Expected browser user agent, got %q", gotUA)
	}
}

func TestFetcher_Get_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := NewFetcher(nil, "ua", 5*time.Second, 0)

	_, err := f.Get(context.Background(), server.URL)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", statusErr.StatusCode)
	}
}

func TestFetcher_Get_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	f := NewFetcher(nil, "ua", 50*time.Millisecond, 0)

	start := time.Now()
	if _, err := f.Get(context.Background(), server.URL); err == nil {
		t.Fatal("Expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("Expected the request to be bounded by the timeout, took %v", time.Since(start))
	}
}

func TestFetcher_Get_LimitsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer server.Close()

	f := NewFetcher(nil, "ua", 5*time.Second, 10)

	data, err := f.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(data) != 10 {
		t.Errorf("Expected body capped at 10 bytes, got %d", len(data))
	}
}
