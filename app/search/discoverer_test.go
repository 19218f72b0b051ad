package search

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockSearcher struct {
	results []Result
	err     error
	queries []string
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]Result, error) {
	m.queries = append(m.queries, query)
	return m.results, m.err
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Chatbots for Hospitals - BeyondChats", "Chatbots for Hospitals"},
		{"Chatbots for Hospitals | beyondchats", "Chatbots for Hospitals"},
		{"Chatbots for Hospitals – BEYONDCHATS", "Chatbots for Hospitals"},
		{"Why BeyondChats Works", "Why Works"},
		{"Plain title", "Plain title"},
		{"  Spaced   out  ", "Spaced out"},
	}

	for _, tt := range tests {
		if got := CleanTitle(tt.title, "beyondchats"); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}

	if got := CleanTitle("Title - Acme", ""); got != "Title - Acme" {
		t.Errorf("Expected empty brand to leave title intact, got %q", got)
	}
}

func TestSameSite(t *testing.T) {
	tests := []struct {
		host   string
		domain string
		want   bool
	}{
		{"beyondchats.com", "beyondchats.com", true},
		{"www.beyondchats.com", "beyondchats.com", true},
		{"blog.BeyondChats.com", "beyondchats.com", true},
		{"notbeyondchats.com", "beyondchats.com", false},
		{"example.co.uk", "other.co.uk", false},
		{"localhost", "localhost", true},
	}

	for _, tt := range tests {
		if got := SameSite(tt.host, tt.domain); got != tt.want {
			t.Errorf("SameSite(%q, %q) = %v, want %v", tt.host, tt.domain, got, tt.want)
		}
	}
}

func TestDiscoverer_FiltersSelfDomainAndAds(t *testing.T) {
	searcher := &mockSearcher{results: []Result{
		{Title: "Own post", Link: "https://beyondchats.com/blogs/x/"},
		{Title: "Sponsored", Link: "https://ads.example.com/", IsAd: true},
		{Title: "Paid", Link: "https://paid.example.com/", Sponsored: true},
		{Title: "Subdomain", Link: "https://www.beyondchats.com/other/"},
		{Title: "Broken", Link: "::not a url"},
		{Title: "First", Link: "https://first.example.com/a"},
		{Title: "Second", Link: "https://second.example.org/b"},
		{Title: "Third", Link: "https://third.example.net/c"},
	}}

	d := NewDiscoverer(searcher, "beyondchats.com", "beyondchats")

	refs, err := d.Discover(context.Background(), "Chatbots for Hospitals - BeyondChats")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("Expected 2 references, got %d: %+v", len(refs), refs)
	}
	if refs[0].Title != "First" || refs[1].Title != "Second" {
		t.Errorf("Expected provider order First, Second; got %+v", refs)
	}

	for _, r := range refs {
		if strings.Contains(r.Link, "beyondchats.com") {
			t.Errorf("Self-domain link leaked: %s", r.Link)
		}
	}

	if len(searcher.queries) != 1 || searcher.queries[0] != "Chatbots for Hospitals -site:beyondchats.com" {
		t.Errorf("Unexpected query: %v", searcher.queries)
	}
}

func TestDiscoverer_FewerThanLimit(t *testing.T) {
	searcher := &mockSearcher{results: []Result{
		{Title: "Only", Link: "https://only.example.com/"},
		{Title: "Own", Link: "https://beyondchats.com/"},
	}}

	refs, err := NewDiscoverer(searcher, "beyondchats.com", "beyondchats").Discover(context.Background(), "Title")
	if err != nil {
		t.Fatalf("Expected no error for a short result list, got %v", err)
	}
	if len(refs) != 1 {
		t.Errorf("Expected 1 reference, got %d", len(refs))
	}
}

func TestDiscoverer_ProviderError(t *testing.T) {
	searcher := &mockSearcher{err: &ProviderError{StatusCode: 401, Body: "Invalid API key"}}

	_, err := NewDiscoverer(searcher, "beyondchats.com", "beyondchats").Discover(context.Background(), "Title")

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if providerErr.Body != "Invalid API key" {
		t.Errorf("Expected provider payload to be kept, got %q", providerErr.Body)
	}
}
