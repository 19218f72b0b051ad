package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	p := Default()

	if p.Domain != "beyondchats.com" {
		t.Errorf("Expected domain beyondchats.com, got %s", p.Domain)
	}
	if p.StartPage != 15 {
		t.Errorf("Expected start page 15, got %d", p.StartPage)
	}
	if err := validate(p); err != nil {
		t.Errorf("Default profile should be valid: %v", err)
	}
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Name != "beyondchats" {
		t.Errorf("Expected default profile, got %s", p.Name)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.yml")

	content := `
name: example
domain: example.com
brand: Example
start_page: 3
listing:
  url: https://example.com/posts/page/%d
  item: article.post
  link: h2 a
selectors:
  author:
    - selector: .byline
  published_at:
    - selector: time
      attr: datetime
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write profile: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if p.Name != "example" || p.Brand != "Example" {
		t.Errorf("Unexpected profile identity: %+v", p)
	}
	if p.Listing.Kind != ListingHTML {
		t.Errorf("Expected html listing by default, got %s", p.Listing.Kind)
	}
	if p.StartPage != 3 {
		t.Errorf("Expected start page 3, got %d", p.StartPage)
	}
	if len(p.Selectors.PublishedAt) != 1 || p.Selectors.PublishedAt[0].Attr != "datetime" {
		t.Errorf("Expected published_at rule with datetime attr, got %+v", p.Selectors.PublishedAt)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing domain", "listing:\n  url: https://x.com/page/%d\n"},
		{"missing placeholder", "domain: x.com\nlisting:\n  url: https://x.com/page/\n"},
		{"bad listing kind", "domain: x.com\nlisting:\n  kind: json\n  url: https://x.com/\n"},
		{"bad selector", "domain: x.com\nlisting:\n  url: https://x.com/page/%d\nselectors:\n  title:\n    - selector: 'h1[['\n"},
		{"empty selector", "domain: x.com\nlisting:\n  url: https://x.com/page/%d\nselectors:\n  image:\n    - attr: src\n"},
		{"malformed yaml", "domain: [x.com\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestParse_FeedListing(t *testing.T) {
	p, err := Parse([]byte("domain: x.com\nlisting:\n  kind: feed\n  url: https://x.com/feed/\n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if p.Listing.Kind != ListingFeed {
		t.Errorf("Expected feed listing, got %s", p.Listing.Kind)
	}
}
