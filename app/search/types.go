package search

import (
	"context"
	"fmt"
)

// Result is one organic entry returned by the search provider.
type Result struct {
	Position  int    `json:"position"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Snippet   string `json:"snippet,omitempty"`
	IsAd      bool   `json:"is_ad,omitempty"`
	Sponsored bool   `json:"sponsored,omitempty"`
}

// Reference is a usable external article for the rewrite step.
type Reference struct {
	Title string
	Link  string
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// ProviderError carries the provider's response when it rejects a request.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider error: status %d: %s", e.StatusCode, e.Body)
}
