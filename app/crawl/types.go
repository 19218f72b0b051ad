package crawl

import (
	"context"
)

// Candidate is an article reference found on a listing page.
type Candidate struct {
	Title   string
	Slug    string
	Link    string
	Excerpt string
}

// Lister returns the candidates on one listing page in document order.
type Lister interface {
	List(ctx context.Context, page int) ([]Candidate, error)
}

// Getter is the HTTP capability listers need.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}
