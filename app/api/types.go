package api

import (
	"time"

	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/feed"
	"github.com/blogsmith/refresher/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, articles []database.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	repo      database.ArticleRepository
	scheduler tasks.TaskSchedulerInterface
	ingester  tasks.Ingester
	augmenter tasks.Augmenter
	crawl     CrawlDefaults
	generator GeneratorInterface
	channel   feed.Channel
	version   string

	// augmentCheck reports why augmentation cannot run; nil error means ready.
	augmentCheck func() error
}

// CrawlDefaults fills in crawl requests and bounds what a request may ask for.
type CrawlDefaults struct {
	Target       int
	StartPage    int
	MaxTarget    int
	MaxStartPage int
}

// ArticleResponse serves both snake_case and camelCase consumers, so
// multi-word fields appear under both spellings.
type ArticleResponse struct {
	ID                     int64      `json:"id"`
	Slug                   string     `json:"slug"`
	Title                  string     `json:"title"`
	Content                string     `json:"content"`
	Excerpt                string     `json:"excerpt"`
	Author                 string     `json:"author"`
	PublishedAt            *time.Time `json:"published_at"`
	PublishedAtCamel       *time.Time `json:"publishedAt"`
	ImageURL               *string    `json:"image_url"`
	ImageURLCamel          *string    `json:"imageUrl"`
	URL                    *string    `json:"url"`
	Source                 string     `json:"source"`
	IsUpdated              bool       `json:"is_updated"`
	IsUpdatedCamel         bool       `json:"isUpdated"`
	OriginalArticleID      *int64     `json:"original_article_id"`
	OriginalArticleIDCamel *int64     `json:"originalArticleId"`
	CreatedAt              time.Time  `json:"created_at"`
	CreatedAtCamel         time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updated_at"`
	UpdatedAtCamel         time.Time  `json:"updatedAt"`
}

func newArticleResponse(a database.Article) ArticleResponse {
	return ArticleResponse{
		ID:                     a.ID,
		Slug:                   a.Slug,
		Title:                  a.Title,
		Content:                a.Content,
		Excerpt:                a.Excerpt,
		Author:                 a.Author,
		PublishedAt:            a.PublishedAt,
		PublishedAtCamel:       a.PublishedAt,
		ImageURL:               optional(a.ImageURL),
		ImageURLCamel:          optional(a.ImageURL),
		URL:                    optional(a.URL),
		Source:                 a.Source,
		IsUpdated:              a.IsUpdated,
		IsUpdatedCamel:         a.IsUpdated,
		OriginalArticleID:      a.OriginalArticleID,
		OriginalArticleIDCamel: a.OriginalArticleID,
		CreatedAt:              a.CreatedAt,
		CreatedAtCamel:         a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
		UpdatedAtCamel:         a.UpdatedAt,
	}
}

func newArticleResponses(articles []database.Article) []ArticleResponse {
	out := make([]ArticleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, newArticleResponse(a))
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ArticleRequest accepts either spelling of multi-word fields. When both
// are present the snake_case value wins.
type ArticleRequest struct {
	Slug                   *string    `json:"slug"`
	Title                  *string    `json:"title"`
	Content                *string    `json:"content"`
	Excerpt                *string    `json:"excerpt"`
	Author                 *string    `json:"author"`
	PublishedAt            *time.Time `json:"published_at"`
	PublishedAtCamel       *time.Time `json:"publishedAt"`
	ImageURL               *string    `json:"image_url"`
	ImageURLCamel          *string    `json:"imageUrl"`
	URL                    *string    `json:"url"`
	Source                 *string    `json:"source"`
	IsUpdated              *bool      `json:"is_updated"`
	IsUpdatedCamel         *bool      `json:"isUpdated"`
	OriginalArticleID      *int64     `json:"original_article_id"`
	OriginalArticleIDCamel *int64     `json:"originalArticleId"`
}

type VersionsResponse struct {
	Original ArticleResponse   `json:"original"`
	Updates  []ArticleResponse `json:"updates"`
}

type CrawlRequest struct {
	Target    int `json:"target"`
	StartPage int `json:"start_page"`
}

type AugmentRequest struct {
	IDs []int64 `json:"ids"`
}
