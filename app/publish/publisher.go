package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/slug"
)

const (
	TitleSuffix = " (Updated)"
	URLMarker   = "updated"
)

var (
	ErrNotOriginal  = errors.New("only original articles can be published as updates")
	ErrSlugConflict = errors.New("derived slug belongs to an unrelated article")
)

// Notifier is told about every stored update.
type Notifier interface {
	ArticlePublished(ctx context.Context, article database.Article) error
}

type Publisher struct {
	repo     database.ArticleRepository
	notifier Notifier
}

func NewPublisher(repo database.ArticleRepository) *Publisher {
	return &Publisher{repo: repo}
}

func (p *Publisher) WithNotifier(n Notifier) *Publisher {
	p.notifier = n
	return p
}

// Publish stores content as the update of original. Publishing the same
// original again overwrites its previous update in place.
func (p *Publisher) Publish(ctx context.Context, original database.Article, content string) (database.Article, error) {
	if !original.IsOriginal() || original.ID == 0 {
		return database.Article{}, fmt.Errorf("%w: article %q", ErrNotOriginal, original.Slug)
	}

	update := Derive(original, content)

	existing, err := p.repo.GetBySlug(ctx, update.Slug)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return database.Article{}, fmt.Errorf("failed to check slug %q: %w", update.Slug, err)
	case existing.OriginalArticleID == nil || *existing.OriginalArticleID != original.ID:
		return database.Article{}, fmt.Errorf("%w: %q", ErrSlugConflict, update.Slug)
	}

	id, err := p.repo.Upsert(ctx, update)
	if err != nil {
		return database.Article{}, fmt.Errorf("failed to store update of %q: %w", original.Slug, err)
	}

	stored, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return database.Article{}, fmt.Errorf("failed to reload update %d: %w", id, err)
	}

	if p.notifier != nil {
		if err := p.notifier.ArticlePublished(ctx, *stored); err != nil {
			slog.Warn("Failed to send publish notification", "slug", stored.Slug, "stage", "publish", "error", err)
		}
	}

	return *stored, nil
}

// Derive builds the update record without touching the store.
func Derive(original database.Article, content string) database.Article {
	originalID := original.ID

	return database.Article{
		Slug:              slug.Updated(original.Slug),
		Title:             original.Title + TitleSuffix,
		Content:           content,
		Excerpt:           original.Excerpt,
		Author:            original.Author,
		PublishedAt:       original.PublishedAt,
		ImageURL:          original.ImageURL,
		URL:               markURL(original.URL),
		Source:            original.Source,
		IsUpdated:         true,
		OriginalArticleID: &originalID,
	}
}

// markURL adds the updated=true query marker. Unparsable addresses are
// kept as they are so the update still points somewhere.
func markURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	q.Set(URLMarker, "true")
	u.RawQuery = q.Encode()
	return u.String()
}
