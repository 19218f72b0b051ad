package database

import (
	"context"
)

type ArticleRepository interface {
	// Upsert inserts by slug or, on conflict, overwrites content, excerpt,
	// author, published_at and image_url.
	Upsert(ctx context.Context, article Article) (int64, error)

	List(ctx context.Context) ([]Article, error)
	ListOriginals(ctx context.Context) ([]Article, error)
	ListUpdates(ctx context.Context, originalID int64) ([]Article, error)

	GetByID(ctx context.Context, id int64) (*Article, error)
	GetBySlug(ctx context.Context, slug string) (*Article, error)

	Create(ctx context.Context, article Article) (*Article, error)
	Update(ctx context.Context, id int64, update ArticleUpdate) (*Article, error)
	Delete(ctx context.Context, id int64) (*Article, error)

	Count(ctx context.Context) (Counts, error)
}
