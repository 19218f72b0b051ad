package database

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ ArticleRepository = (*SQLArticleRepository)(nil)

const articleColumns = `id, slug, title, content, excerpt, author, published_at,
	COALESCE(image_url, ''), COALESCE(url, ''), source, is_updated, original_article_id,
	created_at, updated_at`

type SQLArticleRepository struct {
	db  *DB
	now func() time.Time
}

func NewArticleRepository(db *DB) *SQLArticleRepository {
	return &SQLArticleRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source.
func (r *SQLArticleRepository) WithClock(now func() time.Time) *SQLArticleRepository {
	r.now = now
	return r
}

func (r *SQLArticleRepository) Upsert(ctx context.Context, a Article) (int64, error) {
	if a.Slug == "" {
		return 0, ErrEmptySlug
	}
	if a.OriginalArticleID != nil {
		if err := r.checkParent(ctx, *a.OriginalArticleID); err != nil {
			return 0, err
		}
	}

	now := r.now()

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO articles (
			slug, title, content, excerpt, author, published_at, image_url, url,
			source, is_updated, original_article_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			content = excluded.content,
			excerpt = excluded.excerpt,
			author = excluded.author,
			published_at = excluded.published_at,
			image_url = excluded.image_url,
			updated_at = CASE
				WHEN articles.content IS NOT excluded.content
				  OR articles.excerpt IS NOT excluded.excerpt
				  OR articles.author IS NOT excluded.author
				  OR articles.published_at IS NOT excluded.published_at
				  OR articles.image_url IS NOT excluded.image_url
				THEN excluded.updated_at
				ELSE articles.updated_at
			END
		RETURNING id
	`, a.Slug, a.Title, a.Content, a.Excerpt, a.Author, nullTime(a.PublishedAt), nullString(a.ImageURL), nullString(a.URL),
		cmp.Or(a.Source, DefaultSource), a.IsUpdated, a.OriginalArticleID, now, now).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert article %q: %w", a.Slug, classify(err))
	}

	return id, nil
}

func (r *SQLArticleRepository) List(ctx context.Context) ([]Article, error) {
	return r.query(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC, id DESC`)
}

func (r *SQLArticleRepository) ListOriginals(ctx context.Context) ([]Article, error) {
	return r.query(ctx, `SELECT `+articleColumns+` FROM articles WHERE is_updated = 0 ORDER BY created_at DESC, id DESC`)
}

func (r *SQLArticleRepository) ListUpdates(ctx context.Context, originalID int64) ([]Article, error) {
	return r.query(ctx, `SELECT `+articleColumns+` FROM articles WHERE original_article_id = ? ORDER BY created_at DESC, id DESC`, originalID)
}

func (r *SQLArticleRepository) GetByID(ctx context.Context, id int64) (*Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article by ID: %w", err)
	}

	return article, nil
}

func (r *SQLArticleRepository) GetBySlug(ctx context.Context, slug string) (*Article, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)

	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article by slug: %w", err)
	}

	return article, nil
}

// Create inserts a new row and fails with ErrSlugTaken instead of merging.
func (r *SQLArticleRepository) Create(ctx context.Context, a Article) (*Article, error) {
	if a.Slug == "" {
		return nil, ErrEmptySlug
	}
	if a.IsUpdated != (a.OriginalArticleID != nil) {
		return nil, ErrInvalidLineage
	}
	if a.OriginalArticleID != nil {
		if err := r.checkParent(ctx, *a.OriginalArticleID); err != nil {
			return nil, err
		}
	}

	now := r.now()

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO articles (
			slug, title, content, excerpt, author, published_at, image_url, url,
			source, is_updated, original_article_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, a.Slug, a.Title, a.Content, a.Excerpt, a.Author, nullTime(a.PublishedAt), nullString(a.ImageURL), nullString(a.URL),
		cmp.Or(a.Source, DefaultSource), a.IsUpdated, a.OriginalArticleID, now, now).Scan(&id)

	if err != nil {
		return nil, fmt.Errorf("failed to create article %q: %w", a.Slug, classify(err))
	}

	return r.GetByID(ctx, id)
}

// checkParent keeps lineage one level deep: an update must point at an
// existing original, never at another update.
func (r *SQLArticleRepository) checkParent(ctx context.Context, id int64) error {
	parent, err := r.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: article %d does not exist", ErrInvalidLineage, id)
	}
	if err != nil {
		return err
	}
	if !parent.IsOriginal() {
		return fmt.Errorf("%w: article %d is itself an update", ErrInvalidLineage, id)
	}
	return nil
}

func (r *SQLArticleRepository) Update(ctx context.Context, id int64, u ArticleUpdate) (*Article, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE articles
		SET title = COALESCE(?, title),
		    content = COALESCE(?, content),
		    excerpt = COALESCE(?, excerpt),
		    author = COALESCE(?, author),
		    updated_at = ?
		WHERE id = ?
	`, u.Title, u.Content, u.Excerpt, u.Author, r.now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete removes the article and returns it. Updates of a deleted original
// are removed by the foreign key cascade.
func (r *SQLArticleRepository) Delete(ctx context.Context, id int64) (*Article, error) {
	article, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete article: %w", err)
	}

	return article, nil
}

func (r *SQLArticleRepository) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_updated = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_updated = 1 THEN 1 ELSE 0 END), 0)
		FROM articles
	`).Scan(&c.Total, &c.Originals, &c.Updates)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count articles: %w", err)
	}
	return c, nil
}

func (r *SQLArticleRepository) query(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(s scanner) (*Article, error) {
	var (
		a           Article
		publishedAt sql.NullTime
		originalID  sql.NullInt64
	)

	err := s.Scan(
		&a.ID, &a.Slug, &a.Title, &a.Content, &a.Excerpt, &a.Author, &publishedAt,
		&a.ImageURL, &a.URL, &a.Source, &a.IsUpdated, &originalID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		a.PublishedAt = &t
	}
	if originalID.Valid {
		id := originalID.Int64
		a.OriginalArticleID = &id
	}

	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// classify maps constraint violations onto the package's sentinel errors.
func classify(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}

	msg := sqliteErr.Error()
	switch {
	case sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE, strings.Contains(msg, "UNIQUE"):
		return fmt.Errorf("%w: %v", ErrSlugTaken, err)
	case strings.Contains(msg, "slug <> ''"):
		return fmt.Errorf("%w: %v", ErrEmptySlug, err)
	case sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, strings.Contains(msg, "FOREIGN KEY"), strings.Contains(msg, "CHECK"):
		return fmt.Errorf("%w: %v", ErrInvalidLineage, err)
	}
	return err
}
