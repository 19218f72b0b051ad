package database

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("article not found")
	ErrSlugTaken      = errors.New("slug already exists")
	ErrEmptySlug      = errors.New("article slug is empty")
	ErrInvalidLineage = errors.New("updated articles must reference an existing original")
)

const DefaultSource = "beyondchats"

// Article is either an original (IsUpdated false, no OriginalArticleID)
// or an update pointing back at exactly one original.
type Article struct {
	ID                int64
	Slug              string
	Title             string
	Content           string // HTML
	Excerpt           string
	Author            string
	PublishedAt       *time.Time
	ImageURL          string
	URL               string
	Source            string
	IsUpdated         bool
	OriginalArticleID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (a Article) IsOriginal() bool {
	return !a.IsUpdated && a.OriginalArticleID == nil
}

// ArticleUpdate carries the editable fields; nil leaves a field unchanged.
type ArticleUpdate struct {
	Title   *string
	Content *string
	Excerpt *string
	Author  *string
}

type Counts struct {
	Total     int
	Originals int
	Updates   int
}
