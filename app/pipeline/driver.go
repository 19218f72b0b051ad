package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/metrics"
	"github.com/blogsmith/refresher/app/publish"
	"github.com/blogsmith/refresher/app/rewrite"
	"github.com/blogsmith/refresher/app/search"
)

// Per-stage payloads. Each transition takes the previous payload and
// produces the next, so the stages can be driven one at a time.
type (
	Fetched struct {
		Article database.Article
	}

	Searched struct {
		Fetched
		References []search.Reference
	}

	Scraped struct {
		Searched
		Texts []rewrite.ReferenceText
	}

	Rewritten struct {
		Scraped
		Content string
	}
)

// Driver augments originals one at a time:
// fetched -> searched -> scraped -> rewritten -> published.
type Driver struct {
	repo       database.ArticleRepository
	discoverer Discoverer
	scraper    Scraper
	rewriter   Rewriter
	publisher  Publisher
}

func NewDriver(repo database.ArticleRepository, discoverer Discoverer, scraper Scraper, rewriter Rewriter, publisher Publisher) *Driver {
	return &Driver{
		repo:       repo,
		discoverer: discoverer,
		scraper:    scraper,
		rewriter:   rewriter,
		publisher:  publisher,
	}
}

// Run processes the given article ids, or every original when none are
// given. A failing article never stops the batch.
func (d *Driver) Run(ctx context.Context, ids ...int64) (Report, error) {
	start := time.Now()
	var report Report

	originals, err := d.load(ctx, ids, &report)
	if err != nil {
		return report, err
	}

	for _, article := range originals {
		if ctx.Err() != nil {
			slog.Warn("Augmentation cancelled", "published", report.Published, "error", ctx.Err())
			break
		}

		outcome := d.Process(ctx, Fetched{Article: article})
		metrics.PipelineArticles.WithLabelValues(string(outcome.Stage)).Inc()
		report.add(outcome)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (d *Driver) load(ctx context.Context, ids []int64, report *Report) ([]database.Article, error) {
	if len(ids) == 0 {
		originals, err := d.repo.ListOriginals(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list originals: %w", err)
		}
		return originals, nil
	}

	originals := make([]database.Article, 0, len(ids))
	for _, id := range ids {
		article, err := d.repo.GetByID(ctx, id)
		if err != nil {
			slog.Error("Failed to load article", "id", id, "stage", StageFetched, "error", err)
			report.add(Outcome{ID: id, Stage: StageFailed, At: StageFetched, Err: err})
			continue
		}
		if !article.IsOriginal() {
			slog.Info("Skipping non-original article", "id", id, "slug", article.Slug)
			report.add(Outcome{ID: id, Slug: article.Slug, Title: article.Title, Stage: StageSkipped, At: StageFetched, Err: publish.ErrNotOriginal})
			continue
		}
		originals = append(originals, *article)
	}
	return originals, nil
}

// Process drives one article through every transition.
func (d *Driver) Process(ctx context.Context, f Fetched) Outcome {
	outcome := Outcome{ID: f.Article.ID, Slug: f.Article.Slug, Title: f.Article.Title}

	stop := func(stage, at Stage, err error) Outcome {
		outcome.Stage, outcome.At, outcome.Err = stage, at, err
		if stage == StageSkipped {
			slog.Info("Article skipped", "slug", outcome.Slug, "title", outcome.Title, "stage", at, "reason", err)
		} else {
			slog.Error("Article failed", "slug", outcome.Slug, "title", outcome.Title, "stage", at, "error", err)
		}
		return outcome
	}

	s, err := d.Search(ctx, f)
	if errors.Is(err, ErrInsufficientReferences) {
		return stop(StageSkipped, StageSearched, err)
	}
	if err != nil {
		return stop(StageFailed, StageSearched, err)
	}

	r, err := d.Rewrite(ctx, d.Scrape(ctx, s))
	if err != nil {
		return stop(StageFailed, StageRewritten, err)
	}

	published, err := d.Publish(ctx, r)
	if err != nil {
		return stop(StageFailed, StagePublished, err)
	}

	slog.Info("Article published", "slug", outcome.Slug, "id", published.ID, "updated_slug", published.Slug)

	outcome.Stage, outcome.At, outcome.PublishedID = StagePublished, StagePublished, published.ID
	return outcome
}

// Search fails with ErrInsufficientReferences when fewer than
// MinReferences usable results come back.
func (d *Driver) Search(ctx context.Context, f Fetched) (Searched, error) {
	refs, err := d.discoverer.Discover(ctx, f.Article.Title)
	if err != nil {
		return Searched{}, fmt.Errorf("reference discovery failed: %w", err)
	}

	if len(refs) < MinReferences {
		return Searched{}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientReferences, len(refs), MinReferences)
	}

	slog.Debug("References found", "slug", f.Article.Slug, "count", len(refs))
	return Searched{Fetched: f, References: refs}, nil
}

// Scrape never fails. Empty reference texts are passed on as they are.
func (d *Driver) Scrape(ctx context.Context, s Searched) Scraped {
	texts := make([]rewrite.ReferenceText, 0, len(s.References))
	empty := 0

	for _, ref := range s.References {
		text := d.scraper.Scrape(ctx, ref.Link)
		if text == "" {
			empty++
		}
		texts = append(texts, rewrite.ReferenceText{Title: ref.Title, Link: ref.Link, Text: text})
	}

	if empty == len(texts) {
		slog.Warn("All references came back empty, rewriting with degraded input", "slug", s.Article.Slug, "stage", StageScraped)
	}

	return Scraped{Searched: s, Texts: texts}
}

func (d *Driver) Rewrite(ctx context.Context, s Scraped) (Rewritten, error) {
	content, err := d.rewriter.Rewrite(ctx, s.Article, s.Texts)
	if err != nil {
		return Rewritten{}, err
	}
	return Rewritten{Scraped: s, Content: content}, nil
}

func (d *Driver) Publish(ctx context.Context, r Rewritten) (database.Article, error) {
	return d.publisher.Publish(ctx, r.Article, r.Content)
}
