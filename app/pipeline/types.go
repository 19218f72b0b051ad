package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/blogsmith/refresher/app/crawl"
	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/extract"
	"github.com/blogsmith/refresher/app/rewrite"
	"github.com/blogsmith/refresher/app/search"
)

// Stage is where an article's augmentation ended.
type Stage string

const (
	StageFetched   Stage = "fetched"
	StageSearched  Stage = "searched"
	StageScraped   Stage = "scraped"
	StageRewritten Stage = "rewritten"
	StagePublished Stage = "published"
	StageSkipped   Stage = "skipped"
	StageFailed    Stage = "failed"
)

// MinReferences is how many references an article needs before it is rewritten.
const MinReferences = 2

var ErrInsufficientReferences = errors.New("not enough usable references")

type Crawler interface {
	Run(ctx context.Context, target, startPage int) []crawl.Candidate
}

type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Extractor interface {
	Run(data []byte, pageURL string) (*extract.Extracted, error)
}

type Discoverer interface {
	Discover(ctx context.Context, title string) ([]search.Reference, error)
}

type Scraper interface {
	Scrape(ctx context.Context, url string) string
}

type Rewriter interface {
	Rewrite(ctx context.Context, original database.Article, refs []rewrite.ReferenceText) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, original database.Article, content string) (database.Article, error)
}

// Outcome records how far one article got. Failed and skipped outcomes
// keep the stage they stopped at in At.
type Outcome struct {
	ID          int64
	Slug        string
	Title       string
	Stage       Stage
	At          Stage
	PublishedID int64
	Err         error
}

type Report struct {
	Outcomes  []Outcome
	Published int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Stage {
	case StagePublished:
		r.Published++
	case StageSkipped:
		r.Skipped++
	case StageFailed:
		r.Failed++
	}
}

type IngestReport struct {
	Candidates int
	Stored     int
	Failed     int
	Duration   time.Duration
}
