package scrape

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/blogsmith/refresher/app/extract"
)

const DefaultBodyLimit = 4000

type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Scraper turns a reference page into plain text. It never fails: any
// fetch or parse problem yields "".
type Scraper struct {
	getter    Getter
	bodyLimit int
}

func NewScraper(getter Getter, bodyLimit int) *Scraper {
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}
	return &Scraper{getter: getter, bodyLimit: bodyLimit}
}

func (s *Scraper) Scrape(ctx context.Context, url string) string {
	data, err := s.getter.Get(ctx, url)
	if err != nil {
		slog.Warn("Failed to fetch reference", "url", url, "stage", "scrape", "error", err)
		return ""
	}

	text, err := s.Run(data)
	if err != nil {
		slog.Warn("Failed to parse reference", "url", url, "stage", "scrape", "error", err)
		return ""
	}

	slog.Debug("Reference scraped", "url", url, "length", len(text))
	return text
}

// Run extracts text from markup: the article container, then main, then the
// body cut to the configured ceiling.
func (s *Scraper) Run(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	if text := collapse(doc.Find("article").Text()); text != "" {
		return text, nil
	}
	if text := collapse(doc.Find("main").Text()); text != "" {
		return text, nil
	}

	return extract.Truncate(collapse(doc.Find("body").Text()), s.bodyLimit), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
