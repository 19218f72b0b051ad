package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-shiori/go-readability"
)

const (
	DefaultExcerptLength = 200
	ellipsis             = "..."
)

// Extracted is the structured record recovered from one article page.
// Empty strings and a nil PublishedAt mean the attribute was not found.
type Extracted struct {
	Title       string
	Content     string
	Excerpt     string
	Author      string
	PublishedAt *time.Time
	ImageURL    string
}

type Extractor struct {
	rules         Rules
	excerptLength int
}

func NewExtractor(rules Rules) *Extractor {
	return &Extractor{
		rules:         rules,
		excerptLength: DefaultExcerptLength,
	}
}

// Run extracts every attribute independently. It only fails when the
// markup itself is unusable.
func (e *Extractor) Run(data []byte, pageURL string) (*Extracted, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}
	fallback := &readable{data: data, pageURL: base}

	result := &Extracted{}

	result.Title, _ = First(doc, e.rules.Title...)
	result.Content, _ = First(doc, append(slices.Clone(e.rules.Content), fallback.content)...)
	result.Author, _ = First(doc, append(slices.Clone(e.rules.Author), fallback.byline)...)
	result.PublishedAt = firstDate(doc, e.rules.PublishedAt)

	if img, ok := First(doc, append(slices.Clone(e.rules.Image), fallback.image)...); ok {
		result.ImageURL = resolve(base, img)
	}

	if excerpt, ok := First(doc, e.rules.Excerpt...); ok {
		result.Excerpt = excerpt
	} else if result.Content != "" {
		result.Excerpt = Excerpt(result.Content, e.excerptLength)
	}

	slog.Debug("Article extracted",
		"url", pageURL,
		"title", result.Title,
		"content_length", len(result.Content),
		"has_author", result.Author != "",
		"has_date", result.PublishedAt != nil,
		"readability", fallback.used)

	return result, nil
}

// Excerpt returns the first n characters of the plain text of an HTML
// fragment followed by "...".
func Excerpt(htmlContent string, n int) string {
	text := htmlContent
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")

	return Truncate(text, n) + ellipsis
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// firstDate walks the chain until a value parses. Unparsable values are
// misses; no match yields nil.
func firstDate(doc *goquery.Document, strategies []Strategy) *time.Time {
	for _, s := range strategies {
		raw, ok := s(doc)
		if !ok {
			continue
		}
		t, err := dateparse.ParseAny(raw)
		if err != nil {
			slog.Debug("Unparsable publish date", "value", raw, "error", err)
			continue
		}
		t = t.UTC()
		return &t
	}
	return nil
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// readable parses the page with readability on first use only.
type readable struct {
	data    []byte
	pageURL *url.URL
	once    sync.Once
	article readability.Article
	ok      bool
	used    bool
}

func (r *readable) load() {
	r.once.Do(func() {
		r.used = true
		article, err := readability.FromReader(bytes.NewReader(r.data), r.pageURL)
		if err != nil {
			slog.Debug("Readability fallback failed", "error", err)
			return
		}
		r.article = article
		r.ok = true
	})
}

func (r *readable) content(*goquery.Document) (string, bool) {
	r.load()
	v := strings.TrimSpace(r.article.Content)
	return v, r.ok && v != ""
}

func (r *readable) byline(*goquery.Document) (string, bool) {
	r.load()
	v := strings.TrimSpace(r.article.Byline)
	return v, r.ok && v != ""
}

func (r *readable) image(*goquery.Document) (string, bool) {
	r.load()
	v := strings.TrimSpace(r.article.Image)
	return v, r.ok && v != ""
}
