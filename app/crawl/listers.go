package crawl

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/mmcdole/gofeed"

	"github.com/blogsmith/refresher/app/slug"
	"github.com/blogsmith/refresher/app/source"
)

// NewLister picks the listing strategy configured for the profile.
func NewLister(getter Getter, listing source.Listing) (Lister, error) {
	switch listing.Kind {
	case source.ListingFeed:
		return NewFeedLister(getter, listing), nil
	case source.ListingHTML, "":
		return NewHTMLLister(getter, listing)
	default:
		return nil, fmt.Errorf("unknown listing kind %q", listing.Kind)
	}
}

// HTMLLister reads paginated HTML listing pages.
type HTMLLister struct {
	getter     Getter
	urlPattern string
	item       cascadia.Selector
	link       cascadia.Selector
	excerpt    cascadia.Selector
	slugPrefix string
}

func NewHTMLLister(getter Getter, listing source.Listing) (*HTMLLister, error) {
	l := &HTMLLister{
		getter:     getter,
		urlPattern: listing.URL,
		slugPrefix: listing.SlugPrefix,
	}

	var err error
	if l.item, err = cascadia.Compile(listing.Item); err != nil {
		return nil, fmt.Errorf("invalid item selector: %w", err)
	}
	if l.link, err = cascadia.Compile(listing.Link); err != nil {
		return nil, fmt.Errorf("invalid link selector: %w", err)
	}
	if listing.Excerpt != "" {
		if l.excerpt, err = cascadia.Compile(listing.Excerpt); err != nil {
			return nil, fmt.Errorf("invalid excerpt selector: %w", err)
		}
	}

	return l, nil
}

func (l *HTMLLister) PageURL(page int) string {
	return fmt.Sprintf(l.urlPattern, page)
}

func (l *HTMLLister) List(ctx context.Context, page int) ([]Candidate, error) {
	pageURL := l.PageURL(page)

	data, err := l.getter.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	base, _ := url.Parse(pageURL)

	var candidates []Candidate
	doc.FindMatcher(l.item).Each(func(_ int, s *goquery.Selection) {
		anchor := s.FindMatcher(l.link).First()

		c := Candidate{
			Title: strings.TrimSpace(anchor.Text()),
		}
		if href, ok := anchor.Attr("href"); ok && strings.TrimSpace(href) != "" {
			c.Link = absolute(base, strings.TrimSpace(href))
			c.Slug = slug.FromURL(c.Link, l.slugPrefix)
		}
		if l.excerpt != nil {
			c.Excerpt = strings.TrimSpace(s.FindMatcher(l.excerpt).First().Text())
		}

		candidates = append(candidates, c)
	})

	return candidates, nil
}

// FeedLister reads WordPress-style paged RSS/Atom feeds (?paged=N).
type FeedLister struct {
	getter     Getter
	feedURL    string
	slugPrefix string
	parser     *gofeed.Parser
}

func NewFeedLister(getter Getter, listing source.Listing) *FeedLister {
	return &FeedLister{
		getter:     getter,
		feedURL:    listing.URL,
		slugPrefix: listing.SlugPrefix,
		parser:     gofeed.NewParser(),
	}
}

func (l *FeedLister) PageURL(page int) string {
	u, err := url.Parse(l.feedURL)
	if err != nil {
		return l.feedURL
	}
	q := u.Query()
	q.Set("paged", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (l *FeedLister) List(ctx context.Context, page int) ([]Candidate, error) {
	data, err := l.getter.Get(ctx, l.PageURL(page))
	if err != nil {
		return nil, err
	}

	feed, err := l.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		c := Candidate{
			Title:   strings.TrimSpace(item.Title),
			Link:    strings.TrimSpace(item.Link),
			Excerpt: plainText(item.Description),
		}
		if c.Link != "" {
			c.Slug = slug.FromURL(c.Link, l.slugPrefix)
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}

func absolute(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func plainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
