package extract

import (
	"fmt"

	"github.com/blogsmith/refresher/app/source"
)

// Rules holds one ordered chain per article attribute. PublishedAt
// strategies return raw date strings that are parsed afterwards.
type Rules struct {
	Title       []Strategy
	Content     []Strategy
	Excerpt     []Strategy
	Author      []Strategy
	PublishedAt []Strategy
	Image       []Strategy
}

func DefaultRules() Rules {
	return Rules{
		Title: []Strategy{
			Text("h1.entry-title"),
			Text(".entry-title"),
			Attr(`meta[property="og:title"]`, "content"),
			Text("title"),
		},
		Content: []Strategy{
			InnerHTML(".entry-content"),
			InnerHTML(".post-content"),
		},
		Excerpt: []Strategy{
			Text(".entry-excerpt"),
		},
		Author: []Strategy{
			Text(".author.vcard"),
			Text(".entry-author"),
			Text(".author-name"),
			Attr(`meta[name="author"]`, "content"),
		},
		PublishedAt: []Strategy{
			Attr("time.published", "datetime"),
			Attr(`meta[property="article:published_time"]`, "content"),
			Attr(".published", "datetime"),
		},
		Image: []Strategy{
			Attr(".featured-image img", "src"),
			Attr(`meta[property="og:image"]`, "content"),
			Attr(".wp-post-image", "src"),
		},
	}
}

// RulesFor returns the default rules with every chain the profile
// configures replaced by the configured one.
func RulesFor(sel source.Selectors) (Rules, error) {
	rules := DefaultRules()

	overrides := []struct {
		name   string
		config []source.Rule
		target *[]Strategy
	}{
		{"title", sel.Title, &rules.Title},
		{"content", sel.Content, &rules.Content},
		{"excerpt", sel.Excerpt, &rules.Excerpt},
		{"author", sel.Author, &rules.Author},
		{"published_at", sel.PublishedAt, &rules.PublishedAt},
		{"image", sel.Image, &rules.Image},
	}

	for _, o := range overrides {
		if len(o.config) == 0 {
			continue
		}
		strategies, err := FromRules(o.config)
		if err != nil {
			return Rules{}, fmt.Errorf("%s rules: %w", o.name, err)
		}
		*o.target = strategies
	}

	return rules, nil
}
