package source

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Default is the built-in profile for the BeyondChats blog.
func Default() *Profile {
	return &Profile{
		Name:      "beyondchats",
		Domain:    "beyondchats.com",
		Brand:     "beyondchats",
		StartPage: 15,
		Listing: Listing{
			Kind:       ListingHTML,
			URL:        "https://beyondchats.com/blogs/page/%d/",
			Item:       ".entry-card",
			Link:       "h2.entry-title a",
			Excerpt:    ".entry-excerpt",
			SlugPrefix: "/blogs/",
		},
	}
}

// Load reads a profile from a YAML file. An empty path yields the built-in
// profile. Fields missing from the file fall back to the built-in values.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source profile: %w", err)
	}

	profile, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid source profile %s: %w", path, err)
	}

	slog.Debug("Source profile loaded", "path", path, "name", profile.Name, "listing", profile.Listing.Kind)

	return profile, nil
}

func Parse(data []byte) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&profile)

	if err := validate(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

func setDefaults(p *Profile) {
	def := Default()

	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Listing.Kind == "" {
		p.Listing.Kind = ListingHTML
	}
	if p.StartPage == 0 {
		p.StartPage = def.StartPage
	}
	if p.Listing.Kind == ListingHTML {
		if p.Listing.Item == "" {
			p.Listing.Item = def.Listing.Item
		}
		if p.Listing.Link == "" {
			p.Listing.Link = def.Listing.Link
		}
	}
}

func validate(p *Profile) error {
	if p.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if p.Listing.URL == "" {
		return fmt.Errorf("listing url is required")
	}
	if p.StartPage < 1 {
		return fmt.Errorf("start_page must be positive")
	}

	switch p.Listing.Kind {
	case ListingHTML:
		if strings.Count(p.Listing.URL, "%d") != 1 {
			return fmt.Errorf("html listing url must contain exactly one %%d page placeholder")
		}
		for _, sel := range []string{p.Listing.Item, p.Listing.Link, p.Listing.Excerpt} {
			if err := checkSelector(sel); err != nil {
				return err
			}
		}
	case ListingFeed:
	default:
		return fmt.Errorf("unknown listing kind %q", p.Listing.Kind)
	}

	groups := map[string][]Rule{
		"title":        p.Selectors.Title,
		"content":      p.Selectors.Content,
		"excerpt":      p.Selectors.Excerpt,
		"author":       p.Selectors.Author,
		"published_at": p.Selectors.PublishedAt,
		"image":        p.Selectors.Image,
	}
	for field, rules := range groups {
		for i, rule := range rules {
			if rule.Selector == "" {
				return fmt.Errorf("%s selector at index %d is empty", field, i)
			}
			if err := checkSelector(rule.Selector); err != nil {
				return fmt.Errorf("%s selector at index %d: %w", field, i, err)
			}
		}
	}

	return nil
}

func checkSelector(sel string) error {
	if sel == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return nil
}
