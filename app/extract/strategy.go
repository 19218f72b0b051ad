package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/blogsmith/refresher/app/source"
)

// Strategy recovers one attribute from a parsed document. It reports false
// when nothing usable matched.
type Strategy func(doc *goquery.Document) (string, bool)

// First applies strategies in order and returns the first non-empty value.
func First(doc *goquery.Document, strategies ...Strategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v, true
		}
	}
	return "", false
}

// Text takes the trimmed text of the first element matching selector.
func Text(selector string) Strategy {
	return text(cascadia.MustCompile(selector))
}

// InnerHTML takes the inner markup of the first element matching selector.
func InnerHTML(selector string) Strategy {
	return innerHTML(cascadia.MustCompile(selector))
}

// Attr takes the first non-empty attr value among elements matching selector.
func Attr(selector, attr string) Strategy {
	return attribute(cascadia.MustCompile(selector), attr)
}

func text(sel cascadia.Selector) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		v := strings.TrimSpace(doc.FindMatcher(sel).First().Text())
		return v, v != ""
	}
}

func innerHTML(sel cascadia.Selector) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		node := doc.FindMatcher(sel).First()
		if node.Length() == 0 {
			return "", false
		}
		html, err := node.Html()
		if err != nil {
			return "", false
		}
		html = strings.TrimSpace(html)
		return html, html != ""
	}
}

func attribute(sel cascadia.Selector, attr string) Strategy {
	return func(doc *goquery.Document) (string, bool) {
		var value string
		doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				value = strings.TrimSpace(v)
				return false
			}
			return true
		})
		return value, value != ""
	}
}

// FromRules compiles configured rules into strategies.
func FromRules(rules []source.Rule) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(rules))
	for _, rule := range rules {
		sel, err := cascadia.Compile(rule.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", rule.Selector, err)
		}

		switch {
		case rule.Attr != "":
			strategies = append(strategies, attribute(sel, rule.Attr))
		case rule.HTML:
			strategies = append(strategies, innerHTML(sel))
		default:
			strategies = append(strategies, text(sel))
		}
	}
	return strategies, nil
}
