package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/blogsmith/refresher/app/database"
)

// Channel describes the RSS channel wrapping the articles.
type Channel struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
	Generator   string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders articles as RSS 2.0, newest first as given.
func (g *Generator) Run(channel Channel, articles []database.Article) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, fmt.Sprintf("Refreshed articles from %s", channel.Link)), 4)

	if channel.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(channel.SelfLink)))
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(articles) > 0 {
		lastBuildDate = articles[0].UpdatedAt
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", channel.Generator, 4)

	for _, article := range articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, article database.Article) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"false\">%s:%d</guid>\n", html.EscapeString(article.Source), article.ID))

	g.writeElement(buf, "title", article.Title, 6)
	g.writeElement(buf, "link", article.URL, 6)
	g.writeElement(buf, "description", cmp.Or(article.Excerpt, "No description available"), 6)

	if article.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(escapeCDATA(article.Content))
		buf.WriteString("]]></content:encoded>\n")
	}

	pubDate := article.UpdatedAt
	if article.PublishedAt != nil && !article.IsUpdated {
		pubDate = *article.PublishedAt
	}
	g.writeElement(buf, "pubDate", pubDate.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", article.Author, 6)

	if article.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"image/jpeg\" />\n",
			html.EscapeString(article.ImageURL)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// escapeCDATA splits any "]]>" in rewritten HTML so it cannot end the section.
func escapeCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}
