package rewrite

import (
	"fmt"
	"strings"

	"github.com/blogsmith/refresher/app/extract"
)

const (
	DefaultOriginalLimit  = 2000
	DefaultReferenceLimit = 1200
)

// ReferenceText is a scraped reference plus the metadata cited in the output.
type ReferenceText struct {
	Title string
	Link  string
	Text  string
}

// Limits bound the characters of each prompt segment.
type Limits struct {
	Original  int
	Reference int
}

func DefaultLimits() Limits {
	return Limits{Original: DefaultOriginalLimit, Reference: DefaultReferenceLimit}
}

// BuildPrompt assembles the rewrite instruction. Every content segment is
// cut to its budget before assembly; citation lines are kept verbatim.
func BuildPrompt(original string, refs []ReferenceText, limits Limits) string {
	var b strings.Builder

	b.WriteString("Rewrite the article below to improve formatting, SEO, and clarity.\n")
	b.WriteString("Use ideas and structure inspired by the reference articles.\n\n")

	b.WriteString("ORIGINAL ARTICLE:\n")
	b.WriteString(extract.Truncate(original, limits.Original))
	b.WriteString("\n\n")

	for i, ref := range refs {
		fmt.Fprintf(&b, "REFERENCE ARTICLE %d:\n", i+1)
		b.WriteString(extract.Truncate(ref.Text, limits.Reference))
		b.WriteString("\n\n")
	}

	b.WriteString("Rules:\n")
	b.WriteString("- Return HTML\n")
	b.WriteString("- Improve headings and readability\n")
	b.WriteString("- Do NOT copy text\n")
	b.WriteString("- Add a \"References\" section at the end citing:\n\n")

	for _, ref := range refs {
		fmt.Fprintf(&b, "- %s: %s\n", ref.Title, ref.Link)
	}

	return b.String()
}
