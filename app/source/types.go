package source

// Profile describes one source site: where its listing lives, how to
// recognise articles in it and which selectors recover article fields.
type Profile struct {
	Name      string    `yaml:"name"`   // provider identifier stored in articles.source
	Domain    string    `yaml:"domain"` // excluded from reference discovery
	Brand     string    `yaml:"brand"`  // stripped from titles before searching
	StartPage int       `yaml:"start_page"`
	Listing   Listing   `yaml:"listing"`
	Selectors Selectors `yaml:"selectors"`
}

type Listing struct {
	Kind       string `yaml:"kind"` // html or feed
	URL        string `yaml:"url"`  // printf pattern with one %d for the page index, or a feed URL
	Item       string `yaml:"item"`
	Link       string `yaml:"link"`
	Excerpt    string `yaml:"excerpt"`
	SlugPrefix string `yaml:"slug_prefix"`
}

const (
	ListingHTML = "html"
	ListingFeed = "feed"
)

// Rule is one extraction strategy. With Attr set the attribute value is
// used; with HTML set the inner markup; otherwise the element text.
type Rule struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr"`
	HTML     bool   `yaml:"html"`
}

// Selectors override the built-in extraction chains. An empty list keeps
// the default chain for that field.
type Selectors struct {
	Title       []Rule `yaml:"title"`
	Content     []Rule `yaml:"content"`
	Excerpt     []Rule `yaml:"excerpt"`
	Author      []Rule `yaml:"author"`
	PublishedAt []Rule `yaml:"published_at"`
	Image       []Rule `yaml:"image"`
}
