package cfg

import "time"

type Command string

const (
	CommandCrawl   Command = "crawl"
	CommandAugment Command = "augment"
	CommandRun     Command = "run"
	CommandServe   Command = "serve"
)

type Cfg struct {
	Command Command

	// Database configuration
	DBPath string

	// Source configuration
	SourceConfig   string
	CrawlTarget    int
	CrawlStartPage int
	MaxCrawlTarget int
	MaxStartPage   int

	// HTTP fetching
	UserAgent   string
	HTTPTimeout time.Duration
	MaxBodySize int64

	// Search provider
	SearchURL      string
	SearchAPIKey   string
	SearchEngine   string
	SearchResults  int
	SearchCacheTTL time.Duration
	RedisAddr      string

	// Rewrite provider
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Prompt budgets, in characters
	OriginalChars  int
	ReferenceChars int
	ScrapeChars    int

	// Notifications
	NATSURL     string
	NATSSubject string

	// Server
	Port         string
	APIAccessKey string
	Schedule     string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
