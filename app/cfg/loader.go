package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

var ErrMissingCredential = errors.New("missing required credential")

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./refresher.db" description:"SQLite database file"`

	// Source configuration
	SourceConfig   string `long:"source-config" env:"SOURCE_CONFIG" description:"YAML source profile (built-in profile when empty)"`
	CrawlTarget    int    `long:"crawl-target" env:"CRAWL_TARGET" default:"5" description:"Number of articles to collect per crawl"`
	CrawlStartPage int    `long:"crawl-start-page" env:"CRAWL_START_PAGE" description:"Listing page to start from (source profile value when zero)"`
	MaxCrawlTarget int    `long:"max-crawl-target" env:"MAX_CRAWL_TARGET" default:"100" description:"Largest crawl target accepted from the API"`
	MaxStartPage   int    `long:"max-start-page" env:"MAX_START_PAGE" default:"200" description:"Largest listing start page accepted from the API"`

	// HTTP fetching
	UserAgent   string `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests"`
	HTTPTimeout int    `long:"http-timeout" env:"HTTP_TIMEOUT" default:"10" description:"Timeout for page fetches in seconds"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" default:"5242880" description:"Maximum response body size in bytes"`

	// Search provider
	SearchURL      string `long:"search-url" env:"SEARCH_URL" default:"https://serpapi.com/search" description:"Search provider endpoint"`
	SearchAPIKey   string `long:"search-api-key" env:"SERP_API_KEY" description:"Search provider API key"`
	SearchEngine   string `long:"search-engine" env:"SEARCH_ENGINE" default:"google" description:"Search provider engine identifier"`
	SearchResults  int    `long:"search-results" env:"SEARCH_RESULTS" default:"10" description:"Number of results requested per search"`
	SearchCacheTTL int    `long:"search-cache-ttl" env:"SEARCH_CACHE_TTL" default:"86400" description:"Search cache TTL in seconds"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the search cache (disabled when empty)"`

	// Rewrite provider
	LLMBaseURL     string  `long:"llm-base-url" env:"LLM_BASE_URL" default:"https://api.groq.com/openai/v1" description:"Chat completions base URL"`
	LLMAPIKey      string  `long:"llm-api-key" env:"LLM_API_KEY" description:"Chat completions API key"`
	GroqAPIKey     string  `long:"groq-api-key" env:"GROQ_API_KEY" description:"Alias for --llm-api-key"`
	LLMModel       string  `long:"llm-model" env:"LLM_MODEL" default:"llama-3.3-70b-versatile" description:"Model identifier"`
	LLMTemperature float64 `long:"llm-temperature" env:"LLM_TEMPERATURE" default:"0.7" description:"Sampling temperature"`
	LLMTimeout     int     `long:"llm-timeout" env:"LLM_TIMEOUT" default:"60" description:"Rewrite call timeout in seconds"`

	// Prompt budgets
	OriginalChars  int `long:"original-chars" env:"ORIGINAL_CHARS" default:"2000" description:"Original content budget in characters"`
	ReferenceChars int `long:"reference-chars" env:"REFERENCE_CHARS" default:"1200" description:"Reference text budget in characters"`
	ScrapeChars    int `long:"scrape-chars" env:"SCRAPE_CHARS" default:"4000" description:"Body text ceiling for reference scraping"`

	// Notifications
	NATSURL     string `long:"nats-url" env:"NATS_URL" description:"NATS server URL (notifications disabled when empty)"`
	NATSSubject string `long:"nats-subject" env:"NATS_SUBJECT" default:"articles.updated" description:"NATS subject for published updates"`

	// Server
	Port         string `long:"port" env:"PORT" default:"3000" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for pipeline endpoints (optional)"`
	Schedule     string `long:"schedule" env:"SCHEDULE" description:"Cron schedule for crawl + augment runs in serve mode"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		Command string `positional-arg-name:"command" description:"crawl | augment | run | serve"`
	} `positional-args:"yes"`
}

func Load(args []string) (*Cfg, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Command:        Command(cmp.Or(raw.Args.Command, string(CommandServe))),
		DBPath:         raw.DBPath,
		SourceConfig:   raw.SourceConfig,
		CrawlTarget:    raw.CrawlTarget,
		CrawlStartPage: raw.CrawlStartPage,
		MaxCrawlTarget: raw.MaxCrawlTarget,
		MaxStartPage:   raw.MaxStartPage,
		UserAgent:      cmp.Or(raw.UserAgent, defaultUserAgent),
		HTTPTimeout:    time.Duration(raw.HTTPTimeout) * time.Second,
		MaxBodySize:    raw.MaxBodySize,
		SearchURL:      raw.SearchURL,
		SearchAPIKey:   raw.SearchAPIKey,
		SearchEngine:   raw.SearchEngine,
		SearchResults:  raw.SearchResults,
		SearchCacheTTL: time.Duration(raw.SearchCacheTTL) * time.Second,
		RedisAddr:      raw.RedisAddr,
		LLMBaseURL:     raw.LLMBaseURL,
		LLMAPIKey:      cmp.Or(raw.LLMAPIKey, raw.GroqAPIKey),
		LLMModel:       raw.LLMModel,
		LLMTemperature: raw.LLMTemperature,
		LLMTimeout:     time.Duration(raw.LLMTimeout) * time.Second,
		OriginalChars:  raw.OriginalChars,
		ReferenceChars: raw.ReferenceChars,
		ScrapeChars:    raw.ScrapeChars,
		NATSURL:        raw.NATSURL,
		NATSSubject:    raw.NATSSubject,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		Schedule:       raw.Schedule,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

// Validate rejects configurations that would fail mid-run, so that
// credential problems surface before any work starts.
func (c *Cfg) Validate() error {
	switch c.Command {
	case CommandCrawl, CommandAugment, CommandRun, CommandServe:
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}

	if c.CrawlTarget <= 0 {
		return fmt.Errorf("crawl target must be positive")
	}
	if c.MaxCrawlTarget <= 0 || c.MaxStartPage <= 0 {
		return fmt.Errorf("crawl limits must be positive")
	}
	if c.CrawlTarget > c.MaxCrawlTarget || c.CrawlStartPage > c.MaxStartPage {
		return fmt.Errorf("crawl target and start page must not exceed %d and %d", c.MaxCrawlTarget, c.MaxStartPage)
	}
	if c.HTTPTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.OriginalChars <= 0 || c.ReferenceChars <= 0 || c.ScrapeChars <= 0 {
		return fmt.Errorf("prompt budgets must be positive")
	}

	if c.NeedsAugmentation() {
		return c.CheckCredentials()
	}

	return nil
}

// CheckCredentials reports the first missing provider credential.
func (c *Cfg) CheckCredentials() error {
	if c.SearchAPIKey == "" {
		return fmt.Errorf("%w: SERP_API_KEY", ErrMissingCredential)
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("%w: LLM_API_KEY", ErrMissingCredential)
	}
	return nil
}

// NeedsAugmentation reports whether the command runs phase 2. Serve only
// needs the credentials when a schedule is configured.
func (c *Cfg) NeedsAugmentation() bool {
	switch c.Command {
	case CommandAugment, CommandRun:
		return true
	case CommandServe:
		return c.Schedule != ""
	}
	return false
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
