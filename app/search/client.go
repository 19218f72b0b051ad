package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blogsmith/refresher/app/cache"
	"github.com/blogsmith/refresher/app/metrics"
)

var _ Searcher = (*Client)(nil)

type serpResponse struct {
	Error          string   `json:"error"`
	OrganicResults []Result `json:"organic_results"`
}

// Client queries a SerpAPI-compatible endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Engine  string
	Num     int
	HTTP    *http.Client

	cache    cache.Cache
	cacheTTL time.Duration
}

func NewClient(baseURL, apiKey, engine string, num int, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Engine:  engine,
		Num:     num,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithCache enables result caching. Cache failures never fail a search.
func (c *Client) WithCache(store cache.Cache, ttl time.Duration) *Client {
	c.cache = store
	c.cacheTTL = ttl
	return c
}

func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	key := cache.SearchKey(c.Engine, query)

	if c.cache != nil {
		if cached, ok := c.fromCache(ctx, key); ok {
			slog.Debug("Search cache hit", "query", query, "results", len(cached))
			return cached, nil
		}
	}

	results, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, results, c.cacheTTL); err != nil {
			slog.Warn("Failed to cache search results", "query", query, "error", err)
		}
	}

	return results, nil
}

func (c *Client) fetch(ctx context.Context, query string) (results []Result, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternal("search", start, err) }()

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", c.APIKey)
	params.Set("engine", c.Engine)
	params.Set("num", strconv.Itoa(c.Num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	if payload.Error != "" && len(payload.OrganicResults) == 0 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: payload.Error}
	}

	return payload.OrganicResults, nil
}

func (c *Client) fromCache(ctx context.Context, key string) ([]Result, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Search cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var results []Result
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		slog.Warn("Discarding malformed cached search results", "key", key, "error", err)
		return nil, false
	}
	return results, true
}
