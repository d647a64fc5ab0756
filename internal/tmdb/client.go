// Package tmdb looks up movie metadata on The Movie Database and caches
// detail responses on disk.
package tmdb

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

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"ancine-dash/internal/domain"
)

// ImageBaseURL is prefixed to poster paths to build a displayable image URL.
const ImageBaseURL = "https://image.tmdb.org/t/p/w300"

// maxResponseBytes bounds how much of an API response is read.
const maxResponseBytes = 4 << 20

var _ domain.MetadataProvider = (*Client)(nil)

// Options configures a Client.
type Options struct {
	APIKey     string
	Language   string
	BaseURL    string
	RPS        float64
	Timeout    time.Duration
	CacheDir   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the TMDB v3 API. Every method soft-fails: errors are logged
// and surface to callers as an empty result.
type Client struct {
	apiKey   string
	language string
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	cache    *Cache
	group    singleflight.Group
	logger   *slog.Logger
}

// New creates a Client. Without an API key every lookup returns no data.
func New(opts Options) *Client {
	if opts.Language == "" {
		opts.Language = "pt-BR"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.themoviedb.org/3"
	}
	if opts.RPS <= 0 {
		opts.RPS = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CacheDir == "" {
		opts.CacheDir = "tmdb_cache"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		apiKey:   strings.TrimSpace(opts.APIKey),
		language: opts.Language,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		limiter:  rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS))),
		cache:    NewCache(opts.CacheDir),
		logger:   opts.Logger.With("component", "tmdb"),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

type searchResponse struct {
	Results []domain.MovieCandidate `json:"results"`
}

// Search returns candidates for a title in TMDB's relevance order.
func (c *Client) Search(ctx context.Context, title string) []domain.MovieCandidate {
	title = strings.TrimSpace(title)
	if !c.Enabled() || title == "" {
		return nil
	}
	v, err := c.shared(ctx, "search:"+title, func(ctx context.Context) (any, error) {
		body, err := c.get(ctx, "/search/movie", url.Values{"query": {title}})
		if err != nil {
			return nil, err
		}
		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		return resp.Results, nil
	})
	if err != nil {
		c.logger.Warn("movie search failed", "title", title, "error", err)
		return nil
	}
	return append([]domain.MovieCandidate(nil), v.([]domain.MovieCandidate)...)
}

// Details returns the enrichment record for a movie id, from the cache when
// present. Concurrent lookups for the same id share one fetch.
func (c *Client) Details(ctx context.Context, id int64) (*domain.MovieDetails, bool) {
	if !c.Enabled() || id <= 0 {
		return nil, false
	}
	v, err := c.shared(ctx, "details:"+strconv.FormatInt(id, 10), func(ctx context.Context) (any, error) {
		return c.details(ctx, id)
	})
	if err != nil {
		c.logger.Warn("movie details failed", "id", id, "error", err)
		return nil, false
	}
	d := *v.(*domain.MovieDetails)
	return &d, true
}

// shared runs fn once for every concurrent caller of key. The fetch outlives
// the caller that started it, bounded by the client timeout; each caller stops
// waiting when its own ctx ends.
func (c *Client) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.Val, r.Err
	}
}

func (c *Client) details(ctx context.Context, id int64) (*domain.MovieDetails, error) {
	payload, hit, err := c.cache.Get(ctx, id)
	if err != nil {
		c.logger.Warn("discarded unreadable cache artifact", "id", id, "error", err)
	}
	if hit {
		if d, err := decodeDetails(payload); err == nil {
			return d, nil
		}
		_ = removeArtifact(c.cache.Path(id))
	}

	payload, err = c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), url.Values{"append_to_response": {"credits"}})
	if err != nil {
		return nil, err
	}
	d, err := decodeDetails(payload)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(id, payload); err != nil {
		c.logger.Warn("cache write failed", "id", id, "error", err)
	}
	return d, nil
}

// get performs one rate-limited GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}
