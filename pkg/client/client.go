// Package client provides the HTTP client for the media API: profile
// documents, paginated timeline queries and raw media downloads.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mediafetch/pkg/cache"
	"github.com/Sternrassler/mediafetch/pkg/media"
	"github.com/Sternrassler/mediafetch/pkg/metrics"
	"github.com/Sternrassler/mediafetch/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint labels used for metrics and logs.
const (
	EndpointProfile = "profile"
	EndpointPage    = "page"
	EndpointMedia   = "media"
)

// DefaultBaseURL is the public web endpoint.
const DefaultBaseURL = "https://www.instagram.com"

const pagePath = "/graphql/query/"

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "mediafetch_requests_total",
		Help: "Total requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediafetch_request_duration_seconds",
		Help:    "Time to response headers in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "mediafetch_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// Client talks to the media API.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

var _ pagination.PageFetcher = (*Client)(nil)

// Config holds the client configuration.
type Config struct {
	// Redis enables the page cache when set (optional)
	Redis *redis.Client

	// BaseURL of the web endpoint, without trailing slash
	BaseURL string

	// UserAgent header sent with every request (REQUIRED)
	UserAgent string

	// PageSize is the number of items requested per page
	PageSize int

	// Timeout bounds a single request including the body transfer
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:     redis,
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		PageSize:  pagination.DefaultPageSize,
		Timeout:   60 * time.Second,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be > 0 (got %d)", cfg.PageSize)
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base_url must be an absolute URL (got %q)", cfg.BaseURL)
	}

	logger := log.With().Str("component", "media-client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:   cacheManager,
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do performs req and converts transport failures and every non-2xx status
// into *APIError. On success the caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, "other", false)
}

// do executes req. A 304 is returned as a response only when notModifiedOK
// is set, i.e. when req carries validators of a cached entry.
func (c *Client) do(req *http.Request, endpoint string, notModifiedOK bool) (*http.Response, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", req.URL.Redacted()).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && notModifiedOK {
		return resp, nil
	}

	if class := classify(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		resp.Body.Close()

		c.logger.Debug().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	return resp, nil
}

// FetchProfile downloads the profile document of username and extracts the
// embedded profile, which carries the seed page.
func (c *Client) FetchProfile(ctx context.Context, username string) (*media.Profile, error) {
	endpoint := c.baseURL.String() + "/" + url.PathEscape(username) + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.do(req, EndpointProfile, false)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, username)
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read profile body: %w", err)
	}

	profile, err := media.ParseProfile(body)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", username, err)
	}

	c.logger.Info().
		Str("username", username).
		Str("subject_id", profile.ID).
		Int("media_count", profile.Timeline.Count).
		Int("seed_items", len(profile.Timeline.Edges)).
		Bool("has_next_page", profile.Timeline.PageInfo.More()).
		Msg("Fetched profile")

	return profile, nil
}

type pageVariables struct {
	ID    string `json:"id"`
	First int    `json:"first"`
	After string `json:"after"`
}

type pageResponse struct {
	Data struct {
		User *struct {
			Timeline media.Timeline `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

// FetchPage requests the page following cursor for subjectID. capability is
// the query hash that authorizes the paginated query.
func (c *Client) FetchPage(ctx context.Context, subjectID, cursor, capability string) (media.Page, error) {
	req, err := c.pageRequest(ctx, subjectID, cursor, capability)
	if err != nil {
		return media.Page{}, err
	}

	body, err := c.doPage(ctx, req, subjectID)
	if err != nil {
		return media.Page{}, err
	}

	var decoded pageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return media.Page{}, fmt.Errorf("decode page: %w", err)
	}
	if decoded.Data.User == nil {
		return media.Page{}, fmt.Errorf("decode page: response has no user")
	}

	return decoded.Data.User.Timeline.Page(), nil
}

func (c *Client) pageRequest(ctx context.Context, subjectID, cursor, capability string) (*http.Request, error) {
	variables, err := json.Marshal(pageVariables{
		ID:    subjectID,
		First: c.config.PageSize,
		After: cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}

	u := c.baseURL.String() + pagePath
	query := url.Values{}
	query.Set("query_hash", capability)
	query.Set("variables", string(variables))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doPage executes a page request, revalidating against the cache when one is
// configured, and returns the response body.
func (c *Client) doPage(ctx context.Context, req *http.Request, subjectID string) ([]byte, error) {
	key := cache.Key{
		Endpoint: req.URL.Path,
		Subject:  subjectID,
		Query:    req.URL.Query(),
	}

	var cached *cache.Entry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Cache get error")
		}

		switch {
		case entry != nil && !entry.IsExpired():
			cache.CacheHits.Inc()
			c.logger.Debug().
				Str("cache_key", key.String()).
				Dur("ttl", entry.TTL()).
				Msg("Serving page from cache")
			return entry.Body, nil
		case entry != nil && entry.HasValidators():
			cached = entry
			cache.AddConditionalHeaders(req, entry)
			c.logger.Debug().Str("etag", entry.ETag).Msg("Making conditional request")
		}
	}

	resp, err := c.do(req, EndpointPage, cached != nil)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	// do only lets a 304 through when cached is set.
	if resp.StatusCode == http.StatusNotModified {
		cache.NotModified.Inc()
		if err := c.cache.Extend(ctx, key, time.Now().Add(cache.DefaultTTL)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to extend cache entry")
		}
		c.logger.Debug().Str("cache_key", key.String()).Msg("304 Not Modified - using cache")
		return cached.Body, nil
	}

	if c.cache == nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read page body: %w", err)
		}
		return body, nil
	}

	entry, err := cache.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache page")
	}
	return entry.Body, nil
}

// Open issues a GET for a media resource and returns its body. The caller
// must close it.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.do(req, EndpointMedia, false)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
