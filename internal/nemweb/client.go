package nemweb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"aemo-price-feed/internal/nem"
)

const (
	defaultBaseURL   = "https://nemweb.com.au"
	defaultUserAgent = "nemwatch/1.0"
)

// Options parameterise the NEMWEB client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	RetryAttempts  int
	RetryBackoff   time.Duration
	CacheSize      int
	RequestsPerSec float64
	Burst          int
}

// Client downloads report bundles from the NEMWEB Current listings. It is
// transport infrastructure only and safe for concurrent use: the byte cache
// and rate limiter synchronise internally, domain state stays with callers.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache
	baseURL string
}

// New constructs a NEMWEB client.
func New(opts Options, logger zerolog.Logger) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = 16
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create bundle cache: %w", err)
	}

	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "nemweb_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cache:   cache,
		baseURL: baseURL,
	}, nil
}

// Latest resolves and downloads the newest report for the product stream.
// When the newest report name equals lastSeen it returns ErrNotModified
// without fetching the body; the listing request is the only round trip.
func (c *Client) Latest(ctx context.Context, kind nem.ProductKind, lastSeen string) (Bundle, error) {
	path, err := reportPath(kind)
	if err != nil {
		return Bundle{}, err
	}

	listing, err := c.get(ctx, c.baseURL+path)
	if err != nil {
		return Bundle{}, fmt.Errorf("fetch %s listing: %w", kind, err)
	}

	name, published, err := latestReport(string(listing), kind)
	if err != nil {
		return Bundle{}, err
	}

	if name == lastSeen {
		return Bundle{Name: name, PublishedAt: published}, ErrNotModified
	}

	if cached, ok := c.cache.Get(name); ok {
		c.logger.Debug().Str("report", name).Msg("bundle served from cache")
		return Bundle{Name: name, PublishedAt: published, Data: cached.([]byte)}, nil
	}

	data, err := c.get(ctx, c.baseURL+path+name)
	if err != nil {
		return Bundle{}, fmt.Errorf("download %s: %w", name, err)
	}
	c.cache.Add(name, data)

	c.logger.Info().Str("report", name).Int("bytes", len(data)).Msg("downloaded new report")
	return Bundle{Name: name, PublishedAt: published, Data: data}, nil
}

// get performs a GET under the shared rate limit with capped exponential
// backoff on transient failures.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	attempts := c.opts.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := c.opts.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			delay := backoff << uint(attempt-1)
			if limit := 4 * backoff; delay > limit {
				delay = limit
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, retryable, err := c.do(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("url", url).Msg("request failed, retrying")
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The whole 4xx family means "nothing to fetch right now", not a
		// broken upstream: the cycle treats it as no new data.
		return nil, false, fmt.Errorf("%w: %d for %s", ErrNoReport, resp.StatusCode, url)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("nemweb returned %d for %s", resp.StatusCode, url)
	default:
		return nil, false, fmt.Errorf("nemweb returned %d for %s", resp.StatusCode, url)
	}
}

var _ Source = (*Client)(nil)
