package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.scryfall.com"
	DefaultUserAgent = "deckstats/1.0"

	// MaxBatchSize is the most identifiers Scryfall accepts per collection request.
	MaxBatchSize = 75

	rateLimitDelay = 100 * time.Millisecond // 10 req/sec
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second
)

// ClientConfig configures a Scryfall client. Zero values take the defaults.
type ClientConfig struct {
	BaseURL        string
	UserAgent      string
	RateLimit      time.Duration
	Timeout        time.Duration
	MaxRetries     int // negative disables retries
	InitialBackoff time.Duration
}

// Client is a rate limited Scryfall API client.
type Client struct {
	httpClient     *http.Client
	rateLimiter    *rate.Limiter
	baseURL        string
	userAgent      string
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient creates a new Scryfall API client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.RateLimit <= 0 {
		config.RateLimit = rateLimitDelay
	}
	if config.Timeout <= 0 {
		config.Timeout = requestTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = maxRetries
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = initialBackoff
	}

	return &Client{
		httpClient:     &http.Client{Timeout: config.Timeout},
		rateLimiter:    rate.NewLimiter(rate.Every(config.RateLimit), 1),
		baseURL:        config.BaseURL,
		userAgent:      config.UserAgent,
		maxRetries:     config.MaxRetries,
		initialBackoff: config.InitialBackoff,
	}
}

// CardNamed looks a card up by its exact name.
func (c *Client) CardNamed(ctx context.Context, name string) (*ScryfallCard, error) {
	u := fmt.Sprintf("%s/cards/named?exact=%s", c.baseURL, url.QueryEscape(name))

	var card ScryfallCard
	if err := c.doRequest(ctx, http.MethodGet, u, nil, &card); err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", name, err)
	}
	return &card, nil
}

// CardsByNames fetches cards by name through the collection endpoint,
// batching as needed. It returns the cards found and the names Scryfall did
// not recognise.
func (c *Client) CardsByNames(ctx context.Context, names []string) ([]ScryfallCard, []string, error) {
	var cards []ScryfallCard
	var notFound []string

	for i := 0; i < len(names); i += MaxBatchSize {
		end := min(i+MaxBatchSize, len(names))

		req := collectionRequest{Identifiers: make([]cardIdentifier, 0, end-i)}
		for _, n := range names[i:end] {
			req.Identifiers = append(req.Identifiers, cardIdentifier{Name: n})
		}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode collection request: %w", err)
		}

		var resp collectionResponse
		if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/cards/collection", body, &resp); err != nil {
			return nil, nil, fmt.Errorf("failed to fetch batch %d-%d: %w", i, end, err)
		}
		cards = append(cards, resp.Data...)
		for _, id := range resp.NotFound {
			notFound = append(notFound, id.Name)
		}
	}

	return cards, notFound, nil
}

// doRequest performs an HTTP request with rate limiting and retry logic.
// Network errors, 429 and 5xx responses are retried with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, u string, body []byte, result any) error {
	var lastErr error
	backoff := c.initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		retry, err := c.handleResponse(resp, u, result)
		if !retry {
			return err
		}
		lastErr = err
		if after := retryAfter(resp); after > backoff {
			backoff = after
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// handleResponse decodes resp into result and reports whether the request
// should be retried.
func (c *Client) handleResponse(resp *http.Response, u string, result any) (bool, error) {
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, fmt.Errorf("failed to parse JSON response: %w", err)
		}
		return false, nil

	case resp.StatusCode == http.StatusNotFound:
		return false, &NotFoundError{URL: u}

	case resp.StatusCode == http.StatusTooManyRequests:
		return true, fmt.Errorf("rate limited (HTTP 429)")

	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error (HTTP %d)", resp.StatusCode)

	default:
		raw, _ := io.ReadAll(resp.Body)
		var apiErr APIError
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Details != "" {
			return false, &apiErr
		}
		return false, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(raw))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
