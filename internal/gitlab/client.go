package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/dynoinc/vulnreport/internal/metrics"
)

type Config struct {
	BaseURL string `split_words:"true" default:"https://gitlab.com/api/v4"`
	Token   string `envconfig:"GITLAB_TOKEN"`
	PerPage int    `split_words:"true" default:"50"`

	ConnectTimeout time.Duration `split_words:"true" default:"10s"`
	ReadTimeout    time.Duration `split_words:"true" default:"60s"`

	MaxAttempts       int           `split_words:"true" default:"5"`
	BackoffBase       time.Duration `split_words:"true" default:"500ms"`
	BackoffMax        time.Duration `split_words:"true" default:"30s"`
	RateLimitFallback time.Duration `split_words:"true" default:"2s"`
}

// Statuses retried with backoff. 429 additionally honors Retry-After.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

type Client struct {
	cfg     Config
	http    *http.Client
	metrics *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// Unix nanos until which no request may be sent. Shared by every
	// goroutine using this client so one 429 pauses all of them.
	cooldownUntil atomic.Int64
}

type Option func(*Client)

// WithHTTPClient replaces the whole transport stack, authentication
// included.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.now = now
		c.sleep = sleep
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, &ConfigError{Field: "token", Err: ErrMissingToken}
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, &ConfigError{Field: "base_url", Err: err}
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RateLimitFallback <= 0 {
		cfg.RateLimitFallback = 2 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}

	// GitLab takes personal and OAuth tokens alike as a Bearer header.
	authed := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
		Base:   otelhttp.NewTransport(transport),
	}

	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Transport: authed},
		now:   time.Now,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) PerPage() int {
	return c.cfg.PerPage
}

// Get issues an authenticated GET and returns the JSON body. Any error it
// returns is a *FetchError.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	target := c.endpoint(path, query)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffBase
	b.MaxInterval = c.cfg.BackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()

	budget := c.cfg.MaxAttempts
	extraGranted := false

	var last *FetchError
	attempt := 0
	for attempt < budget {
		attempt++

		if err := c.waitCooldown(ctx); err != nil {
			return nil, &FetchError{Kind: FailureCanceled, URL: target, Attempts: attempt - 1, Err: err}
		}

		body, resp, err := c.do(ctx, target)
		var reason string
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, &FetchError{Kind: FailureCanceled, URL: target, Attempts: attempt, Err: ctx.Err()}
			}
			last = &FetchError{Kind: FailureNetwork, URL: target, Err: err}
			reason = "network"

		case resp.StatusCode == http.StatusTooManyRequests:
			last = &FetchError{Kind: FailureStatus, URL: target, StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
			c.metrics.RateLimited()

			if ra := resp.Header.Get("Retry-After"); ra != "" {
				delay := c.retryAfter(ra)
				slog.WarnContext(ctx, "rate limited, cooling down", "url", target, "retry_after", ra, "delay", delay)
				c.extendCooldown(delay)
				if !extraGranted {
					extraGranted = true
					budget++
				}
				c.metrics.Retry("rate_limited")
				continue
			}
			reason = "rate_limited"

		case retryableStatus[resp.StatusCode]:
			last = &FetchError{Kind: FailureStatus, URL: target, StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
			reason = "status"

		case resp.StatusCode < 200 || resp.StatusCode > 299:
			slog.ErrorContext(ctx, "GET failed", "url", target, "status", resp.StatusCode, "body", snippet(body))
			return nil, &FetchError{Kind: FailureStatus, URL: target, StatusCode: resp.StatusCode, Attempts: attempt, Err: errors.New(snippet(body))}

		default:
			if !json.Valid(body) {
				slog.ErrorContext(ctx, "JSON parse error", "url", target)
				return nil, &FetchError{Kind: FailureDecode, URL: target, StatusCode: resp.StatusCode, Attempts: attempt, Err: errors.New("response body is not valid JSON")}
			}
			return json.RawMessage(body), nil
		}

		if attempt >= budget {
			break
		}

		delay := b.NextBackOff()
		c.metrics.Retry(reason)
		slog.WarnContext(ctx, "retrying GET", "url", target, "attempt", attempt, "reason", reason, "delay", delay, "error", last.Err)
		if reason == "rate_limited" {
			// No Retry-After: everyone sharing the client backs off together.
			c.extendCooldown(delay)
			continue
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, &FetchError{Kind: FailureCanceled, URL: target, Attempts: attempt, Err: err}
		}
	}

	last.Attempts = attempt
	slog.ErrorContext(ctx, "GET gave up", "url", target, "attempts", attempt, "error", last)
	return nil, last
}

func (c *Client) do(ctx context.Context, target string) ([]byte, *http.Response, error) {
	// Bounds connect plus a server that stalls mid-body.
	actx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout+c.cfg.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(0, c.now().Sub(start))
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(resp.StatusCode, c.now().Sub(start))
	if err != nil {
		return nil, nil, fmt.Errorf("reading body: %w", err)
	}

	return body, resp, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return c.cfg.RateLimitFallback
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) extendCooldown(d time.Duration) {
	target := c.now().Add(d).UnixNano()
	for {
		cur := c.cooldownUntil.Load()
		if cur >= target {
			return
		}
		if c.cooldownUntil.CompareAndSwap(cur, target) {
			return
		}
	}
}

func (c *Client) waitCooldown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	until := c.cooldownUntil.Load()
	if until == 0 {
		return nil
	}
	wait := time.Unix(0, until).Sub(c.now())
	if wait <= 0 {
		return nil
	}
	return c.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snippet(body []byte) string {
	const limit = 500
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
