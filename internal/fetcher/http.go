package fetcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/pricewatch/internal/pagetree"
	"github.com/sells-group/pricewatch/internal/resilience"
)

// HTTPOptions configures the HTTP page fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.Policy

	// RequestsPerSecond throttles outgoing requests. Zero disables the
	// limiter.
	RequestsPerSecond float64
}

// HTTPFetcher implements PageFetcher over net/http with retry and a
// client-wide rate limiter.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "pricewatch/1.0"
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: limiter,
	}
}

// Markers of interstitial bot-check pages. Matching bodies are treated as
// ErrBlocked, never parsed for prices.
var botWallMarkers = []string{
	"captcha",
	"are you a robot",
	"automated access",
	"access denied",
	"unusual traffic",
	"enable javascript and cookies",
}

// FetchPage downloads the URL and parses the body into a price node tree.
// Transient failures are retried per the configured policy.
func (f *HTTPFetcher) FetchPage(ctx context.Context, url string) (*pagetree.Tree, error) {
	body, err := resilience.Retry(ctx, f.opts.Retry, "fetch page", func(ctx context.Context) ([]byte, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		if eris.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, eris.Wrapf(ErrFetchTimeout, "fetcher: %s", url)
		}
		if eris.Is(err, ErrBlocked) {
			return nil, err
		}
		zap.L().Warn("page fetch failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, eris.Wrapf(ErrFetchFailure, "fetcher: %s: %v", url, err)
	}

	lower := strings.ToLower(string(body))
	for _, marker := range botWallMarkers {
		if strings.Contains(lower, marker) {
			return nil, eris.Wrapf(ErrBlocked, "fetcher: %s", url)
		}
	}

	tree, err := pagetree.ParseHTML(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", url)
	}
	return tree, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: get")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusForbidden {
		return nil, eris.Wrapf(ErrBlocked, "fetcher: http 403 from %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetcher: http %d from %s", resp.StatusCode, url)
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	return body, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "Client.Timeout") ||
		strings.Contains(msg, "i/o timeout")
}
