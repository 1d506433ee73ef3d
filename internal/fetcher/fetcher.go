package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// ErrFetchFailed is returned once every attempt for a page has failed.
var ErrFetchFailed = errors.New("fetch failed")

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const (
	DefaultAttempts = 3
	DefaultDelay    = 5 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Fetcher loads a page and parses it into a queryable document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Options tune the retry policy. Zero values fall back to the defaults.
type Options struct {
	Attempts  int
	Delay     time.Duration
	Timeout   time.Duration
	UserAgent string
}

// PageFetcher fetches pages with colly and a flat retry policy: a fixed
// number of attempts separated by a fixed delay.
type PageFetcher struct {
	collector *colly.Collector
	attempts  uint
	delay     time.Duration
	logger    *zap.Logger
}

func NewPageFetcher(opts Options, logger *zap.Logger) *PageFetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	// status codes are checked in fetchOnce; colly alone fails anything from 203 up
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(opts.UserAgent),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(opts.Timeout)

	return &PageFetcher{
		collector: c,
		attempts:  uint(opts.Attempts),
		delay:     opts.Delay,
		logger:    logger.Named("fetcher"),
	}
}

// Fetch returns the parsed page or an error wrapping ErrFetchFailed. A
// transport error or a non-2xx status counts as a failed attempt.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.Do(
		func() error {
			d, err := f.fetchOnce(url)
			if err != nil {
				return err
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn("fetch attempt failed",
				zap.String("url", url),
				zap.Uint("attempt", n+1),
				zap.Uint("max_attempts", f.attempts),
				zap.Error(err))
		}),
	)
	if err != nil {
		f.logger.Warn("all fetch attempts failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	return doc, nil
}

func (f *PageFetcher) fetchOnce(url string) (*goquery.Document, error) {
	// a clone shares the HTTP backend but gets its own callbacks
	c := f.collector.Clone()

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	if err := c.Visit(url); err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", status, url)
	}
	if body == nil {
		return nil, fmt.Errorf("empty response from %s", url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}
