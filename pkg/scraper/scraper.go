package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"pagechat/internal/models"
)

// ErrFetch marks any failure to retrieve the target page: network error,
// non-2xx status, or an unparseable response.
var ErrFetch = errors.New("fetch failed")

const (
	// ModeBody extracts the text of the whole <body>, tags stripped.
	ModeBody = "body"
	// ModeArticle runs readability extraction and falls back to ModeBody
	// when the page has no recognizable article content.
	ModeArticle = "article"
)

type ScraperConfig struct {
	Mode      string
	Timeout   time.Duration // zero means no timeout
	RateLimit float64       // outbound requests per second, zero means unlimited
	UserAgent string
}

// Scraper performs one blocking GET per call and turns the response into a
// ScrapeRecord. No retries, no redirect overrides, no response size cap.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.Mode == "" {
		config.Mode = ModeBody
	}
	if config.UserAgent == "" {
		config.UserAgent = "pagechat/1.0"
	}

	s := &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
	if config.RateLimit > 0 {
		// Shared across requests so concurrent scrapes cannot hammer targets.
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return s
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// Scrape fetches pageURL, extracts its visible text and returns an unsaved
// record stamped with the current time.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (models.ScrapeRecord, error) {
	var rec models.ScrapeRecord

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return rec, fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rec, fmt.Errorf("%w: received status code %d for URL %s", ErrFetch, resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	text, err := s.extract(body, pageURL)
	if err != nil {
		return rec, err
	}

	return models.NewScrapeRecord(pageURL, text), nil
}

func (s *Scraper) extract(body []byte, pageURL string) (string, error) {
	if s.config.Mode == ModeArticle {
		if text, ok := extractArticle(body, pageURL); ok {
			return text, nil
		}
		// Not every page is an article; fall through to the raw body text.
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return doc.Find("body").Text(), nil
}

func extractArticle(body []byte, pageURL string) (string, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(article.TextContent)
	return text, text != ""
}
