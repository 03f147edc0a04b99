package scraper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/extract"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// Scraper crawls same-host pages and turns each one into a document page.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

var _ types.DocumentSource = (*Scraper)(nil)

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		if strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

// Document crawls from the configured base URL.
func (s *Scraper) Document(ctx context.Context) (models.Document, error) {
	return s.Scrape(ctx, s.config.BaseURL)
}

// Scrape crawls from startURL. Pages are numbered in visit order.
func (s *Scraper) Scrape(ctx context.Context, startURL string) (models.Document, error) {
	doc := models.Document{ID: startURL, Source: "HTML"}
	err := s.scrapeRecursive(ctx, startURL, 0, &doc)
	return doc, err
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, doc *models.Document) error {
	if depth > s.config.MaxDepth || s.visited[urlStr] {
		return nil
	}

	if !s.shouldProcessURL(urlStr) {
		return nil
	}

	s.visited[urlStr] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	html, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	// links are collected before extraction strips nav and footer
	var links []string
	html.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		absoluteURL, err := url.Parse(href)
		if err != nil {
			log.Printf("Error parsing URL: %v", err)
			return
		}
		if !absoluteURL.IsAbs() {
			base, err := url.Parse(urlStr)
			if err != nil {
				log.Printf("Error parsing base URL: %v", err)
				return
			}
			absoluteURL = base.ResolveReference(absoluteURL)
		}
		absoluteURL.Fragment = ""
		links = append(links, absoluteURL.String())
	})

	doc.Pages = append(doc.Pages, extract.PageFromDocument(html, len(doc.Pages)+1, urlStr))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.scrapeRecursive(ctx, link, depth+1, doc); err != nil {
			log.Printf("Error scraping URL: %v", err)
		}
	}

	return nil
}
