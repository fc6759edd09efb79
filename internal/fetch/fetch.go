package fetch

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/ExamBrief/internal/collect"
	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// minContentLength is the shortest extracted text accepted as article content.
const minContentLength = 100

// maxBodySize caps how much of an article page is read.
const maxBodySize = 5 << 20

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Skipped int
	Failed  int
}

// ContentFetcher replaces placeholder feed content with the article's full text,
// extracted via HTTP + readability.
type ContentFetcher struct {
	client *http.Client
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FillPlaceholders returns a copy of articles in which every article carrying only
// placeholder content has its content replaced by the extracted page text. Articles
// that already have content, or whose page cannot be extracted, are unchanged.
// After an HTTP error the remaining articles from the same domain are skipped.
func (f *ContentFetcher) FillPlaceholders(ctx context.Context, articles []model.Article) ([]model.Article, *Result) {
	out := make([]model.Article, len(articles))
	copy(out, articles)

	result := &Result{}
	failedDomains := make(map[string]struct{})

	for i, article := range out {
		if !collect.HasPlaceholderContent(article) || article.URL == "" {
			result.Skipped++
			continue
		}
		if ctx.Err() != nil {
			break
		}

		domain := ""
		if u, err := url.Parse(article.URL); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if _, failed := failedDomains[domain]; failed {
			result.Failed++
			continue
		}

		content, httpErr := f.fetchArticleContent(ctx, article.URL)
		if httpErr != nil {
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", article.URL, domain)
			continue
		}

		if content == "" {
			result.Failed++
			log.Printf("No extractable content from: %s", article.URL)
			continue
		}
		out[i].Content = content
		result.Fetched++
		log.Printf("Fetched content for: %s", article.Title)
	}

	log.Printf("Content fetch complete: %d fetched, %d failed", result.Fetched, result.Failed)
	return out, result
}

func (f *ContentFetcher) fetchArticleContent(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "ExamBrief/1.0 (news digest)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodySize), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minContentLength {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
