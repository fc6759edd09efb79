package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/topics"
)

// GNewsSource queries GNews, whose search reaches about thirty days back.
type GNewsSource struct {
	apiKey   string
	baseURL  string
	country  string
	pageSize int
	client   *http.Client
	now      func() time.Time
}

// NewGNewsSource creates a GNews adapter.
func NewGNewsSource(cfg config.APIConfig, client *http.Client) *GNewsSource {
	return &GNewsSource{
		apiKey:   cfg.Key(),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		country:  cfg.Country,
		pageSize: cfg.PageSize,
		client:   client,
		now:      time.Now,
	}
}

func (s *GNewsSource) Name() string { return "GNews" }

// IsConfigured returns whether the API key is available.
func (s *GNewsSource) IsConfigured() bool { return requireKey(s.Name(), s.apiKey) == nil }

type gnewsResponse struct {
	Errors   any `json:"errors"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch searches articles for the topic keywords inside the window.
func (s *GNewsSource) Fetch(ctx context.Context, requested []model.Topic, w model.Window, lang string) ([]model.Article, error) {
	if err := requireKey(s.Name(), s.apiKey); err != nil {
		return nil, err
	}

	params := url.Values{
		"apikey": {s.apiKey},
		"q":      {topics.Keywords(requested)},
		"lang":   {queryLanguage},
		"from":   {w.From.UTC().Format(time.RFC3339)},
		"to":     {w.To.UTC().Format(time.RFC3339)},
	}
	if s.country != "" {
		params.Set("country", s.country)
	}
	if s.pageSize > 0 {
		params.Set("max", strconv.Itoa(s.pageSize))
	}

	var result gnewsResponse
	if err := getJSON(ctx, s.client, s.Name(), s.baseURL+"/search", params, nil, &result); err != nil {
		return nil, err
	}
	if result.Errors != nil {
		return nil, &SourceError{Source: s.Name(), Message: truncate(fmt.Sprint(result.Errors), 200)}
	}

	now := s.now()
	articles := make([]model.Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		articles = append(articles, apiArticle{
			// GNews has no article id; the URL is stable across fetches.
			id:          articleID("gnews", a.URL),
			title:       a.Title,
			content:     a.Content,
			description: a.Description,
			source:      a.Source.Name,
			url:         a.URL,
			image:       a.Image,
			published:   a.PublishedAt,
		}.toModel(requested, lang, now))
	}
	return articles, nil
}
