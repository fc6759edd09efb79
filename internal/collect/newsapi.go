package collect

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/topics"
)

// NewsAPISource fetches articles from NewsAPI.org. The free plan only serves
// development traffic, so it is off by default and tried after the ranked sources.
type NewsAPISource struct {
	apiKey   string
	baseURL  string
	pageSize int
	client   *http.Client
	now      func() time.Time
}

// NewNewsAPISource creates a NewsAPI.org adapter.
func NewNewsAPISource(cfg config.APIConfig, client *http.Client) *NewsAPISource {
	pageSize := cfg.PageSize
	if pageSize > 100 {
		pageSize = 100
	}
	return &NewsAPISource{
		apiKey:   cfg.Key(),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: pageSize,
		client:   client,
		now:      time.Now,
	}
}

func (s *NewsAPISource) Name() string { return "NewsAPI" }

// IsConfigured returns whether the API key is available.
func (s *NewsAPISource) IsConfigured() bool { return requireKey(s.Name(), s.apiKey) == nil }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
		Description string `json:"description"`
		URLToImage  string `json:"urlToImage"`
		Source      struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch searches everything published inside the window for the topic keywords.
func (s *NewsAPISource) Fetch(ctx context.Context, requested []model.Topic, w model.Window, lang string) ([]model.Article, error) {
	if err := requireKey(s.Name(), s.apiKey); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":        {topics.Keywords(requested)},
		"from":     {w.From.Format(time.DateOnly)},
		"to":       {w.To.Format(time.DateOnly)},
		"language": {queryLanguage},
		"sortBy":   {"publishedAt"},
	}
	if s.pageSize > 0 {
		params.Set("pageSize", strconv.Itoa(s.pageSize))
	}
	header := http.Header{"X-Api-Key": {s.apiKey}}

	var result newsAPIResponse
	if err := getJSON(ctx, s.client, s.Name(), s.baseURL+"/everything", params, header, &result); err != nil {
		return nil, err
	}
	if result.Status != "ok" {
		return nil, &SourceError{Source: s.Name(), Message: firstNonBlank(result.Message, "status "+result.Status)}
	}

	now := s.now()
	var articles []model.Article
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}
		articles = append(articles, apiArticle{
			id:          articleID("newsapi", uuid.NewSHA1(uuid.NameSpaceURL, []byte(a.URL)).String()),
			title:       a.Title,
			content:     a.Content,
			description: a.Description,
			source:      firstNonBlank(a.Source.Name, "NewsAPI"),
			url:         a.URL,
			image:       a.URLToImage,
			published:   a.PublishedAt,
		}.toModel(requested, lang, now))
	}
	if articles == nil {
		articles = []model.Article{}
	}
	return articles, nil
}
