package collect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/topics"
)

// paidOnly is what NewsData.io puts in fields withheld from free plans.
const paidOnly = "ONLY AVAILABLE IN PAID PLANS"

// NewsDataSource queries NewsData.io. The latest-news endpoint has broad regional
// coverage but ignores date bounds, so it ranks below WorldNewsAPI for recency.
type NewsDataSource struct {
	apiKey   string
	baseURL  string
	country  string
	pageSize int
	client   *http.Client
	now      func() time.Time
}

// NewNewsDataSource creates a NewsData.io adapter.
func NewNewsDataSource(cfg config.APIConfig, client *http.Client) *NewsDataSource {
	return &NewsDataSource{
		apiKey:   cfg.Key(),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		country:  cfg.Country,
		pageSize: cfg.PageSize,
		client:   client,
		now:      time.Now,
	}
}

func (s *NewsDataSource) Name() string { return "NewsData.io" }

// IsConfigured returns whether the API key is available.
func (s *NewsDataSource) IsConfigured() bool { return requireKey(s.Name(), s.apiKey) == nil }

type newsDataResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type newsDataItem struct {
	ArticleID   string `json:"article_id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Content     string `json:"content"`
	PubDate     string `json:"pubDate"`
	ImageURL    string `json:"image_url"`
	SourceID    string `json:"source_id"`
}

// Fetch requests the latest news matching the topic keywords.
func (s *NewsDataSource) Fetch(ctx context.Context, requested []model.Topic, w model.Window, lang string) ([]model.Article, error) {
	if err := requireKey(s.Name(), s.apiKey); err != nil {
		return nil, err
	}

	params := url.Values{
		"apikey":   {s.apiKey},
		"q":        {topics.Keywords(requested)},
		"language": {queryLanguage},
	}
	if s.country != "" {
		params.Set("country", s.country)
	}
	if s.pageSize > 0 {
		params.Set("size", strconv.Itoa(s.pageSize))
	}

	var result newsDataResponse
	if err := getJSON(ctx, s.client, s.Name(), s.baseURL+"/news", params, nil, &result); err != nil {
		return nil, err
	}
	// Errors arrive with HTTP 200, status "error" and an object in place of the results list.
	if result.Status != "success" {
		return nil, &SourceError{Source: s.Name(), Message: providerMessage(result.Results, "request failed: status "+result.Status)}
	}

	var items []newsDataItem
	if len(result.Results) > 0 && string(result.Results) != "null" {
		if err := json.Unmarshal(result.Results, &items); err != nil {
			return nil, &SourceError{Source: s.Name(), Message: "decoding results", Err: err}
		}
	}

	now := s.now()
	articles := make([]model.Article, 0, len(items))
	for _, it := range items {
		content := it.Content
		if strings.EqualFold(strings.TrimSpace(content), paidOnly) {
			content = ""
		}
		articles = append(articles, apiArticle{
			id:          articleID("newsdata", it.ArticleID),
			title:       it.Title,
			content:     content,
			description: it.Description,
			source:      it.SourceID,
			url:         it.Link,
			image:       it.ImageURL,
			published:   it.PubDate,
		}.toModel(requested, lang, now))
	}
	return articles, nil
}
