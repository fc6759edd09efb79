package collect

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/topics"
)

// WorldNewsSource queries WorldNewsAPI. Its date filters are precise, which makes
// it the first choice for recent windows.
type WorldNewsSource struct {
	apiKey   string
	baseURL  string
	country  string
	pageSize int
	client   *http.Client
	now      func() time.Time
}

// NewWorldNewsSource creates a WorldNewsAPI adapter.
func NewWorldNewsSource(cfg config.APIConfig, client *http.Client) *WorldNewsSource {
	return &WorldNewsSource{
		apiKey:   cfg.Key(),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		country:  cfg.Country,
		pageSize: cfg.PageSize,
		client:   client,
		now:      time.Now,
	}
}

func (s *WorldNewsSource) Name() string { return "WorldNewsAPI" }

// IsConfigured returns whether the API key is available.
func (s *WorldNewsSource) IsConfigured() bool { return requireKey(s.Name(), s.apiKey) == nil }

type worldNewsResponse struct {
	News []struct {
		ID          flexID `json:"id"`
		Title       string `json:"title"`
		Text        string `json:"text"`
		Summary     string `json:"summary"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishDate string `json:"publish_date"`
		Author      string `json:"author"`
	} `json:"news"`
}

// Fetch searches news for the topic keywords inside the window.
func (s *WorldNewsSource) Fetch(ctx context.Context, requested []model.Topic, w model.Window, lang string) ([]model.Article, error) {
	if err := requireKey(s.Name(), s.apiKey); err != nil {
		return nil, err
	}

	params := url.Values{
		"api-key":               {s.apiKey},
		"text":                  {topics.Keywords(requested)},
		"language":              {queryLanguage},
		"earliest-publish-date": {w.From.Format(time.DateOnly)},
		"latest-publish-date":   {w.To.Format(time.DateOnly)},
		"sort":                  {"publish-time"},
		"sort-direction":        {"DESC"},
		"number":                {strconv.Itoa(s.pageSize)},
	}
	if s.country != "" {
		params.Set("source-countries", s.country)
	}

	var result worldNewsResponse
	if err := getJSON(ctx, s.client, s.Name(), s.baseURL+"/search-news", params, nil, &result); err != nil {
		return nil, err
	}

	now := s.now()
	articles := make([]model.Article, 0, len(result.News))
	for _, n := range result.News {
		articles = append(articles, apiArticle{
			id:          articleID("worldnews", string(n.ID)),
			title:       n.Title,
			content:     n.Text,
			description: n.Summary,
			source:      hostName(n.URL),
			url:         n.URL,
			image:       n.Image,
			published:   n.PublishDate,
		}.toModel(requested, lang, now))
	}
	return articles, nil
}
