package database

import (
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// ArticleFilter narrows ListArticles. Zero values mean no restriction.
type ArticleFilter struct {
	Topics     []model.Topic
	From       time.Time
	To         time.Time
	Language   string
	Bookmarked bool
	Enriched   bool
	Query      string
	Limit      int
	Offset     int
}

// SaveResult reports how a batch was stored.
type SaveResult struct {
	New     int
	Updated int
}

// RunReport holds metadata about one news fetch.
type RunReport struct {
	ID           int64
	From         time.Time
	To           time.Time
	Language     string
	Source       string
	ArticleCount int
	NewCount     int
	RanAt        *string
}

// Document is a processed PDF upload.
type Document struct {
	ID          int64
	Name        string
	PageCount   int
	WordCount   int
	Text        string
	Analysis    *model.Analysis
	ProcessedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalArticles    int
	EnrichedArticles int
	Bookmarked       int
	Sources          int
	Languages        int
	Runs             int
	Documents        int
}
