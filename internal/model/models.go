package model

import (
	"strings"
	"time"
)

// Topic is a study-syllabus category assigned to an article.
type Topic string

const (
	TopicAll           Topic = "all"
	TopicEconomy       Topic = "economy"
	TopicPolity        Topic = "polity"
	TopicEnvironment   Topic = "environment"
	TopicInternational Topic = "international"
	TopicScience       Topic = "science"
	TopicSociety       Topic = "society"
	TopicHistory       Topic = "history"
	TopicGeography     Topic = "geography"
)

// AllTopics lists every concrete topic in table order. The wildcard is not included.
var AllTopics = []Topic{
	TopicEconomy, TopicPolity, TopicEnvironment, TopicInternational,
	TopicScience, TopicSociety, TopicHistory, TopicGeography,
}

// ParseTopics converts a list of raw names into known topics, dropping unknown ones.
// An empty result means the wildcard.
func ParseTopics(names []string) []Topic {
	var out []Topic
	for _, n := range names {
		t := Topic(strings.ToLower(strings.TrimSpace(n)))
		if t == TopicAll {
			out = append(out, t)
			continue
		}
		for _, known := range AllTopics {
			if t == known {
				out = append(out, t)
				break
			}
		}
	}
	if len(out) == 0 {
		return []Topic{TopicAll}
	}
	return out
}

// Sentiment is the tone detected by deep analysis.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Analysis is the structured enrichment attached to an article or PDF.
// The lightweight summarizer fills Summary and at most three KeyTakeaways.
type Analysis struct {
	Summary            string    `json:"summary"`
	KeyTakeaways       []string  `json:"keyTakeaways"`
	ExamRelevance      string    `json:"examRelevance,omitempty"`
	ImportantFacts     []string  `json:"importantFacts,omitempty"`
	PotentialQuestions []string  `json:"potentialQuestions,omitempty"`
	RelatedTopics      []Topic   `json:"relatedTopics,omitempty"`
	Sentiment          Sentiment `json:"sentiment,omitempty"`
	PolicyImplications []string  `json:"policyImplications,omitempty"`
}

// Article is the canonical unit of retrieved news, whatever provider it came from.
type Article struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary,omitempty"`
	Source     string    `json:"source"`
	Date       time.Time `json:"date"`
	Topics     []Topic   `json:"topics"`
	Language   string    `json:"language"`
	URL        string    `json:"url,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Analysis   *Analysis `json:"analysis,omitempty"`
	Bookmarked bool      `json:"bookmarked"`
}

// Window is a closed publication-time range. Resolved windows satisfy From <= To <= now.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Span returns the window length.
func (w Window) Span() time.Duration {
	return w.To.Sub(w.From)
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// MergeByID replaces articles in batch with the updated article carrying the same ID.
// Order and length of batch are preserved; unknown IDs are ignored.
func MergeByID(batch []Article, updated ...Article) []Article {
	byID := make(map[string]Article, len(updated))
	for _, u := range updated {
		byID[u.ID] = u
	}
	out := make([]Article, len(batch))
	for i, a := range batch {
		if u, ok := byID[a.ID]; ok {
			out[i] = u
		} else {
			out[i] = a
		}
	}
	return out
}

// NewOnly returns the fetched articles whose IDs are not already in existing.
func NewOnly(existing, fetched []Article) []Article {
	seen := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		seen[a.ID] = struct{}{}
	}
	var out []Article
	for _, a := range fetched {
		if _, ok := seen[a.ID]; !ok {
			out = append(out, a)
		}
	}
	return out
}
