// Package collect retrieves news from feeds and news APIs, trying sources in a
// window-dependent order until one returns articles.
package collect

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// Source is a single news provider.
type Source interface {
	Name() string
	// Fetch returns articles for the topics inside the window. Zero results is
	// an empty slice and a nil error; any failure is a *SourceError.
	Fetch(ctx context.Context, topics []model.Topic, w model.Window, lang string) ([]model.Article, error)
}

// SourceError describes why one source could not deliver. The orchestrator
// treats it as local and moves on to the next source.
type SourceError struct {
	Source     string
	StatusCode int
	Message    string
	Err        error
}

func (e *SourceError) Error() string {
	msg := e.Source + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Err }

// Attempt records the outcome of trying one source.
type Attempt struct {
	Source string
	Count  int
	Err    error
}

// AllSourcesFailedError is returned when no candidate produced articles.
type AllSourcesFailedError struct {
	Attempts []Attempt
}

func (e *AllSourcesFailedError) Error() string {
	return "all news sources failed; check API keys and retry"
}

// Stage is a step in the fallback sequence reported to progress observers.
type Stage string

const (
	StageTrying  Stage = "trying"
	StageFailed  Stage = "failed"
	StageEmpty   Stage = "empty"
	StageSuccess Stage = "success"
)

// Progress is one progress notification.
type Progress struct {
	Stage  Stage
	Source string
	Count  int
	Err    error
}

func (p Progress) String() string {
	switch p.Stage {
	case StageTrying:
		return fmt.Sprintf("Trying %s...", p.Source)
	case StageFailed:
		return fmt.Sprintf("%s failed, trying next source", p.Source)
	case StageEmpty:
		return fmt.Sprintf("%s returned no articles, trying next source", p.Source)
	default:
		return fmt.Sprintf("Loaded %d articles from %s", p.Count, p.Source)
	}
}

const (
	// feedMaxSpan is the longest window for which the feed source is tried first.
	// Feeds only carry recent items; the half-day margin absorbs preset rounding.
	feedMaxSpan = 7*24*time.Hour + 12*time.Hour
	// recentSpan separates recency-first from history-first API ordering.
	recentSpan = 7 * 24 * time.Hour
)

// Orchestrator ranks sources by role and falls back through them in order.
// Nil roles are unconfigured and never tried.
type Orchestrator struct {
	Feed    Source // RSS feeds, recent items only
	Recency Source // best for the last few days
	Broad   Source // wide coverage, weaker recency
	History Source // best reach into the past month
	// Extra sources are tried last, in order.
	Extra []Source

	Debug bool
}

// NewOrchestrator wires the sources enabled in cfg.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	o := &Orchestrator{Debug: cfg.Logging.Debug()}
	client := &http.Client{Timeout: 30 * time.Second}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{Tag: f.Tag, URL: f.URL, Name: f.Name}
		}
		o.Feed = NewFeedSource(feeds, cfg.Sources.Proxies, cfg.Sources.FeedTimeout, cfg.Sources.MaxPerFeed)
	}

	apis := cfg.Sources.APIs
	if apis.WorldNews.Enabled {
		o.Recency = NewWorldNewsSource(apis.WorldNews, client)
	}
	if apis.NewsData.Enabled {
		o.Broad = NewNewsDataSource(apis.NewsData, client)
	}
	if apis.GNews.Enabled {
		o.History = NewGNewsSource(apis.GNews, client)
	}
	if apis.NewsAPI.Enabled {
		o.Extra = append(o.Extra, NewNewsAPISource(apis.NewsAPI, client))
	}
	return o
}

// Plan returns the candidate order for a window. Windows of about a week or less
// start with the feed source. Up to seven days, recency-optimized APIs rank first;
// beyond that, historical reach matters most.
func (o *Orchestrator) Plan(w model.Window) []Source {
	var plan []Source
	span := w.Span()
	if span <= feedMaxSpan {
		plan = append(plan, o.Feed)
	}
	if span <= recentSpan {
		plan = append(plan, o.Recency, o.Broad, o.History)
	} else {
		plan = append(plan, o.History, o.Recency, o.Broad)
	}
	plan = append(plan, o.Extra...)

	return lo.Filter(plan, func(s Source, _ int) bool { return s != nil })
}

// FetchWithFallback tries the planned sources one at a time and returns the first
// non-empty result. onProgress, if set, is called synchronously at every step.
func (o *Orchestrator) FetchWithFallback(ctx context.Context, topics []model.Topic, w model.Window, lang string, onProgress func(Progress)) ([]model.Article, error) {
	plan := o.Plan(w)
	log.Printf("Fetching %s..%s (%d candidate sources)", w.From.Format(time.DateOnly), w.To.Format(time.DateOnly), len(plan))

	articles, attempts := firstNonEmpty(ctx, plan, func(ctx context.Context, s Source) ([]model.Article, error) {
		return s.Fetch(ctx, topics, w, lang)
	}, onProgress)
	if len(articles) > 0 {
		if o.Debug {
			for _, a := range articles {
				log.Printf("  [%s] %s", a.Source, a.Title)
			}
		}
		return articles, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &AllSourcesFailedError{Attempts: attempts}
}

// firstNonEmpty runs fetch over candidates in order and stops at the first
// non-empty batch. Errors and empty batches are recorded and skipped.
func firstNonEmpty(ctx context.Context, candidates []Source, fetch func(context.Context, Source) ([]model.Article, error), onProgress func(Progress)) ([]model.Article, []Attempt) {
	notify := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	var attempts []Attempt
	for _, s := range candidates {
		if ctx.Err() != nil {
			break
		}
		name := s.Name()
		notify(Progress{Stage: StageTrying, Source: name})

		articles, err := fetch(ctx, s)
		if err != nil {
			log.Printf("Source %s failed: %v", name, err)
			attempts = append(attempts, Attempt{Source: name, Err: err})
			notify(Progress{Stage: StageFailed, Source: name, Err: err})
			continue
		}
		if len(articles) == 0 {
			log.Printf("Source %s returned no articles", name)
			attempts = append(attempts, Attempt{Source: name})
			notify(Progress{Stage: StageEmpty, Source: name})
			continue
		}

		log.Printf("Loaded %d articles from %s", len(articles), name)
		attempts = append(attempts, Attempt{Source: name, Count: len(articles)})
		notify(Progress{Stage: StageSuccess, Source: name, Count: len(articles)})
		return articles, attempts
	}
	return nil, attempts
}
