package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/collect"
	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/database"
	"github.com/TobiSchelling/ExamBrief/internal/enrich"
	"github.com/TobiSchelling/ExamBrief/internal/fetch"
	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/window"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Window   model.Window
	Source   string
	Articles []model.Article
	Steps    []StepResult
}

// Err returns the first step error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Request describes one news fetch.
type Request struct {
	Topics   []model.Topic
	Preset   window.Preset
	Custom   *window.Bounds
	Language i18n.Language
	Enrich   bool
	// Exclude holds articles the caller already has; matching IDs are dropped
	// from the result.
	Exclude []model.Article
}

// Progress is a user-facing status line emitted while a run is in flight.
type Progress struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Done    int    `json:"done,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// Collector fetches a batch for a window, trying sources in order.
type Collector interface {
	FetchWithFallback(ctx context.Context, topics []model.Topic, w model.Window, lang string, onProgress func(collect.Progress)) ([]model.Article, error)
}

// Pipeline orchestrates resolve, collect, fetch, store and enrich.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	collector Collector
	fetcher   *fetch.ContentFetcher
	enricher  *enrich.Enricher
	now       func() time.Time
}

// New creates a new pipeline. db may be nil, in which case nothing is stored.
func New(cfg *config.Config, db *database.DB, providers *Providers) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		db:        db,
		collector: collect.NewOrchestrator(cfg),
		enricher:  enrich.New(providers.Summarizer(), cfg.Logging.Debug()),
		now:       time.Now,
	}
	if cfg.Pipeline.FetchFullText {
		p.fetcher = fetch.NewContentFetcher(15 * time.Second)
	}
	return p
}

// Enricher exposes the pipeline's enricher for single-article requests.
func (p *Pipeline) Enricher() *enrich.Enricher {
	return p.enricher
}

// Run executes the pipeline. It stops after Collect if no source produced articles.
// onProgress may be nil and is called synchronously.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress func(Progress)) *Result {
	emit := func(pr Progress) {
		if onProgress != nil {
			onProgress(pr)
		}
	}
	if req.Language == "" {
		req.Language = i18n.English
	}
	if len(req.Topics) == 0 {
		req.Topics = []model.Topic{model.TopicAll}
	}

	r := &Result{}

	// Step 1: Resolve window
	r.Window = window.Resolve(req.Preset, req.Custom, p.now())
	r.Steps = append(r.Steps, StepResult{
		Name:    "Resolve",
		Summary: fmt.Sprintf("Window %s to %s", r.Window.From.Format(time.DateTime), r.Window.To.Format(time.DateTime)),
	})

	// Step 2: Collect
	step := p.runCollect(ctx, req, r, emit)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	// Step 3: Fetch full text
	if p.fetcher != nil {
		r.Steps = append(r.Steps, p.runFetch(ctx, r, emit))
	}

	// Step 4: Store
	if p.db != nil {
		r.Steps = append(r.Steps, p.runStore(req, r))
	}

	// Step 5: Enrich
	if req.Enrich {
		r.Steps = append(r.Steps, p.runEnrich(ctx, req.Language, r, emit))
	}

	return r
}

func (p *Pipeline) runCollect(ctx context.Context, req Request, r *Result, emit func(Progress)) StepResult {
	log.Println("Collecting articles...")
	articles, err := p.collector.FetchWithFallback(ctx, req.Topics, r.Window, string(req.Language), func(cp collect.Progress) {
		if cp.Stage == collect.StageSuccess {
			r.Source = cp.Source
		}
		emit(Progress{Step: "Collect", Message: cp.String()})
	})
	if err != nil {
		return StepResult{Name: "Collect", Err: err}
	}

	found := len(articles)
	if len(req.Exclude) > 0 {
		articles = model.NewOnly(req.Exclude, articles)
	}
	r.Articles = articles
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Found %d articles from %s (%d new to this view)", found, r.Source, len(articles)),
	}
}

func (p *Pipeline) runFetch(ctx context.Context, r *Result, emit func(Progress)) StepResult {
	log.Println("Fetching full text for feed articles...")
	emit(Progress{Step: "Fetch", Message: "Fetching full article text..."})
	articles, result := p.fetcher.FillPlaceholders(ctx, r.Articles)
	r.Articles = articles
	return StepResult{
		Name:    "Fetch",
		Summary: fmt.Sprintf("Fetched %d articles, %d failed", result.Fetched, result.Failed),
	}
}

func (p *Pipeline) runStore(req Request, r *Result) StepResult {
	saved, err := p.db.SaveArticles(r.Articles)
	if err != nil {
		return StepResult{Name: "Store", Err: fmt.Errorf("storing articles: %w", err)}
	}
	if _, err := p.db.InsertRun(database.RunReport{
		From:         r.Window.From,
		To:           r.Window.To,
		Language:     string(req.Language),
		Source:       r.Source,
		ArticleCount: len(r.Articles),
		NewCount:     saved.New,
	}); err != nil {
		log.Printf("Error recording run: %v", err)
	}

	// Reload so stored bookmarks and earlier analyses show up in the batch.
	for i, a := range r.Articles {
		stored, err := p.db.GetArticle(a.ID)
		if err != nil || stored == nil {
			continue
		}
		r.Articles[i].Bookmarked = stored.Bookmarked
		if r.Articles[i].Analysis == nil && stored.Analysis != nil {
			r.Articles[i].Analysis = stored.Analysis
			r.Articles[i].Summary = stored.Summary
		}
	}

	return StepResult{
		Name:    "Store",
		Summary: fmt.Sprintf("Stored %d new, %d updated", saved.New, saved.Updated),
	}
}

func (p *Pipeline) runEnrich(ctx context.Context, lang i18n.Language, r *Result, emit func(Progress)) StepResult {
	log.Println("Summarizing articles...")
	total := len(r.Articles)
	enriched := 0

	r.Articles = p.enricher.EnrichBatch(ctx, r.Articles, lang, enrich.Hooks{
		OnItemStart: func(i int, a model.Article) {
			emit(Progress{Step: "Enrich", Message: "Summarizing " + a.Title, Done: i, Total: total})
		},
		OnItemDone: func(i int, a model.Article, err error) {
			if err != nil || a.Analysis == nil {
				return
			}
			enriched++
			if p.db != nil {
				if err := p.db.SaveAnalysis(a.ID, *a.Analysis, string(lang)); err != nil {
					log.Printf("Error storing analysis for %s: %v", a.ID, err)
				}
			}
			emit(Progress{Step: "Enrich", Message: "Summarized " + a.Title, Done: i + 1, Total: total})
		},
	})

	if err := ctx.Err(); err != nil {
		return StepResult{Name: "Enrich", Summary: fmt.Sprintf("Cancelled after %d/%d", enriched, total), Err: err}
	}
	return StepResult{
		Name:    "Enrich",
		Summary: fmt.Sprintf("Summarized %d/%d articles", enriched, total),
	}
}
