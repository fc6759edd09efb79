// Package enrich attaches AI study summaries to articles, one at a time, and
// falls back to local extraction when no AI provider can be used.
package enrich

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/llm"
	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// Summarizer produces the lightweight analysis for one article.
type Summarizer interface {
	Summarize(ctx context.Context, a model.Article, lang i18n.Language) (model.Analysis, error)
}

const promptContentLimit = 2000

const summaryPrompt = `%s

Summarize this news for exam prep.

Title: %s
Content: %s

Return ONLY valid JSON (no extra text):
{"summary":"3-4 complete sentences covering all key points","keyTakeaways":["point 1","point 2","point 3"]}`

// AISummarizer asks an LLM provider for a summary. When the provider has no
// credentials or every key is exhausted, it returns a locally extracted summary.
type AISummarizer struct {
	provider  llm.Provider
	maxTokens int
}

// NewAISummarizer creates a summarizer backed by provider. A nil provider always
// uses local extraction.
func NewAISummarizer(provider llm.Provider, maxTokens int) *AISummarizer {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &AISummarizer{provider: provider, maxTokens: maxTokens}
}

// Summarize implements Summarizer.
func (s *AISummarizer) Summarize(ctx context.Context, a model.Article, lang i18n.Language) (model.Analysis, error) {
	if s.provider == nil || !s.provider.IsConfigured() {
		return LocalSummary(a, lang), nil
	}

	text, err := s.provider.Generate(ctx, llm.Request{
		Prompt:      buildPrompt(a, lang),
		MaxTokens:   s.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		if llm.IsUnavailable(err) {
			log.Printf("%s unavailable, using local summary: %v", s.provider.Name(), err)
			return LocalSummary(a, lang), nil
		}
		return model.Analysis{}, fmt.Errorf("summarizing %q: %w", a.ID, err)
	}

	parsed := llm.ParseSummary(text)
	return model.Analysis{
		Summary:       parsed.Summary,
		KeyTakeaways:  parsed.KeyTakeaways,
		RelatedTopics: a.Topics,
	}, nil
}

func buildPrompt(a model.Article, lang i18n.Language) string {
	text := strings.TrimSpace(a.Summary)
	if text == "" {
		text = truncate(a.Content, promptContentLimit)
	}
	return fmt.Sprintf(summaryPrompt, lang.Instruction(), a.Title, text)
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

const localSentences = 4

// LocalSummary builds an analysis without any AI provider: the first sentences of
// the article's description or content, plus generic takeaways in lang.
func LocalSummary(a model.Article, lang i18n.Language) model.Analysis {
	text := strings.TrimSpace(a.Summary)
	if text == "" {
		text = strings.TrimSpace(a.Content)
	}

	sentences := sentencePattern.FindAllString(text, localSentences)
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	summary := strings.Join(sentences, " ")
	if summary == "" {
		summary = truncate(text, 500)
	}
	if summary == "" {
		summary = a.Title
	}

	return model.Analysis{
		Summary:       summary,
		KeyTakeaways:  lang.FallbackTakeaways(),
		RelatedTopics: a.Topics,
	}
}

// Hooks observe batch progress. Both are optional and called synchronously.
type Hooks struct {
	OnItemStart func(index int, a model.Article)
	// OnItemDone fires for every processed article. err is nil when a carries
	// the new analysis and non-nil when a is the unchanged original.
	OnItemDone func(index int, a model.Article, err error)
}

// Enricher applies a Summarizer to articles.
type Enricher struct {
	summarizer Summarizer
	debug      bool
}

// New creates an enricher.
func New(s Summarizer, debug bool) *Enricher {
	return &Enricher{summarizer: s, debug: debug}
}

// EnrichOne returns a copy of a with its summary and analysis replaced. It never
// fails: on any error the original article is returned unchanged.
func (e *Enricher) EnrichOne(ctx context.Context, a model.Article, lang i18n.Language) model.Article {
	out, err := e.enrich(ctx, a, lang)
	if err != nil {
		log.Printf("Enrichment failed for %s: %v", a.ID, err)
		return a
	}
	return out
}

// EnrichBatch enriches articles strictly one after another, in order. A failed
// article stays unchanged and does not stop the batch. When ctx is cancelled the
// remaining articles are returned as they were.
func (e *Enricher) EnrichBatch(ctx context.Context, articles []model.Article, lang i18n.Language, hooks Hooks) []model.Article {
	out := make([]model.Article, len(articles))
	copy(out, articles)

	enriched := 0
	for i, a := range articles {
		if ctx.Err() != nil {
			log.Printf("Enrichment cancelled after %d of %d articles", i, len(articles))
			break
		}
		if hooks.OnItemStart != nil {
			hooks.OnItemStart(i, a)
		}

		updated, err := e.enrich(ctx, a, lang)
		if err != nil {
			log.Printf("Enrichment failed for %s: %v", a.ID, err)
		} else {
			out[i] = updated
			enriched++
		}
		if hooks.OnItemDone != nil {
			hooks.OnItemDone(i, out[i], err)
		}
	}

	log.Printf("Enriched %d/%d articles", enriched, len(articles))
	return out
}

func (e *Enricher) enrich(ctx context.Context, a model.Article, lang i18n.Language) (model.Article, error) {
	analysis, err := e.summarizer.Summarize(ctx, a, lang)
	if err != nil {
		return a, err
	}
	if e.debug {
		log.Printf("  Summarized %s: %d takeaways", a.ID, len(analysis.KeyTakeaways))
	}
	a.Summary = analysis.Summary
	a.Analysis = &analysis
	return a, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
