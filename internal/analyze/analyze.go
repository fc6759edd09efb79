// Package analyze produces deep exam-oriented analyses of news text or documents.
// It asks each configured AI provider in turn and falls back to a rule-based
// analysis, so Analyze always yields a result unless the context is cancelled.
package analyze

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/llm"
	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// Depth selects how much detail an analysis carries.
type Depth string

const (
	Basic    Depth = "basic"
	Advanced Depth = "advanced"
)

// ParseDepth maps s to a Depth, defaulting to Basic.
func ParseDepth(s string) Depth {
	if strings.EqualFold(strings.TrimSpace(s), string(Advanced)) {
		return Advanced
	}
	return Basic
}

// Kind tells the analyzer what the content is.
type Kind string

const (
	KindNews Kind = "news"
	KindPDF  Kind = "pdf"
)

// RuleBasedEngine is the Engine name reported when no AI provider produced the analysis.
const RuleBasedEngine = "rule-based"

const contentLimit = 4000

type Request struct {
	Content  string
	Depth    Depth
	Kind     Kind
	Language i18n.Language
}

type Result struct {
	Analysis model.Analysis `json:"analysis"`
	Engine   string         `json:"engine"`
}

// Analyzer tries providers in order. Unconfigured and nil providers are skipped.
type Analyzer struct {
	providers []llm.Provider
	maxTokens int
}

// New creates an analyzer. maxTokens is the advanced-depth budget; basic requests
// get half of it.
func New(maxTokens int, providers ...llm.Provider) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &Analyzer{providers: providers, maxTokens: maxTokens}
}

// Analyze returns an analysis of req.Content. Provider failures and unparseable
// responses move on to the next provider; only context cancellation is an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	if req.Depth == "" {
		req.Depth = Basic
	}
	if req.Kind == "" {
		req.Kind = KindNews
	}

	llmReq := llm.Request{
		System:      systemPrompt(req.Depth, req.Kind),
		Prompt:      userPrompt(req.Content, req.Language),
		MaxTokens:   a.maxTokens,
		Temperature: 0.7,
	}
	if req.Depth == Basic {
		llmReq.MaxTokens = a.maxTokens / 2
	}

	for _, p := range a.providers {
		if p == nil || !p.IsConfigured() {
			continue
		}
		text, err := p.Generate(ctx, llmReq)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			log.Printf("Analysis via %s failed: %v", p.Name(), err)
			continue
		}
		analysis, ok := llm.ParseAnalysis(text)
		if !ok {
			log.Printf("Analysis via %s returned no usable JSON", p.Name())
			continue
		}
		return Result{Analysis: analysis, Engine: p.Name()}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Analysis: RuleBased(req.Content, req.Depth), Engine: RuleBasedEngine}, nil
}

func systemPrompt(depth Depth, kind Kind) string {
	subject := "news articles"
	if kind == KindPDF {
		subject = "documents"
	}
	base := fmt.Sprintf("You are an expert analyst specializing in competitive exam preparation, "+
		"particularly for civil services examinations. Your task is to analyze %s and provide structured insights.", subject)

	if depth == Advanced {
		return base + `

Provide comprehensive analysis with:
- Detailed summary highlighting key developments and implications
- 6-8 key takeaways with actionable insights
- Exam relevance across multiple papers (Prelims, Mains, Interview)
- Important facts with specific data, statistics, and dates
- 4-5 potential exam questions with varying difficulty levels
- Policy implications and multi-stakeholder perspectives
- Sentiment analysis and related topics

` + jsonShape
	}
	return base + `

Provide concise analysis with:
- Brief summary of main points
- 3-4 key takeaways
- Basic exam relevance
- Important facts and data points
- 2-3 potential exam questions

` + jsonShape
}

const jsonShape = `Format your response as JSON with this structure:
{
  "summary": "summary",
  "keyTakeaways": ["point 1", "point 2"],
  "examRelevance": "relevance",
  "importantFacts": ["fact 1", "fact 2"],
  "potentialQuestions": ["question 1", "question 2"],
  "policyImplications": ["implication 1"],
  "sentiment": "positive|neutral|negative",
  "relatedTopics": ["economy", "polity"]
}`

func userPrompt(content string, lang i18n.Language) string {
	body := content
	if r := []rune(content); len(r) > contentLimit {
		body = string(r[:contentLimit]) + " ..."
	}
	return fmt.Sprintf("%s\n\nAnalyze the following content for competitive exam preparation. Provide insights in %s.\n\nContent:\n%s\n\nProvide structured analysis in JSON format.",
		lang.Instruction(), lang.Name(), body)
}
