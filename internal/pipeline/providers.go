package pipeline

import (
	"github.com/TobiSchelling/ExamBrief/internal/analyze"
	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/enrich"
	"github.com/TobiSchelling/ExamBrief/internal/keypool"
	"github.com/TobiSchelling/ExamBrief/internal/llm"
)

// Providers holds the process-wide AI clients. Their key pools carry the
// throttle and rotation state, so build one Providers per process and share it.
type Providers struct {
	Groq   *llm.PooledProvider
	OpenAI *llm.PooledProvider

	maxTokens         int
	analysisMaxTokens int
}

// NewProviders builds the Groq and OpenAI pools from config and the environment.
func NewProviders(s config.Summarization) *Providers {
	opts := keypool.Options{
		MinInterval:       s.MinInterval,
		RateLimitCooldown: s.RateLimitCooldown,
		FailureCooldown:   s.FailureCooldown,
	}
	return &Providers{
		Groq: llm.NewPooledProvider(
			llm.NewChatClient(s.Groq.Model, s.Groq.BaseURL),
			keypool.New("groq", s.Groq.Keys(), opts),
		),
		OpenAI: llm.NewPooledProvider(
			llm.NewChatClient(s.OpenAI.Model, s.OpenAI.BaseURL),
			keypool.New("openai", s.OpenAI.Keys(), opts),
		),
		maxTokens:         s.MaxTokens,
		analysisMaxTokens: s.AnalysisMaxTokens,
	}
}

// Summarizer returns the lightweight summarizer, backed by Groq.
func (p *Providers) Summarizer() *enrich.AISummarizer {
	return enrich.NewAISummarizer(p.Groq, p.maxTokens)
}

// Analyzer returns the deep analyzer: Groq first, then OpenAI, then rules.
func (p *Providers) Analyzer() *analyze.Analyzer {
	return analyze.New(p.analysisMaxTokens, p.Groq, p.OpenAI)
}

// Status reports the key pool state of every provider.
func (p *Providers) Status() []keypool.Status {
	return []keypool.Status{p.Groq.Keys.Status(), p.OpenAI.Keys.Status()}
}
