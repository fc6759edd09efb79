package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/keypool"
	"github.com/TobiSchelling/ExamBrief/internal/llm"
	"github.com/TobiSchelling/ExamBrief/internal/model"
)

type mockSummarizer struct {
	failOn string
	calls  []string
}

func (m *mockSummarizer) Summarize(ctx context.Context, a model.Article, lang i18n.Language) (model.Analysis, error) {
	m.calls = append(m.calls, a.ID)
	if a.ID == m.failOn {
		return model.Analysis{}, errors.New("provider error")
	}
	return model.Analysis{Summary: "AI: " + a.Title, KeyTakeaways: []string{"t1"}}, nil
}

type mockProvider struct {
	configured bool
	response   string
	err        error
	prompts    []string
}

func (m *mockProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.prompts = append(m.prompts, req.Prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }
func (m *mockProvider) Name() string       { return "mock" }

func batch(n int) []model.Article {
	out := make([]model.Article, n)
	for i := range out {
		out[i] = model.Article{
			ID:      fmt.Sprintf("a%d", i+1),
			Title:   fmt.Sprintf("Title %d", i+1),
			Content: "Original content.",
			Summary: "Original summary.",
		}
	}
	return out
}

func TestEnrichBatchContinuesPastFailure(t *testing.T) {
	m := &mockSummarizer{failOn: "a3"}
	e := New(m, false)

	var started, done []int
	var doneErrs []error
	got := e.EnrichBatch(context.Background(), batch(5), i18n.English, Hooks{
		OnItemStart: func(i int, a model.Article) { started = append(started, i) },
		OnItemDone: func(i int, a model.Article, err error) {
			done = append(done, i)
			doneErrs = append(doneErrs, err)
		},
	})

	if len(got) != 5 {
		t.Fatalf("expected 5 articles, got %d", len(got))
	}
	for i, a := range got {
		if a.ID != fmt.Sprintf("a%d", i+1) {
			t.Errorf("position %d: expected order to be preserved, got %s", i, a.ID)
		}
		if i == 2 {
			if a.Analysis != nil || a.Summary != "Original summary." {
				t.Errorf("expected article 3 unchanged, got %+v", a)
			}
			continue
		}
		if a.Analysis == nil || a.Summary != "AI: "+a.Title {
			t.Errorf("expected article %d enriched, got %+v", i+1, a)
		}
	}

	if len(started) != 5 || len(done) != 5 {
		t.Errorf("expected hooks for every article, got start=%v done=%v", started, done)
	}
	if doneErrs[2] == nil {
		t.Error("expected failure to be reported for article 3")
	}
	if strings.Join(m.calls, ",") != "a1,a2,a3,a4,a5" {
		t.Errorf("expected sequential calls in order, got %v", m.calls)
	}
}

func TestEnrichBatchDoesNotMutateInput(t *testing.T) {
	in := batch(2)
	_ = New(&mockSummarizer{}, false).EnrichBatch(context.Background(), in, i18n.English, Hooks{})
	if in[0].Analysis != nil || in[0].Summary != "Original summary." {
		t.Error("expected input slice to be left untouched")
	}
}

func TestEnrichBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &mockSummarizer{}
	e := New(m, false)

	got := e.EnrichBatch(ctx, batch(4), i18n.English, Hooks{
		OnItemDone: func(i int, a model.Article, err error) {
			if i == 1 {
				cancel()
			}
		},
	})
	if len(m.calls) != 2 {
		t.Errorf("expected 2 summarizer calls before cancellation, got %d", len(m.calls))
	}
	if len(got) != 4 || got[3].Analysis != nil {
		t.Errorf("expected remaining articles returned unchanged, got %+v", got)
	}
}

func TestEnrichOneReturnsOriginalOnError(t *testing.T) {
	e := New(&mockSummarizer{failOn: "a1"}, false)
	a := batch(1)[0]
	got := e.EnrichOne(context.Background(), a, i18n.English)
	if got.Analysis != nil || got.Summary != a.Summary {
		t.Errorf("expected original article, got %+v", got)
	}
}

func TestEnrichOneKeepsID(t *testing.T) {
	e := New(&mockSummarizer{}, false)
	a := batch(1)[0]
	got := e.EnrichOne(context.Background(), a, i18n.English)
	if got.ID != a.ID || got.Analysis == nil {
		t.Errorf("expected enriched article with same id, got %+v", got)
	}
	if got.Analysis.Summary != got.Summary {
		t.Error("expected summary to mirror analysis summary")
	}
}

func TestAISummarizerParsesResponse(t *testing.T) {
	p := &mockProvider{configured: true, response: "```json\n{\"summary\":\"Short.\",\"keyTakeaways\":[\"x\",\"y\"]}\n```"}
	s := NewAISummarizer(p, 0)

	a := model.Article{ID: "1", Title: "RBI policy", Content: "Body.", Topics: []model.Topic{model.TopicEconomy}}
	got, err := s.Summarize(context.Background(), a, i18n.Hindi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "Short." || len(got.KeyTakeaways) != 2 {
		t.Errorf("unexpected analysis %+v", got)
	}
	if len(got.RelatedTopics) != 1 || got.RelatedTopics[0] != model.TopicEconomy {
		t.Errorf("expected article topics carried over, got %v", got.RelatedTopics)
	}
	if !strings.HasPrefix(p.prompts[0], "You MUST respond ONLY in Hindi.") {
		t.Errorf("expected language instruction first, got %q", p.prompts[0])
	}
	if !strings.Contains(p.prompts[0], "Content: Body.") {
		t.Errorf("expected content in prompt when no description, got %q", p.prompts[0])
	}
}

func TestAISummarizerDegradesWithoutCredentials(t *testing.T) {
	a := model.Article{
		ID:      "1",
		Title:   "Monsoon update",
		Content: "The monsoon arrived early. Farmers welcomed it! Reservoirs are filling. Prices may ease. A fifth sentence here.",
	}

	for name, p := range map[string]*mockProvider{
		"unconfigured": {configured: false},
		"no keys":      {configured: true, err: keypool.ErrNoCredentials},
		"exhausted":    {configured: true, err: &keypool.ExhaustedError{Provider: "groq", Attempts: 3, Last: keypool.ErrRateLimited}},
	} {
		got, err := NewAISummarizer(p, 0).Summarize(context.Background(), a, i18n.Tamil)
		if err != nil {
			t.Errorf("%s: expected local fallback, got error %v", name, err)
			continue
		}
		want := "The monsoon arrived early. Farmers welcomed it! Reservoirs are filling. Prices may ease."
		if got.Summary != want {
			t.Errorf("%s: expected first four sentences, got %q", name, got.Summary)
		}
		if got.KeyTakeaways[0] != i18n.Tamil.FallbackTakeaways()[0] {
			t.Errorf("%s: expected translated takeaways, got %v", name, got.KeyTakeaways)
		}
	}
}

func TestAISummarizerPropagatesOtherErrors(t *testing.T) {
	p := &mockProvider{configured: true, err: context.DeadlineExceeded}
	_, err := NewAISummarizer(p, 0).Summarize(context.Background(), model.Article{ID: "x"}, i18n.English)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
}

func TestLocalSummaryWithoutSentences(t *testing.T) {
	got := LocalSummary(model.Article{Title: "T", Content: "no terminal punctuation here"}, i18n.English)
	if got.Summary != "no terminal punctuation here" {
		t.Errorf("unexpected summary %q", got.Summary)
	}
	if got := LocalSummary(model.Article{Title: "Only title"}, i18n.English); got.Summary != "Only title" {
		t.Errorf("expected title fallback, got %q", got.Summary)
	}
}
