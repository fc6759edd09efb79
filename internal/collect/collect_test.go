package collect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

type fakeSource struct {
	name     string
	articles []model.Article
	err      error
	calls    int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, topics []model.Topic, w model.Window, lang string) ([]model.Article, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

func windowOf(span time.Duration) model.Window {
	to := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.Window{From: to.Add(-span), To: to}
}

func names(sources []Source) []string {
	var out []string
	for _, s := range sources {
		out = append(out, s.Name())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newTestOrchestrator() (*Orchestrator, *fakeSource, *fakeSource, *fakeSource, *fakeSource) {
	feed := &fakeSource{name: "feed"}
	recency := &fakeSource{name: "recency"}
	broad := &fakeSource{name: "broad"}
	history := &fakeSource{name: "history"}
	return &Orchestrator{Feed: feed, Recency: recency, Broad: broad, History: history}, feed, recency, broad, history
}

func TestPlanShortWindow(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	got := names(o.Plan(windowOf(24 * time.Hour)))
	want := []string{"feed", "recency", "broad", "history"}
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlanFeedCutoff(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	day := 24 * time.Hour

	if got := names(o.Plan(windowOf(7*day + 10*time.Hour))); got[0] != "feed" {
		t.Errorf("7.4 days: expected feed first, got %v", got)
	}

	got := names(o.Plan(windowOf(7*day + 14*time.Hour)))
	for _, n := range got {
		if n == "feed" {
			t.Errorf("7.6 days: expected feed to be skipped, got %v", got)
		}
	}
}

func TestPlanLongWindowPrefersHistory(t *testing.T) {
	o, _, _, _, _ := newTestOrchestrator()
	got := names(o.Plan(windowOf(30 * 24 * time.Hour)))
	want := []string{"history", "recency", "broad"}
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlanOmitsUnconfigured(t *testing.T) {
	o := &Orchestrator{Broad: &fakeSource{name: "broad"}, Extra: []Source{&fakeSource{name: "extra"}}}
	got := names(o.Plan(windowOf(time.Hour)))
	if !equal(got, []string{"broad", "extra"}) {
		t.Errorf("expected [broad extra], got %v", got)
	}
}

func TestFetchFirstNonEmptyWins(t *testing.T) {
	o, feed, recency, broad, history := newTestOrchestrator()
	o.Feed = nil
	broad.articles = []model.Article{{ID: "b1"}, {ID: "b2"}}
	history.articles = []model.Article{{ID: "h1"}}

	var stages []Stage
	got, err := o.FetchWithFallback(context.Background(), []model.Topic{model.TopicAll}, windowOf(24*time.Hour), "en", func(p Progress) {
		stages = append(stages, p.Stage)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b1" {
		t.Errorf("expected broad's batch, got %v", got)
	}
	if feed.calls != 0 || recency.calls != 1 || broad.calls != 1 || history.calls != 0 {
		t.Errorf("unexpected calls: feed=%d recency=%d broad=%d history=%d", feed.calls, recency.calls, broad.calls, history.calls)
	}

	wantStages := []Stage{StageTrying, StageEmpty, StageTrying, StageSuccess}
	if len(stages) != len(wantStages) {
		t.Fatalf("expected stages %v, got %v", wantStages, stages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Errorf("stage %d: expected %s, got %s", i, wantStages[i], stages[i])
		}
	}
}

func TestFetchSkipsFailingSource(t *testing.T) {
	o, feed, recency, _, _ := newTestOrchestrator()
	feed.err = &SourceError{Source: "feed", Message: "all feeds unreachable"}
	recency.articles = []model.Article{{ID: "r1"}}

	got, err := o.FetchWithFallback(context.Background(), nil, windowOf(time.Hour), "en", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("expected recency batch, got %v", got)
	}
}

func TestFetchAllSourcesFailed(t *testing.T) {
	o, feed, recency, broad, history := newTestOrchestrator()
	feed.err = errors.New("boom")
	recency.err = &SourceError{Source: "recency", StatusCode: 401, Message: "unauthorized"}
	history.err = &SourceError{Source: "history", Message: "API key not configured"}
	_ = broad // returns empty

	_, err := o.FetchWithFallback(context.Background(), nil, windowOf(time.Hour), "en", nil)
	var all *AllSourcesFailedError
	if !errors.As(err, &all) {
		t.Fatalf("expected AllSourcesFailedError, got %v", err)
	}
	if len(all.Attempts) != 4 {
		t.Errorf("expected 4 attempts, got %d", len(all.Attempts))
	}
	if all.Error() != "all news sources failed; check API keys and retry" {
		t.Errorf("unexpected message %q", all.Error())
	}
	if all.Attempts[2].Err != nil || all.Attempts[2].Count != 0 {
		t.Errorf("expected empty attempt for broad, got %+v", all.Attempts[2])
	}
}

func TestFetchNoCandidates(t *testing.T) {
	o := &Orchestrator{}
	_, err := o.FetchWithFallback(context.Background(), nil, windowOf(time.Hour), "en", nil)
	var all *AllSourcesFailedError
	if !errors.As(err, &all) {
		t.Errorf("expected AllSourcesFailedError, got %v", err)
	}
}

func TestFetchCancelled(t *testing.T) {
	o, feed, _, _, _ := newTestOrchestrator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.FetchWithFallback(ctx, nil, windowOf(time.Hour), "en", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if feed.calls != 0 {
		t.Error("expected no source to be called after cancellation")
	}
}

func TestSourceErrorMessage(t *testing.T) {
	err := &SourceError{Source: "GNews", StatusCode: 403, Message: "forbidden"}
	if err.Error() != "GNews: forbidden (HTTP 403)" {
		t.Errorf("unexpected message %q", err.Error())
	}
	wrapped := &SourceError{Source: "x", Message: "request failed", Err: context.DeadlineExceeded}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("expected SourceError to unwrap")
	}
}

func TestProgressString(t *testing.T) {
	p := Progress{Stage: StageSuccess, Source: "GNews", Count: 12}
	if p.String() != "Loaded 12 articles from GNews" {
		t.Errorf("unexpected progress text %q", p.String())
	}
}
