package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/database"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/pipeline"
	"github.com/TobiSchelling/ExamBrief/internal/window"
)

const feedID = "rss-hindu-https://www.thehindu.com/news/budget-0"

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeRunner struct {
	result *pipeline.Result
	got    pipeline.Request
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request, _ func(pipeline.Progress)) *pipeline.Result {
	f.got = req
	return f.result
}

func newTestServer(t *testing.T, db *database.DB, runner NewsRunner) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Summarization.Groq.APIKeyEnvs = nil
	cfg.Summarization.OpenAI.APIKeyEnvs = nil
	if runner == nil {
		runner = &fakeRunner{result: &pipeline.Result{}}
	}
	srv, err := New(cfg, db, runner, pipeline.NewProviders(cfg.Summarization))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func do(srv *Server, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func budgetArticle() model.Article {
	return model.Article{
		ID:       feedID,
		Title:    "Budget raises capital spending",
		Content:  "The Union Budget raised capital expenditure to 11 lakh crore. The finance ministry said growth would improve. Analysts welcomed the reform.",
		Source:   "The Hindu",
		Date:     time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Topics:   []model.Topic{model.TopicEconomy},
		Language: "en",
		URL:      "https://www.thehindu.com/news/budget",
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	a := budgetArticle()
	a.Analysis = &model.Analysis{Summary: "Capex is **up** sharply.", KeyTakeaways: []string{"Capex at 11 lakh crore"}}
	db.SaveArticles([]model.Article{a})
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Budget raises capital spending") {
		t.Error("expected article title in response")
	}
	if !strings.Contains(body, "<strong>up</strong>") {
		t.Error("expected summary rendered as markdown")
	}
	if !strings.Contains(body, "Capex at 11 lakh crore") {
		t.Error("expected key takeaway in response")
	}
}

func TestIndexEmpty(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	rec := do(srv, "GET", "/", nil, "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No articles yet") {
		t.Error("expected empty state")
	}
	if rec := do(srv, "GET", "/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestDocumentsRoute(t *testing.T) {
	db := openTestDB(t)
	db.SaveDocument(database.Document{Name: "polity-notes.pdf", PageCount: 4, WordCount: 1200, Analysis: &model.Analysis{
		Summary:            "Notes on federalism.",
		PotentialQuestions: []string{"Explain cooperative federalism."},
	}})
	srv := newTestServer(t, db, nil)

	rec := do(srv, "GET", "/documents", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "polity-notes.pdf") || !strings.Contains(body, "Explain cooperative federalism.") {
		t.Error("expected document and its questions in response")
	}
}

func TestNewsRoute(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.Result{
		Source:   "RSS feeds",
		Articles: []model.Article{budgetArticle()},
		Steps: []pipeline.StepResult{
			{Name: "Resolve", Summary: "ok"},
			{Name: "Collect", Summary: "Found 1"},
			{Name: "Store", Err: errors.New("disk full")},
		},
	}}
	srv := newTestServer(t, openTestDB(t), runner)

	body := bytes.NewBufferString(`{"topics":["economy","bogus"],"preset":"month","language":"hi","enrich":true,"exclude":["x"]}`)
	rec := do(srv, "POST", "/api/news", body, "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp newsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Source != "RSS feeds" || len(resp.Articles) != 1 || resp.Articles[0].ID != feedID {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Steps) != 3 || resp.Steps[2].Error == "" || strings.Contains(resp.Steps[2].Error, "disk") {
		t.Errorf("expected short step error, got %+v", resp.Steps)
	}

	got := runner.got
	if got.Preset != window.LastMonth || got.Language != "hi" || !got.Enrich {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Topics) != 1 || got.Topics[0] != model.TopicEconomy {
		t.Errorf("expected unknown topic dropped, got %v", got.Topics)
	}
	if len(got.Exclude) != 1 || got.Exclude[0].ID != "x" {
		t.Errorf("expected exclude ids passed through, got %+v", got.Exclude)
	}
}

func TestNewsRouteCustomRange(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.Result{}}
	srv := newTestServer(t, openTestDB(t), runner)

	rec := do(srv, "POST", "/api/news", bytes.NewBufferString(`{"preset":"custom","from":"2026-01-01","to":"2026-01-20"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if runner.got.Custom == nil || runner.got.Custom.From.Day() != 1 || runner.got.Custom.To.Day() != 20 {
		t.Errorf("expected custom bounds, got %+v", runner.got.Custom)
	}
	if !strings.Contains(rec.Body.String(), `"articles":[]`) {
		t.Errorf("expected empty articles array, got %s", rec.Body.String())
	}

	rec = do(srv, "POST", "/api/news", bytes.NewBufferString(`{"preset":"custom","from":"soon"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad range, got %d", rec.Code)
	}
	rec = do(srv, "POST", "/api/news", bytes.NewBufferString(`{`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rec.Code)
	}
}

func TestNewsRouteCustomWithoutBounds(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.Result{}}
	srv := newTestServer(t, openTestDB(t), runner)

	rec := do(srv, "POST", "/api/news", bytes.NewBufferString(`{"preset":"custom"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if runner.got.Preset != window.Custom || runner.got.Custom != nil {
		t.Errorf("expected custom preset without bounds, got %+v", runner.got)
	}

	runner.got = pipeline.Request{}
	rec = do(srv, "POST", "/api/news", bytes.NewBufferString(`{"preset":"custom","to":"2026-01-20"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for end date without start, got %d", rec.Code)
	}
	if runner.got.Preset != "" {
		t.Error("expected runner not to be invoked")
	}
}

func TestNewsRouteAllSourcesFailed(t *testing.T) {
	runner := &fakeRunner{result: &pipeline.Result{Steps: []pipeline.StepResult{
		{Name: "Resolve"},
		{Name: "Collect", Err: errors.New("GNews: 401 invalid api key")},
	}}}
	srv := newTestServer(t, openTestDB(t), runner)

	rec := do(srv, "POST", "/api/news", bytes.NewBufferString(`{}`), "application/json")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "api key") {
		t.Error("expected provider details to stay out of the response")
	}
}

func TestSummaryRoute(t *testing.T) {
	db := openTestDB(t)
	db.SaveArticles([]model.Article{budgetArticle()})
	srv := newTestServer(t, db, nil)

	rec := do(srv, "POST", "/api/summary?id="+url.QueryEscape(feedID)+"&language=ta", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got model.Article
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Analysis == nil || !strings.HasPrefix(got.Summary, "The Union Budget raised") {
		t.Errorf("expected local summary, got %+v", got)
	}

	stored, _ := db.GetArticle(feedID)
	if stored.Analysis == nil {
		t.Error("expected analysis to be stored")
	}

	if rec := do(srv, "POST", "/api/summary?id=missing", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := do(srv, "POST", "/api/summary", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestBookmarkRoute(t *testing.T) {
	db := openTestDB(t)
	db.SaveArticles([]model.Article{budgetArticle()})
	srv := newTestServer(t, db, nil)
	target := "/api/bookmark?id=" + url.QueryEscape(feedID)

	rec := do(srv, "POST", target, nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"bookmarked":true`) {
		t.Fatalf("expected bookmark on, got %d %s", rec.Code, rec.Body.String())
	}
	rec = do(srv, "POST", target, nil, "")
	if !strings.Contains(rec.Body.String(), `"bookmarked":false`) {
		t.Errorf("expected bookmark off, got %s", rec.Body.String())
	}
	if rec := do(srv, "POST", "/api/bookmark?id=missing", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestArticlesRoute(t *testing.T) {
	db := openTestDB(t)
	polity := budgetArticle()
	polity.ID = "gnews-1"
	polity.Title = "Parliament session"
	polity.Topics = []model.Topic{model.TopicPolity}
	db.SaveArticles([]model.Article{budgetArticle(), polity})
	db.SetBookmark("gnews-1", true)
	srv := newTestServer(t, db, nil)

	decode := func(rec *httptest.ResponseRecorder) []model.Article {
		var resp struct {
			Articles []model.Article `json:"articles"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		return resp.Articles
	}

	if got := decode(do(srv, "GET", "/api/articles", nil, "")); len(got) != 2 {
		t.Errorf("expected 2 articles, got %d", len(got))
	}
	if got := decode(do(srv, "GET", "/api/articles?topic=economy", nil, "")); len(got) != 1 || got[0].ID != feedID {
		t.Errorf("expected economy article, got %+v", got)
	}
	if got := decode(do(srv, "GET", "/api/articles?bookmarked=true", nil, "")); len(got) != 1 || got[0].ID != "gnews-1" {
		t.Errorf("expected bookmarked article, got %+v", got)
	}
	if got := decode(do(srv, "GET", "/api/articles?limit=1", nil, "")); len(got) != 1 {
		t.Errorf("expected limit to apply, got %d", len(got))
	}
}

func TestPDFRoute(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("files", "notes.txt")
	fw.Write([]byte("plain text, not a pdf"))
	mw.CreateFormFile("files", "empty.pdf")
	mw.WriteField("depth", "advanced")
	mw.Close()

	rec := do(srv, "POST", "/api/pdf", &buf, mw.FormDataContentType())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []pdfResponse `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Success || resp.Results[0].Error != "not a PDF file" {
		t.Errorf("unexpected first result %+v", resp.Results[0])
	}
	if resp.Results[1].Success || resp.Results[1].Error != "file is empty" {
		t.Errorf("unexpected second result %+v", resp.Results[1])
	}
	if docs, _ := db.ListDocuments(10); len(docs) != 0 {
		t.Errorf("expected failed files not to be stored, got %d", len(docs))
	}

	var none bytes.Buffer
	empty := multipart.NewWriter(&none)
	empty.WriteField("depth", "basic")
	empty.Close()
	if rec := do(srv, "POST", "/api/pdf", &none, empty.FormDataContentType()); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without files, got %d", rec.Code)
	}
}

func TestAnalyzeRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	body := bytes.NewBufferString(`{"content":"The government announced a new scheme for farmers on 1 February 2026. The ministry said 80 crore people would benefit. Critics called the move a crisis response.","depth":"advanced"}`)
	rec := do(srv, "POST", "/api/analyze", body, "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Analysis model.Analysis `json:"analysis"`
		Engine   string         `json:"engine"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Engine != "rule-based" {
		t.Errorf("expected rule-based engine without keys, got %q", resp.Engine)
	}
	if resp.Analysis.Summary == "" || len(resp.Analysis.PolicyImplications) == 0 {
		t.Errorf("expected advanced analysis, got %+v", resp.Analysis)
	}

	if rec := do(srv, "POST", "/api/analyze", bytes.NewBufferString(`{"content":"  "}`), "application/json"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty content, got %d", rec.Code)
	}
}

func TestRateLimitRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	rec := do(srv, "GET", "/api/ratelimit", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"provider":"groq"`) || !strings.Contains(body, `"provider":"openai"`) {
		t.Errorf("expected both providers, got %s", body)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t), nil)

	rec := do(srv, "GET", "/static/style.css", nil, "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}
