package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

const articlePage = `<html><head><title>Monsoon session</title></head><body>
<nav>Home | World | Sports</nav>
<article><h1>Monsoon session of Parliament</h1>
<p>The monsoon session of Parliament opened on Monday with the government listing thirty bills for consideration, including amendments to the forest conservation act.</p>
<p>Opposition parties demanded a discussion on price rise and unemployment before any legislative business could be taken up in either house.</p>
<p>The Speaker adjourned the Lok Sabha twice before noon as members protested in the well of the house.</p>
</article><footer>Copyright</footer></body></html>`

func placeholder(id, title, link string) model.Article {
	return model.Article{
		ID:      id,
		Title:   title,
		URL:     link,
		Content: title + ". Request a summary for AI analysis or visit the article link for full content.",
	}
}

func TestFillPlaceholders(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()

	in := []model.Article{
		placeholder("a", "Monsoon session", srv.URL+"/a"),
		{ID: "b", Title: "Has body", Content: "Already complete content.", URL: srv.URL + "/b"},
		placeholder("c", "No link", ""),
	}

	out, result := NewContentFetcher(time.Second).FillPlaceholders(context.Background(), in)
	if result.Fetched != 1 || result.Skipped != 2 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
	if !strings.Contains(out[0].Content, "thirty bills") {
		t.Errorf("expected extracted text, got %q", out[0].Content)
	}
	if out[1].Content != "Already complete content." {
		t.Error("expected article with content to be untouched")
	}
	if !strings.HasSuffix(in[0].Content, "full content.") {
		t.Error("expected input slice to be left untouched")
	}
}

func TestFillPlaceholdersSkipsFailedDomain(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	in := []model.Article{
		placeholder("a", "First", srv.URL+"/a"),
		placeholder("b", "Second", srv.URL+"/b"),
	}
	out, result := NewContentFetcher(time.Second).FillPlaceholders(context.Background(), in)
	if result.Failed != 2 {
		t.Errorf("expected 2 failures, got %+v", result)
	}
	if hits != 1 {
		t.Errorf("expected domain to be skipped after first error, got %d requests", hits)
	}
	if out[0].Content != in[0].Content {
		t.Error("expected failed article to keep its placeholder")
	}
}

func TestFillPlaceholdersRejectsShortText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Too short.</p></body></html>")
	}))
	defer srv.Close()

	_, result := NewContentFetcher(time.Second).FillPlaceholders(context.Background(),
		[]model.Article{placeholder("a", "Short", srv.URL)})
	if result.Fetched != 0 || result.Failed != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}
