package server

import (
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/ExamBrief/internal/analyze"
	"github.com/TobiSchelling/ExamBrief/internal/database"
	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/keypool"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/pdfdoc"
	"github.com/TobiSchelling/ExamBrief/internal/pipeline"
	"github.com/TobiSchelling/ExamBrief/internal/window"
)

const (
	maxUploadFiles    = 10
	defaultPageSize   = 50
	maxPageSize       = 200
	maxJSONBody       = 1 << 20
	maxAnalyzeContent = 200_000
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) language(code string) i18n.Language {
	if strings.TrimSpace(code) == "" {
		code = s.cfg.Pipeline.Language
	}
	return i18n.Parse(code)
}

type newsRequest struct {
	Topics   []string `json:"topics"`
	Preset   string   `json:"preset"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Language string   `json:"language"`
	Enrich   bool     `json:"enrich"`
	// Exclude lists ids the client already shows, for load-more.
	Exclude []string `json:"exclude"`
}

type stepResponse struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

type newsResponse struct {
	Window   model.Window    `json:"window"`
	Source   string          `json:"source"`
	Articles []model.Article `json:"articles"`
	Steps    []stepResponse  `json:"steps"`
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	var body newsRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	preset := body.Preset
	if preset == "" {
		preset = s.cfg.Pipeline.Preset
	}
	req := pipeline.Request{
		Topics:   model.ParseTopics(body.Topics),
		Preset:   window.ParsePreset(preset),
		Language: s.language(body.Language),
		Enrich:   body.Enrich,
	}
	if req.Preset == window.Custom {
		bounds, err := window.ParseBounds(body.From, body.To, time.Now(), time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "custom range needs a valid from date and optional to date")
			return
		}
		req.Custom = bounds
	}
	for _, id := range body.Exclude {
		req.Exclude = append(req.Exclude, model.Article{ID: id})
	}

	result := s.news.Run(r.Context(), req, nil)

	resp := newsResponse{
		Window:   result.Window,
		Source:   result.Source,
		Articles: result.Articles,
	}
	if resp.Articles == nil {
		resp.Articles = []model.Article{}
	}
	for _, step := range result.Steps {
		sr := stepResponse{Name: step.Name, Summary: step.Summary}
		if step.Err != nil {
			log.Printf("News step %s failed: %v", step.Name, step.Err)
			if step.Name == "Collect" {
				writeError(w, http.StatusBadGateway, "No news source returned articles. Try again later.")
				return
			}
			sr.Error = "step failed"
		}
		resp.Steps = append(resp.Steps, sr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing article id")
		return
	}
	article, err := s.db.GetArticle(id)
	if err != nil {
		log.Printf("Error loading article %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "could not load article")
		return
	}
	if article == nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	lang := s.language(r.URL.Query().Get("language"))
	updated := s.enricher.EnrichOne(r.Context(), *article, lang)
	if updated.Analysis == article.Analysis {
		writeError(w, http.StatusBadGateway, "summary unavailable, try again later")
		return
	}
	if err := s.db.SaveAnalysis(id, *updated.Analysis, string(lang)); err != nil {
		log.Printf("Error storing analysis for %s: %v", id, err)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing article id")
		return
	}
	on, err := s.db.ToggleBookmark(id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		log.Printf("Error toggling bookmark %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "could not update bookmark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "bookmarked": on})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.ArticleFilter{
		Language:   q.Get("language"),
		Bookmarked: q.Get("bookmarked") == "true",
		Enriched:   q.Get("enriched") == "true",
		Query:      strings.TrimSpace(q.Get("q")),
		Limit:      defaultPageSize,
	}
	if topics := q["topic"]; len(topics) > 0 {
		filter.Topics = model.ParseTopics(topics)
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = min(n, maxPageSize)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		filter.Offset = n
	}
	if from := q.Get("from"); from != "" {
		if t, err := dateparse.ParseAny(from); err == nil {
			filter.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := dateparse.ParseAny(to); err == nil {
			filter.To = t
		}
	}

	articles, err := s.db.ListArticles(filter)
	if err != nil {
		log.Printf("Error listing articles: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list articles")
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

type pdfResponse struct {
	Name      string            `json:"name"`
	Success   bool              `json:"success"`
	PageCount int               `json:"pageCount,omitempty"`
	Metadata  *pdfdoc.Metadata  `json:"metadata,omitempty"`
	Structure *pdfdoc.Structure `json:"structure,omitempty"`
	Analysis  *model.Analysis   `json:"analysis,omitempty"`
	Engine    string            `json:"engine,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.extractor.MaxSize*maxUploadFiles+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	if len(headers) > maxUploadFiles {
		writeError(w, http.StatusBadRequest, "too many files")
		return
	}

	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	files := make([]pdfdoc.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		opened = append(opened, f)
		files = append(files, pdfdoc.File{
			Name:   h.Filename,
			MIME:   h.Header.Get("Content-Type"),
			Size:   h.Size,
			Reader: f,
		})
	}

	depth := analyze.ParseDepth(r.FormValue("depth"))
	lang := s.language(r.FormValue("language"))

	results := s.extractor.ProcessBatch(r.Context(), files)
	out := make([]pdfResponse, len(results))
	for i, res := range results {
		out[i] = pdfResponse{Name: res.Name}
		if res.Err != nil {
			out[i].Error = pdfErrorMessage(res.Err)
			continue
		}
		structure := res.Structure
		out[i].Success = true
		out[i].PageCount = res.Document.PageCount
		out[i].Metadata = &res.Document.Metadata
		out[i].Structure = &structure

		analysis, err := s.analyzer.Analyze(r.Context(), analyze.Request{
			Content:  res.Document.Text,
			Depth:    depth,
			Kind:     analyze.KindPDF,
			Language: lang,
		})
		if err != nil {
			log.Printf("Analysis of %s cancelled: %v", res.Name, err)
			continue
		}
		out[i].Analysis = &analysis.Analysis
		out[i].Engine = analysis.Engine

		if _, err := s.db.SaveDocument(database.Document{
			Name:      res.Name,
			PageCount: res.Document.PageCount,
			WordCount: structure.WordCount,
			Text:      res.Document.Text,
			Analysis:  &analysis.Analysis,
		}); err != nil {
			log.Printf("Error storing document %s: %v", res.Name, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

var pdfErrors = []error{
	pdfdoc.ErrEmptyFile,
	pdfdoc.ErrNotPDF,
	pdfdoc.ErrTooLarge,
	pdfdoc.ErrEncrypted,
	pdfdoc.ErrInvalidPDF,
}

func pdfErrorMessage(err error) string {
	for _, known := range pdfErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "failed to process file"
}

type analyzeRequest struct {
	Content  string `json:"content"`
	Depth    string `json:"depth"`
	Kind     string `json:"kind"`
	Language string `json:"language"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(body.Content) > maxAnalyzeContent {
		writeError(w, http.StatusRequestEntityTooLarge, "content too long")
		return
	}

	kind := analyze.KindNews
	if body.Kind == string(analyze.KindPDF) {
		kind = analyze.KindPDF
	}
	result, err := s.analyzer.Analyze(r.Context(), analyze.Request{
		Content:  body.Content,
		Depth:    analyze.ParseDepth(body.Depth),
		Kind:     kind,
		Language: s.language(body.Language),
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "analysis cancelled")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]keypool.Status{"providers": s.providers.Status()})
}
