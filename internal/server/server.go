package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/ExamBrief/internal/analyze"
	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/database"
	"github.com/TobiSchelling/ExamBrief/internal/enrich"
	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/pdfdoc"
	"github.com/TobiSchelling/ExamBrief/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// NewsRunner runs one news fetch. *pipeline.Pipeline implements it.
type NewsRunner interface {
	Run(ctx context.Context, req pipeline.Request, onProgress func(pipeline.Progress)) *pipeline.Result
}

// Server is the HTTP server for the reading page and the JSON API.
type Server struct {
	cfg       *config.Config
	db        *database.DB
	news      NewsRunner
	enricher  *enrich.Enricher
	analyzer  *analyze.Analyzer
	providers *pipeline.Providers
	extractor *pdfdoc.Extractor
	pages     map[string]*template.Template
	mux       *http.ServeMux
}

// New creates a new Server. providers must be the same instance the pipeline
// uses so that rate-limit status reflects every outbound request.
func New(cfg *config.Config, db *database.DB, news NewsRunner, providers *pipeline.Providers) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"date": func(t time.Time) string {
			return t.Format("02 Jan 2006, 15:04")
		},
		"langName": func(code string) string {
			return i18n.Parse(code).Name()
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so its {{define "content"}} stays private.
	pageNames := []string{"index.html", "documents.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		cfg:       cfg,
		db:        db,
		news:      news,
		enricher:  enrich.New(providers.Summarizer(), cfg.Logging.Debug()),
		analyzer:  providers.Analyzer(),
		providers: providers,
		extractor: pdfdoc.NewExtractor(cfg.PDF.MaxSizeMB),
		pages:     pages,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /documents", s.handleDocuments)

	// Article ids embed source URLs, so they travel as query parameters.
	s.mux.HandleFunc("POST /api/news", s.handleNews)
	s.mux.HandleFunc("POST /api/summary", s.handleSummary)
	s.mux.HandleFunc("POST /api/bookmark", s.handleBookmark)
	s.mux.HandleFunc("GET /api/articles", s.handleArticles)
	s.mux.HandleFunc("POST /api/pdf", s.handlePDF)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /api/ratelimit", s.handleRateLimit)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	filter := database.ArticleFilter{Limit: 50}
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic != "" {
		filter.Topics = model.ParseTopics([]string{topic})
	}
	filter.Bookmarked = r.URL.Query().Get("bookmarked") == "true"

	articles, err := s.db.ListArticles(filter)
	if err != nil {
		log.Printf("Error listing articles: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats, _ := s.db.GetStats()
	lastRun, _ := s.db.GetLastRun()

	s.render(w, "index.html", map[string]any{
		"Articles":   articles,
		"Stats":      stats,
		"LastRun":    lastRun,
		"Topics":     model.AllTopics,
		"Topic":      topic,
		"Bookmarked": filter.Bookmarked,
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.db.ListDocuments(50)
	if err != nil {
		log.Printf("Error listing documents: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, "documents.html", map[string]any{
		"Documents": docs,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func (s *Server) Serve(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, s.Handler())
}
