package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ExamBrief/internal/analyze"
	"github.com/TobiSchelling/ExamBrief/internal/config"
	"github.com/TobiSchelling/ExamBrief/internal/database"
	"github.com/TobiSchelling/ExamBrief/internal/enrich"
	"github.com/TobiSchelling/ExamBrief/internal/i18n"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/pdfdoc"
	"github.com/TobiSchelling/ExamBrief/internal/pipeline"
	"github.com/TobiSchelling/ExamBrief/internal/server"
	"github.com/TobiSchelling/ExamBrief/internal/window"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "exambrief",
	Short:   "Exam-prep news digests",
	Long:    "ExamBrief collects Indian current affairs from feeds and news APIs and turns them into study summaries.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "DEBUG"
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(bookmarksCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("exambrief", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/exambrief/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Export GNEWS_API_KEY, NEWSDATA_API_KEY, WORLDNEWS_API_KEY and GROQ_API_KEY to enable those services.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Articles:")
		fmt.Printf("  Total stored: %d\n", stats.TotalArticles)
		fmt.Printf("  Summarized: %d\n", stats.EnrichedArticles)
		fmt.Printf("  Bookmarked: %d\n", stats.Bookmarked)
		fmt.Printf("  Sources: %d\n", stats.Sources)
		fmt.Printf("  Languages: %d\n", stats.Languages)
		fmt.Println("\nActivity:")
		fmt.Printf("  Fetch runs: %d\n", stats.Runs)
		fmt.Printf("  Documents analyzed: %d\n", stats.Documents)

		last, err := db.GetLastRun()
		if err != nil {
			return fmt.Errorf("getting last run: %w", err)
		}
		if last != nil {
			fmt.Printf("  Last fetch: %s via %s, %d articles (%d new)\n",
				last.To.Local().Format(time.DateTime), last.Source, last.ArticleCount, last.NewCount)
		}

		fmt.Println("\nAI providers:")
		for _, s := range pipeline.NewProviders(cfg.Summarization).Status() {
			if s.Keys == 0 {
				fmt.Printf("  %s: no keys configured\n", s.Provider)
				continue
			}
			fmt.Printf("  %s: %d key(s), current #%d\n", s.Provider, s.Keys, s.Current)
		}
		return nil
	},
}

// --- fetch command ---

var (
	fetchPreset   string
	fetchFrom     string
	fetchTo       string
	fetchTopics   []string
	fetchLanguage string
	fetchEnrich   bool
	fetchNoText   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch news for a window: resolve -> collect -> fetch text -> store -> summarize",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := fetchRequest(cmd)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if fetchNoText {
			cfg.Pipeline.FetchFullText = false
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(cfg, db, pipeline.NewProviders(cfg.Summarization))
		result := pipe.Run(ctx, req, func(p pipeline.Progress) {
			if p.Total > 0 {
				fmt.Printf("  [%d/%d] %s\n", p.Done, p.Total, p.Message)
				return
			}
			fmt.Printf("  %s\n", p.Message)
		})

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		fmt.Println()
		printArticles(result.Articles)
		fmt.Println("\nRun 'exambrief serve' to read them in the browser.")
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchPreset, "preset", "p", "", "Window preset: 24h, week, month or custom (default from config)")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "Start of a custom window")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "End of a custom window (default now)")
	fetchCmd.Flags().StringSliceVarP(&fetchTopics, "topics", "t", nil, "Topics, e.g. economy,polity (default from config)")
	fetchCmd.Flags().StringVarP(&fetchLanguage, "language", "l", "", "Summary language code (default from config)")
	fetchCmd.Flags().BoolVar(&fetchEnrich, "enrich", false, "Summarize articles after fetching")
	fetchCmd.Flags().BoolVar(&fetchNoText, "no-fulltext", false, "Skip fetching full text for feed articles")
}

func fetchRequest(cmd *cobra.Command) (pipeline.Request, error) {
	preset := fetchPreset
	if preset == "" {
		preset = cfg.Pipeline.Preset
	}
	topics := fetchTopics
	if len(topics) == 0 {
		topics = cfg.Pipeline.Topics
	}
	lang := fetchLanguage
	if lang == "" {
		lang = cfg.Pipeline.Language
	}

	req := pipeline.Request{
		Topics:   model.ParseTopics(topics),
		Preset:   window.ParsePreset(preset),
		Language: i18n.Parse(lang),
		Enrich:   fetchEnrich || (cfg.Pipeline.Enrich && !cmd.Flags().Changed("enrich")),
	}

	bounds, err := window.ParseBounds(fetchFrom, fetchTo, time.Now(), time.Local)
	if errors.Is(err, window.ErrMissingFrom) {
		return req, fmt.Errorf("--to needs --from")
	}
	if err != nil {
		return req, err
	}
	if bounds != nil {
		req.Preset = window.Custom
		req.Custom = bounds
	}
	return req, nil
}

// --- list command ---

var (
	listTopics []string
	listQuery  string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		filter := database.ArticleFilter{Query: listQuery, Limit: listLimit}
		if len(listTopics) > 0 {
			filter.Topics = model.ParseTopics(listTopics)
		}
		articles, err := db.ListArticles(filter)
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("No articles stored. Fetch some with: exambrief fetch")
			return nil
		}
		printArticles(articles)
		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceVarP(&listTopics, "topics", "t", nil, "Only these topics")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search titles and content")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of articles")
}

// --- enrich command ---

var (
	enrichLanguage string
	enrichRecent   int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [article-id...]",
	Short: "Summarize stored articles",
	Long:  "Summarize the given articles, or with no ids the most recent ones that have no summary yet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var targets []model.Article
		if len(args) > 0 {
			for _, id := range args {
				a, err := db.GetArticle(id)
				if err != nil {
					return err
				}
				if a == nil {
					return fmt.Errorf("article %s not found", id)
				}
				targets = append(targets, *a)
			}
		} else {
			recent, err := db.ListArticles(database.ArticleFilter{Limit: enrichRecent})
			if err != nil {
				return err
			}
			for _, a := range recent {
				if a.Analysis == nil {
					targets = append(targets, a)
				}
			}
		}
		if len(targets) == 0 {
			fmt.Println("Nothing to summarize.")
			return nil
		}

		lang := enrichLanguage
		if lang == "" {
			lang = cfg.Pipeline.Language
		}
		language := i18n.Parse(lang)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		providers := pipeline.NewProviders(cfg.Summarization)
		enricher := enrich.New(providers.Summarizer(), cfg.Logging.Debug())
		done := 0
		enricher.EnrichBatch(ctx, targets, language, enrich.Hooks{
			OnItemDone: func(i int, a model.Article, err error) {
				if err != nil {
					fmt.Printf("  [%d/%d] failed: %s\n", i+1, len(targets), a.Title)
					return
				}
				if err := db.SaveAnalysis(a.ID, *a.Analysis, string(language)); err != nil {
					fmt.Printf("  [%d/%d] not stored: %v\n", i+1, len(targets), err)
					return
				}
				done++
				fmt.Printf("  [%d/%d] %s\n", i+1, len(targets), a.Title)
			},
		})
		fmt.Printf("\nSummarized %d/%d articles in %s.\n", done, len(targets), language.Name())
		return ctx.Err()
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichLanguage, "language", "l", "", "Summary language code (default from config)")
	enrichCmd.Flags().IntVarP(&enrichRecent, "recent", "n", 20, "How many recent articles to consider when no ids are given")
}

// --- analyze command ---

var (
	analyzeDepth    string
	analyzeLanguage string
	analyzeText     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file.pdf...]",
	Short: "Deep-analyze PDF documents or a piece of text",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && analyzeText == "" {
			return fmt.Errorf("give at least one PDF file or --text")
		}

		lang := analyzeLanguage
		if lang == "" {
			lang = cfg.Pipeline.Language
		}
		depth := analyze.ParseDepth(analyzeDepth)
		analyzer := pipeline.NewProviders(cfg.Summarization).Analyzer()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if analyzeText != "" {
			res, err := analyzer.Analyze(ctx, analyze.Request{
				Content:  analyzeText,
				Depth:    depth,
				Kind:     analyze.KindNews,
				Language: i18n.Parse(lang),
			})
			if err != nil {
				return err
			}
			printAnalysis("text", res)
			return nil
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		files := make([]pdfdoc.File, 0, len(args))
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			files = append(files, pdfdoc.File{Name: filepath.Base(path), Size: info.Size(), Reader: f})
		}

		extractor := pdfdoc.NewExtractor(cfg.PDF.MaxSizeMB)
		for _, res := range extractor.ProcessBatch(ctx, files) {
			if res.Err != nil {
				fmt.Printf("%s: %v\n\n", res.Name, res.Err)
				continue
			}
			fmt.Printf("%s: %d pages, %d words, about %d min read\n",
				res.Name, res.Document.PageCount, res.Structure.WordCount, res.Structure.ReadingMinutes)
			for _, s := range res.Structure.Sections {
				fmt.Printf("  § %s\n", s)
			}

			analysis, err := analyzer.Analyze(ctx, analyze.Request{
				Content:  res.Document.Text,
				Depth:    depth,
				Kind:     analyze.KindPDF,
				Language: i18n.Parse(lang),
			})
			if err != nil {
				return err
			}
			printAnalysis(res.Name, analysis)

			if _, err := db.SaveDocument(database.Document{
				Name:      res.Name,
				PageCount: res.Document.PageCount,
				WordCount: res.Structure.WordCount,
				Text:      res.Document.Text,
				Analysis:  &analysis.Analysis,
			}); err != nil {
				log.Printf("Error storing document %s: %v", res.Name, err)
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeDepth, "depth", "d", "basic", "Analysis depth: basic or advanced")
	analyzeCmd.Flags().StringVarP(&analyzeLanguage, "language", "l", "", "Output language code (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "Analyze this text instead of PDF files")
}

// --- bookmarks command ---

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "List bookmarked articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := db.ListArticles(database.ArticleFilter{Bookmarked: true})
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("No bookmarks. Add one with: exambrief bookmarks toggle <id>")
			return nil
		}
		printArticles(articles)
		return nil
	},
}

var bookmarksToggleCmd = &cobra.Command{
	Use:   "toggle [article-id]",
	Short: "Bookmark or un-bookmark an article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		on, err := db.ToggleBookmark(args[0])
		if err != nil {
			return err
		}
		state := "removed"
		if on {
			state = "added"
		}
		fmt.Printf("Bookmark %s: %s\n", state, args[0])
		return nil
	},
}

func init() {
	bookmarksCmd.AddCommand(bookmarksToggleCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		providers := pipeline.NewProviders(cfg.Summarization)
		srv, err := server.New(cfg, db, pipeline.New(cfg, db, providers), providers)
		if err != nil {
			return err
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func printArticles(articles []model.Article) {
	for _, a := range articles {
		mark := " "
		if a.Bookmarked {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, a.Title)
		fmt.Printf("    %s | %s | %s\n", a.Source, a.Date.Local().Format("02 Jan 15:04"), joinTopics(a.Topics))
		if a.Summary != "" {
			fmt.Printf("    %s\n", truncate(a.Summary, 160))
		}
		fmt.Printf("    id: %s\n", a.ID)
	}
}

func printAnalysis(name string, res analyze.Result) {
	fmt.Printf("\n== %s (%s) ==\n%s\n", name, res.Engine, res.Analysis.Summary)
	printList("Key takeaways", res.Analysis.KeyTakeaways)
	if res.Analysis.ExamRelevance != "" {
		fmt.Printf("\nExam relevance: %s\n", res.Analysis.ExamRelevance)
	}
	printList("Important facts", res.Analysis.ImportantFacts)
	printList("Practice questions", res.Analysis.PotentialQuestions)
	printList("Policy implications", res.Analysis.PolicyImplications)
	fmt.Println()
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func joinTopics(topics []model.Topic) string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func openDB() (*database.DB, error) {
	return database.OpenInDir(cfg.GetDataDir())
}
