package collect

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/topics"
)

const (
	defaultMaxPerFeed  = 25
	defaultFeedTimeout = 5 * time.Second
	summaryLength      = 200
)

// placeholderSuffix completes the content of items that ship without a body.
const placeholderSuffix = ". Request a summary for AI analysis or visit the article link for full content."

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	Tag  string
	URL  string
	Name string
}

// FeedSource reads the configured RSS/Atom feeds. Each feed is fetched through an
// ordered list of proxy prefixes until one yields items; a feed that fails through
// every proxy is skipped.
type FeedSource struct {
	feeds      []FeedConfig
	proxies    []string
	timeout    time.Duration
	maxPerFeed int
	client     *http.Client
	now        func() time.Time
}

// NewFeedSource creates a feed source. An empty proxy list fetches feeds directly.
func NewFeedSource(feeds []FeedConfig, proxies []string, timeout time.Duration, maxPerFeed int) *FeedSource {
	if len(proxies) == 0 {
		proxies = []string{""}
	}
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	if maxPerFeed <= 0 {
		maxPerFeed = defaultMaxPerFeed
	}
	return &FeedSource{
		feeds:      feeds,
		proxies:    proxies,
		timeout:    timeout,
		maxPerFeed: maxPerFeed,
		client:     &http.Client{},
		now:        time.Now,
	}
}

func (fs *FeedSource) Name() string { return "RSS feeds" }

// Fetch reads all feeds and returns their items inside the window, newest first.
// It fails only when no feed could be read at all.
func (fs *FeedSource) Fetch(ctx context.Context, requested []model.Topic, w model.Window, lang string) ([]model.Article, error) {
	if len(fs.feeds) == 0 {
		return nil, &SourceError{Source: fs.Name(), Message: "no feeds configured"}
	}

	parser := gofeed.NewParser()
	var all []model.Article
	succeeded := 0

	for _, fc := range fs.feeds {
		if ctx.Err() != nil {
			return nil, &SourceError{Source: fs.Name(), Message: "cancelled", Err: ctx.Err()}
		}
		tag := fc.Tag
		if tag == "" {
			tag = strings.ToLower(extractSourceName(fc.URL))
		}

		feed, proxy, err := fs.fetchFeed(ctx, parser, fc.URL)
		if err != nil {
			log.Printf("All proxies failed for feed %s: %v", tag, err)
			continue
		}
		succeeded++

		articles := fs.convert(feed, fc, tag, requested, lang)
		log.Printf("Parsed %d items from %s via %s", len(articles), tag, proxyLabel(proxy))
		all = append(all, articles...)
	}

	if succeeded == 0 {
		return nil, &SourceError{Source: fs.Name(), Message: fmt.Sprintf("all %d feeds unreachable", len(fs.feeds))}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })

	inWindow := make([]model.Article, 0, len(all))
	for _, a := range all {
		if w.Contains(a.Date) {
			inWindow = append(inWindow, a)
		}
	}
	return inWindow, nil
}

// fetchFeed tries each proxy in order. A proxy succeeds only with a 2xx response
// that parses into at least one item.
func (fs *FeedSource) fetchFeed(ctx context.Context, parser *gofeed.Parser, feedURL string) (*gofeed.Feed, string, error) {
	var lastErr error
	for _, proxy := range fs.proxies {
		feed, err := fs.fetchVia(ctx, parser, proxy, feedURL)
		if err != nil {
			lastErr = err
			continue
		}
		return feed, proxy, nil
	}
	return nil, "", lastErr
}

func (fs *FeedSource) fetchVia(ctx context.Context, parser *gofeed.Parser, proxy, feedURL string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, fs.timeout)
	defer cancel()

	target := feedURL
	if proxy != "" {
		target = proxy + url.QueryEscape(feedURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := fs.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: HTTP %d", proxyLabel(proxy), resp.StatusCode)
	}
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", proxyLabel(proxy), err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("%s: feed has no items", proxyLabel(proxy))
	}
	return feed, nil
}

func (fs *FeedSource) convert(feed *gofeed.Feed, fc FeedConfig, tag string, requested []model.Topic, lang string) []model.Article {
	source := fc.Name
	if source == "" {
		source = strings.ToUpper(tag)
	}
	now := fs.now()

	var out []model.Article
	for i, item := range feed.Items {
		if len(out) >= fs.maxPerFeed {
			break
		}
		if a, ok := parseItem(item, i, tag, source, requested, lang, now); ok {
			out = append(out, a)
		}
	}
	return out
}

// parseItem converts one feed item. Items in a script other than Latin are
// dropped when English was requested.
func parseItem(item *gofeed.Item, index int, tag, source string, requested []model.Topic, lang string, now time.Time) (model.Article, bool) {
	title := stripHTML(item.Title)
	if title == "" {
		title = "Untitled"
	}
	content := stripHTML(firstNonBlank(item.Content, item.Description, item.Title))

	if lang == "en" && !topics.IsLatin(title+" "+content) {
		return model.Article{}, false
	}

	key := firstNonBlank(item.GUID, item.Link)
	if key == "" {
		key = strconv.FormatInt(now.UnixNano(), 10)
	}

	a := model.Article{
		ID:       fmt.Sprintf("rss-%s-%s-%d", tag, key, index),
		Title:    title,
		Source:   source,
		Date:     itemDate(item, now),
		Topics:   topics.Detect(title+" "+content, requested),
		Language: lang,
		URL:      strings.TrimSpace(item.Link),
	}
	if item.Image != nil {
		a.ImageURL = item.Image.URL
	}

	if utf8.RuneCountInString(content) > utf8.RuneCountInString(title) {
		a.Content = content
		a.Summary = truncate(content, summaryLength)
		if utf8.RuneCountInString(content) > summaryLength {
			a.Summary += "..."
		}
	} else {
		a.Content = title + placeholderSuffix
	}
	return a, true
}

// HasPlaceholderContent reports whether a carries only the synthesized feed body.
func HasPlaceholderContent(a model.Article) bool {
	return strings.HasSuffix(a.Content, placeholderSuffix)
}

func itemDate(item *gofeed.Item, now time.Time) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return *item.PublishedParsed
	case item.UpdatedParsed != nil:
		return *item.UpdatedParsed
	default:
		return parseDate(item.Published, now)
	}
}

// stripHTML returns the text content of an HTML fragment with whitespace collapsed.
func stripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.Join(strings.Fields(text), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func proxyLabel(proxy string) string {
	if proxy == "" {
		return "direct"
	}
	return proxy
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return "feed"
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return host
}
