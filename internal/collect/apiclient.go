package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/TobiSchelling/ExamBrief/internal/keypool"
	"github.com/TobiSchelling/ExamBrief/internal/model"
	"github.com/TobiSchelling/ExamBrief/internal/topics"
)

// queryLanguage is sent to every provider. Queries are built from English keywords
// only, so asking providers for other languages returns mostly noise.
const queryLanguage = "en"

// getJSON issues a GET request and decodes a JSON body into out.
// Transport failures and non-2xx statuses are reported as *SourceError.
func getJSON(ctx context.Context, client *http.Client, source, endpoint string, params url.Values, header http.Header, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &SourceError{Source: source, Message: "building request", Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &SourceError{Source: source, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SourceError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(body, resp.Status),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &SourceError{Source: source, StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}
	return nil
}

// providerMessage extracts a short error message from a provider error body.
func providerMessage(body []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
		Errors  any    `json:"errors"`
		Results struct {
			Message string `json:"message"`
		} `json:"results"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Message != "":
			return truncate(e.Message, 200)
		case e.Results.Message != "":
			return truncate(e.Results.Message, 200)
		case e.Errors != nil:
			return truncate(fmt.Sprint(e.Errors), 200)
		}
	}
	return fallback
}

// requireKey returns a SourceError when key is missing or a template placeholder.
func requireKey(source, key string) error {
	if keypool.IsPlaceholder(key) {
		return &SourceError{Source: source, Message: "API key not configured"}
	}
	return nil
}

// parseDate reads a provider timestamp in any common layout, defaulting to now.
func parseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return now
	}
	return t
}

// articleID keeps a provider id when there is one and otherwise makes one up.
func articleID(prefix, providerID string) string {
	if providerID = strings.TrimSpace(providerID); providerID != "" {
		return prefix + "-" + providerID
	}
	return prefix + "-" + uuid.NewString()
}

// apiArticle is the provider-neutral intermediate every API adapter fills in.
type apiArticle struct {
	id, title, content, description string
	source, url, image, published   string
}

func (a apiArticle) toModel(requested []model.Topic, lang string, now time.Time) model.Article {
	title := strings.TrimSpace(a.title)
	if title == "" {
		title = "Untitled"
	}
	content := firstNonBlank(a.content, a.description)
	return model.Article{
		ID:       a.id,
		Title:    title,
		Content:  content,
		Summary:  strings.TrimSpace(a.description),
		Source:   firstNonBlank(a.source, "Unknown"),
		Date:     parseDate(a.published, now),
		Topics:   topics.Detect(title+" "+content, requested),
		Language: lang,
		URL:      a.url,
		ImageURL: a.image,
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// flexID accepts ids that providers send either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	*f = flexID(strings.Trim(s, `"`))
	return nil
}

// hostName returns the host of rawURL without a leading www.
func hostName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
