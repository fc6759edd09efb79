package llm

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

const maxTakeaways = 3

// FallbackSummary is used when nothing usable could be extracted from a response.
const FallbackSummary = "Summary not available"

// PlaceholderTakeaways are used when a response carried no takeaways at all.
var PlaceholderTakeaways = []string{
	"Key information available",
	"Relevant for current affairs",
	"Important for exam preparation",
}

// ParseJSONResponse extracts a JSON object from an LLM response. It accepts a bare
// object, an object inside a markdown code fence, or the first balanced object
// embedded in surrounding prose. Returns nil when no object can be decoded.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if m := decodeObject(text); m != nil {
		return m
	}
	if fenced, ok := stripFence(text); ok {
		if m := decodeObject(fenced); m != nil {
			return m
		}
	}
	return firstBalancedObject(text)
}

// Summary is the lightweight summarization result.
type Summary struct {
	Summary      string
	KeyTakeaways []string
	// Structured is false when heuristics or placeholders produced the result.
	Structured bool
}

// ParseSummary turns any LLM response into a usable summary. It never fails:
// structured JSON is preferred, then a line-based reading of the text, then fixed
// placeholders. The result always has a non-empty summary and 1 to 3 takeaways.
func ParseSummary(text string) Summary {
	if m := ParseJSONResponse(text); m != nil {
		s := Summary{
			Summary:      strings.TrimSpace(stringField(m, "summary")),
			KeyTakeaways: limit(stringsField(m, "keyTakeaways", "key_takeaways"), maxTakeaways),
			Structured:   true,
		}
		if s.Summary != "" {
			if len(s.KeyTakeaways) == 0 {
				s.KeyTakeaways = placeholders()
			}
			return s
		}
	}

	summary, bullets := splitLines(text)
	if summary == "" {
		summary = FallbackSummary
	}
	bullets = limit(bullets, maxTakeaways)
	if len(bullets) == 0 {
		bullets = placeholders()
	}
	return Summary{Summary: summary, KeyTakeaways: bullets}
}

// ParseAnalysis decodes a deep-analysis response. ok is false when the response held
// no JSON object with a summary; callers then fall back to another analyzer.
func ParseAnalysis(text string) (model.Analysis, bool) {
	m := ParseJSONResponse(text)
	if m == nil {
		return model.Analysis{}, false
	}

	a := model.Analysis{
		Summary:            strings.TrimSpace(stringField(m, "summary")),
		KeyTakeaways:       stringsField(m, "keyTakeaways", "key_takeaways", "keyPoints", "key_points"),
		ExamRelevance:      strings.TrimSpace(stringField(m, "examRelevance", "exam_relevance")),
		ImportantFacts:     stringsField(m, "importantFacts", "important_facts"),
		PotentialQuestions: stringsField(m, "potentialQuestions", "potential_questions"),
		PolicyImplications: stringsField(m, "policyImplications", "policy_implications"),
	}
	for _, t := range stringsField(m, "relatedTopics", "related_topics") {
		a.RelatedTopics = append(a.RelatedTopics, model.Topic(strings.ToLower(t)))
	}
	switch s := model.Sentiment(strings.ToLower(stringField(m, "sentiment"))); s {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
		a.Sentiment = s
	}

	if a.Summary == "" {
		return model.Analysis{}, false
	}
	return a, true
}

func decodeObject(text string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err == nil {
		return m
	}
	// Models occasionally emit raw newlines or tabs inside string values.
	if err := json.Unmarshal([]byte(replaceControl(text)), &m); err == nil {
		return m
	}
	return nil
}

func replaceControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7f && r <= 0x9f) {
			return ' '
		}
		return r
	}, s)
}

// stripFence returns the body of the first ``` fenced block in text.
func stripFence(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	// Skip the language tag on the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// firstBalancedObject scans for {...} spans with matching braces, ignoring braces
// inside string literals, and returns the first one that decodes.
func firstBalancedObject(text string) map[string]any {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			if m := decodeObject(text[start : end+1]); m != nil {
				return m
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitLines reads plain text as a summary line followed by bullet points.
func splitLines(text string) (string, []string) {
	var summary string
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if item, ok := bullet(line); ok {
			if item != "" {
				bullets = append(bullets, item)
			}
			continue
		}
		if summary == "" && utf8.RuneCountInString(line) > 20 {
			summary = line
		}
	}
	return summary, bullets
}

func bullet(line string) (string, bool) {
	for _, prefix := range []string{"-", "•", "*"} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimLeft(line, prefix)), true
		}
	}
	return "", false
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringsField(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if strings.TrimSpace(v) != "" {
				return []string{strings.TrimSpace(v)}
			}
		}
	}
	return nil
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func placeholders() []string {
	return append([]string(nil), PlaceholderTakeaways...)
}
