// Package topics maps study topics to provider search keywords and re-detects
// topics from article text, since providers return no usable taxonomy.
package topics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

const maxQueryKeywords = 5

// keywords per topic. Native-script entries help detection on Indic content but are
// never sent to providers.
var keywords = map[model.Topic][]string{
	model.TopicEconomy:       {"economy", "gdp", "rbi", "budget", "inflation", "finance", "अर्थव्यवस्था"},
	model.TopicPolity:        {"government", "parliament", "politics", "election", "minister", "सरकार", "राजनीति"},
	model.TopicEnvironment:   {"environment", "climate", "pollution", "carbon", "पर्यावरण"},
	model.TopicInternational: {"foreign policy", "international", "diplomacy", "bilateral", "विदेश नीति"},
	model.TopicScience:       {"technology", "science", "isro", "research", "विज्ञान"},
	model.TopicSociety:       {"education", "health", "society", "welfare", "समाज", "शिक्षा"},
	model.TopicHistory:       {"history", "heritage", "ancient", "इतिहास"},
	model.TopicGeography:     {"geography", "natural resources", "river", "monsoon", "भूगोल"},
}

// wildcardTopics stands in for "all" in provider queries, which have practical length limits.
var wildcardTopics = []model.Topic{
	model.TopicEconomy, model.TopicPolity, model.TopicEnvironment, model.TopicScience,
}

// Keywords builds an OR-joined provider query for the requested topics.
func Keywords(requested []model.Topic) string {
	active := requested
	if len(requested) == 0 || lo.Contains(requested, model.TopicAll) {
		active = wildcardTopics
	}

	var out []string
	for _, t := range active {
		for _, kw := range keywords[t] {
			if !IsLatin(kw) {
				continue
			}
			out = append(out, kw)
		}
	}
	out = lo.Uniq(out)
	if len(out) > maxQueryKeywords {
		out = out[:maxQueryKeywords]
	}
	return strings.Join(out, " OR ")
}

// Detect scores every topic by keyword occurrences in text and returns up to two,
// highest score first. Ties keep table order. Without any match it falls back to the
// requested topics minus the wildcard, which may be empty.
func Detect(text string, requested []model.Topic) []model.Topic {
	lower := strings.ToLower(text)

	type scored struct {
		topic model.Topic
		score int
	}
	var hits []scored
	for _, t := range model.AllTopics {
		score := 0
		for _, kw := range keywords[t] {
			score += strings.Count(lower, strings.ToLower(kw))
		}
		if score > 0 {
			hits = append(hits, scored{t, score})
		}
	}

	if len(hits) == 0 {
		fallback := lo.Filter(requested, func(t model.Topic, _ int) bool { return t != model.TopicAll })
		if len(fallback) > 2 {
			fallback = fallback[:2]
		}
		return fallback
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > 2 {
		hits = hits[:2]
	}
	return lo.Map(hits, func(s scored, _ int) model.Topic { return s.topic })
}

// IsLatin reports whether every letter in s belongs to the Latin script.
func IsLatin(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	return true
}
