package analyze

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

var (
	numberPattern   = regexp.MustCompile(`\d+(?:\.\d+)?%?`)
	datePattern     = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}|\b\d{4}\b`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
	factPattern     = regexp.MustCompile(`(?i)\d|announced|launched|implemented|established`)
)

var stopWords = map[string]bool{
	"about": true, "which": true, "there": true, "their": true, "these": true,
	"those": true, "would": true, "could": true, "should": true,
}

var (
	positiveWords = []string{"growth", "increase", "improve", "success", "achieve", "progress", "benefit", "positive", "enhanced", "strong"}
	negativeWords = []string{"decline", "decrease", "crisis", "concern", "challenge", "problem", "fail", "negative", "weak", "poor"}
)

var topicWords = map[model.Topic][]string{
	model.TopicEconomy:       {"economy", "gdp", "inflation", "growth", "fiscal", "monetary", "trade", "finance", "market", "investment"},
	model.TopicPolity:        {"government", "parliament", "constitution", "policy", "legislation", "election", "democracy", "judicial", "executive"},
	model.TopicEnvironment:   {"environment", "climate", "pollution", "carbon", "renewable", "energy", "conservation", "biodiversity", "forest"},
	model.TopicInternational: {"international", "global", "foreign", "diplomatic", "treaty", "bilateral", "relations", "geopolitical"},
	model.TopicScience:       {"science", "technology", "research", "innovation", "space", "satellite", "digital", "artificial", "quantum"},
	model.TopicSociety:       {"education", "health", "social", "welfare", "poverty", "literacy", "unemployment", "development", "rural"},
	model.TopicHistory:       {"history", "ancient", "heritage", "culture", "archaeological", "tradition", "civilization", "historical"},
	model.TopicGeography:     {"geography", "river", "mountain", "climate", "mineral", "agriculture", "irrigation", "drought", "flood"},
}

var policyImplications = []string{
	"Requires multi-stakeholder coordination and collaboration",
	"Necessitates adequate resource allocation and capacity building",
	"Demands robust monitoring and evaluation frameworks",
	"Calls for evidence-based policy making and adaptive implementation",
	"Requires public awareness and participatory governance approaches",
}

// RuleBased analyzes content without any AI provider, from keyword counts,
// numbers and dates found in the text.
func RuleBased(content string, depth Depth) model.Analysis {
	advanced := depth == Advanced

	numbers := numberPattern.FindAllString(content, -1)
	dates := datePattern.FindAllString(content, -1)
	counts := countWords(content)
	topics := detectTopics(counts)
	top := topWords(counts, 6)

	a := model.Analysis{
		Summary:            summarize(content, advanced),
		ExamRelevance:      examRelevance(topics, advanced),
		ImportantFacts:     facts(content, numbers, dates, advanced),
		PotentialQuestions: questions(topics, advanced),
		RelatedTopics:      topics,
		Sentiment:          sentiment(content),
	}

	if advanced {
		data := "Provides qualitative analysis and insights"
		if len(numbers) > 0 {
			data = "Contains quantitative data and statistical evidence"
		}
		a.KeyTakeaways = []string{
			"Primary themes: " + strings.Join(head(top, 0, 3), ", "),
			data,
			"Multi-dimensional perspective on contemporary issues",
			"Relevant for policy analysis and governance discussions",
			"Connects to broader developmental and strategic objectives",
			"Related concepts: " + strings.Join(head(top, 3, 6), ", "),
		}
		a.PolicyImplications = append([]string(nil), policyImplications...)
	} else {
		a.KeyTakeaways = []string{
			"Key focus areas: " + strings.Join(head(top, 0, 3), ", "),
			"Contains important data and statistics for exam preparation",
			"Relevant for current affairs and contemporary issues",
		}
	}
	return a
}

// countWords counts lowercased words longer than four letters, ignoring stop words.
func countWords(content string) map[string]int {
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	counts := make(map[string]int)
	for _, w := range lo.Filter(words, func(w string, _ int) bool {
		return len([]rune(w)) > 4 && !stopWords[w]
	}) {
		counts[w]++
	}
	return counts
}

// topWords returns the n most frequent words, ties broken alphabetically.
func topWords(counts map[string]int, n int) []string {
	words := lo.Keys(counts)
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func detectTopics(counts map[string]int) []model.Topic {
	scores := make(map[model.Topic]int)
	for topic, words := range topicWords {
		for _, w := range words {
			scores[topic] += counts[w]
		}
	}

	topics := lo.Filter(lo.Keys(scores), func(t model.Topic, _ int) bool { return scores[t] > 0 })
	sort.Slice(topics, func(i, j int) bool {
		if scores[topics[i]] != scores[topics[j]] {
			return scores[topics[i]] > scores[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > 3 {
		topics = topics[:3]
	}
	return topics
}

func sentiment(content string) model.Sentiment {
	lower := strings.ToLower(content)
	pos := lo.SumBy(positiveWords, func(w string) int { return strings.Count(lower, w) })
	neg := lo.SumBy(negativeWords, func(w string) int { return strings.Count(lower, w) })

	switch {
	case float64(pos) > float64(neg)*1.5:
		return model.SentimentPositive
	case float64(neg) > float64(pos)*1.5:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func sentences(content string) []string {
	return lo.Map(sentencePattern.FindAllString(content, -1), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
}

func summarize(content string, advanced bool) string {
	n, maxLen := 2, 250
	if advanced {
		n, maxLen = 3, 500
	}
	parts := sentences(content)
	if len(parts) == 0 {
		parts = []string{strings.TrimSpace(content)}
	}
	s := strings.Join(head(parts, 0, n), " ")
	if r := []rune(s); len(r) > maxLen {
		s = string(r[:maxLen])
	}
	return s
}

func examRelevance(topics []model.Topic, advanced bool) string {
	if len(topics) == 0 {
		return "Relevant for general awareness and current affairs preparation."
	}
	names := strings.Join(lo.Map(topics, func(t model.Topic, _ int) string {
		s := string(t)
		return strings.ToUpper(s[:1]) + s[1:]
	}), ", ")

	if advanced {
		return fmt.Sprintf("Highly relevant for competitive exam preparation. Topics covered: %s. "+
			"Useful for Prelims (current affairs, factual questions), Mains (analytical answers, essay writing), "+
			"and Interview (demonstrating awareness and critical thinking). Can be linked to multiple GS papers "+
			"and integrated with other topics for comprehensive understanding.", names)
	}
	return fmt.Sprintf("Relevant for %s sections. Important for both Prelims and Mains preparation.", names)
}

func facts(content string, numbers, dates []string, advanced bool) []string {
	nNumbers, nDates, nSentences, maxFacts := 3, 2, 2, 4
	if advanced {
		nNumbers, nDates, nSentences, maxFacts = 5, 3, 4, 7
	}

	var out []string
	if len(numbers) > 0 {
		out = append(out, "Key statistics: "+strings.Join(head(numbers, 0, nNumbers), ", "))
	}
	if len(dates) > 0 {
		out = append(out, "Important dates: "+strings.Join(head(dates, 0, nDates), ", "))
	}
	factual := lo.Filter(sentences(content), func(s string, _ int) bool { return factPattern.MatchString(s) })
	out = append(out, head(factual, 0, nSentences)...)
	return head(out, 0, maxFacts)
}

func questions(topics []model.Topic, advanced bool) []string {
	if len(topics) == 0 {
		return []string{"Discuss the significance of recent developments mentioned in the content."}
	}
	t := topics[0]
	if advanced {
		return []string{
			fmt.Sprintf("Critically analyze the recent developments in %s. What are the implications for India's development trajectory? (250 words)", t),
			fmt.Sprintf("Discuss the challenges and opportunities in the %s sector. Suggest policy measures for improvement. (200 words)", t),
			fmt.Sprintf("Compare India's approach to %s with international best practices. (150 words)", t),
			fmt.Sprintf("Examine the role of various stakeholders in addressing %s issues. (150 words)", t),
		}
	}
	return []string{
		fmt.Sprintf("What are the key developments in %s?", t),
		fmt.Sprintf("Explain the significance of recent %s initiatives.", t),
	}
}

// head returns s[from:to] clamped to the slice bounds.
func head[T any](s []T, from, to int) []T {
	if from > len(s) {
		from = len(s)
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
