package pdfdoc

import (
	"regexp"
	"strings"
	"unicode"
)

const wordsPerMinute = 200

// Structure describes the shape of extracted text.
type Structure struct {
	WordCount      int      `json:"wordCount"`
	HasStructure   bool     `json:"hasStructure"`
	ReadingMinutes int      `json:"estimatedReadingTime"`
	Sections       []string `json:"sections"`
}

var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^(chapter|section|part)\s+\d+`),
	regexp.MustCompile(`(?im)^(introduction|conclusion|abstract|summary)`),
	regexp.MustCompile(`(?m)^[A-Z\s]{10,}$`),
}

const maxSections = 10

// Inspect counts words, estimates reading time and lists up to ten lines that
// look like section headings.
func Inspect(text string) Structure {
	s := Structure{WordCount: len(strings.Fields(text))}
	s.ReadingMinutes = (s.WordCount + wordsPerMinute - 1) / wordsPerMinute

	for _, p := range headerPatterns {
		if p.MatchString(text) {
			s.HasStructure = true
			break
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		n := len([]rune(line))
		if n <= 5 || n >= 100 {
			continue
		}
		if first := []rune(line)[0]; !unicode.IsUpper(first) || first > unicode.MaxASCII {
			continue
		}
		s.Sections = append(s.Sections, line)
		if len(s.Sections) == maxSections {
			break
		}
	}
	return s
}
