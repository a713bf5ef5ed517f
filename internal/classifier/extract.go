package classifier

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	labelledPair = regexp.MustCompile(`(?is)text\s*1\s*:\s*(.*?)\s*text\s*2\s*:\s*(.*?)(?:\n|$)`)
	quotedPair   = regexp.MustCompile(`(?i)"([^"]+)"\s*(?:vs\.?|versus|and)\s*"([^"]+)"`)
)

// pairSeparators split a query into two texts, tried in order.
var pairSeparators = []string{"\n---\n", "\n\n---\n\n", "\nvs\n", "\nversus\n", "\n\n\n", "\n\n"}

// pairPrefixes are labels stripped from the start of each separated text.
var pairPrefixes = []string{"text 1:", "text1:", "first:", "document 1:", "compare", "text 2:", "text2:", "second:", "document 2:"}

// minPairText is the minimum rune length of each separated text.
const minPairText = 20

// ExtractTwoTexts recovers an inline comparison pair from query. It accepts
// "Text 1: ... Text 2: ..." labels, two quoted strings joined by vs, versus
// or and, or two blocks split by a separator line. It returns empty strings
// when no pair is found.
func ExtractTwoTexts(query string) (string, string) {
	if m := labelledPair.FindStringSubmatch(query); m != nil {
		a, b := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if a != "" && b != "" {
			return a, b
		}
	}

	if m := quotedPair.FindStringSubmatch(query); m != nil {
		a, b := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if a != "" && b != "" {
			return a, b
		}
	}

	body := dropInstructionLine(query)
	for _, sep := range pairSeparators {
		before, after, ok := strings.Cut(body, sep)
		if !ok {
			continue
		}
		a := stripPrefixes(strings.TrimSpace(before))
		b := stripPrefixes(strings.TrimSpace(after))
		if utf8.RuneCountInString(a) > minPairText && utf8.RuneCountInString(b) > minPairText {
			return a, b
		}
	}

	return "", ""
}

// dropInstructionLine removes a leading "compare these:" style line so the
// separator split sees only the two texts.
func dropInstructionLine(query string) string {
	first, rest, ok := strings.Cut(strings.TrimSpace(query), "\n")
	if ok && strings.HasSuffix(strings.TrimSpace(first), ":") && compareCue.MatchString(first) {
		return strings.TrimLeft(rest, "\n")
	}
	return query
}

// stripPrefixes removes known labels from the start of s.
func stripPrefixes(s string) string {
	for _, p := range pairPrefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			s = strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

var (
	summaryKeywords = regexp.MustCompile(`(?i)\b(summari[sz]e|summary|sum up|brief|overview|gist|please|this|the following)\b`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// minInlineText is the rune length above which the remainder of a summary
// request is treated as text to summarise.
const minInlineText = 50

// ExtractTextForSummary returns the text to summarise when query carries it
// inline, or "" when what remains after removing the request words is too
// short to be content.
func ExtractTextForSummary(query string) string {
	text := summaryKeywords.ReplaceAllString(query, "")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	text = strings.TrimLeft(text, ":- ")
	if utf8.RuneCountInString(text) > minInlineText {
		return text
	}
	return ""
}
