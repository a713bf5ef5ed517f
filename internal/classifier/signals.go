package classifier

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	compareCue = regexp.MustCompile(`(?i)\b(compare|compared|comparing|comparison|contrast|versus|vs\.?|differences?|differ|different|similarit(?:y|ies)|similar|in common)\b`)

	// compareVerb is an explicit request to compare, as opposed to a
	// question that merely mentions differences.
	compareVerb = regexp.MustCompile(`(?i)\b(compare|comparing|comparison|contrast|versus|vs\.?)\b`)

	summaryCue = regexp.MustCompile(`(?i)\b(summari[sz]e|summari[sz]ing|summary|summaries|sum up|overview|gist|tl;?dr|recap|condense|key points|main points|highlights)\b`)

	questionStart = regexp.MustCompile(`(?i)^(what|what's|who|whom|whose|when|where|why|how|which|is|are|was|were|does|do|did|can|could|should|would|will|has|have)\b`)

	infoRequest = regexp.MustCompile(`(?i)\b(explain(?:s|ed)?|describ(?:e|es|ed)|tell me|list(?:s|ed)?|find|show me|give me|define[sd]?|identif(?:y|ies|ied)|according to|mentions?|mentioned|discuss(?:es|ed)?|outline[sd]?|analy[sz]e|question)\b`)

	docRef = regexp.MustCompile(`(?i)\b(documents?|docs?|pdfs?|files?|reports?|papers?|uploaded|upload|attachments?|sections?|pages?|chapters?|contracts?|disclosures?|filings?)\b`)

	// Style and audience hints, checked in order.
	bulletCue       = regexp.MustCompile(`(?i)\b(bullets?|bullet points|bulleted|key points|main points)\b`)
	microCue        = regexp.MustCompile(`(?i)\b(micro|tl;?dr|one sentence|one line|very short|very brief|in a few words)\b`)
	detailedCue     = regexp.MustCompile(`(?i)\b(detailed|in detail|thorough|in depth|in-depth|comprehensive)\b`)
	professionalCue = regexp.MustCompile(`(?i)\b(professionals?|analysts?|finance professional|financial terminology|technical audience|experts?)\b`)
	generalCue      = regexp.MustCompile(`(?i)\b(general audience|investors?|journalists?|plain english|layman|non-?experts?|for everyone)\b`)

	// Mode hints.
	similarCue    = regexp.MustCompile(`(?i)\b(similarit(?:y|ies)|similar|in common|alike|overlap)\b`)
	differenceCue = regexp.MustCompile(`(?i)\b(differences?|differ|different|contrast|distinguish)\b`)
)

// greetingPatterns are checked in this order; the first match wins.
var greetingPatterns = []struct {
	kind     Greeting
	patterns []string
}{
	{GreetingHowAreYou, []string{"how are you", "how r u", "how do you do", "what's up", "how's it going", "how are things"}},
	{GreetingGoodbye, []string{"goodbye", "bye bye", "bye", "see you", "see ya", "farewell", "good night"}},
	{GreetingHello, []string{"hello there", "hi there", "hello", "hiya", "hey", "hi", "good morning", "good afternoon", "good evening"}},
}

// greetingRegexps are greetingPatterns compiled with word boundaries.
var greetingRegexps = compileGreetings()

func compileGreetings() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, g := range greetingPatterns {
		for _, p := range g.patterns {
			out[p] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
		}
	}
	return out
}

// maxGreetingExtraWords is the number of words besides the greeting itself a
// query may contain and still be treated as a pleasantry.
const maxGreetingExtraWords = 3

// outOfScopeCue matches requests the service does not serve.
var outOfScopeCue = regexp.MustCompile(`(?i)\b(write|poem|story|joke|weather|news|calculate|math|translate|code|programming|recipe|game|play|sing|draw|create|generate|compose|paint|dance|music|movie|book)\b`)

// inScopeCue overrides outOfScopeCue.
var inScopeCue = regexp.MustCompile(`(?i)\b(summari[sz]e|compare|question|what|how|why|explain|analy[sz]e|upload|pdf)\b`)

// signals are the features extracted from one query.
type signals struct {
	compare bool
	verb    bool
	pair    bool
	modeCue bool
	mode    string
	pairA   string
	pairB   string

	summary       bool
	summarySource bool
	styleCue      bool
	style         string
	audience      string
	inlineText    string
	useInline     bool

	docActive bool
	question  bool
	docRef    bool

	greeting        Greeting
	greetingMatch   string
	outOfScope      bool
	outOfScopeMatch string
}

// detect extracts every signal from q.
func detect(q string, ctx Context) signals {
	var s signals

	s.compare = compareCue.MatchString(q)
	s.verb = compareVerb.MatchString(q)
	s.summary = summaryCue.MatchString(q)
	s.docRef = docRef.MatchString(q)
	s.docActive = ctx.ActiveDocuments > 0
	s.question = strings.HasSuffix(q, "?") || questionStart.MatchString(q) || infoRequest.MatchString(q)

	if s.compare {
		s.pairA, s.pairB = ExtractTwoTexts(q)
		s.pair = s.pairA != "" || ctx.ActiveDocuments >= 2
		s.mode, s.modeCue = detectMode(q)
	}

	if s.summary {
		s.style, s.audience, s.styleCue = detectStyle(q)
		s.inlineText = ExtractTextForSummary(q)
		s.useInline = s.inlineText != "" && (!s.docActive || !s.docRef)
		s.summarySource = s.docActive || s.inlineText != ""
	}

	// With a document active, a question is about its content: a
	// pleasantry must then stand alone and out-of-scope cues are ignored.
	docQuestion := s.docActive && s.question
	if !s.compare && !s.summary && !s.docRef {
		extra := maxGreetingExtraWords
		if docQuestion {
			extra = 0
		}
		s.greeting, s.greetingMatch = detectGreeting(q, extra)
		if s.greeting == "" && !docQuestion {
			if m := outOfScopeCue.FindString(q); m != "" && !inScopeCue.MatchString(q) {
				s.outOfScope = true
				s.outOfScopeMatch = strings.ToLower(m)
			}
		}
	}

	return s
}

// detectGreeting reports the greeting in q when q has at most maxExtra
// words besides the greeting.
func detectGreeting(q string, maxExtra int) (Greeting, string) {
	for _, g := range greetingPatterns {
		for _, p := range g.patterns {
			re := greetingRegexps[p]
			if !re.MatchString(q) {
				continue
			}
			if countWords(re.ReplaceAllString(q, " ")) > maxExtra {
				return "", ""
			}
			return g.kind, p
		}
	}
	return "", ""
}

// countWords counts the fields of s that contain a letter or digit, so
// trailing punctuation is not a word.
func countWords(s string) int {
	n := 0
	for _, f := range strings.Fields(s) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}

// detectMode returns the comparison mode hint and whether the query named one
// explicitly.
func detectMode(q string) (string, bool) {
	sim := similarCue.MatchString(q)
	diff := differenceCue.MatchString(q)
	switch {
	case sim && diff:
		return "comprehensive", true
	case sim:
		return "similarities", true
	case diff:
		return "differences", true
	default:
		return "comprehensive", false
	}
}

// detectStyle returns the summary style and audience hints and whether the
// query named a style explicitly.
func detectStyle(q string) (style, audience string, explicit bool) {
	switch {
	case professionalCue.MatchString(q):
		return "audience", "professional", true
	case generalCue.MatchString(q):
		return "audience", "general", true
	case bulletCue.MatchString(q):
		return "bullet_points", "", true
	case microCue.MatchString(q):
		return "micro", "", true
	case detailedCue.MatchString(q):
		return "detailed", "", true
	default:
		return "brief", "", false
	}
}
