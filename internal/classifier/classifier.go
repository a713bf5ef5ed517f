// Package classifier routes free-text requests to a task category. It is
// rule based and deterministic: the same query and context always produce
// the same classification.
//
// Categories are tried in priority order and the first whose requirements
// hold wins:
//
//  1. comparison: comparison language and two comparable texts available
//  2. summarization: condensation language and a document or inline text
//  3. retrieval_qa: a question or document reference with a document active
//  4. chat: everything else
//
// Greetings and out-of-scope requests are recognised up front and reported
// as chat with the corresponding Params flag set.
package classifier

import (
	"fmt"
	"strings"
)

// Category is a task category.
type Category string

// Task categories.
const (
	RetrievalQA   Category = "retrieval_qa"
	Summarization Category = "summarization"
	Comparison    Category = "comparison"
	Chat          Category = "chat"
)

// Greeting identifies a conversational pleasantry.
type Greeting string

// Greeting kinds.
const (
	GreetingHello     Greeting = "hello"
	GreetingGoodbye   Greeting = "goodbye"
	GreetingHowAreYou Greeting = "how_are_you"
)

// Confidence values for the up-front conversational checks.
const (
	greetingConfidence   = 0.95
	outOfScopeConfidence = 0.9
	minChatConfidence    = 0.2
	maxChatConfidence    = 0.9
)

// Context is the session state visible to the classifier.
type Context struct {
	// ActiveDocuments is the number of documents active in the session.
	ActiveDocuments int

	// RecentMessages is the number of messages in the session history.
	RecentMessages int
}

// Params carries the task options recovered from the query text.
type Params struct {
	// Style is the summary style hint (brief, detailed, bullet_points, micro, audience).
	Style string `json:"style,omitempty"`

	// Audience is the target audience hint (general, professional).
	Audience string `json:"audience,omitempty"`

	// Mode is the comparison mode hint (similarities, differences, comprehensive).
	Mode string `json:"mode,omitempty"`

	// TextA and TextB are an inline comparison pair.
	TextA string `json:"text_a,omitempty"`
	TextB string `json:"text_b,omitempty"`

	// Text is inline text to summarise.
	Text string `json:"text,omitempty"`

	// Greeting is set when the query is a pleasantry.
	Greeting Greeting `json:"greeting,omitempty"`

	// OutOfScope is set when the query asks for something the service does
	// not do.
	OutOfScope bool `json:"out_of_scope,omitempty"`
}

// Classification is the routing decision for one query.
type Classification struct {
	// Category is the selected task.
	Category Category `json:"category"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`

	// Reasoning is a short justification.
	Reasoning string `json:"reasoning"`

	// Params are the options recovered from the query.
	Params Params `json:"params"`
}

// Topic is the conversation topic recorded for the session after handling a
// query with this classification.
func (c Classification) Topic() string {
	switch {
	case c.Params.Greeting == GreetingGoodbye:
		return "Temporary Farewell"
	case c.Params.Greeting == GreetingHowAreYou:
		return "Status Inquiry"
	case c.Params.Greeting == GreetingHello:
		return "Greeting"
	case c.Params.OutOfScope:
		return "Out of Scope Request"
	}
	switch c.Category {
	case Summarization:
		return "Text/Document Summarization"
	case Comparison:
		return "Text/Document Comparison"
	case RetrievalQA:
		return "Document Question & Answer"
	default:
		return "General Inquiry"
	}
}

// Classify returns the classification of query given the session context.
func Classify(query string, ctx Context) Classification {
	q := strings.TrimSpace(query)
	if q == "" {
		return Classification{Category: Chat, Confidence: minChatConfidence, Reasoning: "empty query"}
	}

	s := detect(q, ctx)

	if s.greeting != "" {
		return Classification{
			Category:   Chat,
			Confidence: greetingConfidence,
			Reasoning:  fmt.Sprintf("detected %s greeting %q", s.greeting, s.greetingMatch),
			Params:     Params{Greeting: s.greeting},
		}
	}
	if s.outOfScope {
		return Classification{
			Category:   Chat,
			Confidence: outOfScopeConfidence,
			Reasoning:  fmt.Sprintf("request for %q is outside document summarization, comparison and Q&A", s.outOfScopeMatch),
			Params:     Params{OutOfScope: true},
		}
	}

	compShare := share(s.compare, s.pair, s.modeCue)
	sumShare := share(s.summary, s.summarySource, s.styleCue)
	qaShare := share(s.docActive, s.question, s.docRef)

	switch {
	case s.compare && s.pair:
		p := Params{Mode: s.mode}
		reason := "comparison language with two active documents"
		if s.pairA != "" {
			p.TextA, p.TextB = s.pairA, s.pairB
			reason = "comparison language with two inline texts"
		}
		return Classification{Category: Comparison, Confidence: compShare, Reasoning: reason, Params: p}

	case s.verb && s.docActive && s.docRef:
		return Classification{
			Category:   Comparison,
			Confidence: compShare,
			Reasoning:  "comparison requested but fewer than two documents are active",
			Params:     Params{Mode: s.mode},
		}

	case s.summary && s.summarySource:
		p := Params{Style: s.style, Audience: s.audience}
		reason := "summarization request for the active document"
		if s.useInline {
			p.Text = s.inlineText
			reason = "summarization request with inline text"
		}
		return Classification{Category: Summarization, Confidence: sumShare, Reasoning: reason, Params: p}

	case s.docActive && (s.question || s.docRef):
		reason := "question about the active document"
		if !s.question {
			reason = "request referencing the active document"
		}
		return Classification{Category: RetrievalQA, Confidence: qaShare, Reasoning: reason}

	case !s.docActive && s.docRef && (s.question || s.summary || s.compare):
		return Classification{
			Category:   RetrievalQA,
			Confidence: qaShare,
			Reasoning:  "document request but no document is active",
		}
	}

	best := compShare
	if sumShare > best {
		best = sumShare
	}
	if qaShare > best {
		best = qaShare
	}
	conf := clamp(1-best, minChatConfidence, maxChatConfidence)

	reason := "no document operation requested"
	switch {
	case s.compare && !s.pair:
		reason = "comparison language but fewer than two texts available"
	case s.summary && !s.summarySource:
		reason = "summarization language but no document or text to summarize"
	case s.question && !s.docActive:
		reason = "general question with no active document"
	}
	return Classification{Category: Chat, Confidence: conf, Reasoning: reason}
}

// share returns the fraction of signals that fired.
func share(signals ...bool) float64 {
	n := 0
	for _, s := range signals {
		if s {
			n++
		}
	}
	return float64(n) / float64(len(signals))
}

// clamp limits v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
