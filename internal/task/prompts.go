package task

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const qaSystemPrompt = `You answer questions about the user's documents.
Use only the numbered excerpts provided in the message. When the excerpts do
not contain the answer, say so plainly instead of guessing. Refer to excerpts
by their number, for example [2], when you rely on them.`

var qaTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage(qaSystemPrompt),
	schema.UserMessage(`Excerpts from {documents}:

{context}

Question: {question}`))

const summarySystemPrompt = `You are a careful summarizer. Preserve facts,
figures and names exactly as written and do not add information that is not
in the text.`

var summaryTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage(summarySystemPrompt),
	schema.UserMessage(`{instruction}

{text}`))

// summaryInstruction returns the instruction line for a style and audience.
func summaryInstruction(style Style, audience Audience) string {
	switch style {
	case StyleDetailed:
		return "Summarize the following text in a detailed, clear paragraph of 150 to 200 words:"
	case StyleBulletPoints:
		return "Summarize the following text into exactly 10 bullet points. Cover all major ideas and facts:"
	case StyleMicro:
		return "Summarize this text in under 75 words. Focus only on the essentials:"
	case StyleAudience:
		if audience == AudienceProfessional {
			return "Summarize this disclosure for a finance professional. Use appropriate financial terminology:"
		}
		return "Summarize this disclosure for a general audience such as investors or journalists. Use plain English, focus on functions and practices:"
	default:
		return "Summarize the following text in a concise paragraph:"
	}
}

var compareTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage("You are an expert comparative analyst trained in high-accuracy textual analysis."),
	schema.UserMessage(`TASK:
{instruction}

INSTRUCTIONS:
1. Analyze both texts carefully
2. Provide structured comparison results
3. Include specific examples and evidence
4. Be objective and thorough
5. Format your response as clear, readable text with no separator lines, just the analysis.

TEXT 1:
{text_a}

TEXT 2:
{text_b}

Please provide a detailed comparison analysis.`))

// compareInstruction returns the focus line for a comparison mode.
func compareInstruction(mode Mode) string {
	switch mode {
	case ModeSimilarities:
		return "Focus primarily on identifying and analyzing similarities between the two texts."
	case ModeDifferences:
		return "Focus primarily on identifying and analyzing differences between the two texts."
	default:
		return "Provide a comprehensive analysis including both similarities and differences."
	}
}

const chatSystemPrompt = `You are a document assistant. You help with three tasks:
summarizing text or uploaded documents, comparing two texts or documents, and
answering questions about uploaded documents. Keep replies short and steer the
user toward one of these tasks when their request is unclear.`

var chatTemplate = prompt.FromMessages(schema.FString,
	schema.SystemMessage(chatSystemPrompt),
	schema.SystemMessage("{documents}"),
	schema.MessagesPlaceholder("history", true),
	schema.UserMessage("{query}"))
