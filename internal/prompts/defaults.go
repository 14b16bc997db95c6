// Package prompts holds the built-in prompt templates.
// Users can override each one with a file in the prompts directory.
package prompts

import (
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaults = map[string]string{
	driven.PromptAnswerSystem: `You are NeuroVault, a personal memory assistant.
Answer the question using ONLY the context you are given.
If the context does not contain the answer, say that you don't know. Never use outside knowledge and never guess.
Keep answers concise and friendly.`,

	driven.PromptAnswerUser: `Context:
%s

Question: %s`,

	driven.PromptVerifySystem: `You are a strict fact-checker. Decide whether a generated answer is fully supported by the source context.
Reply with JSON matching the schema: is_valid (boolean), reason (string), correction (string or null).
If the answer contains any claim that is NOT in the context, it is INVALID.
If the answer contradicts the context, it is INVALID.
Otherwise it is VALID. When INVALID, put a corrected answer in correction if the context allows one.`,

	driven.PromptVerifyUser: `Current date: %s

Context:
%s

Question: %s
Generated answer: %s

Is the generated answer completely supported by the context?`,

	driven.PromptSummarise: `Summarise the following text in at most %d characters, in one or two sentences. Capture the core idea.
Return ONLY the summary, with no introduction.

Text:
%s`,

	driven.PromptImageAnalysis: `Analyse this image in detail. Describe visible text, scene details, colours and mood.
Reply with JSON: description (string) and tags (3 to 5 keywords for the type and key elements).`,

	driven.PromptRollingSummary: `Today is %s. These are the user's most recent notes, newest first:
%s

Write a short summary of what the user has been thinking about and working on.
Then extract:
- tasks: concrete action items the user still has to do. Give each a priority (High, Medium or Low) and a timeline (Today, This Week or Upcoming).
- events: meetings or appointments with a specific date or time. Give date_time in RFC 3339 relative to today, and duration_minutes.
Only extract what the notes state. Return empty lists when there is nothing to extract.`,
}

// Default returns the built-in template for name.
func Default(name string) (string, bool) {
	p, ok := defaults[name]
	return p, ok
}

// Names lists every built-in prompt.
func Names() []string {
	return []string{
		driven.PromptAnswerSystem,
		driven.PromptAnswerUser,
		driven.PromptVerifySystem,
		driven.PromptVerifyUser,
		driven.PromptSummarise,
		driven.PromptImageAnalysis,
		driven.PromptRollingSummary,
	}
}

// Load returns the template for name from store, falling back to the
// built-in default when store is nil or fails.
func Load(store driven.PromptStore, name string) string {
	if store != nil {
		if p, err := store.Load(name); err == nil && p != "" {
			return p
		}
	}
	p, _ := Default(name)
	return p
}
