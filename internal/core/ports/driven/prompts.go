package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswerSystem instructs the model to answer only from the context.
	// This prompt has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerUser wraps the evidence and the question.
	// The template expects %s (context) and %s (question) placeholders.
	PromptAnswerUser = "answer_user"

	// PromptVerifySystem sets the verifier's validity policy.
	// This prompt has no format placeholders.
	PromptVerifySystem = "verify_system"

	// PromptVerifyUser carries the material to verify.
	// The template expects %s (date), %s (context), %s (question) and %s (answer).
	PromptVerifyUser = "verify_user"

	// PromptSummarise creates summaries of document content.
	// The template expects %d (max length) and %s (content) placeholders.
	PromptSummarise = "summarise"

	// PromptImageAnalysis asks a vision model for a description and tags.
	// This prompt has no format placeholders.
	PromptImageAnalysis = "image_analysis"

	// PromptRollingSummary digests recent records into a summary, tasks and events.
	// The template expects %s (current date) and %s (records) placeholders.
	PromptRollingSummary = "rolling_summary"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
