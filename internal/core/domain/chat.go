package domain

// ChatEventType identifies the kind of event on a chat stream.
type ChatEventType string

// Chat event types.
const (
	// ChatEventToken carries a fragment of the answer.
	ChatEventToken ChatEventType = "token"

	// ChatEventVerification carries the verdict. Always the last event.
	ChatEventVerification ChatEventType = "verification"

	// ChatEventNoInformation replaces all tokens when no evidence was found.
	ChatEventNoInformation ChatEventType = "no_information"
)

// Texts of the no-information event for document and vault-wide chat.
const (
	NoInformationMessage      = "I couldn't find any relevant information in this document."
	VaultNoInformationMessage = "I couldn't find any relevant information in your vault."
)

// AnswerFallbackToken is emitted in place of the remaining answer when
// generation fails mid-stream.
const AnswerFallbackToken = " [Error: answer generation failed] "

// ChatEvent is a single event on a chat stream.
type ChatEvent struct {
	// Type is the event kind.
	Type ChatEventType

	// Token is set for ChatEventToken.
	Token string

	// Message is set for ChatEventNoInformation.
	Message string

	// Verdict is set for ChatEventVerification.
	Verdict *Verdict
}

// ChatRequest describes a question to answer.
type ChatRequest struct {
	// Query is the user's question.
	Query string

	// DocumentID scopes retrieval to a single document when non-nil.
	DocumentID *int64

	// TopK is the number of evidence snippets to use. Zero means default.
	TopK int
}

// NoInformation returns the no-information text matching the request's scope.
func (r ChatRequest) NoInformation() string {
	if r.DocumentID == nil {
		return VaultNoInformationMessage
	}
	return NoInformationMessage
}
