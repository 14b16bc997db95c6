package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
	"github.com/custodia-labs/neurovault/internal/prompts"
)

// Ensure VerificationService implements the interface.
var _ driving.Verifier = (*VerificationService)(nil)

// verificationResponse is the structured reply requested from the verifier model.
type verificationResponse struct {
	IsValid    bool    `json:"is_valid" jsonschema:"true when every claim in the answer is supported by the context"`
	Reason     string  `json:"reason" jsonschema:"short explanation of the decision"`
	Correction *string `json:"correction" jsonschema:"corrected answer when invalid, otherwise null"`
}

// verificationSchema is derived once from verificationResponse.
var verificationSchema = mustSchema[verificationResponse]("verification")

// VerificationService checks answers against their evidence with a second model call.
type VerificationService struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	model   string
	timeout time.Duration
	now     func() time.Time
}

// NewVerificationService creates a new verifier. model overrides the LLM's
// default model when non-empty; promptStore may be nil.
func NewVerificationService(llm driven.LLMService, promptStore driven.PromptStore, model string) *VerificationService {
	return &VerificationService{
		llm:     llm,
		prompts: promptStore,
		model:   model,
		timeout: domain.DefaultAppSettings().Chat.VerifyTimeout,
		now:     time.Now,
	}
}

// SetTimeout bounds the verification call.
func (s *VerificationService) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Verify judges answer against evidence. It never returns an error:
// any failure yields domain.FailSafeVerdict.
func (s *VerificationService) Verify(
	ctx context.Context, question, answer string, evidence []domain.EvidenceSnippet,
) domain.Verdict {
	logger.Section("Verification")

	ctx, span := observability.StartSpan(ctx, "verify",
		attribute.Int("verify.evidence", len(evidence)))
	defer span.End()

	verdict, err := s.verify(ctx, question, answer, evidence)
	if err != nil {
		observability.RecordError(span, err)
		logger.Warn("Verification failed, applying fail-safe: %v", err)
		verdict = domain.FailSafeVerdict(err)
	}

	span.SetAttributes(attribute.Bool("verify.valid", verdict.Valid))
	logger.Info("Verdict: valid=%t reason=%q", verdict.Valid, verdict.Reason)
	return verdict
}

func (s *VerificationService) verify(
	ctx context.Context, question, answer string, evidence []domain.EvidenceSnippet,
) (domain.Verdict, error) {
	if s.llm == nil {
		return domain.Verdict{}, domain.ErrLLMUnavailable
	}
	if verificationSchema.err != nil {
		return domain.Verdict{}, verificationSchema.err
	}

	messages := []driven.ChatMessage{
		{Role: "system", Content: prompts.Load(s.prompts, driven.PromptVerifySystem)},
		{Role: "user", Content: fmt.Sprintf(prompts.Load(s.prompts, driven.PromptVerifyUser),
			s.now().Format("Monday, January 2, 2006"), domain.JoinEvidence(evidence), question, answer)},
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var resp verificationResponse
	opts := driven.ChatOptions{Model: s.model, Temperature: 0}
	if err := s.llm.ChatStructured(ctx, messages, verificationSchema.schema, &resp, opts); err != nil {
		return domain.Verdict{}, err
	}

	return domain.Verdict{
		Valid:      resp.IsValid,
		Reason:     resp.Reason,
		Correction: resp.Correction,
	}, nil
}

// lazySchema keeps a derived schema together with any derivation error.
type lazySchema struct {
	schema *driven.Schema
	err    error
}

func mustSchema[T any](name string) lazySchema {
	s, err := driven.SchemaFor[T](name)
	if err != nil {
		err = fmt.Errorf("derive %s schema: %w", name, err)
	}
	return lazySchema{schema: s, err: err}
}
