// Package vision describes images with a multimodal chat model.
package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/prompts"
)

// Ensure Analyzer implements the interface.
var _ driven.MediaAnalyzer = (*Analyzer)(nil)

// captionSchema is the structured reply requested from the model.
var captionSchema, captionSchemaErr = driven.SchemaFor[domain.MediaAnalysis]("media_analysis")

// Analyzer captions images through any LLMService that accepts images.
type Analyzer struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	model       string
}

// NewAnalyzer creates an analyzer. An empty model uses the service default.
func NewAnalyzer(llm driven.LLMService, promptStore driven.PromptStore, model string) *Analyzer {
	return &Analyzer{llm: llm, promptStore: promptStore, model: model}
}

// Analyze asks the model for a description and 3-5 tags.
func (a *Analyzer) Analyze(ctx context.Context, input domain.MediaInput) (domain.MediaAnalysis, error) {
	if input.MediaType != domain.MediaTypeImage {
		return domain.MediaAnalysis{}, fmt.Errorf("%w: vision analysis handles images, got %s",
			domain.ErrUnsupportedType, input.MediaType)
	}
	if captionSchemaErr != nil {
		return domain.MediaAnalysis{}, fmt.Errorf("caption schema: %w", captionSchemaErr)
	}

	messages := []driven.ChatMessage{{
		Role:    "user",
		Content: prompts.Load(a.promptStore, driven.PromptImageAnalysis),
		Images:  [][]byte{input.Data},
	}}

	var analysis domain.MediaAnalysis
	if err := a.llm.ChatStructured(ctx, messages, captionSchema, &analysis, driven.ChatOptions{Model: a.model}); err != nil {
		return domain.MediaAnalysis{}, err
	}

	analysis.Description = strings.TrimSpace(analysis.Description)
	if analysis.Description == "" {
		return domain.MediaAnalysis{}, fmt.Errorf("%w: empty description", domain.ErrStructuredOutput)
	}
	if len(analysis.Tags) > 5 {
		analysis.Tags = analysis.Tags[:5]
	}
	return analysis, nil
}
