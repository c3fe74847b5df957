package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

// AnswerAssembler turns an accepted retrieval context into the final answer.
type AnswerAssembler struct {
	generator ports.GenerationProvider
	params    domain.GenerationParams
}

func NewAnswerAssembler(generator ports.GenerationProvider, params domain.GenerationParams) *AnswerAssembler {
	return &AnswerAssembler{generator: generator, params: params}
}

// BuildPrompt concatenates template, question and context without separators.
func BuildPrompt(template, question, context string) string {
	return template + question + context
}

// Assemble generates a completion and strips every newline from it. The reference document is
// whatever source the caller passes, conventionally the source of the last accepted hit.
func (a *AnswerAssembler) Assemble(ctx context.Context, template, question, context, lastSource string) (*domain.Answer, error) {
	completion, err := a.generator.Generate(ctx, BuildPrompt(template, question, context), a.params)
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	return &domain.Answer{
		ResponseText:      strings.ReplaceAll(completion, "\n", ""),
		ReferenceDocument: lastSource,
		Grounded:          lastSource != "",
	}, nil
}
