package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

const (
	DefaultTopK           = 4
	DefaultScoreThreshold = 0.6
)

// Built-in prompt templates. The question and then the retrieved context are appended verbatim.
var BuiltinPrompts = map[string]string{
	"summarize": "Summarize the passages below so that they answer the question. " +
		"Use only facts stated in the passages and keep the answer to a few sentences. Question: ",
	"qa": "You answer questions about technical documents. " +
		"If the passages do not contain the answer, say that you do not know. Question: ",
}

const DefaultPromptName = "summarize"

type QuerySettings struct {
	TopK           int
	ScoreThreshold float64
	Template       string
	// GenerateOnNotFound sends the not-found context to the generator instead of returning it as the answer.
	GenerateOnNotFound bool
	// GenerateOnEmptyContext asks the generator even when k = 0 produced no passages.
	GenerateOnEmptyContext bool
}

type contextRetriever interface {
	Retrieve(ctx context.Context, question string, k int, threshold float64) (domain.RetrievalContext, error)
}

type answerAssembler interface {
	Assemble(ctx context.Context, template, question, context, lastSource string) (*domain.Answer, error)
}

type QueryUseCase struct {
	retriever contextRetriever
	assembler answerAssembler
	settings  QuerySettings
}

func NewQueryUseCase(retriever contextRetriever, assembler answerAssembler, settings QuerySettings) *QueryUseCase {
	if settings.Template == "" {
		settings.Template = BuiltinPrompts[DefaultPromptName]
	}
	return &QueryUseCase{
		retriever: retriever,
		assembler: assembler,
		settings:  settings,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is required"))
	}

	retrieved, err := uc.retriever.Retrieve(ctx, question, uc.settings.TopK, uc.settings.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	switch {
	case !retrieved.Found:
		if !uc.settings.GenerateOnNotFound {
			return &domain.Answer{ResponseText: domain.NotFoundContext}, nil
		}
		return uc.assembler.Assemble(ctx, uc.settings.Template, question, retrieved.Text, "")
	case retrieved.Empty():
		if !uc.settings.GenerateOnEmptyContext {
			return &domain.Answer{ResponseText: domain.NotFoundContext}, nil
		}
		return uc.assembler.Assemble(ctx, uc.settings.Template, question, "", "")
	default:
		return uc.assembler.Assemble(ctx, uc.settings.Template, question, retrieved.Text, retrieved.LastSource)
	}
}
