package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

func newQueryFixture(hits []domain.Hit, gen *generatorFake, settings QuerySettings) *QueryUseCase {
	retriever := NewRetrieveUseCase(&embedderFake{}, &indexFake{hits: hits}, "docs")
	return NewQueryUseCase(retriever, NewAnswerAssembler(gen, domain.GenerationParams{}), settings)
}

func TestAnswerReferencesLastAcceptedHit(t *testing.T) {
	hits := []domain.Hit{
		{Text: "a", Source: "s3://b/first.txt", Score: 0.99},
		{Text: "b", Source: "s3://b/second.txt", Score: 0.9},
		{Text: "c", Source: "s3://b/third.txt", Score: 0.8},
	}
	gen := &generatorFake{completion: "answer"}
	uc := newQueryFixture(hits, gen, QuerySettings{TopK: 3, ScoreThreshold: 0.6, Template: "T:"})

	answer, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.ReferenceDocument != "s3://b/third.txt" {
		t.Fatalf("expected last hit source, got %q", answer.ReferenceDocument)
	}
	if gen.prompts[0] != "T:qabc" {
		t.Fatalf("unexpected prompt %q", gen.prompts[0])
	}
}

func TestAnswerReturnsSentinelWithoutGeneration(t *testing.T) {
	hits := []domain.Hit{{Text: "a", Source: "s3://b/1.txt", Score: 0.2}}
	gen := &generatorFake{}
	uc := newQueryFixture(hits, gen, QuerySettings{TopK: 1, ScoreThreshold: 0.6})

	answer, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.ResponseText != domain.NotFoundContext || answer.ReferenceDocument != "" || answer.Grounded {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("expected no generation, got %d calls", len(gen.prompts))
	}
}

func TestAnswerCanGenerateFromSentinelContext(t *testing.T) {
	hits := []domain.Hit{{Text: "a", Source: "s3://b/1.txt", Score: 0.2}}
	gen := &generatorFake{completion: "I could not find that."}
	uc := newQueryFixture(hits, gen, QuerySettings{TopK: 1, ScoreThreshold: 0.6, Template: "T:", GenerateOnNotFound: true})

	answer, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.prompts[0] != "T:q"+domain.NotFoundContext {
		t.Fatalf("expected sentinel passed as context, got %q", gen.prompts[0])
	}
	if answer.ReferenceDocument != "" || answer.Grounded {
		t.Fatalf("expected ungrounded answer, got %+v", answer)
	}
}

func TestAnswerEmptyContextHonorsGenerationFlag(t *testing.T) {
	gen := &generatorFake{}
	uc := newQueryFixture(nil, gen, QuerySettings{TopK: 0, ScoreThreshold: 0.6})
	answer, err := uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.ResponseText != domain.NotFoundContext || len(gen.prompts) != 0 {
		t.Fatalf("expected sentinel without generation, got %+v (%d calls)", answer, len(gen.prompts))
	}

	gen = &generatorFake{completion: "general knowledge"}
	uc = newQueryFixture(nil, gen, QuerySettings{TopK: 0, ScoreThreshold: 0.6, GenerateOnEmptyContext: true})
	answer, err = uc.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.ResponseText != "general knowledge" || answer.Grounded {
		t.Fatalf("expected ungrounded generated answer, got %+v", answer)
	}
}

func TestAnswerUsesDefaultTemplate(t *testing.T) {
	hits := []domain.Hit{{Text: "ctx", Source: "s3://b/1.txt", Score: 0.9}}
	gen := &generatorFake{completion: "ok"}
	uc := newQueryFixture(hits, gen, QuerySettings{TopK: 1, ScoreThreshold: 0.6})

	if _, err := uc.Answer(context.Background(), "q"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.prompts[0] != BuiltinPrompts[DefaultPromptName]+"qctx" {
		t.Fatalf("unexpected prompt %q", gen.prompts[0])
	}
}

func TestAnswerRejectsBlankQuestion(t *testing.T) {
	uc := newQueryFixture(nil, &generatorFake{}, QuerySettings{TopK: 1})
	if _, err := uc.Answer(context.Background(), "  "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
