package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/whitepaper-qa/internal/config"
	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
	"github.com/kirillkom/whitepaper-qa/internal/core/usecase"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/extractor"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/llm/openai"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/vector/memory"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/vector/opensearch"
	"github.com/kirillkom/whitepaper-qa/internal/infrastructure/vector/qdrant"
)

// Core is the in-process pipeline: storage, extraction, chunking, embedding, the vector index and
// the query service. It needs no queue or database.
type Core struct {
	Config config.Config
	Logger *slog.Logger

	Storage  ports.ObjectStorage
	IngestUC *usecase.IngestUseCase
	QueryUC  *usecase.QueryUseCase
}

func NewCore(cfg config.Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "validate config", err)
	}

	template, err := promptTemplate(cfg)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load prompts", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	splitter, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	executor := newExecutor(cfg, logger)
	embedder, generator := newModels(cfg, executor)

	schema := domain.DefaultIndexSchema(cfg.EmbeddingDimension)
	index := newVectorIndex(cfg, schema)

	ingestUC := usecase.NewIngestUseCase(
		storage,
		extractor.NewDefaultRegistry(),
		splitter,
		embedder,
		index,
		usecase.IndexTarget{Name: cfg.VectorIndex, Schema: schema},
		usecase.WithIngestConcurrency(cfg.IngestConcurrency),
		usecase.WithIngestLogger(logger),
	)
	queryUC := usecase.NewQueryUseCase(
		usecase.NewRetrieveUseCase(embedder, index, cfg.VectorIndex),
		usecase.NewAnswerAssembler(generator, domain.GenerationParams{
			MaxTokens:     cfg.GenMaxTokens,
			Temperature:   cfg.GenTemperature,
			TopP:          cfg.GenTopP,
			TopK:          cfg.GenTopK,
			StopSequences: cfg.GenStopSequences,
		}),
		usecase.QuerySettings{
			TopK:                   cfg.RAGTopK,
			ScoreThreshold:         cfg.RAGScoreThreshold,
			Template:               template,
			GenerateOnNotFound:     cfg.RAGGenerateOnNotFound,
			GenerateOnEmptyContext: cfg.RAGGenerateOnEmptyContext,
		},
	)

	return &Core{
		Config:   cfg,
		Logger:   logger,
		Storage:  storage,
		IngestUC: ingestUC,
		QueryUC:  queryUC,
	}, nil
}

// App is Core plus the run store and the ingestion queue used by the api and worker processes.
type App struct {
	*Core

	Queue     *nats.Queue
	Runs      *postgres.RunRepository
	TriggerUC *usecase.TriggerUseCase
	ProcessUC *usecase.ProcessRunUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	core, err := NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	runs := postgres.NewRunRepository(db)
	if err := runs.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: newExecutor(cfg, core.Logger),
		Logger:             core.Logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ingestion queue: %w", err)
	}

	return &App{
		Core:      core,
		Queue:     queue,
		Runs:      runs,
		TriggerUC: usecase.NewTriggerUseCase(runs, core.Storage, queue),
		ProcessUC: usecase.NewProcessRunUseCase(runs, core.IngestUC),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func promptTemplate(cfg config.Config) (string, error) {
	overrides, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return "", err
	}
	return config.ResolvePrompt(usecase.BuiltinPrompts, overrides, cfg.RAGPromptTemplate)
}

// newExecutor returns nil when resilience is disabled; adapters then call through directly.
func newExecutor(cfg config.Config, logger *slog.Logger) *resilience.Executor {
	if !cfg.ResilienceEnabled {
		return nil
	}
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.ResilienceRetryAttempts
	policy.BreakerEnabled = cfg.ResilienceBreakerEnabled
	policy.BreakerOpenTimeout = cfg.ResilienceBreakerOpenAfter
	return resilience.NewExecutor(policy, resilience.WithLogger(logger))
}

func newModels(cfg config.Config, executor *resilience.Executor) (ports.EmbeddingProvider, ports.GenerationProvider) {
	switch cfg.LLMProvider {
	case "openai":
		client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel,
			openai.WithExecutor(executor), openai.WithDimensions(cfg.EmbeddingDimension))
		return openai.NewEmbedder(client), openai.NewGenerator(client)
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
		return ollama.NewEmbedder(client), ollama.NewGenerator(client)
	}
}

func newVectorIndex(cfg config.Config, schema domain.IndexSchema) ports.VectorIndex {
	switch cfg.VectorBackend {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, schema)
	case "memory":
		return memory.New()
	default:
		var opts []opensearch.Option
		if cfg.OpenSearchUsername != "" {
			opts = append(opts, opensearch.WithBasicAuth(cfg.OpenSearchUsername, cfg.OpenSearchPassword))
		}
		return opensearch.New(cfg.OpenSearchURL, schema, opts...)
	}
}
