// Command neurovault is the NeuroVault command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/neurovault/internal/adapters/driven/ai"
	"github.com/custodia-labs/neurovault/internal/adapters/driven/config/file"
	"github.com/custodia-labs/neurovault/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/cli"
	"github.com/custodia-labs/neurovault/internal/core/services"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/normalisers"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := wire(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "neurovault: %v\n", err)
		return 1
	}
	defer cleanup()

	cli.SetVersion(version)
	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// wire builds the adapters and services and hands them to the CLI.
// The returned func releases everything wire opened.
func wire(ctx context.Context) (func(), error) {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	promptStore, err := file.NewPromptStore("")
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	tracer, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceVersion: version,
		OTLPEndpoint:   settings.Tracing.OTLPEndpoint,
	})
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
		tracer = nil
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}

	adapters, err := ai.Init(ctx, settings, store.VectorIndex(), promptStore)
	if err != nil {
		store.Close()
		return nil, err
	}

	recordStore := store.RecordStore()

	records := services.NewRecordService(recordStore, adapters.VectorIndex, adapters.EmbeddingService)
	records.SetEmbedTimeout(settings.Embedding.Timeout)

	search := services.NewSearchService(recordStore, adapters.VectorIndex, adapters.EmbeddingService)
	search.SetEmbedTimeout(settings.Embedding.Timeout)

	retriever := services.NewContextService(recordStore, adapters.VectorIndex, adapters.EmbeddingService)
	retriever.SetEmbedTimeout(settings.Embedding.Timeout)

	answerer := services.NewAnswerService(adapters.LLMService, promptStore)
	answerer.SetTimeout(settings.Chat.AnswerTimeout)

	verifier := services.NewVerificationService(adapters.LLMService, promptStore, settings.LLM.EffectiveVerifierModel())
	verifier.SetTimeout(settings.Chat.VerifyTimeout)

	summary := services.NewSummaryService(records, recordStore, adapters.LLMService, promptStore)
	summary.SetTimeout(settings.Chat.AnswerTimeout)

	ingest := services.NewIngestService(records, settings.Ingest, adapters.LLMService, promptStore)
	ingest.SetNormalisers(normalisers.Default())

	cli.SetServices(&cli.Services{
		Search:   search,
		Context:  retriever,
		Chat:     services.NewChatService(search, retriever, answerer, verifier),
		Records:  records,
		Ingest:   ingest,
		Analysis: services.NewAnalysisService(adapters.MediaAnalyzer, settings.Analysis),
		Settings: settingsService,
		Summary:  summary,
		Prompts:  promptStore,
	})

	return func() {
		adapters.Close()
		if err := store.Close(); err != nil {
			logger.Warn("Closing vault: %v", err)
		}
		if tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Flushing traces: %v", err)
			}
		}
	}, nil
}
