// Package cli implements the neurovault command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

// Core services driven by the commands. Any of them may be nil when the
// matching provider is not configured; commands report that at run time.
var (
	searchService    driving.SearchService
	contextRetriever driving.ContextRetriever
	chatService      driving.ChatService
	recordService    driving.RecordService
	ingestService    driving.IngestService
	analysisService  driving.AnalysisService
	settingsService  driving.SettingsService
	summaryService   driving.SummaryService
	promptWatcher    PromptWatcher
)

// PromptWatcher reloads prompt templates when they change on disk.
type PromptWatcher interface {
	// Watch blocks until ctx is cancelled.
	Watch(ctx context.Context) error
}

// Services holds the core services the commands drive.
type Services struct {
	Search   driving.SearchService
	Context  driving.ContextRetriever
	Chat     driving.ChatService
	Records  driving.RecordService
	Ingest   driving.IngestService
	Analysis driving.AnalysisService
	Settings driving.SettingsService
	Summary  driving.SummaryService
	Prompts  PromptWatcher
}

var rootCmd = &cobra.Command{
	Use:   "neurovault",
	Short: "A personal knowledge vault with grounded answers",
	Long: `NeuroVault stores notes, images, links and documents, finds them by
meaning, and answers questions from them. Every answer is checked against
the records it was generated from.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline diagnostics to stderr")
}

// SetServices wires the core services into the commands.
func SetServices(s *Services) {
	searchService = s.Search
	contextRetriever = s.Context
	chatService = s.Chat
	recordService = s.Records
	ingestService = s.Ingest
	analysisService = s.Analysis
	settingsService = s.Settings
	summaryService = s.Summary
	promptWatcher = s.Prompts
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command. Cancelling ctx stops long-running
// commands such as serve and ask.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// watchPrompts hot-reloads prompts for the lifetime of ctx.
// Watch failures only cost hot reload, so they are logged and dropped.
func watchPrompts(ctx context.Context) {
	if promptWatcher == nil {
		return
	}
	go func() {
		if err := promptWatcher.Watch(ctx); err != nil {
			logger.Warn("Prompt hot reload disabled: %v", err)
		}
	}()
}
