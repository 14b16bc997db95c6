package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves search, records and streaming chat over HTTP.

Endpoints:
  GET  /api/search?q=&limit=&media_type=&start=&end=&degraded=
  GET  /api/timeline?offset=&limit=
  GET  /api/records/{id}
  POST /api/chat/stream                  {"query": "..."}
  POST /api/chat/documents/{id}/stream   {"query": "..."}
  GET  /api/summary
  POST /api/summary/refresh
  GET  /api/tasks?include_completed=
  PATCH /api/tasks/{id}/complete?completed=
  GET  /healthz

Chat endpoints answer with server-sent events: a data event per token,
then an event named verification carrying the verdict.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := httpapi.NewServer(&httpapi.Ports{
		Search:  searchService,
		Records: recordService,
		Chat:    chatService,
		Summary: summaryService,
	})
	if err != nil {
		return err
	}

	watchPrompts(cmd.Context())
	cmd.Printf("NeuroVault API listening on http://%s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
