package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
the vault, read documents and ask verified questions.

By default, the server communicates over stdio using JSON-RPC.
Use --port to serve over streamable HTTP instead.

Examples:
  # Stdio mode (default, for desktop assistants)
  neurovault mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  neurovault mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "neurovault": {
        "command": "/path/to/neurovault",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Search:  searchService,
		Context: contextRetriever,
		Chat:    chatService,
		Records: recordService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	watchPrompts(cmd.Context())

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
