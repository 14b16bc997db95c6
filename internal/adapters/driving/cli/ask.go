package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui"
	"github.com/custodia-labs/neurovault/internal/core/domain"
)

var (
	askDocument int64
	askTopK     int
	askTUI      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the vault",
	Long: `Retrieves evidence, streams an answer grounded in it, then checks the
answer against the evidence and prints the verdict.

With --document the evidence comes from the chunks of that document only;
otherwise the whole vault is searched.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Int64VarP(&askDocument, "document", "d", 0, "answer from this document only")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of evidence snippets (0 = configured default)")
	askCmd.Flags().BoolVar(&askTUI, "tui", false, "show the answer in the terminal UI")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	req := domain.ChatRequest{Query: args[0], TopK: askTopK}
	if askDocument != 0 {
		if askDocument < 0 {
			return fmt.Errorf("%w: document id %d", domain.ErrInvalidInput, askDocument)
		}
		id := askDocument
		req.DocumentID = &id
	}

	if askTUI {
		return runAskTUI(cmd, req)
	}

	events, err := chatService.Ask(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	return printChat(cmd.OutOrStdout(), events)
}

// printChat writes tokens as they arrive, then the verdict.
// A stream that ends without a verdict was cancelled.
func printChat(w io.Writer, events <-chan domain.ChatEvent) error {
	for ev := range events {
		switch ev.Type {
		case domain.ChatEventToken:
			fmt.Fprint(w, ev.Token)
		case domain.ChatEventNoInformation:
			fmt.Fprint(w, ev.Message)
		case domain.ChatEventVerification:
			fmt.Fprintln(w)
			fmt.Fprintln(w)
			printVerdict(w, ev.Verdict)
			return nil
		}
	}
	fmt.Fprintln(w)
	return errors.New("answer cancelled before verification")
}

func printVerdict(w io.Writer, v *domain.Verdict) {
	if v == nil {
		return
	}
	if v.Valid {
		fmt.Fprintf(w, "Verified: %s\n", v.Reason)
		return
	}
	fmt.Fprintf(w, "Not verified: %s\n", v.Reason)
	if v.Correction != nil && *v.Correction != "" {
		fmt.Fprintf(w, "Correction: %s\n", *v.Correction)
	}
}

func runAskTUI(cmd *cobra.Command, req domain.ChatRequest) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("--tui needs an interactive terminal")
	}

	app, err := tui.NewApp(tuiPorts())
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	if err := app.WithContext(cmd.Context()).StartChat(req).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
