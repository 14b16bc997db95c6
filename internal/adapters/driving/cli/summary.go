package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

var (
	summaryRefresh bool
	summaryJSON    bool
	taskAll        bool
	taskUndo       bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise recent records and extract tasks",
	Long: `Asks the language model for a short digest of your ten most recent
records. Action items and dated events it finds are stored as records
tagged todo; list them with 'neurovault task list'.

Records the model generated itself are never summarised again, and a task
that is already open is not stored twice.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "List and complete extracted tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tasks, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [id]",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryRefresh, "refresh", false, "regenerate instead of reusing the last summary")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "output the summary as JSON")

	taskListCmd.Flags().BoolVarP(&taskAll, "all", "a", false, "include completed tasks")
	taskDoneCmd.Flags().BoolVar(&taskUndo, "undo", false, "reopen the task instead")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(taskCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	if summaryService == nil {
		return errors.New("summary service not configured")
	}

	load := summaryService.Latest
	if summaryRefresh {
		load = summaryService.Refresh
	}
	summary, err := load(cmd.Context())
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Println("Nothing to summarise yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to summarise: %w", err)
	}

	if summaryJSON {
		data, err := json.MarshalIndent(toSummaryOutput(summary), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(summary.Text)
	if len(summary.Tasks) > 0 {
		cmd.Println("\nNew tasks:")
		for _, t := range summary.Tasks {
			cmd.Printf("  #%-6d %-6s %-10s %s\n", t.RecordID, t.Priority, t.Timeline, t.Content)
		}
	}
	if len(summary.Events) > 0 {
		cmd.Println("\nNew events:")
		for _, e := range summary.Events {
			cmd.Printf("  #%-6d %s  %s (%s)\n", e.RecordID, e.At.Format("2006-01-02 15:04"), e.Title, e.Duration)
		}
	}
	return nil
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	if summaryService == nil {
		return errors.New("summary service not configured")
	}

	tasks, err := summaryService.Tasks(cmd.Context(), taskAll)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No open tasks.")
		return nil
	}

	for i := range tasks {
		t := &tasks[i]
		box := "[ ]"
		if domain.IsCompleted(t) {
			box = "[x]"
		}
		cmd.Printf("%s #%-6d %s", box, t.ID, snippet(t.Content, snippetLength))
		if labels := taskLabels(t); labels != "" {
			cmd.Printf("  (%s)", labels)
		}
		cmd.Println()
	}
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	if summaryService == nil {
		return errors.New("summary service not configured")
	}

	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}
	task, err := summaryService.CompleteTask(cmd.Context(), id, !taskUndo)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	if domain.IsCompleted(task) {
		cmd.Printf("Completed #%d %s\n", task.ID, task.Content)
	} else {
		cmd.Printf("Reopened #%d %s\n", task.ID, task.Content)
	}
	return nil
}

type taskOutput struct {
	ID       int64  `json:"id"`
	Task     string `json:"task"`
	Priority string `json:"priority"`
	Timeline string `json:"timeline"`
}

type eventOutput struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	At              string `json:"date_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type summaryOutput struct {
	Summary   string        `json:"summary"`
	Tasks     []taskOutput  `json:"tasks"`
	Events    []eventOutput `json:"events"`
	RecordIDs []int64       `json:"record_ids"`
}

func toSummaryOutput(s *domain.Summary) summaryOutput {
	out := summaryOutput{
		Summary:   s.Text,
		Tasks:     make([]taskOutput, len(s.Tasks)),
		Events:    make([]eventOutput, len(s.Events)),
		RecordIDs: s.RecordIDs,
	}
	for i, t := range s.Tasks {
		out.Tasks[i] = taskOutput{ID: t.RecordID, Task: t.Content, Priority: string(t.Priority), Timeline: string(t.Timeline)}
	}
	for i, e := range s.Events {
		out.Events[i] = eventOutput{
			ID: e.RecordID, Title: e.Title, At: e.At.Format(time.RFC3339), DurationMinutes: int(e.Duration / time.Minute),
		}
	}
	return out
}

// taskLabels lists the tags of a task other than the bookkeeping ones.
func taskLabels(r *domain.Record) string {
	labels := slices.DeleteFunc(slices.Clone(r.Tags), func(t string) bool {
		return t == domain.TagTodo || t == domain.TagDone || t == domain.TagGenerated
	})
	return strings.Join(labels, ", ")
}
