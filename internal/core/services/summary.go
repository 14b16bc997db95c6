package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
	"github.com/custodia-labs/neurovault/internal/prompts"
)

// Ensure SummaryService implements the interface.
var _ driving.SummaryService = (*SummaryService)(nil)

const (
	// summaryWindow is how many user records a summary covers.
	summaryWindow = 10

	// summaryScanLimit bounds the timeline page searched for user records,
	// since generated tasks share the timeline.
	summaryScanLimit = 50

	// maxTasks bounds each task listing.
	maxTasks = 200
)

// eventLayouts are tried in order when parsing an event time.
var eventLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", time.DateOnly}

type summaryTask struct {
	Task     string `json:"task" jsonschema:"the action item, phrased as an instruction"`
	Priority string `json:"priority" jsonschema:"High, Medium or Low"`
	Timeline string `json:"timeline" jsonschema:"Today, This Week or Upcoming"`
}

type summaryEvent struct {
	Title           string `json:"title" jsonschema:"what the event is"`
	DateTime        string `json:"date_time" jsonschema:"start time in RFC 3339"`
	DurationMinutes int    `json:"duration_minutes,omitempty" jsonschema:"length in minutes"`
}

// summaryResponse is the structured reply requested from the model.
type summaryResponse struct {
	Summary string         `json:"summary" jsonschema:"a short digest of the notes"`
	Tasks   []summaryTask  `json:"tasks" jsonschema:"open action items"`
	Events  []summaryEvent `json:"events" jsonschema:"dated meetings or appointments"`
}

var summarySchema = mustSchema[summaryResponse]("rolling_summary")

// SummaryService keeps a rolling summary of recent records and turns the
// tasks and events it finds into records tagged todo.
//
// The latest summary is held in memory; concurrent refreshes share one
// model call.
type SummaryService struct {
	records     driving.RecordService
	recordStore driven.RecordStore
	llm         driven.LLMService
	prompts     driven.PromptStore
	timeout     time.Duration
	now         func() time.Time

	flight singleflight.Group
	mu     sync.RWMutex
	latest *domain.Summary
}

// NewSummaryService creates a new summary service. llm may be nil, in
// which case only the task operations work.
func NewSummaryService(
	records driving.RecordService,
	recordStore driven.RecordStore,
	llm driven.LLMService,
	promptStore driven.PromptStore,
) *SummaryService {
	return &SummaryService{
		records:     records,
		recordStore: recordStore,
		llm:         llm,
		prompts:     promptStore,
		timeout:     domain.DefaultAppSettings().Chat.AnswerTimeout,
		now:         time.Now,
	}
}

// SetTimeout bounds the model call.
func (s *SummaryService) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Latest returns the most recent summary, generating one when none exists.
func (s *SummaryService) Latest(ctx context.Context) (*domain.Summary, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}
	return s.Refresh(ctx)
}

// Refresh builds a new summary from the latest records.
func (s *SummaryService) Refresh(ctx context.Context) (*domain.Summary, error) {
	v, err, shared := s.flight.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if shared {
		logger.Debug("Joined a summary refresh already in flight")
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.Summary), nil
}

func (s *SummaryService) refresh(ctx context.Context) (*domain.Summary, error) {
	logger.Section("Summary")

	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if summarySchema.err != nil {
		return nil, summarySchema.err
	}

	recent, err := s.recentRecords(ctx)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, fmt.Errorf("%w: no records to summarise", domain.ErrNotFound)
	}

	ctx, span := observability.StartSpan(ctx, "summary.refresh",
		attribute.Int("summary.records", len(recent)))
	defer span.End()

	resp, err := s.generate(ctx, recent)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	summary := &domain.Summary{
		Text:      strings.TrimSpace(resp.Summary),
		RecordIDs: make([]int64, len(recent)),
		CreatedAt: s.now().UTC(),
	}
	for i := range recent {
		summary.RecordIDs[i] = recent[i].ID
	}

	open, err := s.openTaskContents(ctx)
	if err != nil {
		// Duplicates are the only cost.
		logger.Warn("Could not list open tasks: %v", err)
	}
	summary.Tasks = s.storeTasks(ctx, resp.Tasks, open)
	summary.Events = s.storeEvents(ctx, resp.Events, open)

	span.SetAttributes(
		attribute.Int("summary.tasks", len(summary.Tasks)),
		attribute.Int("summary.events", len(summary.Events)))
	logger.Info("Summary covers %d records, found %d tasks and %d events",
		len(recent), len(summary.Tasks), len(summary.Events))

	s.mu.Lock()
	s.latest = summary
	s.mu.Unlock()
	return summary, nil
}

// recentRecords returns the newest user records, skipping generated ones.
func (s *SummaryService) recentRecords(ctx context.Context) ([]domain.Record, error) {
	page, err := s.records.Timeline(ctx, 0, summaryScanLimit)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	out := make([]domain.Record, 0, summaryWindow)
	for i := range page {
		if domain.IsGenerated(&page[i]) {
			continue
		}
		out = append(out, page[i])
		if len(out) == summaryWindow {
			break
		}
	}
	return out, nil
}

func (s *SummaryService) generate(ctx context.Context, recent []domain.Record) (summaryResponse, error) {
	var notes strings.Builder
	for i := range recent {
		r := &recent[i]
		fmt.Fprintf(&notes, "- [%s] %s\n", r.EffectiveTime().Format("2006-01-02 15:04"), r.Content)
	}

	messages := []driven.ChatMessage{
		{Role: "user", Content: fmt.Sprintf(prompts.Load(s.prompts, driven.PromptRollingSummary),
			s.now().Format("Monday, January 2, 2006"), strings.TrimRight(notes.String(), "\n"))},
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var resp summaryResponse
	err := s.llm.ChatStructured(ctx, messages, summarySchema.schema, &resp, driven.ChatOptions{Temperature: 0})
	return resp, err
}

// storeTasks saves each new task as a record. Failures are logged and the
// task is still reported, without a record ID.
func (s *SummaryService) storeTasks(ctx context.Context, found []summaryTask, open map[string]bool) []domain.Task {
	var tasks []domain.Task
	for _, ft := range found {
		content := strings.TrimSpace(ft.Task)
		if content == "" || open[taskKey(content)] {
			continue
		}
		open[taskKey(content)] = true

		task := domain.Task{
			Content:  content,
			Priority: parsePriority(ft.Priority),
			Timeline: parseTimeline(ft.Timeline),
		}
		record := &domain.Record{Content: content, MediaType: domain.MediaTypeText, Tags: domain.TaskTags(task)}
		if err := s.records.Create(ctx, record); err != nil {
			logger.Warn("Failed to store task %q: %v", content, err)
		} else {
			task.RecordID = record.ID
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// storeEvents saves each dated event as a record. Events whose time
// cannot be parsed are dropped.
func (s *SummaryService) storeEvents(ctx context.Context, found []summaryEvent, open map[string]bool) []domain.Event {
	var events []domain.Event
	for _, fe := range found {
		title := strings.TrimSpace(fe.Title)
		if title == "" || open[taskKey(title)] {
			continue
		}
		at, ok := parseEventTime(fe.DateTime)
		if !ok {
			logger.Warn("Could not parse time %q of event %q", fe.DateTime, title)
			continue
		}
		open[taskKey(title)] = true

		event := domain.Event{Title: title, At: at, Duration: domain.DefaultEventDuration}
		if fe.DurationMinutes > 0 {
			event.Duration = time.Duration(fe.DurationMinutes) * time.Minute
		}
		record := &domain.Record{Content: title, MediaType: domain.MediaTypeText, Tags: domain.EventTags(), EventAt: &at}
		if err := s.records.Create(ctx, record); err != nil {
			logger.Warn("Failed to store event %q: %v", title, err)
		} else {
			event.RecordID = record.ID
		}
		events = append(events, event)
	}
	return events
}

func (s *SummaryService) openTaskContents(ctx context.Context) (map[string]bool, error) {
	open := make(map[string]bool)
	tasks, err := s.Tasks(ctx, false)
	for i := range tasks {
		open[taskKey(tasks[i].Content)] = true
	}
	return open, err
}

// Tasks lists task records, newest first.
func (s *SummaryService) Tasks(ctx context.Context, includeCompleted bool) ([]domain.Record, error) {
	tags := []string{domain.TagTodo}
	if includeCompleted {
		tags = append(tags, domain.TagDone)
	}

	var out []domain.Record
	for _, tag := range tags {
		page, err := s.recordStore.Scan(ctx, driven.ScanFilter{
			Options:       domain.SearchOptions{Limit: maxTasks},
			ExcludeHidden: true,
			Tag:           tag,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s records: %w", tag, err)
		}
		out = append(out, page...)
	}

	slices.SortFunc(out, func(a, b domain.Record) int {
		if c := b.EffectiveTime().Compare(a.EffectiveTime()); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// CompleteTask marks a task done, or open again when completed is false.
func (s *SummaryService) CompleteTask(ctx context.Context, id int64, completed bool) (*domain.Record, error) {
	record, err := s.recordStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.IsTask(record) {
		return nil, fmt.Errorf("%w: record %d is not a task", domain.ErrInvalidInput, id)
	}
	if domain.IsCompleted(record) == completed {
		return record, nil
	}

	domain.SetCompleted(record, completed)
	if err := s.records.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	logger.Debug("Task %d completed=%t", id, completed)
	return record, nil
}

func taskKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func parsePriority(s string) domain.TaskPriority {
	for _, p := range []domain.TaskPriority{domain.TaskPriorityHigh, domain.TaskPriorityMedium, domain.TaskPriorityLow} {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p
		}
	}
	return domain.TaskPriorityMedium
}

func parseTimeline(s string) domain.TaskTimeline {
	for _, t := range []domain.TaskTimeline{domain.TaskTimelineToday, domain.TaskTimelineThisWeek, domain.TaskTimelineUpcoming} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t
		}
	}
	return domain.TaskTimelineToday
}

func parseEventTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range eventLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
