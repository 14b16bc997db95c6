package domain

import (
	"slices"
	"strings"
	"time"
)

// Tags that mark generated follow-up records.
const (
	// TagTodo marks an open task.
	TagTodo = "todo"

	// TagDone replaces TagTodo once a task is completed.
	TagDone = "done"

	// TagEvent marks a task that happens at a known time.
	TagEvent = "event"

	// TagGenerated marks records written by the model rather than the user.
	// They are never fed back into a summary.
	TagGenerated = "ai-generated"
)

// DefaultEventDuration is used when the model gives no duration.
const DefaultEventDuration = 60 * time.Minute

// TaskPriority ranks an extracted task.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "High"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityLow    TaskPriority = "Low"
)

// TaskTimeline says when an extracted task is due.
type TaskTimeline string

const (
	TaskTimelineToday    TaskTimeline = "Today"
	TaskTimelineThisWeek TaskTimeline = "This Week"
	TaskTimelineUpcoming TaskTimeline = "Upcoming"
)

// Task is an action item found in recent records.
type Task struct {
	Content  string
	Priority TaskPriority
	Timeline TaskTimeline

	// RecordID is the stored task record, zero when it was not stored.
	RecordID int64
}

// Event is an appointment found in recent records.
type Event struct {
	Title    string
	At       time.Time
	Duration time.Duration

	// RecordID is the stored event record, zero when it was not stored.
	RecordID int64
}

// Summary is a rolling digest of the most recent records.
type Summary struct {
	Text   string
	Tasks  []Task
	Events []Event

	// RecordIDs are the records the summary was built from, newest first.
	RecordIDs []int64

	CreatedAt time.Time
}

// TaskTags returns the tags stored on a generated task record.
// Priority and timeline become lower-case, hyphenated tags.
func TaskTags(t Task) []string {
	tags := []string{TagTodo, TagGenerated}
	for _, s := range []string{string(t.Priority), string(t.Timeline)} {
		if s = tagify(s); s != "" {
			tags = append(tags, s)
		}
	}
	return NormaliseTags(tags)
}

// EventTags returns the tags stored on a generated event record.
func EventTags() []string {
	return NormaliseTags([]string{TagTodo, TagEvent, TagGenerated})
}

// IsTask reports whether r is an open or completed task.
func IsTask(r *Record) bool {
	return slices.Contains(r.Tags, TagTodo) || slices.Contains(r.Tags, TagDone)
}

// IsCompleted reports whether r is a completed task.
func IsCompleted(r *Record) bool {
	return slices.Contains(r.Tags, TagDone)
}

// IsGenerated reports whether r was written by the model.
func IsGenerated(r *Record) bool {
	return slices.Contains(r.Tags, TagGenerated)
}

// SetCompleted swaps the todo and done tags of a task.
func SetCompleted(r *Record, completed bool) {
	from, to := TagTodo, TagDone
	if !completed {
		from, to = to, from
	}
	tags := slices.DeleteFunc(slices.Clone(r.Tags), func(t string) bool { return t == from })
	r.Tags = NormaliseTags(append(tags, to))
}

func tagify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
