package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskTags(t *testing.T) {
	tags := TaskTags(Task{Content: "Renew passport", Priority: TaskPriorityHigh, Timeline: TaskTimelineThisWeek})
	assert.Equal(t, []string{"ai-generated", "high", "this-week", "todo"}, tags)

	assert.Equal(t, []string{"ai-generated", "todo"}, TaskTags(Task{Content: "x"}))
	assert.Equal(t, []string{"ai-generated", "event", "todo"}, EventTags())
}

func TestSetCompleted(t *testing.T) {
	r := &Record{Tags: []string{"ai-generated", "todo"}}
	assert.True(t, IsTask(r))
	assert.False(t, IsCompleted(r))

	SetCompleted(r, true)
	assert.Equal(t, []string{"ai-generated", "done"}, r.Tags)
	assert.True(t, IsTask(r))
	assert.True(t, IsCompleted(r))

	SetCompleted(r, false)
	assert.Equal(t, []string{"ai-generated", "todo"}, r.Tags)
}

func TestSetCompleted_DoesNotShareBacking(t *testing.T) {
	tags := []string{"todo", "work"}
	r := &Record{Tags: tags}

	SetCompleted(r, true)

	assert.Equal(t, []string{"todo", "work"}, tags)
}

func TestIsGenerated(t *testing.T) {
	assert.True(t, IsGenerated(&Record{Tags: []string{TagGenerated}}))
	assert.False(t, IsGenerated(&Record{Tags: []string{"todo"}}))
	assert.False(t, IsTask(&Record{Tags: []string{"todos"}}))
}
