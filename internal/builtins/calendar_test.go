// ABOUTME: Tests for the calendar handler with a fixed clock.

package builtins

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/jarvis-gateway/internal/plugins"
)

// Wednesday 4 March 2026, 15:07.
var calendarNow = time.Date(2026, 3, 4, 15, 7, 0, 0, time.UTC)

func newTestCalendar() *Calendar {
	return NewCalendar(func() time.Time { return calendarNow })
}

func ask(t *testing.T, h plugins.Handler, message string) string {
	t.Helper()
	ok, err := h.CanHandle(context.Background(), message)
	require.NoError(t, err)
	require.True(t, ok, "handler should accept %q", message)
	reply, err := h.Handle(context.Background(), message, plugins.HandleContext{SessionID: "test"})
	require.NoError(t, err)
	return reply
}

func TestCalendar_Replies(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"What time is it?", "The current time is 03:07 PM, Sir."},
		{"what day is it", "Today is Wednesday, March 04, 2026, Sir."},
		{"what's happening tomorrow", "Tomorrow is Thursday, March 05, 2026, Sir."},
		{"check my schedule", "Your schedule for Wednesday, March 04:\n  No appointments scheduled.\n  Your calendar is clear, Sir. Shall I add something?"},
		{"this year", "The current date and time is Wednesday, March 04, 2026 at 03:07 PM, Sir."},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, ask(t, newTestCalendar(), tt.message))
		})
	}
}

func TestCalendar_MonthGrid(t *testing.T) {
	reply := ask(t, newTestCalendar(), "show calendar")

	assert.Contains(t, reply, "Here is the calendar for March 2026:\n```\n")
	assert.Contains(t, reply, "Mo Tu We Th Fr Sa Su\n")
	assert.Contains(t, reply, "                   1\n")
	assert.Contains(t, reply, " 2  3  4  5  6  7  8\n")
	assert.Contains(t, reply, "30 31\n```")
}

func TestCalendar_Reminders(t *testing.T) {
	c := newTestCalendar()

	assert.Equal(t, "No active reminders, Sir. Say 'remind me to...' to set one.", ask(t, c, "show my reminders"))
	assert.Equal(t, `Reminder set: "call Pepper". I'll keep that noted, Sir.`, ask(t, c, "Remind me to call Pepper"))
	assert.Equal(t, `Reminder set: "check the suit tomorrow". I'll keep that noted, Sir.`, ask(t, c, "remind me to check the suit tomorrow"))
	assert.Equal(t, "Your active reminders:\n  1. call Pepper\n  2. check the suit tomorrow", ask(t, c, "list reminders"))
}

func TestCalendar_Ignores(t *testing.T) {
	ok, err := newTestCalendar().CanHandle(context.Background(), "tell me a joke")
	require.NoError(t, err)
	assert.False(t, ok)
}
