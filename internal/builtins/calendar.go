// ABOUTME: Calendar handler: current time and date, month grid, reminders, schedule.
// ABOUTME: Reminders live in a handler-private list shared across sessions.

package builtins

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389/jarvis-gateway/internal/plugins"
)

const (
	longDate  = "Monday, January 02, 2006"
	clockTime = "03:04 PM"
)

var calendarVocabulary = plugins.NewVocabulary(
	"time", "date", "day", "calendar", "remind", "reminder", "reminders",
	"schedule", "today", "tomorrow", "month", "year",
	"week", "appointment", "appointments",
)

type reminder struct {
	text    string
	created time.Time
}

// Calendar answers time, date and reminder questions.
type Calendar struct {
	now func() time.Time

	mu        sync.Mutex
	reminders []reminder
}

// NewCalendar creates a Calendar reading the current time from now.
func NewCalendar(now func() time.Time) *Calendar {
	if now == nil {
		now = time.Now
	}
	return &Calendar{now: now}
}

func (c *Calendar) Info() plugins.Info {
	return plugins.Info{
		Name:        NameCalendar,
		Version:     plugins.DefaultVersion,
		Description: "Date, time, calendar, and reminder management",
		Priority:    8,
		Commands: []string{
			"what time is it",
			"what day is it",
			"what's the date",
			"set reminder",
			"show calendar",
			"schedule",
		},
	}
}

func (c *Calendar) CanHandle(_ context.Context, message string) (bool, error) {
	return calendarVocabulary.Matches(message), nil
}

func (c *Calendar) Handle(_ context.Context, message string, _ plugins.HandleContext) (string, error) {
	msg := strings.ToLower(message)
	now := c.now()

	switch {
	case strings.Contains(msg, "remind"):
		return c.reminder(message, now), nil

	case plugins.ContainsAny(msg, "what time", "current time", "time is it"):
		return fmt.Sprintf("The current time is %s, Sir.", now.Format(clockTime)), nil

	case plugins.ContainsAny(msg, "what date", "today's date", "what day", "today"):
		return fmt.Sprintf("Today is %s, Sir.", now.Format(longDate)), nil

	case strings.Contains(msg, "tomorrow"):
		return fmt.Sprintf("Tomorrow is %s, Sir.", now.AddDate(0, 0, 1).Format(longDate)), nil

	case plugins.ContainsAny(msg, "calendar", "month"):
		return fmt.Sprintf("Here is the calendar for %s:\n```\n%s```", now.Format("January 2006"), monthGrid(now)), nil

	case plugins.ContainsAny(msg, "schedule", "appointment"):
		return fmt.Sprintf("Your schedule for %s:\n"+
			"  No appointments scheduled.\n"+
			"  Your calendar is clear, Sir. Shall I add something?", now.Format("Monday, January 02")), nil
	}

	return fmt.Sprintf("The current date and time is %s at %s, Sir.", now.Format(longDate), now.Format(clockTime)), nil
}

var reminderPrefixes = []string{"remind me to", "set a reminder to", "set reminder to", "set a reminder", "set reminder"}

// reminder stores a new reminder when the message asks to set one and lists
// the existing ones otherwise.
func (c *Calendar) reminder(message string, now time.Time) string {
	lower := strings.ToLower(message)
	if len(lower) != len(message) {
		message = lower
	}
	text := ""
	setting := false
	for _, prefix := range reminderPrefixes {
		if idx := strings.Index(lower, prefix); idx >= 0 {
			setting = true
			text = strings.TrimSpace(message[:idx] + message[idx+len(prefix):])
			text = strings.TrimRight(text, ".!")
			break
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if setting && text != "" {
		c.reminders = append(c.reminders, reminder{text: text, created: now})
		return fmt.Sprintf("Reminder set: \"%s\". I'll keep that noted, Sir.", text)
	}
	if len(c.reminders) == 0 {
		return "No active reminders, Sir. Say 'remind me to...' to set one."
	}
	items := make([]string, len(c.reminders))
	for i, r := range c.reminders {
		items[i] = r.text
	}
	return "Your active reminders:\n" + numbered(items)
}

// monthGrid renders the month containing t as a Monday-first text calendar.
func monthGrid(t time.Time) string {
	const width = 20
	var b strings.Builder

	title := t.Format("January 2006")
	pad := (width - len(title)) / 2
	b.WriteString(strings.Repeat(" ", max(pad, 0)) + title + "\n")
	b.WriteString("Mo Tu We Th Fr Sa Su\n")

	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	days := first.AddDate(0, 1, -1).Day()
	offset := (int(first.Weekday()) + 6) % 7

	cells := make([]string, 0, 42)
	for range offset {
		cells = append(cells, "  ")
	}
	for d := 1; d <= days; d++ {
		cells = append(cells, fmt.Sprintf("%2d", d))
	}
	for i := 0; i < len(cells); i += 7 {
		end := min(i+7, len(cells))
		b.WriteString(strings.TrimRight(strings.Join(cells[i:end], " "), " ") + "\n")
	}
	return b.String()
}
