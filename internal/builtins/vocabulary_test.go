// ABOUTME: Keyword predicates of the built-in handlers: whole words match, fragments inside other words do not.

package builtins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/jarvis-gateway/internal/config"
	"github.com/2389/jarvis-gateway/internal/plugins"
)

func canHandle(t *testing.T, h plugins.Handler, message string) bool {
	t.Helper()
	ok, err := h.CanHandle(context.Background(), message)
	require.NoError(t, err)
	return ok
}

func TestBuiltins_WordBoundaryPredicates(t *testing.T) {
	news, err := NewNews(Deps{
		News:   config.NewsConfig{BaseURL: "https://news.example.com/rss"},
		Probe:  stubProbe{},
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = news.OnUnload(context.Background()) })

	tests := []struct {
		name    string
		handler plugins.Handler
		accept  []string
		reject  []string
	}{
		{
			name:    "weather",
			handler: NewWeather(),
			accept:  []string{"will it rain today", "is it RAINING", "weekend forecast?", "rainy days ahead"},
			reject:  []string{"how does the brain store memories", "how do I catch a train to Paris", "ukraine history"},
		},
		{
			name:    "news",
			handler: news,
			accept:  []string{"IPL scores", "any headlines?", "football matches tonight", "what's trending", "world cup results"},
			reject:  []string{"what is 7 multiplied by 6", "a scoreboard font", "rematchable games", "renewsletter"},
		},
		{
			name:    "calendar",
			handler: NewCalendar(nil),
			accept:  []string{"what day is it", "remind me to call Pepper", "list my reminders", "any appointments tomorrow"},
			reject:  []string{"please update my resume", "sometimes I wonder", "a weekday candidate", "Monday blues"},
		},
		{
			name:    "system",
			handler: NewSystem(stubProbe{}, nil),
			accept:  []string{"system status", "are all systems go", "memory usage", "check the disk"},
			reject:  []string{"tell me about the ecosystem of coral reefs", "a healthy breakfast", "statuses of floppy diskettes"},
		},
		{
			name:    "email",
			handler: NewEmail(),
			accept:  []string{"check my email", "show my drafts", "any unread emails", "send message to Rhodey"},
			reject:  []string{"the mailman came", "a draftsman job", "composer biography"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, msg := range tt.accept {
				assert.True(t, canHandle(t, tt.handler, msg), "should accept %q", msg)
			}
			for _, msg := range tt.reject {
				assert.False(t, canHandle(t, tt.handler, msg), "should reject %q", msg)
			}
		})
	}
}

func TestDispatch_FragmentsFallThrough(t *testing.T) {
	registry := plugins.NewRegistry(quietLogger())
	registry.DiscoverAndLoad(context.Background(), Factories(Deps{
		News:   config.NewsConfig{BaseURL: "https://news.example.com/rss"},
		Probe:  stubProbe{},
		Logger: quietLogger(),
	}))
	t.Cleanup(func() { registry.Close(context.Background()) })
	d := plugins.NewDispatcher(plugins.DispatcherConfig{Registry: registry, Logger: quietLogger()})

	for _, msg := range []string{
		"how does the brain store memories",
		"how do I catch a train to Paris",
		"what is 7 multiplied by 6",
		"please update my resume",
		"tell me about the ecosystem of coral reefs",
	} {
		t.Run(msg, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), msg, plugins.HandleContext{})
			assert.ErrorIs(t, err, plugins.ErrNoMatch)
		})
	}
}

func TestExtractTopic_WholeWordsOnly(t *testing.T) {
	assert.Equal(t, "multiplied", extractTopic("multiplied news"))
	assert.Equal(t, "crickets", extractTopic("crickets news"))
	assert.Equal(t, "IPL cricket", extractTopic("ipl news"))
}
