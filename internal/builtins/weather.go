// ABOUTME: Weather handler returning a canned report.
// ABOUTME: No upstream weather service is wired.

package builtins

import (
	"context"

	"github.com/2389/jarvis-gateway/internal/plugins"
)

const weatherReport = "Currently, the weather is clear with a temperature of 72°F. Perfect conditions for flight, Sir."

var weatherVocabulary = plugins.NewVocabulary(
	"weather", "temperature", "forecast", "rain", "raining", "rainy", "sunny",
)

// Weather answers weather questions.
type Weather struct{}

// NewWeather creates a Weather handler.
func NewWeather() *Weather { return &Weather{} }

func (Weather) Info() plugins.Info {
	return plugins.Info{
		Name:        NameWeather,
		Version:     plugins.DefaultVersion,
		Description: "Get weather information for cities",
		Priority:    4,
		Commands:    []string{"what's the weather", "forecast"},
	}
}

func (Weather) CanHandle(_ context.Context, message string) (bool, error) {
	return weatherVocabulary.Matches(message), nil
}

func (Weather) Handle(context.Context, string, plugins.HandleContext) (string, error) {
	return weatherReport, nil
}
