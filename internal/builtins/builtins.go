// ABOUTME: Registration table for the built-in capability handlers.
// ABOUTME: Adding a handler means adding one factory here; dispatch never changes.

package builtins

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/jarvis-gateway/internal/config"
	"github.com/2389/jarvis-gateway/internal/plugins"
	"github.com/2389/jarvis-gateway/internal/sysinfo"
)

// Handler names as reported in metadata and plugin_used.
const (
	NameNews      = "NewsPlugin"
	NameCalendar  = "CalendarPlugin"
	NameSmartHome = "SmartHomePlugin"
	NameEmail     = "EmailPlugin"
	NameSystem    = "SystemPlugin"
	NameWeather   = "WeatherPlugin"
)

// Deps are the collaborators built-in handlers need.
type Deps struct {
	News       config.NewsConfig
	HTTPClient *http.Client
	Probe      sysinfo.Probe
	Now        func() time.Time
	Logger     *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{}
	}
	if d.Probe == nil {
		d.Probe = sysinfo.NewCollector(sysinfo.CollectorConfig{Logger: d.Logger})
	}
	return d
}

// Factories returns the static registration table for every built-in handler.
func Factories(deps Deps) []plugins.Factory {
	deps = deps.withDefaults()
	return []plugins.Factory{
		func() (plugins.Handler, error) { return NewNews(deps) },
		func() (plugins.Handler, error) { return NewCalendar(deps.Now), nil },
		func() (plugins.Handler, error) { return NewSmartHome(), nil },
		func() (plugins.Handler, error) { return NewEmail(), nil },
		func() (plugins.Handler, error) { return NewSystem(deps.Probe, deps.Now), nil },
		func() (plugins.Handler, error) { return NewWeather(), nil },
	}
}
