// Package builtins provides the built-in capability handlers.
//
// # Handlers
//
// Listed in dispatch order (priority in parentheses):
//
//   - NewsPlugin (9): live headlines and sports news from an RSS feed, cached per topic
//   - CalendarPlugin (8): time, date, month grid, reminders, schedule
//   - SmartHomePlugin (7): simulated lights, thermostat, locks, security, scenes
//   - EmailPlugin (6): draft composition, inbox summary, draft listing
//   - SystemPlugin (5): host CPU, memory and disk report
//   - WeatherPlugin (4): canned weather report
//
// # Registration
//
// Factories returns the registration table consumed by
// plugins.Registry.DiscoverAndLoad:
//
//	registry.DiscoverAndLoad(ctx, builtins.Factories(builtins.Deps{
//		News:  cfg.News,
//		Probe: collector,
//	}))
//
// State (reminders, drafts, device state) is held in memory per handler and
// shared by every session.
package builtins
