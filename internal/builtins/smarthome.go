// ABOUTME: Smart home handler over simulated device state: lights, thermostat, locks, security, scenes.
// ABOUTME: Single keywords match on word boundaries so "lock" never fires on "blockchain".

package builtins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/2389/jarvis-gateway/internal/plugins"
)

var (
	smartHomeVocabulary = plugins.NewVocabulary(
		"turn on", "turn off", "smart home", "security system",
		"lights", "light", "lamp", "temperature", "thermostat",
		"lock", "unlock", "door", "heat", "cool", "dim",
		"bright", "scene", "devices",
	)
	temperaturePattern = regexp.MustCompile(`(\d{2,3})`)
)

type deviceKind int

const (
	kindLight deviceKind = iota
	kindThermostat
	kindLock
	kindSecurity
	kindSpeaker
)

type device struct {
	id          string
	name        string
	kind        deviceKind
	state       string
	brightness  int
	temperature int
	mode        string
}

type scene struct {
	name        string
	description string
}

var scenes = []scene{
	{"movie", "Dim lights, close blinds, enable surround sound"},
	{"sleep", "All lights off, thermostat to 68, lock all doors"},
	{"focus", "Lab lights on, mute notifications, block calls"},
	{"party", "Color lights on, music playing, thermostat to 74"},
}

var rooms = []struct{ keyword, room string }{
	{"living", "living_room"},
	{"bedroom", "bedroom"},
	{"bed room", "bedroom"},
	{"lab", "lab"},
	{"workshop", "lab"},
}

const smartHomeHelp = "Smart home system online. Available commands:\n" +
	"  - Turn on/off lights\n" +
	"  - Set temperature to [X] degrees\n" +
	"  - Lock/unlock doors\n" +
	"  - Arm/disarm security\n" +
	"  - Activate [scene] scene"

// SmartHome controls simulated household devices.
type SmartHome struct {
	mu      sync.Mutex
	devices []*device
}

// NewSmartHome creates a SmartHome with the default device set.
func NewSmartHome() *SmartHome {
	return &SmartHome{devices: []*device{
		{id: "living_room_lights", name: "Living Room Lights", kind: kindLight, state: "off", brightness: 80},
		{id: "bedroom_lights", name: "Bedroom Lights", kind: kindLight, state: "off", brightness: 60},
		{id: "lab_lights", name: "Lab Lights", kind: kindLight, state: "on", brightness: 100},
		{id: "thermostat", name: "Thermostat", kind: kindThermostat, temperature: 72, mode: "auto"},
		{id: "front_door", name: "Front Door", kind: kindLock, state: "locked"},
		{id: "garage_door", name: "Garage Door", kind: kindLock, state: "closed"},
		{id: "security_system", name: "Security System", kind: kindSecurity, state: "armed"},
		{id: "jarvis_speakers", name: "Jarvis Speakers", kind: kindSpeaker, state: "on"},
	}}
}

func (h *SmartHome) Info() plugins.Info {
	return plugins.Info{
		Name:        NameSmartHome,
		Version:     plugins.DefaultVersion,
		Description: "Smart home device control and automation",
		Priority:    7,
		Commands: []string{
			"turn on/off lights",
			"set temperature",
			"lock/unlock doors",
			"arm/disarm security",
			"activate scene",
		},
	}
}

func (h *SmartHome) CanHandle(_ context.Context, message string) (bool, error) {
	return smartHomeVocabulary.Matches(message), nil
}

func (h *SmartHome) Handle(_ context.Context, message string, _ plugins.HandleContext) (string, error) {
	msg := strings.ToLower(message)

	h.mu.Lock()
	defer h.mu.Unlock()

	if plugins.HasAnyWord(msg, "light", "lights", "lamp") {
		if reply, ok := h.lights(msg); ok {
			return reply, nil
		}
	}

	if plugins.HasAnyWord(msg, "temperature", "thermostat", "heat", "cool", "warm") {
		t := h.device("thermostat")
		if m := temperaturePattern.FindStringSubmatch(msg); m != nil {
			t.temperature, _ = strconv.Atoi(m[1])
			return fmt.Sprintf("Thermostat set to %d degrees Fahrenheit, Sir.", t.temperature), nil
		}
		return fmt.Sprintf("Current thermostat is set to %dF in %s mode, Sir.", t.temperature, t.mode), nil
	}

	if plugins.HasAnyWord(msg, "lock", "unlock", "door") {
		switch {
		case plugins.HasWord(msg, "unlock"):
			h.device("front_door").state = "unlocked"
			return "Front door unlocked, Sir. Security remains active.", nil
		case plugins.HasWord(msg, "lock"):
			h.device("front_door").state = "locked"
			h.device("garage_door").state = "closed"
			return "All doors locked and garage secured, Sir.", nil
		}
	}

	if plugins.HasWord(msg, "security") {
		sec := h.device("security_system")
		switch {
		case plugins.HasAnyWord(msg, "arm", "enable"):
			sec.state = "armed"
			return "Security system armed. Perimeter defense active, Sir.", nil
		case plugins.HasAnyWord(msg, "disarm", "disable"):
			sec.state = "disarmed"
			return "Security system disarmed, Sir.", nil
		}
		return fmt.Sprintf("Security system is currently %s, Sir.", sec.state), nil
	}

	if plugins.HasWord(msg, "scene") {
		for _, s := range scenes {
			if strings.Contains(msg, s.name) {
				return fmt.Sprintf("Activating '%s' scene: %s. Done, Sir.", s.name, s.description), nil
			}
		}
		lines := make([]string, len(scenes))
		for i, s := range scenes {
			lines[i] = fmt.Sprintf("  - %s: %s", s.name, s.description)
		}
		return "Available scenes:\n" + strings.Join(lines, "\n") + "\n\nSay 'activate [scene] scene' to enable one.", nil
	}

	if plugins.HasAnyWord(msg, "status", "devices") {
		lines := make([]string, len(h.devices))
		for i, d := range h.devices {
			state := d.state
			if d.kind == kindThermostat {
				state = strconv.Itoa(d.temperature)
			}
			lines[i] = fmt.Sprintf("  - %s: %s", d.name, state)
		}
		return "Smart Home Status:\n" + strings.Join(lines, "\n"), nil
	}

	return smartHomeHelp, nil
}

// lights handles on, off and dim requests. It reports false when the
// message names lights without asking for any of those.
func (h *SmartHome) lights(msg string) (string, bool) {
	switch {
	case strings.Contains(msg, "turn on"):
		if d := h.device(detectRoom(msg) + "_lights"); d != nil {
			d.state = "on"
			return fmt.Sprintf("%s turned on at %d%% brightness, Sir.", d.name, d.brightness), true
		}
		h.setAllLights(func(d *device) { d.state = "on" })
		return "All lights turned on, Sir.", true

	case strings.Contains(msg, "turn off"):
		if d := h.device(detectRoom(msg) + "_lights"); d != nil {
			d.state = "off"
			return fmt.Sprintf("%s turned off, Sir.", d.name), true
		}
		h.setAllLights(func(d *device) { d.state = "off" })
		return "All lights turned off, Sir.", true

	case plugins.HasWord(msg, "dim"):
		h.setAllLights(func(d *device) {
			d.brightness = 30
			d.state = "on"
		})
		return "Lights dimmed to 30%, Sir. Setting the mood.", true
	}
	return "", false
}

func (h *SmartHome) setAllLights(fn func(*device)) {
	for _, d := range h.devices {
		if d.kind == kindLight {
			fn(d)
		}
	}
}

func (h *SmartHome) device(id string) *device {
	for _, d := range h.devices {
		if d.id == id {
			return d
		}
	}
	return nil
}

func detectRoom(msg string) string {
	for _, r := range rooms {
		if strings.Contains(msg, r.keyword) {
			return r.room
		}
	}
	return ""
}
