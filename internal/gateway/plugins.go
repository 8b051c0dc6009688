// ABOUTME: Handler inventory endpoints: plugin metadata, the skills views and enable/disable toggles.

package gateway

import (
	"fmt"
	"net/http"

	"github.com/2389/jarvis-gateway/internal/plugins"
)

func (g *Gateway) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.registry.ListMetadata())
}

func (g *Gateway) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	md, ok := g.registry.Get(name)
	if !ok {
		g.sendJSONError(w, r, http.StatusNotFound, fmt.Sprintf("Plugin '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (g *Gateway) handleTogglePlugin(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	enable, err := queryBool(r, "enable", true)
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	if !g.setEnabled(name, enable) {
		g.sendJSONError(w, r, http.StatusNotFound, fmt.Sprintf("Plugin '%s' not found", name))
		return
	}
	md, _ := g.registry.Get(name)
	writeJSON(w, http.StatusOK, md)
}

// skillInfo is the skills view of a handler. ID is its 1-based position in
// dispatch order.
type skillInfo struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Enabled     bool           `json:"enabled"`
	Config      map[string]any `json:"config"`
}

type skillSummary struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

type skillToggle struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Skill   string `json:"skill"`
	Enabled bool   `json:"enabled"`
}

func toSkill(i int, md plugins.Metadata) skillInfo {
	return skillInfo{
		ID:          i + 1,
		Name:        md.Name,
		Description: md.Description,
		Version:     md.Version,
		Enabled:     md.Enabled,
	}
}

func (g *Gateway) handleListSkills(w http.ResponseWriter, r *http.Request) {
	all := g.registry.ListMetadata()
	out := make([]skillInfo, 0, len(all))
	for i, md := range all {
		out = append(out, toSkill(i, md))
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleAvailableSkills(w http.ResponseWriter, r *http.Request) {
	all := g.registry.ListMetadata()
	out := make([]skillSummary, 0, len(all))
	for _, md := range all {
		out = append(out, skillSummary{Name: md.Name, Enabled: md.Enabled, Description: md.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for i, md := range g.registry.ListMetadata() {
		if md.Name == name {
			writeJSON(w, http.StatusOK, toSkill(i, md))
			return
		}
	}
	g.sendJSONError(w, r, http.StatusNotFound, fmt.Sprintf("Skill '%s' not found", name))
}

func (g *Gateway) handleToggleSkill(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	enable, err := queryBool(r, "enable", true)
	if err != nil {
		g.sendRequestError(w, r, err)
		return
	}
	if !g.setEnabled(name, enable) {
		g.sendJSONError(w, r, http.StatusNotFound, fmt.Sprintf("Skill '%s' not found", name))
		return
	}
	state := "disabled"
	if enable {
		state = "enabled"
	}
	writeJSON(w, http.StatusOK, skillToggle{
		Success: true,
		Message: fmt.Sprintf("Skill '%s' has been %s", name, state),
		Skill:   name,
		Enabled: enable,
	})
}

func (g *Gateway) setEnabled(name string, enable bool) bool {
	var ok bool
	if enable {
		ok = g.registry.Enable(name)
	} else {
		ok = g.registry.Disable(name)
	}
	if ok {
		g.logger.Info("handler toggled", "handler", name, "enabled", enable)
	}
	return ok
}
