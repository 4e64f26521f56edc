package server

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/adamancini/entity-cleaner/internal/plugin"
)

// Registry holds everything registered through plugin.Host. It is safe for
// concurrent use; registrations may arrive while connections are served.
type Registry struct {
	mu       sync.RWMutex
	statics  map[string]string
	panels   map[string]plugin.Panel
	commands map[string]plugin.Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		statics:  make(map[string]string),
		panels:   make(map[string]plugin.Panel),
		commands: make(map[string]plugin.Command),
	}
}

var _ plugin.Host = (*Registry)(nil)

func (r *Registry) RegisterStaticPathIfAbsent(mountPath, dir string) bool {
	mountPath = "/" + strings.Trim(mountPath, "/")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.statics[mountPath]; ok {
		return false
	}
	r.statics[mountPath] = dir
	return true
}

func (r *Registry) RegisterPanelIfAbsent(panel plugin.Panel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.panels[panel.URLPath]; ok {
		return false
	}
	r.panels[panel.URLPath] = panel
	return true
}

func (r *Registry) RemovePanel(urlPath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.panels[urlPath]; !ok {
		return false
	}
	delete(r.panels, urlPath)
	return true
}

func (r *Registry) RegisterCommandIfAbsent(cmd plugin.Command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[cmd.Type]; ok {
		return false
	}
	r.commands[cmd.Type] = cmd
	return true
}

// Command looks up a registered command by message type.
func (r *Registry) Command(msgType string) (plugin.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[msgType]
	return cmd, ok
}

// CommandTypes returns the registered message types, sorted.
func (r *Registry) CommandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.commands))
	for t := range r.commands {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Panels returns the registered panels keyed by URL path. Admin-only panels
// are included only when admin is set.
func (r *Registry) Panels(admin bool) map[string]plugin.Panel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]plugin.Panel, len(r.panels))
	for path, p := range r.panels {
		if p.RequireAdmin && !admin {
			continue
		}
		out[path] = p
	}
	return out
}

// staticHandler serves files from whichever registered mount path prefixes
// the request, longest mount first.
func (r *Registry) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mount, dir, ok := r.matchStatic(req.URL.Path)
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.StripPrefix(mount, http.FileServer(http.Dir(dir))).ServeHTTP(w, req)
	})
}

func (r *Registry) matchStatic(path string) (mount, dir string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for m, d := range r.statics {
		if path != m && !strings.HasPrefix(path, m+"/") {
			continue
		}
		if len(m) > len(mount) {
			mount, dir, ok = m, d, true
		}
	}
	return mount, dir, ok
}
