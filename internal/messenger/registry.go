package messenger

import "sync"

// Declaration is the monitoring intent declared for a message type.
type Declaration struct {
	Description       string
	Tags              []string
	DisableMonitoring bool
	OnlyWhenNoHandler bool
}

// Registry maps message types to their declarations.
type Registry struct {
	mu    sync.RWMutex
	decls map[string]Declaration
}

func NewRegistry() *Registry {
	return &Registry{decls: make(map[string]Declaration)}
}

func (r *Registry) Register(messageType string, decl Declaration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decls[messageType] = decl
}

// Lookup is safe on a nil registry.
func (r *Registry) Lookup(messageType string) (Declaration, bool) {
	if r == nil {
		return Declaration{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	decl, ok := r.decls[messageType]
	return decl, ok
}

func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decls))
	for t := range r.decls {
		out = append(out, t)
	}
	return out
}
