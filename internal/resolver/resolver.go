package resolver

import (
	"context"
	"strings"
	"sync"
)

// Source fetches column values from one logical record source. Lookup
// returns found=false for unknown columns or when no record matches; errors
// are reserved for store failures.
type Source interface {
	Lookup(ctx context.Context, column string, filters map[string]string) (string, bool, error)
}

// Registry resolves parameter values by logical source name. Sources are
// registered once at startup; resolution is read-only and uncached so values
// reflect store state at the moment of the call.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

func (r *Registry) Register(name string, source Source) {
	name = strings.TrimSpace(name)
	if name == "" || source == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = source
}

// Resolve returns the column value of the first record matching all filters.
// Unknown source names, unknown columns, and empty result sets all report
// found=false rather than an error; callers fall back to binding defaults.
//
// When filters match more than one record the first row wins. Callers that
// need determinism must supply filters precise enough to identify a unique
// record.
func (r *Registry) Resolve(ctx context.Context, table, column string, filters map[string]string) (string, bool, error) {
	r.mu.RLock()
	source, ok := r.sources[strings.TrimSpace(table)]
	r.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	return source.Lookup(ctx, column, filters)
}
