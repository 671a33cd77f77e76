package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/rollkit/pkg/domain"
)

// Library implements ports.MacroLibrary in memory.
type Library struct {
	mu     sync.RWMutex
	macros map[string]domain.Macro
}

// NewLibrary creates a library holding the given macros.
func NewLibrary(macros ...domain.Macro) *Library {
	l := &Library{macros: make(map[string]domain.Macro, len(macros))}
	for _, m := range macros {
		l.macros[m.Name] = m
	}
	return l
}

// Put adds or replaces a macro.
func (l *Library) Put(m domain.Macro) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.macros[m.Name] = m
}

func (l *Library) Get(ctx context.Context, name string) (*domain.Macro, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.macros[name]
	if !ok {
		return nil, domain.ErrMacroNotFound
	}
	return &m, nil
}

func (l *Library) List(ctx context.Context) ([]domain.Macro, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Macro, 0, len(l.macros))
	for _, m := range l.macros {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
