package source

import (
	"context"
	"sync"
	"time"

	"ledgerline/policyforge/pkg/rulebook/ast"
)

// MemorySource holds templates in memory.
type MemorySource struct {
	mu        sync.RWMutex
	templates []*ast.Template
	watchers  []chan Event
}

// NewMemorySource creates a source holding templates.
func NewMemorySource(templates ...*ast.Template) *MemorySource {
	return &MemorySource{templates: templates}
}

// LoadTemplates returns a copy of the held slice.
func (s *MemorySource) LoadTemplates(ctx context.Context) ([]*ast.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ast.Template, len(s.templates))
	copy(out, s.templates)
	return out, nil
}

// Watch returns a channel that receives an event after every SetTemplates.
func (s *MemorySource) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// SetTemplates replaces the held templates and notifies watchers.
func (s *MemorySource) SetTemplates(templates ...*ast.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = templates
	ev := Event{Op: "set", Time: time.Now()}
	for _, w := range s.watchers {
		select {
		case w <- ev:
		default:
		}
	}
}
