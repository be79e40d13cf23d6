// Package memo holds the two caches that outlive a compilation cycle: the
// per-task status memo and the per-choice suggestion memo.
package memo

import (
	"encoding/json"
	"maps"
	"sync"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/core"
	"github.com/compozy/guidebook/engine/graph"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultValidationCacheSize = 256

// StatusMemo maps task identity to the last observed terminal status.
type StatusMemo struct {
	mu      sync.RWMutex
	entries map[string]core.Status
}

func NewStatusMemo() *StatusMemo {
	return &StatusMemo{entries: make(map[string]core.Status)}
}

func (m *StatusMemo) Get(id string) core.Status {
	if m == nil {
		return core.StatusBlank
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[id]
}

func (m *StatusMemo) Set(id string, status core.Status) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == core.StatusBlank {
		delete(m.entries, id)
		return
	}
	m.entries[id] = status
}

func (m *StatusMemo) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *StatusMemo) Snapshot() map[string]core.Status {
	if m == nil {
		return map[string]core.Status{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries)
}

func (m *StatusMemo) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

func (m *StatusMemo) UnmarshalJSON(data []byte) error {
	entries := make(map[string]core.Status)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	return nil
}

// Suggestions maps choice identity to the answer used last time.
type Suggestions struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewSuggestions() *Suggestions {
	return &Suggestions{entries: make(map[string]string)}
}

// SuggestionsFrom seeds suggestions from a previously persisted choice state.
func SuggestionsFrom(prior *choices.State) *Suggestions {
	s := NewSuggestions()
	if prior == nil {
		return s
	}
	for id, a := range prior.Snapshot() {
		s.entries[id] = a.String()
	}
	return s
}

func (s *Suggestions) Get(choiceID string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[choiceID]
	return v, ok
}

func (s *Suggestions) Set(choiceID, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[choiceID] = answer
}

// Memos bundles the caches shared by the compiler, the optimizer, the
// wizardifier and the engine.
type Memos struct {
	StatusMemo  *StatusMemo
	Suggestions *Suggestions
	validated   *lru.Cache[string, core.Status]
}

func New(validationCacheSize int) *Memos {
	if validationCacheSize <= 0 {
		validationCacheSize = DefaultValidationCacheSize
	}
	cache, err := lru.New[string, core.Status](validationCacheSize)
	if err != nil {
		cache = nil
	}
	return &Memos{
		StatusMemo:  NewStatusMemo(),
		Suggestions: NewSuggestions(),
		validated:   cache,
	}
}

// Scratch returns memos sharing the suggestions and validation cache of m
// but writing statuses to a private copy. Dry runs plan against it so the
// persisted memo is never touched.
func (m *Memos) Scratch() *Memos {
	status := NewStatusMemo()
	for id, s := range m.StatusMemo.Snapshot() {
		status.entries[id] = s
	}
	return &Memos{StatusMemo: status, Suggestions: m.Suggestions, validated: m.validated}
}

// StatusOf returns the memoized status of t.
func (m *Memos) StatusOf(t *graph.Task) core.Status {
	if m == nil {
		return core.StatusBlank
	}
	return m.StatusMemo.Get(t.ID)
}

// Validated returns a cached successful validation of t.
func (m *Memos) Validated(t *graph.Task) bool {
	if m == nil || m.validated == nil {
		return false
	}
	status, ok := m.validated.Get(validationKey(t))
	return ok && status == core.StatusSuccess
}

// RememberValidated caches a successful validation of t for the rest of
// the run. Failures are never cached, since a preceding task may fix them.
func (m *Memos) RememberValidated(t *graph.Task) {
	if m == nil || m.validated == nil {
		return
	}
	m.validated.Add(validationKey(t), core.StatusSuccess)
}

// ForgetValidations drops every cached validation.
func (m *Memos) ForgetValidations() {
	if m == nil || m.validated == nil {
		return
	}
	m.validated.Purge()
}

func validationKey(t *graph.Task) string {
	return core.ShortHash(map[string]any{"id": t.ID, "validate": t.Validate, "env": t.Env}, 32)
}
