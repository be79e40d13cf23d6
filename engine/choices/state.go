// Package choices holds the user's answers to guidebook choices, keyed by
// choice identity.
package choices

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"dario.cat/mergo"
	"github.com/compozy/guidebook/engine/graph"
)

// Answer is either a selected tile title or a completed form.
type Answer struct {
	Value string
	Form  map[string]string
}

func (a Answer) IsForm() bool {
	return a.Form != nil
}

// String renders the answer the way it is remembered as a suggestion:
// the tile title, or the form as a JSON object.
func (a Answer) String() string {
	if !a.IsForm() {
		return a.Value
	}
	data, err := json.Marshal(a.Form)
	if err != nil {
		return ""
	}
	return string(data)
}

// State maps choice identities to answers. It is safe for concurrent use;
// the engine is its only writer.
type State struct {
	mu      sync.RWMutex
	entries map[string]Answer
}

func New() *State {
	return &State{entries: make(map[string]Answer)}
}

// FromValues builds a state of scalar answers.
func FromValues(values map[string]string) *State {
	s := New()
	for id, value := range values {
		s.entries[id] = Answer{Value: value}
	}
	return s
}

// FromSnapshot builds a state holding copies of answers.
func FromSnapshot(answers map[string]Answer) *State {
	s := New()
	for id, a := range answers {
		if a.Form != nil {
			a.Form = maps.Clone(a.Form)
		}
		s.entries[id] = a
	}
	return s
}

// Get is safe on a nil state, which behaves as an empty one.
func (s *State) Get(id string) (Answer, bool) {
	if s == nil {
		return Answer{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[id]
	return a, ok
}

func (s *State) Contains(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Set records a scalar answer, overwriting any previous one.
func (s *State) Set(id, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Answer{Value: value}
}

// FormComplete merges form field values into the answer for id. Fields
// missing from values keep their previous value.
func (s *State) FormComplete(id string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make(map[string]string, len(values))
	if prev, ok := s.entries[id]; ok && prev.Form != nil {
		maps.Copy(merged, prev.Form)
	}
	if err := mergo.Merge(&merged, values, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge form answer for %s: %w", id, err)
	}
	s.entries[id] = Answer{Form: merged}
	return nil
}

// Record stores a, dispatching on its kind.
func (s *State) Record(id string, a Answer) error {
	if a.IsForm() {
		return s.FormComplete(id, a.Form)
	}
	s.Set(id, a.Value)
	return nil
}

func (s *State) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns the answered choice identities, sorted.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entries))
}

// Snapshot returns a deep copy of the current answers.
func (s *State) Snapshot() map[string]Answer {
	if s == nil {
		return map[string]Answer{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Answer, len(s.entries))
	for id, a := range s.entries {
		if a.Form != nil {
			a.Form = maps.Clone(a.Form)
		}
		out[id] = a
	}
	return out
}

// Valid returns the answer for c if it still makes sense for c: a form
// answer for a form, or the title of an existing tile for a selection.
func (s *State) Valid(c *graph.Choice) (Answer, bool) {
	a, ok := s.Get(c.ID)
	if !ok {
		return Answer{}, false
	}
	if c.Form {
		return a, a.IsForm()
	}
	if a.IsForm() {
		return Answer{}, false
	}
	if _, found := c.Tile(a.Value); !found {
		return Answer{}, false
	}
	return a, true
}

// MarshalJSON writes scalar answers as strings and forms as objects.
func (s *State) MarshalJSON() ([]byte, error) {
	snapshot := s.Snapshot()
	raw := make(map[string]any, len(snapshot))
	for id, a := range snapshot {
		if a.IsForm() {
			raw[id] = a.Form
		} else {
			raw[id] = a.Value
		}
	}
	return json.Marshal(raw)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode choice state: %w", err)
	}
	entries := make(map[string]Answer, len(raw))
	for id, msg := range raw {
		var value string
		if err := json.Unmarshal(msg, &value); err == nil {
			entries[id] = Answer{Value: value}
			continue
		}
		var form map[string]string
		if err := json.Unmarshal(msg, &form); err != nil {
			return fmt.Errorf("failed to decode answer for %s: %w", id, err)
		}
		if form == nil {
			form = map[string]string{}
		}
		entries[id] = Answer{Form: form}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	return nil
}
