// Package graph defines the decision graph a guidebook compiles into: an
// immutable tree of tasks, sequences, subtasks and choices.
package graph

import (
	"encoding/json"
	"strings"
)

type Kind string

const (
	KindTask     Kind = "task"
	KindSequence Kind = "sequence"
	KindSubTask  Kind = "subtask"
	KindChoice   Kind = "choice"
)

// Graph is one node of a decision graph. Nodes are never mutated after
// construction; rewrite passes build new nodes instead.
type Graph interface {
	Kind() Kind
	// Key is the stable identity of the node, empty for anonymous sequences.
	Key() string
}

// Task is a leaf wrapping one executable code block.
type Task struct {
	ID       string            `json:"id"`
	Body     string            `json:"body"`
	Language string            `json:"language,omitempty"`
	Exec     string            `json:"exec,omitempty"`
	Validate string            `json:"validate,omitempty"`
	Optional bool              `json:"optional,omitempty"`
	Async    bool              `json:"async,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Source   string            `json:"source,omitempty"`
}

func (t *Task) Kind() Kind  { return KindTask }
func (t *Task) Key() string { return t.ID }

// Summary is the first non-empty line of the body.
func (t *Task) Summary() string {
	for _, line := range strings.Split(t.Body, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (t *Task) MarshalJSON() ([]byte, error) {
	type alias Task
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindTask, (*alias)(t)})
}

// Sequence runs its children in order. Title and Description are only set
// when a rewrite removed the grouping that used to carry them.
type Sequence struct {
	Children    []Graph `json:"children"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
}

func (s *Sequence) Kind() Kind  { return KindSequence }
func (s *Sequence) Key() string { return "" }

func (s *Sequence) MarshalJSON() ([]byte, error) {
	type alias Sequence
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindSequence, (*alias)(s)})
}

// SubTask is a titled grouping whose tasks complete as a unit.
type SubTask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Graph       Graph  `json:"graph"`
}

func (s *SubTask) Kind() Kind  { return KindSubTask }
func (s *SubTask) Key() string { return s.ID }

func (s *SubTask) MarshalJSON() ([]byte, error) {
	type alias SubTask
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindSubTask, (*alias)(s)})
}

// Tile is one option of a Choice. For form choices, Title names the field
// and Default holds its default value.
type Tile struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
	Graph       Graph  `json:"graph,omitempty"`
}

// Choice is a decision point. Its ID keys the user's answer in the choice
// state and stays stable as long as the source position does.
type Choice struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Tiles       []Tile `json:"tiles"`
	Form        bool   `json:"form,omitempty"`
}

func (c *Choice) Kind() Kind  { return KindChoice }
func (c *Choice) Key() string { return c.ID }

// Tile returns the tile with the given title.
func (c *Choice) Tile(title string) (Tile, bool) {
	for _, tile := range c.Tiles {
		if tile.Title == title {
			return tile, true
		}
	}
	return Tile{}, false
}

func (c *Choice) MarshalJSON() ([]byte, error) {
	type alias Choice
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		*alias
	}{KindChoice, (*alias)(c)})
}

func NewSequence(children ...Graph) *Sequence {
	kept := make([]Graph, 0, len(children))
	for _, child := range children {
		if child != nil {
			kept = append(kept, child)
		}
	}
	return &Sequence{Children: kept}
}

func NewSubTask(id, title string, g Graph) *SubTask {
	return &SubTask{ID: id, Title: title, Graph: g}
}

func NewChoice(id, title string, tiles ...Tile) *Choice {
	return &Choice{ID: id, Title: title, Tiles: tiles}
}

func NewForm(id, title string, fields ...Tile) *Choice {
	return &Choice{ID: id, Title: title, Tiles: fields, Form: true}
}

// Empty is the explicit "nothing to do" graph.
func Empty() *Sequence {
	return &Sequence{Children: []Graph{}}
}
