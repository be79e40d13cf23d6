package guide

import (
	"encoding/json"
	"maps"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/wizard"
)

// QuestionOption is one selectable answer, or one form field with its initial
// value in Default.
type QuestionOption struct {
	Title       string
	Description string
	Default     string
	Suggested   bool
}

// Question is what the prompter shows for a pending choice.
type Question struct {
	Iteration   int
	ChoiceID    string
	Title       string
	Description string
	Form        bool
	Options     []QuestionOption
}

// Fields returns the initial form values keyed by field title.
func (q Question) Fields() map[string]string {
	out := make(map[string]string, len(q.Options))
	for _, o := range q.Options {
		out[o.Title] = o.Default
	}
	return out
}

// Answer builds the answer matching the question kind.
func (q Question) Answer(value string, form map[string]string) choices.Answer {
	if q.Form {
		return choices.Answer{Form: maps.Clone(form)}
	}
	return choices.Answer{Value: value}
}

// question builds the prompt for a choice step. The previous answer is
// floated to the top of a selection; for a form it prefills the fields.
func (g *Guide) question(step *wizard.Step, iteration int) Question {
	c := step.Choice
	q := Question{
		Iteration:   iteration,
		ChoiceID:    c.ID,
		Title:       c.Title,
		Description: c.Description,
		Form:        c.Form,
	}
	suggestion, hasSuggestion := g.memos.Suggestions.Get(c.ID)
	if c.Form {
		var prior map[string]string
		if hasSuggestion {
			if err := json.Unmarshal([]byte(suggestion), &prior); err != nil {
				prior = nil
			}
		}
		for _, tile := range c.Tiles {
			opt := QuestionOption{Title: tile.Title, Description: tile.Description, Default: tile.Default}
			if v, ok := prior[tile.Title]; ok {
				opt.Default = v
				opt.Suggested = true
			}
			q.Options = append(q.Options, opt)
		}
		return q
	}
	var rest []QuestionOption
	for _, tile := range c.Tiles {
		opt := QuestionOption{Title: tile.Title, Description: tile.Description, Default: tile.Default}
		if hasSuggestion && tile.Title == suggestion {
			opt.Suggested = true
			q.Options = append(q.Options, opt)
			continue
		}
		rest = append(rest, opt)
	}
	q.Options = append(q.Options, rest...)
	return q
}
