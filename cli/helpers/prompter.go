package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/compozy/guidebook/engine/choices"
	"github.com/compozy/guidebook/engine/guide"
)

const (
	selectedHint = "◄ you selected this last time"
	enteredHint  = "◄ you entered this last time"
)

// Prompter asks guidebook choices with huh forms.
type Prompter struct {
	accessible bool
	in         io.Reader
	out        io.Writer
}

type PrompterOption func(*Prompter)

// WithAccessible switches to line based prompts, for screen readers and
// terminals without cursor control.
func WithAccessible(accessible bool) PrompterOption {
	return func(p *Prompter) { p.accessible = accessible }
}

func WithIO(in io.Reader, out io.Writer) PrompterOption {
	return func(p *Prompter) {
		p.in = in
		p.out = out
	}
}

func NewPrompter(opts ...PrompterOption) *Prompter {
	p := &Prompter{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Prompter) Ask(ctx context.Context, q guide.Question) (choices.Answer, error) {
	if len(q.Options) == 0 {
		return choices.Answer{}, fmt.Errorf("choice %q has no options", q.Title)
	}
	if q.Form {
		return p.askForm(ctx, q)
	}
	return p.askSelect(ctx, q)
}

func (p *Prompter) askSelect(ctx context.Context, q guide.Question) (choices.Answer, error) {
	value := q.Options[0].Title
	options := make([]huh.Option[string], 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, huh.NewOption(SelectLabel(o), o.Title))
	}
	field := huh.NewSelect[string]().
		Title(q.Title).
		Options(options...).
		Value(&value)
	field.DescriptionFunc(func() string {
		return optionDescription(q, value)
	}, &value)
	if err := p.run(ctx, field); err != nil {
		return choices.Answer{}, err
	}
	return q.Answer(value, nil), nil
}

func (p *Prompter) askForm(ctx context.Context, q guide.Question) (choices.Answer, error) {
	values := make([]string, len(q.Options))
	fields := make([]huh.Field, 0, len(q.Options)+1)
	if q.Description != "" {
		fields = append(fields, huh.NewNote().Title(q.Title).Description(q.Description))
	}
	for i, o := range q.Options {
		values[i] = o.Default
		description := o.Description
		if o.Suggested {
			description = joinHint(description, enteredHint)
		}
		fields = append(fields, huh.NewInput().
			Title(o.Title).
			Description(description).
			Value(&values[i]))
	}
	if err := p.run(ctx, fields...); err != nil {
		return choices.Answer{}, err
	}
	form := make(map[string]string, len(q.Options))
	for i, o := range q.Options {
		form[o.Title] = values[i]
	}
	return q.Answer("", form), nil
}

func (p *Prompter) run(ctx context.Context, fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(huh.ThemeCharm()).
		WithAccessible(p.accessible)
	if p.in != nil {
		form = form.WithInput(p.in)
	}
	if p.out != nil {
		form = form.WithOutput(p.out)
	}
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

// SelectLabel renders one option of a selection.
func SelectLabel(o guide.QuestionOption) string {
	if o.Suggested {
		return o.Title + "  " + selectedHint
	}
	return o.Title
}

func optionDescription(q guide.Question, selected string) string {
	for _, o := range q.Options {
		if o.Title == selected && o.Description != "" {
			return joinHint(q.Description, o.Description)
		}
	}
	return q.Description
}

func joinHint(text, hint string) string {
	if text == "" {
		return hint
	}
	return text + "\n" + hint
}
