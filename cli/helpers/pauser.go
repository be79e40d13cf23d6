package helpers

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/huh"
)

// Pauser stops between steps of a step by step run.
type Pauser struct {
	accessible bool
	in         io.Reader
	out        io.Writer
}

func NewPauser(accessible bool) *Pauser {
	return &Pauser{accessible: accessible}
}

func (p *Pauser) Pause(ctx context.Context) error {
	proceed := true
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Run the next step?").
			Affirmative("Continue").
			Negative("Stop").
			Value(&proceed),
	)).WithTheme(huh.ThemeCharm()).WithAccessible(p.accessible)
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
	if !proceed {
		return ErrAborted
	}
	return nil
}
