package helpers

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/compozy/guidebook/engine/core"
)

// Exit codes of the guidebook binary.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUnresolved = 2
	ExitCompile    = 3
	ExitAborted    = 130
)

// ErrAborted is returned when the operator stops the run.
var ErrAborted = errors.New("aborted by user")

// CliError represents a CLI-specific error with an exit code
type CliError struct {
	Code     string
	Message  string
	Details  string
	ExitCode int
	Err      error
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Details)
	}
	return e.Message
}

func (e *CliError) Unwrap() error {
	return e.Err
}

func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{Code: code, Message: message, ExitCode: ExitFailure}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// Categorize maps an engine error onto the CLI error reported to the
// operator.
func Categorize(err error) *CliError {
	if err == nil {
		return nil
	}
	var cliErr *CliError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	out := &CliError{Code: "ERROR", Message: err.Error(), ExitCode: ExitFailure, Err: err}
	switch {
	case errors.Is(err, ErrAborted):
		out.Code, out.ExitCode = "ABORTED", ExitAborted
	case core.HasCode(err, core.ErrCodeUnresolved):
		out.Code, out.ExitCode = core.ErrCodeUnresolved, ExitUnresolved
	case core.HasCode(err, core.ErrCodeCompile):
		out.Code, out.ExitCode = core.ErrCodeCompile, ExitCompile
	case core.HasCode(err, core.ErrCodePrompt):
		out.Code = core.ErrCodePrompt
	case core.HasCode(err, core.ErrCodeNoProgress):
		out.Code = core.ErrCodeNoProgress
	case core.HasCode(err, core.ErrCodeExecution):
		out.Code = core.ErrCodeExecution
	}
	return out
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return Categorize(err).ExitCode
}

// OutputError writes err to w, styled when color is enabled.
func OutputError(w io.Writer, err error, color bool) {
	if err == nil {
		return
	}
	cliErr := Categorize(err)
	message := cliErr.Error()
	if !color {
		fmt.Fprintf(w, "Error: %s\n", message)
		return
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	fmt.Fprintln(w, style.Render("✗ "+message))
}
