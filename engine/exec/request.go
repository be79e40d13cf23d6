package exec

import (
	"strings"

	"github.com/compozy/guidebook/engine/core"
)

// Request describes one code block to execute.
type Request struct {
	// TaskID identifies the task for logs and metrics; optional.
	TaskID   string
	Body     string
	Language string
	// Exec is the custom executor directive, empty for none.
	Exec string
	// Async spawns the process and returns without waiting for it.
	Async bool
	// Capture collects stdout into Result.Output instead of streaming it.
	Capture bool
	// Env overlays the dispatcher environment for this request only.
	Env map[string]string
}

// Result is what a handler reports. Handled=false means "not applicable,
// try the next handler"; any returned error counts as handled.
type Result struct {
	Handled bool
	Status  core.Status
	Output  string
}

var notApplicable = Result{}

func success(output string) Result {
	return Result{Handled: true, Status: core.StatusSuccess, Output: output}
}

func failure(output string) Result {
	return Result{Handled: true, Status: core.StatusError, Output: output}
}

// IsShellish reports whether language runs through a POSIX shell. An
// undeclared language counts as shell.
func IsShellish(language string) bool {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "shell", "sh", "bash", "zsh", "console", "shell-session":
		return true
	}
	return false
}

// IsPythonic reports whether language is Python.
func IsPythonic(language string) bool {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "python", "python3", "py":
		return true
	}
	return false
}

func singleLine(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" || strings.ContainsAny(trimmed, "\n\r;&|") {
		return "", false
	}
	return trimmed, true
}
