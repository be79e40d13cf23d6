package core

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeCompile             = "COMPILE_ERROR"
	ErrCodeUnresolved          = "UNRESOLVED_QUESTIONS"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeExecution           = "EXECUTION_ERROR"
	ErrCodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
	ErrCodeNoProgress          = "NO_PROGRESS"
	ErrCodePrompt              = "PROMPT_ERROR"
)

// Error messages
const (
	ErrMsgCompile             = "Failed to compile guidebook: %s"
	ErrMsgUnresolved          = "Unable to run this guidebook, due to %d unresolved question%s"
	ErrMsgValidation          = "Validation of task %s did not pass: %s"
	ErrMsgExecution           = "Execution of task %s failed: %s"
	ErrMsgUnsupportedLanguage = "Unable to execute body in unsupported language: %s"
	ErrMsgNoProgress          = "Tasks preceding choice %q completed, but the plan did not advance"
	ErrMsgPrompt              = "Failed to ask choice %q: %s"
)

// Error is the typed error surfaced by the guidebook engine.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err wraps an *Error with the given code, at any
// depth of nested engine errors.
func HasCode(err error, code string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

func NewCompileError(err error) *Error {
	e := NewErrorf(ErrCodeCompile, ErrMsgCompile, err.Error())
	e.Err = err
	return e
}

func NewUnresolvedError(count int) *Error {
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return NewErrorf(ErrCodeUnresolved, ErrMsgUnresolved, count, plural)
}

func NewValidationError(taskID string, err error) *Error {
	e := NewErrorf(ErrCodeValidation, ErrMsgValidation, taskID, err.Error())
	e.Err = err
	return e
}

func NewExecutionError(taskID string, err error) *Error {
	e := NewErrorf(ErrCodeExecution, ErrMsgExecution, taskID, err.Error())
	e.Err = err
	return e
}

func NewUnsupportedLanguageError(language string) *Error {
	return NewErrorf(ErrCodeUnsupportedLanguage, ErrMsgUnsupportedLanguage, language)
}

func NewNoProgressError(choice string) *Error {
	return NewErrorf(ErrCodeNoProgress, ErrMsgNoProgress, choice)
}

func NewPromptError(choice string, err error) *Error {
	e := NewErrorf(ErrCodePrompt, ErrMsgPrompt, choice, err.Error())
	e.Err = err
	return e
}
