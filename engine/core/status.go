package core

// Status is the terminal (or not yet terminal) outcome of a task, a step, or
// a choice.
type Status string

const (
	StatusBlank   Status = ""
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

func (s Status) String() string {
	if s == StatusBlank {
		return "blank"
	}
	return string(s)
}

// IsTerminal reports whether s is success or error.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// IsSuccess is shorthand for s == StatusSuccess.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}
