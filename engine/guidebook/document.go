// Package guidebook loads guidebook sources: YAML documents describing a
// tree of tasks, titled groupings and choices.
package guidebook

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/compozy/guidebook/engine/core"
)

type Document struct {
	Title       string `json:"title"              yaml:"title"              validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Requires is a semver constraint the running binary must satisfy.
	Requires string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Steps    []Step `json:"steps"              yaml:"steps"              validate:"required,min=1,dive"`

	// Source is the file the document was loaded from.
	Source string `json:"-" yaml:"-"`
}

// Step holds exactly one of its fields.
type Step struct {
	Task    *Task    `json:"task,omitempty"    yaml:"task,omitempty"`
	SubTask *SubTask `json:"subtask,omitempty" yaml:"subtask,omitempty"`
	Choice  *Choice  `json:"choice,omitempty"  yaml:"choice,omitempty"`
	Steps   []Step   `json:"steps,omitempty"   yaml:"steps,omitempty"   validate:"omitempty,dive"`
}

type Task struct {
	Body     string            `json:"body"               yaml:"body"               validate:"required"`
	Language string            `json:"language,omitempty" yaml:"language,omitempty"`
	Exec     string            `json:"exec,omitempty"     yaml:"exec,omitempty"`
	Validate string            `json:"validate,omitempty" yaml:"validate,omitempty"`
	Optional bool              `json:"optional,omitempty" yaml:"optional,omitempty"`
	Async    bool              `json:"async,omitempty"    yaml:"async,omitempty"`
	Env      map[string]string `json:"env,omitempty"      yaml:"env,omitempty"`
}

type SubTask struct {
	Title       string `json:"title"                 yaml:"title"                 validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps"                 yaml:"steps"                 validate:"required,min=1,dive"`
}

type Choice struct {
	Title       string `json:"title"                 yaml:"title"                 validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Form turns the tiles into named fields answered together.
	Form  bool   `json:"form,omitempty" yaml:"form,omitempty"`
	Tiles []Tile `json:"tiles"          yaml:"tiles"          validate:"required,min=1,dive"`
}

type Tile struct {
	Title       string `json:"title"                 yaml:"title"                 validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     string `json:"default,omitempty"     yaml:"default,omitempty"`
	Steps       []Step `json:"steps,omitempty"       yaml:"steps,omitempty"       validate:"omitempty,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateStep, Step{})
	return v
}

func validateStep(sl validator.StructLevel) {
	step, ok := sl.Current().Interface().(Step)
	if !ok {
		return
	}
	set := 0
	if step.Task != nil {
		set++
	}
	if step.SubTask != nil {
		set++
	}
	if step.Choice != nil {
		set++
	}
	if step.Steps != nil {
		set++
	}
	if set != 1 {
		sl.ReportError(step, "Step", "Step", "exactly_one_of_task_subtask_choice_steps", "")
	}
}

// Parse decodes and validates a guidebook. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.Strict()); err != nil {
		return nil, core.NewCompileError(err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, core.NewCompileError(err)
	}
	return &doc, nil
}

// Load reads and parses the guidebook at path.
func Load(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guidebook %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}
