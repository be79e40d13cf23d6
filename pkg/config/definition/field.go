package definition

import (
	"reflect"
	"slices"
)

// FieldDef describes one configuration field exposed as a CLI flag.
type FieldDef struct {
	Path      string       // config path like "run.mode"
	Default   any          // default value of the flag
	CLIFlag   string       // flag name like "mode"
	Shorthand string       // single character shorthand
	EnvVar    string       // primary environment variable
	Type      reflect.Type // flag kind
	Help      string
}

type Registry struct {
	fields map[string]FieldDef
}

func NewRegistry() *Registry {
	return &Registry{fields: make(map[string]FieldDef)}
}

func (r *Registry) Register(field *FieldDef) {
	r.fields[field.Path] = *field
}

func (r *Registry) GetField(path string) (FieldDef, bool) {
	field, exists := r.fields[path]
	return field, exists
}

func (r *Registry) GetDefault(path string) any {
	if field, exists := r.fields[path]; exists {
		return field.Default
	}
	return nil
}

// Fields returns every field ordered by path.
func (r *Registry) Fields() []FieldDef {
	out := make([]FieldDef, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b FieldDef) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return out
}

// GetCLIFlagMapping maps flag names to config paths.
func (r *Registry) GetCLIFlagMapping() map[string]string {
	mapping := make(map[string]string)
	for path, field := range r.fields {
		if field.CLIFlag != "" {
			mapping[field.CLIFlag] = path
		}
	}
	return mapping
}
