package query

import "fmt"

// UnknownTemplateError is returned when a run names a template the
// registry does not contain.
type UnknownTemplateError struct {
	Name string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown query template %q", e.Name)
}

// MissingBindingError is returned when a template is run without a value
// for one of its declared bindings.
type MissingBindingError struct {
	Template string
	Binding  string
}

func (e *MissingBindingError) Error() string {
	return fmt.Sprintf("template %q requires a binding for $%s", e.Template, e.Binding)
}
