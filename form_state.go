package recovery

import (
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	FieldEmail = "email"
	FieldCode  = "code"
)

// ActivationCodePattern is the client-side format gate for activation codes.
var ActivationCodePattern = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)

// FormState holds the field values of a flow and the set of fields locked
// by a previous navigation step.
type FormState struct {
	fields      map[string]string
	locked      map[string]bool
	declared    map[string]bool
	initialized bool
	onChange    func(name string)
}

// NewFormState returns a form that accepts only the given field names.
func NewFormState(names ...string) *FormState {
	fs := &FormState{
		fields:   make(map[string]string, len(names)),
		locked:   map[string]bool{},
		declared: make(map[string]bool, len(names)),
	}
	for _, name := range names {
		fs.declared[name] = true
	}
	return fs
}

// Initialize sets prefilled values and locks every non-empty one. It may only
// be called once.
func (fs *FormState) Initialize(prefill map[string]string) error {
	if fs.initialized {
		return ErrAlreadyInitialized
	}
	for name := range prefill {
		if !fs.declared[name] {
			return withMeta(ErrUnknownField, map[string]any{"field": name})
		}
	}

	fs.initialized = true
	for name, value := range prefill {
		if value == "" {
			continue
		}
		fs.fields[name] = value
		fs.locked[name] = true
	}
	return nil
}

// Set updates a field from user input. Locked and undeclared fields are left
// untouched and reported as errors.
func (fs *FormState) Set(name, value string) error {
	if !fs.declared[name] {
		return withMeta(ErrUnknownField, map[string]any{"field": name})
	}
	if fs.locked[name] {
		return withMeta(ErrLockedField, map[string]any{"field": name})
	}

	fs.fields[name] = value
	if fs.onChange != nil {
		fs.onChange(name)
	}
	return nil
}

// Get returns the current value or an empty string.
func (fs *FormState) Get(name string) string {
	return fs.fields[name]
}

// IsLocked reports whether the field was prefilled.
func (fs *FormState) IsLocked(name string) bool {
	return fs.locked[name]
}

// Names returns the declared field names in a stable order.
func (fs *FormState) Names() []string {
	names := make([]string, 0, len(fs.declared))
	for name := range fs.declared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateField applies the input constraints surfaced to the presentation
// layer. Flows only enforce the subset they need before a remote call.
func ValidateField(name, value string) error {
	switch name {
	case FieldEmail:
		return validation.Validate(value, validation.Required, is.Email)
	case FieldCode:
		return ValidateActivationCode(value)
	default:
		return withMeta(ErrUnknownField, map[string]any{"field": name})
	}
}

// ValidateActivationCode checks the 16 hex character format.
func ValidateActivationCode(code string) error {
	return validation.Validate(code,
		validation.Required,
		validation.Match(ActivationCodePattern).Error("must be 16 hexadecimal characters"),
	)
}

func validateRequired(value string) error {
	return validation.Validate(value, validation.Required)
}
