package models

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// TagDefinition is one entry in the static topic catalog: a display name,
// a unique slug, and the keyword list the scorer matches against.
// The catalog is read-only at runtime.
type TagDefinition struct {
	Name        string   `json:"name" yaml:"name"`
	Slug        string   `json:"slug" yaml:"slug"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string   `json:"color,omitempty" yaml:"color,omitempty"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
}

// Validate checks a single catalog entry.
func (d TagDefinition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Slug, validation.Required),
		validation.Field(&d.Keywords, validation.Required, validation.Length(1, 0)),
	)
}
