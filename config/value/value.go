// Package value implements the typed configuration values. Each value points
// to a field of the configuration data and parses the string it is set from.
package value

import (
	"fmt"
	"slices"
	"strings"
)

// Value is a configuration value that can be set from an environment variable.
type Value interface {
	String() string

	// Set parses val and stores it. An error means val couldn't be parsed,
	// range checks belong into Validate.
	Set(val string) error

	Validate() error

	// IsEmpty is true for the zero value, required variables must not be empty.
	IsEmpty() bool
}

// Enum is a lower case string out of a fixed set of choices.
type Enum struct {
	p       *string
	choices []string
}

func NewEnum(p *string, val string, choices []string) *Enum {
	*p = val

	return &Enum{
		p:       p,
		choices: choices,
	}
}

func (e *Enum) Set(val string) error {
	*e.p = strings.ToLower(strings.TrimSpace(val))
	return nil
}

func (e *Enum) String() string {
	return *e.p
}

func (e *Enum) Validate() error {
	if !slices.Contains(e.choices, *e.p) {
		return fmt.Errorf("%q is not one of %s", *e.p, strings.Join(e.choices, ", "))
	}

	return nil
}

func (e *Enum) IsEmpty() bool {
	return len(*e.p) == 0
}
