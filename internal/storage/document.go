package storage

import (
	"fmt"
	"regexp"

	"github.com/pixil98/go-errors"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]*$`)

// ValidatingSpec is any document payload that can validate itself.
type ValidatingSpec interface {
	Validate() error
}

// Identifier is a document key.
type Identifier string

func (id Identifier) String() string {
	return string(id)
}

// Document wraps a stored payload with its key and a format version.
type Document[T ValidatingSpec] struct {
	Version    uint       `json:"version"`
	Identifier Identifier `json:"id"`
	Spec       T          `json:"spec"`
}

func (d *Document[T]) Id() Identifier {
	return d.Identifier
}

func (d *Document[T]) Validate() error {
	el := errors.NewErrorList()

	if d.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if d.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if !identifierPattern.MatchString(d.Identifier.String()) {
		el.Add(fmt.Errorf("id contains invalid characters"))
	}

	el.Add(d.Spec.Validate())

	return el.Err()
}
