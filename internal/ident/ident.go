// Package ident generates and validates the prefixed identifiers used to
// cross-reference entities between modules. Every id carries the owning
// module and the entity kind (e.g. M1-REQ-<uuid>), and references coming in
// over a module boundary are validated before use.
package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Module is the identifier prefix for the brokering module.
const Module = "M1"

// Kind identifies the entity type encoded in an id.
type Kind string

const (
	KindRequirement Kind = "REQ"
	KindOffer       Kind = "OFF"
	KindCommitment  Kind = "COM"
	KindUser        Kind = "USR"
	KindMessage     Kind = "MSG"
)

// New returns a fresh id of the given kind, e.g. "M1-REQ-6ba7b810-...".
func New(kind Kind) string {
	return fmt.Sprintf("%s-%s-%s", Module, kind, uuid.NewString())
}

// Validate checks that id belongs to the given module and kind and carries a
// well-formed unique suffix. It returns a hard error on any mismatch so that
// a bad cross-reference is rejected before it reaches storage.
func Validate(id string, module string, kind Kind) error {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) != 3 {
		return fmt.Errorf("malformed id %q", id)
	}
	if parts[0] != module {
		return fmt.Errorf("id %q belongs to module %s, want %s", id, parts[0], module)
	}
	if parts[1] != string(kind) {
		return fmt.Errorf("id %q is a %s id, want %s", id, parts[1], kind)
	}
	if _, err := uuid.Parse(parts[2]); err != nil {
		return fmt.Errorf("id %q has an invalid suffix: %w", id, err)
	}
	return nil
}

// IsKind reports whether id is a valid id of the given kind in this module.
func IsKind(id string, kind Kind) bool {
	return Validate(id, Module, kind) == nil
}
