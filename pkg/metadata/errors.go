package metadata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMetadataNotFound is matched by *MetadataNotFoundError
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrAPIVersionMismatch is matched by *APIVersionMismatchError
	ErrAPIVersionMismatch = errors.New("api version mismatch")

	// ErrDuplicateField is returned when two fields of a type share a local name
	ErrDuplicateField = errors.New("duplicate field")

	// ErrInvalidDocument is returned when a document fails validation
	ErrInvalidDocument = errors.New("invalid metadata document")
)

// MetadataNotFoundError is returned when no source offers a compatible document
type MetadataNotFoundError struct {
	Service    string
	APIVersion string
	Available  []string
}

func (e *MetadataNotFoundError) Error() string {
	if e.APIVersion == "" {
		return fmt.Sprintf("no metadata found for service %q", e.Service)
	}
	if len(e.Available) == 0 {
		return fmt.Sprintf("no metadata found for service %q (api version %s)", e.Service, e.APIVersion)
	}
	return fmt.Sprintf("no compatible metadata for service %q (api version %s, available: %s)",
		e.Service, e.APIVersion, strings.Join(e.Available, ", "))
}

func (e *MetadataNotFoundError) Unwrap() error {
	return ErrMetadataNotFound
}

// APIVersionMismatchError is returned when a type does not accept the loaded document version
type APIVersionMismatchError struct {
	Service  string
	Type     string
	Loaded   string
	Accepted []string
}

func (e *APIVersionMismatchError) Error() string {
	return fmt.Sprintf("%s/%s requires api version %s, loaded %s",
		e.Service, e.Type, strings.Join(e.Accepted, " or "), e.Loaded)
}

func (e *APIVersionMismatchError) Unwrap() error {
	return ErrAPIVersionMismatch
}

// ValidationError describes one problem found in a loaded document
type ValidationError struct {
	Service string
	Type    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("service %s: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("service %s, type %s: %s", e.Service, e.Type, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidDocument
}

// RequireVersion checks the loaded document version against the versions a
// type definition accepts. An empty accepted list accepts every version.
func RequireVersion(desc *ServiceDescription, typeName string, accepted ...string) error {
	if len(accepted) == 0 {
		return nil
	}
	for _, v := range accepted {
		if v == desc.APIVersion {
			return nil
		}
	}
	return &APIVersionMismatchError{
		Service:  desc.Service,
		Type:     typeName,
		Loaded:   desc.APIVersion,
		Accepted: accepted,
	}
}
