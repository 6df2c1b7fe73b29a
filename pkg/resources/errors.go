package resources

import (
	"errors"
	"fmt"
)

// Binding and validation errors. Each typed error below matches one of
// these with errors.Is.
var (
	// ErrMissingParameter is returned before invocation when a required parameter is absent
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrNoSuchRemoteOperation is returned when the invoker has no operation for a method
	ErrNoSuchRemoteOperation = errors.New("no such remote operation")

	// ErrNoSuchRelation is returned when a relation is not declared on a type
	ErrNoSuchRelation = errors.New("no such relation")

	// ErrFieldNotSet is returned when reading or deleting a field without a value
	ErrFieldNotSet = errors.New("field not set")

	// ErrNoResourceAttached is returned when invoking a method that was never attached to a type
	ErrNoResourceAttached = errors.New("method not attached to a type")

	// ErrAlreadyAttached is returned when attaching a method to a second type
	ErrAlreadyAttached = errors.New("method already attached")

	// ErrUnknownAttribute is returned when reading an ad hoc attribute that was never set
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrUnknownMethod is returned when calling a method a type does not declare
	ErrUnknownMethod = errors.New("unknown method")

	// ErrUnknownType is returned when a service description does not declare a type
	ErrUnknownType = errors.New("unknown type")

	// ErrWrongKind is returned when a type or method is used as the wrong kind
	ErrWrongKind = errors.New("wrong kind")
)

// MissingParameterError names the wire parameter a call lacked
type MissingParameterError struct {
	Type      string
	Method    string
	Operation string
	Param     string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s.%s: missing required parameter %s for %s",
		e.Type, e.Method, e.Param, e.Operation)
}

func (e *MissingParameterError) Unwrap() error {
	return ErrMissingParameter
}

// NoSuchRemoteOperationError reports a metadata operation the invoker does not offer
type NoSuchRemoteOperationError struct {
	Service   string
	Type      string
	Method    string
	Operation string
	Err       error
}

func (e *NoSuchRemoteOperationError) Error() string {
	return fmt.Sprintf("%s.%s: service %s has no operation %s",
		e.Type, e.Method, e.Service, e.Operation)
}

func (e *NoSuchRemoteOperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoSuchRemoteOperation}
	}
	return []error{ErrNoSuchRemoteOperation, e.Err}
}

// NoSuchRelationError names a relation that is not declared
type NoSuchRelationError struct {
	Type     string
	Relation string
}

func (e *NoSuchRelationError) Error() string {
	return fmt.Sprintf("%s has no relation %q", e.Type, e.Relation)
}

func (e *NoSuchRelationError) Unwrap() error {
	return ErrNoSuchRelation
}

// FieldNotSetError names a field without a value
type FieldNotSetError struct {
	Type  string
	Field string
}

func (e *FieldNotSetError) Error() string {
	return fmt.Sprintf("%s.%s is not set", e.Type, e.Field)
}

func (e *FieldNotSetError) Unwrap() error {
	return ErrFieldNotSet
}

// NoResourceAttachedError names an operation whose method was never attached
type NoResourceAttachedError struct {
	Operation string
}

func (e *NoResourceAttachedError) Error() string {
	return fmt.Sprintf("method for %s is not attached to a type", e.Operation)
}

func (e *NoResourceAttachedError) Unwrap() error {
	return ErrNoResourceAttached
}

// UnknownMethodError names a method a type does not declare
type UnknownMethodError struct {
	Type   string
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("%s has no method %q", e.Type, e.Method)
}

func (e *UnknownMethodError) Unwrap() error {
	return ErrUnknownMethod
}

// UnknownTypeError names a type missing from a service description
type UnknownTypeError struct {
	Service string
	Name    string
	Kind    string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("service %s declares no %s %q", e.Service, e.Kind, e.Name)
}

func (e *UnknownTypeError) Unwrap() error {
	return ErrUnknownType
}
