// Package errs provides pipeline-specific error types for better error handling
package errs

import (
	"errors"
	"fmt"
)

// NotFoundError means a mandatory input file or directory is missing.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("input not found: %s", e.Path)
}

// NewNotFoundError creates a new not-found error
func NewNotFoundError(path string) *NotFoundError {
	return &NotFoundError{Path: path}
}

// RejectedModalityError means a DICOM object is a non-image type (SR, SEG,
// RTSTRUCT, ...) and was rejected before any pixel access.
type RejectedModalityError struct {
	Path     string
	Modality string
	SOPClass string
}

func (e *RejectedModalityError) Error() string {
	if e.SOPClass != "" {
		return fmt.Sprintf("non-image DICOM rejected (Modality=%q, SOPClass=%s): %s",
			e.Modality, e.SOPClass, e.Path)
	}
	return fmt.Sprintf("non-image DICOM rejected (Modality=%q): %s", e.Modality, e.Path)
}

// NewRejectedModalityError creates a new rejected-modality error
func NewRejectedModalityError(path, modality, sopClass string) *RejectedModalityError {
	return &RejectedModalityError{Path: path, Modality: modality, SOPClass: sopClass}
}

// SchemaError means a required tabular column could not be resolved.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column not found for canonical field %q", e.Field)
}

// NewSchemaError creates a new schema error
func NewSchemaError(field string) *SchemaError {
	return &SchemaError{Field: field}
}

// ValidationError means the analysis document failed the output schema gate.
// Violations lists every violated field, not just the first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("analysis failed schema validation (%d violation(s)): %v",
		len(e.Violations), e.Violations)
}

// NewValidationError creates a new validation error
func NewValidationError(violations []string) *ValidationError {
	return &ValidationError{Violations: violations}
}

// Warning is a non-fatal computation note (unparsable lesion token,
// undecodable sampled slice, missing optional section). Warnings are
// collected and attached to the output rather than raised.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Stage, w.Message)
}

// IsFatal reports whether err belongs to the fatal error taxonomy.
func IsFatal(err error) bool {
	var nf *NotFoundError
	var rm *RejectedModalityError
	var se *SchemaError
	var ve *ValidationError
	return errors.As(err, &nf) || errors.As(err, &rm) ||
		errors.As(err, &se) || errors.As(err, &ve)
}
