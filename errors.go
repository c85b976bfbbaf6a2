package spectralseg

import (
	"errors"
	"fmt"

	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/eigen"
	"github.com/spectralseg/spectralseg/segment"
)

var (
	// ErrInputMissing is returned when a required input artifact
	// (features, eigenpairs or a region map) does not exist in the store.
	ErrInputMissing = errors.New("input artifact missing")
)

// ConfigurationError indicates an invalid option value. It is returned
// by the option validators before any per-image work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DecompositionError indicates that every eigensolver strategy failed
// for an image.
//
// The per-strategy errors can be accessed via errors.Unwrap.
type DecompositionError struct {
	K, N  int
	cause error
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("eigendecomposition failed (k=%d, n=%d): %v", e.K, e.N, e.cause)
}

func (e *DecompositionError) Unwrap() error { return e.cause }

// ShapeMismatchError indicates a label or eigenvector length that fits
// neither the patch grid nor its 2x upsampling.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ShapeMismatchError struct {
	Got            int
	HPatch, WPatch int
	cause          error
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %d values for a %dx%d patch grid", e.Got, e.HPatch, e.WPatch)
}

func (e *ShapeMismatchError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Missing-input unification.
	if errors.Is(err, artifact.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrInputMissing, err)
	}

	var de *eigen.DecompositionError
	if errors.As(err, &de) {
		return &DecompositionError{K: de.K, N: de.N, cause: err}
	}

	var sme *segment.ShapeMismatchError
	if errors.As(err, &sme) {
		return &ShapeMismatchError{Got: sme.Got, HPatch: sme.HPatch, WPatch: sme.WPatch, cause: err}
	}

	return err
}
