package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderMismatch indicates a collection was built with a different
	// embedding model or dimensionality than the one configured.
	ErrProviderMismatch = errors.New("embedding provider mismatch")

	// ErrUnsupportedFormat indicates a file extension no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrIterationLimit indicates the agent loop ran out of reasoning steps.
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrBusy indicates a session is already answering a question.
	ErrBusy = errors.New("a query is already in progress")

	// ErrExternalCall indicates an embedding or generation provider failed.
	ErrExternalCall = errors.New("external call failed")
)

// LoadError is a per-file failure during a batch load.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnsupportedFormatError is returned for files with an unrecognized extension.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: %s", e.Ext, e.Path)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// ProviderMismatchError reports which embedding space a collection is bound to.
type ProviderMismatchError struct {
	Collection  string
	StoredModel string
	StoredDim   int
	Model       string
	Dim         int
}

func (e *ProviderMismatchError) Error() string {
	return fmt.Sprintf("collection %q was built with %s (dim %d) but %s (dim %d) is configured; reset the collection before switching providers",
		e.Collection, e.StoredModel, e.StoredDim, e.Model, e.Dim)
}

func (e *ProviderMismatchError) Is(target error) bool {
	return target == ErrProviderMismatch
}

// ToolExecutionError wraps a failure inside a retrieval tool.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ExternalCallError wraps an unrecoverable provider failure for one query.
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

func (e *ExternalCallError) Is(target error) bool {
	return target == ErrExternalCall
}
