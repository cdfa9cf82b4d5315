package model

import "fmt"

// CoordinateMalformedError is returned when a "group:artifact:version"
// coordinate fails to split into exactly three non-empty components.
type CoordinateMalformedError struct {
	Coordinate string
}

func (e *CoordinateMalformedError) Error() string {
	return fmt.Sprintf("malformed coordinate %q: want group:artifact:version", e.Coordinate)
}

// FocalGraphMissingError is returned when the focal artifact has no
// partial call graph in the GraphStore. It is always fatal.
type FocalGraphMissingError struct {
	PackageVersionID uint64
}

func (e *FocalGraphMissingError) Error() string {
	return fmt.Sprintf("no partial call graph for package-version %d", e.PackageVersionID)
}

// DependencyFetchFailedError wraps a per-dependency fetch failure. Under
// the skip policy the caller logs it and drops the dependency; under the
// fail policy Merge returns it.
type DependencyFetchFailedError struct {
	DependencyID uint64
	Cause        error
}

func (e *DependencyFetchFailedError) Error() string {
	return fmt.Sprintf("fetch dependency %d: %v", e.DependencyID, e.Cause)
}

func (e *DependencyFetchFailedError) Unwrap() error { return e.Cause }

// UriMalformedError wraps a per-callable URI parse failure. The callable
// is dropped from the type dictionary but the build continues.
type UriMalformedError struct {
	CallableID CallableId
	Cause      error
}

func (e *UriMalformedError) Error() string {
	return fmt.Sprintf("malformed URI for callable %d: %v", e.CallableID, e.Cause)
}

func (e *UriMalformedError) Unwrap() error { return e.Cause }

// StoreUnavailableError wraps an unrecoverable failure of an external
// store during a batched fetch. It is always fatal.
type StoreUnavailableError struct {
	Store string
	Cause error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Store, e.Cause)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Cause }

// ErrCancelled is returned when the cooperative cancellation check fires
// mid-resolution. Partial output is discarded by the caller.
var ErrCancelled = fmt.Errorf("merge cancelled")
