package verify

import (
	"errors"
	"fmt"
)

// Collaborator failure kinds. All of them are recoverable: the caller falls
// back to asking for a manually supplied official document.
var (
	ErrExtraction = errors.New("text extraction failed")
	ErrFetch      = errors.New("official document fetch failed")
	ErrHash       = errors.New("file hash failed")

	// ErrOfficialUnavailable is returned when no official document could be
	// obtained for comparison.
	ErrOfficialUnavailable = errors.New("official document unavailable, provide manually")
)

// Failure ties a collaborator error to its kind and the document involved.
type Failure struct {
	Kind error
	Path string
	Err  error
}

func (f *Failure) Error() string {
	if f.Path == "" {
		return fmt.Sprintf("%v: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%v (%s): %v", f.Kind, f.Path, f.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As.
func (f *Failure) Unwrap() []error {
	return []error{f.Kind, f.Err}
}

func extractionFailure(path string, err error) error {
	return &Failure{Kind: ErrExtraction, Path: path, Err: err}
}

func hashFailure(path string, err error) error {
	return &Failure{Kind: ErrHash, Path: path, Err: err}
}

// FetchFailure wraps a resolver error as an ErrFetch failure.
func FetchFailure(url string, err error) error {
	return &Failure{Kind: ErrFetch, Path: url, Err: err}
}
