package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactUnreadable is matched by *ArtifactError.
	ErrArtifactUnreadable = errors.New("solver artifact unreadable")

	// ErrTallyNotFound is matched by *TallyNotFoundError.
	ErrTallyNotFound = errors.New("tally not found")
)

// ArtifactError reports a statepoint that could not be read or decoded.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("failed to read solver artifact %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrArtifactUnreadable) match.
func (e *ArtifactError) Is(target error) bool {
	return target == ErrArtifactUnreadable
}

// TallyNotFoundError reports a statepoint without the requested tally.
type TallyNotFoundError struct {
	Path  string
	Tally string
}

func (e *TallyNotFoundError) Error() string {
	return fmt.Sprintf("tally %q not found in %s", e.Tally, e.Path)
}

// Is makes errors.Is(err, ErrTallyNotFound) match.
func (e *TallyNotFoundError) Is(target error) bool {
	return target == ErrTallyNotFound
}
