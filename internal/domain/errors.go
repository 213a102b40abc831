package domain

import (
	"fmt"
)

// SourceFetchError indicates a content source was unreachable or returned a
// non-2xx response.
type SourceFetchError struct {
	Source Source
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetching from %s source: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// AdLoadError indicates the ad provider failed for a given slot position.
// It marks the slot Failed and is reported via the manager's callback; it
// never surfaces as a feed-level error.
type AdLoadError struct {
	Position int
	Err      error
}

func (e *AdLoadError) Error() string {
	return fmt.Sprintf("loading ad instance for position %d: %v", e.Position, e.Err)
}

func (e *AdLoadError) Unwrap() error {
	return e.Err
}
