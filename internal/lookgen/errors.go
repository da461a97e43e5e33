package lookgen

import (
	"errors"
	"fmt"
)

var ErrNoArtifactReturned = errors.New("no image returned by the service")

// UpstreamError wraps any transport or service failure for one style.
type UpstreamError struct {
	StyleID string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generate style %s: %v", e.StyleID, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
