package tutor

import (
	"errors"
	"fmt"

	"github.com/ashureev/tutor-labs/internal/llm"
)

var (
	// ErrMessageRequired is returned for an empty or whitespace-only message.
	ErrMessageRequired = errors.New("message is required")
	// ErrTransport marks a failed call to the model (network, status, empty body).
	ErrTransport = errors.New("model transport failed")
	// ErrEmptyResponse marks a model response without the expected text.
	ErrEmptyResponse = llm.ErrEmptyResponse
	// ErrQualityRejected marks a reply that matched a known-bad pattern.
	ErrQualityRejected = errors.New("model reply rejected")
	// ErrPersistence marks a failed store write or read; fatal for the turn.
	ErrPersistence = errors.New("persistence failed")
)

// TurnError is returned when both the primary and the fallback model calls fail.
type TurnError struct {
	Primary  error
	Fallback error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("model call failed after fallback: %v", e.Fallback)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *TurnError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}
