package inference

import (
	"errors"
	"fmt"

	"github.com/dianalab/diana/models"
)

// Sentinel errors returned by the engine. Every component-boundary failure
// is converted to one of these before reaching the caller; a raw I/O or
// runtime error never crosses the engine boundary unclassified.
var (
	// ErrModelUnavailable is returned when the encrypted primary model
	// artifact is absent. Unlike the optional gate model, this is a hard
	// failure: silently skipping the primary diagnosis would be unsafe.
	ErrModelUnavailable = errors.New("primary model unavailable")

	// ErrModelLoad is returned when decrypted model bytes cannot be loaded
	// into a runtime session.
	ErrModelLoad = errors.New("model load failed")

	// ErrInferenceRuntime is returned when the numerical runtime fails
	// during a forward pass. The request's quota is not debited.
	ErrInferenceRuntime = errors.New("inference runtime failure")
)

// GateRejection is returned when the content gate refuses an image before
// any quota or model cost is incurred. It is an expected business outcome:
// UIs present the verdict's reason, not a technical error.
type GateRejection struct {
	Verdict models.FilterVerdict
}

func (e *GateRejection) Error() string {
	return fmt.Sprintf("image rejected by content gate: %s", e.Verdict.Reason)
}
