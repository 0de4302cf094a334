package clusterer

import "errors"

var (
	// ErrNoPhrases is returned when the input contains no usable phrases
	// after normalization. No pipeline stage runs.
	ErrNoPhrases = errors.New("no phrases to cluster")

	// ErrEmbeddingUnavailable is returned when the density fallback cannot
	// obtain embedding vectors. Without vectors no path can produce output.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
)

// validationError marks a malformed or incomplete AI response. Treated like a
// transient provider error for retry purposes: a retry may yield a well-formed
// response from the same model.
type validationError struct {
	reason string
}

func (e *validationError) Error() string {
	return "invalid AI response: " + e.reason
}

func invalidResponse(reason string) error {
	return &validationError{reason: reason}
}
