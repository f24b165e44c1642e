package domain

// EmbedStatus classifies the outcome of an embedding call.
type EmbedStatus int

const (
	// EmbedOK means a vector was produced.
	EmbedOK EmbedStatus = iota

	// EmbedEmpty means the input was empty or whitespace-only after
	// truncation. Not a fault; there is simply nothing to embed.
	EmbedEmpty

	// EmbedFailed means the call itself failed: transport error, non-2xx
	// response, or a malformed response body.
	EmbedFailed
)

// String returns a human-readable status name.
func (s EmbedStatus) String() string {
	switch s {
	case EmbedOK:
		return "ok"
	case EmbedEmpty:
		return "empty"
	case EmbedFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EmbedResult is the fail-soft outcome of an embedding call. Embedding
// failures are a first-class "no vector produced" value rather than an
// error path, so callers can always inspect the reason without an
// exception crossing the pipeline.
type EmbedResult struct {
	Status EmbedStatus `json:"status"`
	Vector []float32   `json:"vector,omitempty"`

	// Detail is a diagnostic for Empty/Failed outcomes.
	Detail string `json:"detail,omitempty"`
}

// OK reports whether a vector was produced.
func (r EmbedResult) OK() bool {
	return r.Status == EmbedOK && len(r.Vector) > 0
}

// EmbedVector wraps a successful embedding.
func EmbedVector(vec []float32) EmbedResult {
	return EmbedResult{Status: EmbedOK, Vector: vec}
}

// EmbedEmptyResult marks input that had nothing to embed.
func EmbedEmptyResult(detail string) EmbedResult {
	return EmbedResult{Status: EmbedEmpty, Detail: detail}
}

// EmbedFailure marks a failed embedding call.
func EmbedFailure(detail string) EmbedResult {
	return EmbedResult{Status: EmbedFailed, Detail: detail}
}
