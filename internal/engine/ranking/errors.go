package ranking

import "errors"

// Error taxonomy of a ranking pass. Transcript and embedding failures never
// leave the scorer; they are folded into SimilarityResult.Reason instead.
var (
	ErrMalformedResponse     = errors.New("malformed upstream response")
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
	ErrEmbeddingFailure      = errors.New("embedding failed")
	ErrNoCandidatesFound     = errors.New("no candidate videos found")
	ErrUpstreamTimeout       = errors.New("upstream search timed out")
	ErrPolicyUnselected      = errors.New("no scoring mode selected")
)
