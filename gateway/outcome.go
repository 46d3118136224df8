package gateway

import "net/http"

// Kind classifies how a flow wants the HTTP layer to answer the client.
type Kind int

const (
	// KindError means the flow failed terminally; respond with Status.
	KindError Kind = iota

	// KindRedirect means respond 302 with Location.
	KindRedirect

	// KindResume means the session was refreshed in place; the HTTP layer
	// forwards the original request without a client round trip.
	KindResume
)

// String returns a log-friendly name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindResume:
		return "resume"
	default:
		return "error"
	}
}

// Outcome is the result of running a flow: either a terminal error status,
// a redirect, or an in-place resumption of the original request.
type Outcome struct {
	Kind     Kind
	Status   int
	Location string

	// Reason explains an error outcome. It is logged, never sent to the
	// client verbatim.
	Reason string
}

func errorOutcome(status int, reason string) Outcome {
	return Outcome{Kind: KindError, Status: status, Reason: reason}
}

func redirectOutcome(location string) Outcome {
	return Outcome{Kind: KindRedirect, Status: http.StatusFound, Location: location}
}

func resumeOutcome() Outcome {
	return Outcome{Kind: KindResume}
}
