// Package relayerr classifies the error conditions the relay and
// server packages can hit, so callers can decide disposition (retry,
// close-and-restart, respond-and-close, abort) by kind rather than by
// string matching (spec §7).
package relayerr

import "errors"

// Kind labels the disposition category an error belongs to.
type Kind uint8

const (
	// KindWouldBlock is a transient I/O condition: return to the loop
	// and wait for readiness, never an error surfaced to an operator.
	KindWouldBlock Kind = iota
	// KindConnectFailure covers connection refused/timeout establishing
	// a relay: close the relay, schedule a restart if configured.
	KindConnectFailure
	// KindUpstreamProtocol covers a non-200 response, a parse failure,
	// or oversize headers from an origin: log, close relay, schedule
	// restart.
	KindUpstreamProtocol
	// KindClientProtocol covers a malformed client request: respond
	// 400, close the connection.
	KindClientProtocol
	// KindClientOverflow marks a subscriber whose sink exceeded Qmax:
	// drop the client, log at info level, the publisher is unaffected.
	KindClientOverflow
	// KindConfig covers a rejected configuration, e.g. bad burst-size
	// syntax: refuse the config, surface the error to the operator.
	KindConfig
	// KindAuthDenial covers an auth handler rejecting a request:
	// respond 401/403, close.
	KindAuthDenial
	// KindResourceLimit covers a capacity ceiling being hit, e.g. the
	// global client limit: respond 503, close.
	KindResourceLimit
	// KindFatal covers conditions that should abort the process, e.g.
	// a listen/bind failure at startup.
	KindFatal
)

// String names the kind for logging.
func (k Kind) String() string {
	switch k {
	case KindWouldBlock:
		return "would-block"
	case KindConnectFailure:
		return "connect-failure"
	case KindUpstreamProtocol:
		return "upstream-protocol"
	case KindClientProtocol:
		return "client-protocol"
	case KindClientOverflow:
		return "client-overflow"
	case KindConfig:
		return "config"
	case KindAuthDenial:
		return "auth-denial"
	case KindResourceLimit:
		return "resource-limit"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a disposition Kind and
// freeform context, so it satisfies errors.Is/As against both the
// Kind sentinel and the wrapped cause.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Context
	}
	if e.Context == "" {
		return e.Cause.Error()
	}
	return e.Context + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a *Error of the given kind with a context message and no
// wrapped cause.
func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// Wrap creates a *Error of the given kind wrapping cause, with an
// added context message.
func Wrap(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// KindOf extracts the disposition Kind from err, walking the Unwrap
// chain. Returns KindFatal and false if err does not carry a Kind --
// callers should treat an unclassified error conservatively.
func KindOf(err error) (Kind, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return KindFatal, false
}

// Is reports whether err is a relayerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
