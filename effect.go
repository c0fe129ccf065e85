package feedstore

import "errors"

// Messages of the errors a [Store] reports through [ErrorEffect].
var (
	// ErrInProgress rejects Refresh, Add and Delete while another operation is in flight.
	ErrInProgress = errors.New("In progress")

	// ErrUnknownFeed rejects selecting a feed that is not in the current state.
	ErrUnknownFeed = errors.New("Unknown feed")

	// ErrUnexpectedAction reports a Data or Error result with no operation in flight.
	ErrUnexpectedAction = errors.New("Unexpected action")

	// ErrDispatchAction is the diagnostic emitted for every dispatch when
	// dispatch tracing is enabled. It does not signal a failure.
	ErrDispatchAction = errors.New("Dispatch action")

	// ErrTaskTimeout wraps scheduled operations that exceeded the task timeout.
	ErrTaskTimeout = errors.New("operation timed out")

	// ErrStoreClosed wraps scheduled operations cut short by [Store.Close].
	ErrStoreClosed = errors.New("store closed")
)

// Effect is a one-shot notification emitted by a [Store].
//
// Effects are not part of [State]; subscribers only receive effects emitted
// after subscribing. The only variant is [ErrorEffect].
type Effect interface {
	effect()
}

// ErrorEffect reports a rejected action or a failed operation.
type ErrorEffect struct {
	Err error
}

func (ErrorEffect) effect() {}

// IsDiagnostic reports whether e is the per-dispatch trace rather than a failure.
func (e ErrorEffect) IsDiagnostic() bool {
	return errors.Is(e.Err, ErrDispatchAction)
}
