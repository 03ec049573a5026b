package dedup

import dErrors "hudson/pkg/domain-errors"

var (
	// ErrWaitTimeout is returned to a waiter whose leading call did not
	// settle within the wait timeout. It is distinct from any error the
	// leading call itself may produce.
	ErrWaitTimeout = dErrors.New(dErrors.CodeTimeout, "timed out waiting for in-flight request")

	// ErrCanceled settles a call whose leader was canceled.
	ErrCanceled = dErrors.New(dErrors.CodeCanceled, "in-flight request was canceled")

	// ErrExpired settles a call that outlived the registry's max age.
	ErrExpired = dErrors.New(dErrors.CodeUnavailable, "in-flight request expired")

	// ErrUnkeyable means no stable key could be derived; the request must
	// be executed without deduplication.
	ErrUnkeyable = dErrors.New(dErrors.CodeInvalidInput, "request cannot be deduplicated")

	// ErrInFlight is returned by Register when a pending call already owns the key.
	ErrInFlight = dErrors.New(dErrors.CodeConflict, "request already in flight")
)
