package usecase

import "errors"

var (
	ErrNoKeywords          = errors.New("no keywords selected")
	ErrUnknownDelivery     = errors.New("unknown delivery mode")
	ErrInvalidRequest      = errors.New("invalid run request")
	ErrStoreUnavailable    = errors.New("article storage is not configured")
	ErrNotifierUnavailable = errors.New("smtp delivery is not configured")
	ErrLedgerUnavailable   = errors.New("seen ledger is not configured")
	ErrRunInProgress       = errors.New("a run is already in progress")

	// setup steps; a failure here aborts the run
	ErrSession = errors.New("unable to start browser session")
	ErrLogin   = errors.New("unable to log in")
	ErrPortal  = errors.New("unable to open portal")
)

// IsRequestError reports whether err was caused by the request rather than
// by the portal or a backend.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrNoKeywords) ||
		errors.Is(err, ErrUnknownDelivery) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrNotifierUnavailable) ||
		errors.Is(err, ErrLedgerUnavailable)
}
