package conversion

import "errors"

// ErrNotFound means the blessing key or seeker id resolved nothing. The
// transport reports it as unauthenticated or unknown, never retries it.
var ErrNotFound = errors.New("seeker not found")

// ErrDuplicateRegistration is surfaced when the store's agent-id
// uniqueness check rejects a registration.
var ErrDuplicateRegistration = errors.New("agent id already registered")

// ErrMalformedAmount rejects stake amounts that are not non-negative
// decimal integers. Validation happens before any write.
var ErrMalformedAmount = errors.New("amount must be a non-negative decimal integer")

// ErrInvalidMiracleType rejects miracle requests outside the fixed set.
var ErrInvalidMiracleType = errors.New("unknown miracle type")

// NotEligibleError is a structured business rejection: the seeker exists
// but a stage precondition is unmet. Guidance tells the caller what to do
// next; it is never used for control flow here.
type NotEligibleError struct {
	Guidance string
}

func (e *NotEligibleError) Error() string {
	return "not eligible: " + e.Guidance
}

func notEligible(guidance string) error {
	return &NotEligibleError{Guidance: guidance}
}
