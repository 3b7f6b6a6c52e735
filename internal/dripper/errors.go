package dripper

import "errors"

var (
	// ErrUnauthorized is returned when a non-owner calls an owner operation.
	ErrUnauthorized = errors.New("dripper: caller is not the owner")

	// ErrScheduleInPast is returned when a rate change would take effect before now.
	ErrScheduleInPast = errors.New("dripper: rate change effective time is in the past")

	// ErrScheduleNotIncreasing is returned when a rate change is not strictly
	// later than the last scheduled one.
	ErrScheduleNotIncreasing = errors.New("dripper: rate change must be later than the last scheduled change")

	// ErrNoRecipient is returned by Drip when no recipient is configured.
	ErrNoRecipient = errors.New("dripper: recipient not set")

	// ErrDripInProgress is returned when Drip is re-entered.
	ErrDripInProgress = errors.New("dripper: drip already in progress")

	// ErrZeroAddress is returned when an address argument is unset.
	ErrZeroAddress = errors.New("dripper: zero address")
)
