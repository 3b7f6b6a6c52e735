package farm

import "errors"

// Validation errors. A call failing with one of these leaves the ledger untouched.
var (
	ErrUnauthorized        = errors.New("farm: caller lacks the required role")
	ErrPaused              = errors.New("farm: paused")
	ErrInvalidPool         = errors.New("farm: unknown pool")
	ErrDuplicatePool       = errors.New("farm: stake token already has a pool")
	ErrInsufficientStake   = errors.New("farm: withdraw amount exceeds stake")
	ErrFeeTooHigh          = errors.New("farm: fee above maximum")
	ErrInvalidHarvestDelay = errors.New("farm: harvest delay out of range")
	ErrZeroAddress         = errors.New("farm: zero address")
	ErrInvalidConfig       = errors.New("farm: invalid configuration")
	ErrReentrant           = errors.New("farm: reentrant call")
)
