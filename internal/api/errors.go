package api

import (
	"errors"
	"net/http"

	"farm-ledger/internal/dripper"
	"farm-ledger/internal/farm"
	"farm-ledger/internal/storage"
	"farm-ledger/internal/token"
)

var statusTable = []struct {
	err    error
	status int
}{
	{errBadRequest, http.StatusBadRequest},
	{errNotFound, http.StatusNotFound},
	{storage.ErrNotFound, http.StatusNotFound},
	{farm.ErrUnauthorized, http.StatusForbidden},
	{dripper.ErrUnauthorized, http.StatusForbidden},
	{farm.ErrInvalidPool, http.StatusNotFound},
	{farm.ErrPaused, http.StatusConflict},
	{farm.ErrReentrant, http.StatusConflict},
	{dripper.ErrDripInProgress, http.StatusConflict},
	{farm.ErrDuplicatePool, http.StatusConflict},
	{farm.ErrInsufficientStake, http.StatusUnprocessableEntity},
	{farm.ErrFeeTooHigh, http.StatusUnprocessableEntity},
	{farm.ErrInvalidHarvestDelay, http.StatusUnprocessableEntity},
	{farm.ErrZeroAddress, http.StatusUnprocessableEntity},
	{farm.ErrInvalidConfig, http.StatusUnprocessableEntity},
	{dripper.ErrScheduleInPast, http.StatusUnprocessableEntity},
	{dripper.ErrScheduleNotIncreasing, http.StatusUnprocessableEntity},
	{dripper.ErrNoRecipient, http.StatusUnprocessableEntity},
	{dripper.ErrZeroAddress, http.StatusUnprocessableEntity},
	{token.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{token.ErrInsufficientAllowance, http.StatusUnprocessableEntity},
	{token.ErrZeroAddress, http.StatusUnprocessableEntity},
	{token.ErrTransferFailed, http.StatusBadGateway},
}

// errNotFound marks an unknown resource outside the ledgers.
var errNotFound = errors.New("not found")

func statusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}
