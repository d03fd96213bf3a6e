// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package core

import "errors"

// Error kinds surfaced by ledger and reward operations.
// Operations wrap one of these with detail; classify with errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrConflictingState  = errors.New("conflicting state")
	ErrTooSoon           = errors.New("too soon")
	ErrAlreadyDone       = errors.New("already done")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPaymentFailure    = errors.New("payment failure")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrNotForSale        = errors.New("not for sale")
)

// Kind returns the error kind wrapped by err, or nil if err carries none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrUnauthorized,
		ErrNotFound,
		ErrInvalidState,
		ErrConflictingState,
		ErrTooSoon,
		ErrAlreadyDone,
		ErrInsufficientFunds,
		ErrPaymentFailure,
		ErrNothingToClaim,
		ErrNotForSale,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
