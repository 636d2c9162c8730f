package auctionerrors

import (
	"errors"
	"fmt"
)

// Lifecycle errors
var (
	ErrListingClosed = errors.New("listing is closed")
	ErrInvalidState  = errors.New("listing is not in a state that allows this operation")
	ErrPermission    = errors.New("operation permitted only for the listing creator")
)

// Bid validation errors. The specific sentinels wrap ErrValidation so callers
// can match either the broad kind or the exact rule that failed.
var (
	ErrValidation        = errors.New("invalid bid")
	ErrBidBelowCurrent   = fmt.Errorf("%w: amount must exceed the current price", ErrValidation)
	ErrBidBelowStarting  = fmt.Errorf("%w: amount must be at least the starting bid", ErrValidation)
	ErrNonPositiveAmount = fmt.Errorf("%w: amount must be positive", ErrValidation)
)

// Query errors
var (
	ErrNotFound = errors.New("listing not found")
	ErrNoWinner = errors.New("no winner for this listing")
	ErrNoBids   = errors.New("no bids recorded for this listing")
)
