package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPoolInsufficient      = errors.New("entropy pool insufficient")
	ErrInvalidRequest        = errors.New("invalid seed request")
	ErrCollectorFailed       = errors.New("entropy collector failed")
	ErrSourceAbandoned       = errors.New("entropy source abandoned past deadline")
	ErrNoEntropy             = errors.New("entropy source produced no bytes")
	ErrRefreshInProgress     = errors.New("refresh already in progress")
	ErrRefreshBudgetExceeded = errors.New("refresh exceeded its time budget")
	ErrCredentialNotFound    = errors.New("credential not found")
	ErrCredentialExists      = errors.New("credential already exists")
)

// InsufficientError reports a take that asked for more bytes than the pool holds.
type InsufficientError struct {
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("entropy pool insufficient: requested %d bytes, %d available", e.Requested, e.Available)
}

func (e *InsufficientError) Is(target error) bool {
	return target == ErrPoolInsufficient
}
