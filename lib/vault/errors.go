package vault

import "errors"

var (
	ErrZeroDeposit              = errors.New("vault: deposit amounts are both zero")
	ErrIncompatibleDepositRatio = errors.New("vault: incompatible deposit ratio")
	ErrZeroShares               = errors.New("vault: zero shares")
	ErrInsufficientShares       = errors.New("vault: insufficient shares")
	ErrAccountBlockLocked       = errors.New("vault: account is block locked")
	ErrNotAuthorized            = errors.New("vault: deposit not authorized")
	ErrZeroAddress              = errors.New("vault: zero address")
	ErrNoRouter                 = errors.New("vault: no capital router set")
	ErrInvalidRatio             = errors.New("vault: invalid reserve ratio")
	ErrMissingCollaborator      = errors.New("vault: missing collaborator")
	// ErrInvariantViolation marks corrupted state or oracle data. It is never caused by user input.
	ErrInvariantViolation = errors.New("vault: invariant violation")
)
