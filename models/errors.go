package models

import "errors"

// Shared error kinds returned by the governance services. Handlers map these
// to HTTP status codes with errors.Is.
var (
	// Validation errors (caller-fixable)
	ErrZeroAmount         = errors.New("amount must be greater than zero")
	ErrInvalidAmount      = errors.New("amount is not a valid unsigned 256-bit integer")
	ErrInvalidRecipient   = errors.New("recipient must not be the zero address")
	ErrEmptyDescription   = errors.New("description must not be empty")
	ErrDurationOutOfRange = errors.New("voting duration out of allowed range")
	ErrNotATokenHolder    = errors.New("caller holds no voting rights tokens")
	ErrNoVotingPower      = errors.New("caller has no voting power")

	// State-conflict errors
	ErrAlreadyVoted         = errors.New("account has already voted on this proposal")
	ErrAlreadyExecuted      = errors.New("proposal has already been executed")
	ErrVotingClosed         = errors.New("voting period has ended")
	ErrVotingPeriodNotEnded = errors.New("voting period has not ended yet")
	ErrProposalDidNotPass   = errors.New("proposal did not pass")
	ErrProposalNotFound     = errors.New("proposal not found")
	ErrNotVoted             = errors.New("account has not voted on this proposal")

	// Resource errors
	ErrInsufficientBalance         = errors.New("insufficient token balance")
	ErrInsufficientTreasuryBalance = errors.New("amount exceeds treasury balance")
	ErrOverflow                    = errors.New("arithmetic overflow beyond 256 bits")

	// External-effect errors
	ErrTransferFailed = errors.New("fund transfer failed")
	ErrUnauthorized   = errors.New("caller is not authorized")

	// Budget tracker errors
	ErrUnknownCategory        = errors.New("budget category does not exist")
	ErrCategoryExists         = errors.New("budget category already exists")
	ErrCategoryMismatch       = errors.New("budget category does not match initiative category")
	ErrBudgetExceeded         = errors.New("funding would exceed budget allocation")
	ErrBudgetNotFound         = errors.New("budget not found")
	ErrBudgetInactive         = errors.New("budget is not active")
	ErrInitiativeNotFound     = errors.New("initiative not found")
	ErrInitiativeNotApproved  = errors.New("initiative has not been approved")
	ErrInitiativeFunded       = errors.New("initiative has already been funded")
	ErrApprovalExceedsRequest = errors.New("approved amount exceeds requested amount")
	ErrInvalidBudgetPeriod    = errors.New("budget end date must be after start date")
)
