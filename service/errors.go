package service

import "errors"

// Validation errors
var (
	ErrInvalidAmount = errors.New("amount must be a positive whole number")
	ErrInvalidSide   = errors.New("no such side in this round")
	ErrInvalidRound  = errors.New("a round needs at least two distinct, non-empty sides")
)

// Business-rule errors. None of these leave a state change behind.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyWagered    = errors.New("already wagered in this round")
	ErrIneligible        = errors.New("not eligible to wager in this round")
	ErrRoundActive       = errors.New("a round is already active")
	ErrRoundResolved     = errors.New("round already resolved")
	ErrRoundNotFound     = errors.New("round not found")
	ErrEntryClosed       = errors.New("round is no longer accepting wagers")
	ErrNoActiveRound     = errors.New("no active round matches")
	ErrUserNotFound      = errors.New("user not found")
)
