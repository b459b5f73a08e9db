package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrPlanInactive         = errors.New("plan not found or inactive")
	ErrAlreadySubscribed    = errors.New("user already has an active subscription")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrTransactionFinalized = errors.New("transaction already finalized")
	ErrPaymentNotVerified   = errors.New("payment could not be verified")
	ErrRateLimited          = errors.New("too many requests")

	// Infra-level errors surfaced through repositories
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
