package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Payment reconciliation errors
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrLockNotAcquired  = errors.New("payment is being processed by another delivery")

	ErrPlanNotFound    = errors.New("plan not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrFailureNotFound = errors.New("provisioning failure not found")
)
