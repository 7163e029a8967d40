package repository

import "errors"

// ErrNotFound is returned when a requested resource or registration does not exist.
var ErrNotFound = errors.New("not found")

// ErrCapacityExceeded is returned when an event has no remaining seats.
var ErrCapacityExceeded = errors.New("event is full")

// ErrAlreadyApproved is returned when approving a registration twice.
var ErrAlreadyApproved = errors.New("registration already approved")

// ErrDuplicateRegistration is returned when the same user registers twice for one resource.
var ErrDuplicateRegistration = errors.New("already registered for this resource")

// ErrTransactionConflict is returned when a transaction keeps losing to
// concurrent writers after every retry.
var ErrTransactionConflict = errors.New("transaction conflict, try again")

// ErrBatchTooLarge is returned when a batched write exceeds the store's item limit.
var ErrBatchTooLarge = errors.New("batch exceeds store limit")
