package storage

import "errors"

// ErrAccountNotFound is returned when no account exists for the given id.
var ErrAccountNotFound = errors.New("account not found")

// ErrIntentNotFound is returned when no payment intent exists for the given id.
var ErrIntentNotFound = errors.New("payment intent not found")

// ErrInvalidTransition is returned when a payment intent cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid payment intent transition")

// ErrDuplicateSettlement is returned when a settlement reference is already bound to another intent.
var ErrDuplicateSettlement = errors.New("settlement reference already used by another intent")

// ErrInvalidAmount is returned for non-positive balance mutations.
var ErrInvalidAmount = errors.New("amount must be positive")
