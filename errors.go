package main

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidPayment     = errors.New("invalid payment details")
	ErrStorage            = errors.New("storage failure")

	ErrKeyNotFound     = errors.New("key not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("price and stock must not be negative")
	ErrInvalidReview   = errors.New("rating must be between 1 and 5")
	ErrInvalidStatus   = errors.New("invalid status")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
