package errors

import (
	"errors"
)

var (
	ErrEmptyAuth    = errors.New("missing authorization")
	ErrEmptySubject = errors.New("missing subject")
	ErrTokenInvalid = errors.New("invalid token")

	// ErrCartNotFound covers both "no such cart" and "cart not owned by the
	// caller" so a caller cannot probe for carts it does not own.
	ErrCartNotFound        = errors.New("cart not found")
	ErrCartItemNotFound    = errors.New("cart item not found")
	ErrSessionCartNotFound = errors.New("no active cart for session")
)
