package service

import (
	"errors"
	"fmt"
)

// Wire-visible failures. Handlers map these to status codes and bodies; the
// message text is part of the API contract, so it stays exactly as clients
// expect it.
var (
	ErrInvalidCredentials = errors.New("Invalid Credentials")
	ErrEmailRequired      = errors.New("Please provide an email")
	ErrPasswordRequired   = errors.New("Please provide an password")
	ErrIncorrectEmail     = errors.New("incorrect email")
	ErrEmailOrNameTooLong = errors.New("email or name is too long")
	ErrTooManyAccounts    = errors.New("User created many accounts")
	ErrUserNotFound       = errors.New("User not found")
	ErrIncorrectPassword  = errors.New("Incorrect password")
	ErrNoSession          = errors.New("no session")

	// ErrRefreshTokenMissing and ErrRefreshTokenRejected map to bare status
	// responses with no JSON body.
	ErrRefreshTokenMissing  = errors.New("refresh token missing")
	ErrRefreshTokenRejected = errors.New("refresh token rejected")

	// ErrRecordMissing covers both license and financial-record misses; the
	// wire message is shared.
	ErrRecordMissing = errors.New("Record not found")
)

// TooManyAccountsMessage accompanies ErrTooManyAccounts on the wire.
const TooManyAccountsMessage = "Please don't create many accounts. You can delete old account and create a new one."

// AlreadyRegisteredError is returned when registration hits an existing
// email. The response echoes the email back at status 200.
type AlreadyRegisteredError struct {
	Email string
}

func (e *AlreadyRegisteredError) Error() string {
	return "user already registered"
}

// WeakPasswordError carries the specific policy violation message.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string {
	return e.Reason
}

// NotFoundError names a missing resource by kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
