package account

import "errors"

var (
	// ErrUnauthorized is returned when the backend rejects the credentials
	// or the saved token.
	ErrUnauthorized = errors.New("account unauthorized")

	// ErrNotSignedIn is returned by calls that need a valid local session
	// when none exists or the saved token has expired.
	ErrNotSignedIn = errors.New("not signed in")
)
