package vectara

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// AuthError reports a failed token request. StatusCode is zero when the
// token endpoint could not be reached or answered with a malformed body.
type AuthError struct {
	StatusCode int
	Err        error
}

func newAuthError(err error) *AuthError {
	authErr := &AuthError{Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		authErr.StatusCode = retrieveErr.Response.StatusCode
	}
	return authErr
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("vectara authentication failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("vectara authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
