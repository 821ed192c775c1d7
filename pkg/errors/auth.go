package errors

import (
	"errors"
	"fmt"
)

// Authentication errors
var (
	// Authorization header errors
	ErrMissingAuthHeader      = errors.New("missing authorization header")
	ErrInvalidAuthHeader      = errors.New("invalid authorization header")
	ErrIncompleteAuthHeader   = errors.New("incomplete authorization header")
	ErrUnsupportedAuthVersion = errors.New("only AWS Signature Version 4 is supported")

	// Credential errors
	ErrInvalidAccessKey  = errors.New("invalid access key")
	ErrInvalidCredential = errors.New("invalid credential scope")

	// Signature errors
	ErrSignatureMismatch = errors.New("signature mismatch")

	// Date header errors
	ErrMissingDate = errors.New("missing x-amz-date header")
	ErrInvalidDate = errors.New("invalid x-amz-date header")
)

// WrapAuthError wraps an authentication error with context
func WrapAuthError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("auth %s: %w", context, err)
}

// IsAuthenticationError checks if an error belongs to the authentication family
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrMissingAuthHeader) ||
		errors.Is(err, ErrInvalidAuthHeader) ||
		errors.Is(err, ErrIncompleteAuthHeader) ||
		errors.Is(err, ErrUnsupportedAuthVersion) ||
		errors.Is(err, ErrInvalidAccessKey) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrSignatureMismatch)
}
