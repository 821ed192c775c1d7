package errors

import (
	"errors"
	"fmt"
)

// Storage errors
var (
	// Secret-related errors
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretExists   = errors.New("secret already exists")

	// Version-related errors
	ErrVersionNotFound = errors.New("secret version not found")
	ErrVersionExists   = errors.New("secret version already exists")

	// Stage label errors
	ErrStageNotAttached = errors.New("stage is not attached to the version")
	ErrStageTaken       = errors.New("stage is attached to another version")
)

// WrapStorageError wraps a storage error with operation context
func WrapStorageError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("storage %s failed: %w", operation, err)
}

// WrapSecretError wraps a secret-related error with the secret identifier
func WrapSecretError(secretID string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("secret %s: %w", secretID, err)
}

// IsNotFound checks if an error is a not found error (secret or version)
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrVersionNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrSecretExists) || errors.Is(err, ErrVersionExists)
}
