package errors

import (
	"errors"
	"net/http"
)

// MapAuthErrorToWire maps authentication errors to the Secrets Manager
// wire error codes and HTTP status codes.
func MapAuthErrorToWire(err error) (code string, message string, status int) {
	switch {
	case errors.Is(err, ErrMissingAuthHeader):
		return "MissingAuthenticationToken",
			"Request is missing Authentication Token", http.StatusForbidden
	case errors.Is(err, ErrInvalidAuthHeader),
		errors.Is(err, ErrIncompleteAuthHeader),
		errors.Is(err, ErrUnsupportedAuthVersion),
		errors.Is(err, ErrInvalidCredential):
		return "IncompleteSignature",
			"The request signature does not conform to AWS standards.", http.StatusForbidden
	case errors.Is(err, ErrInvalidAccessKey):
		return "InvalidClientTokenId",
			"The security token included in the request is invalid.", http.StatusForbidden
	case errors.Is(err, ErrSignatureMismatch):
		return "SignatureDoesNotMatch",
			"The request signature we calculated does not match the signature you provided.", http.StatusForbidden
	case errors.Is(err, ErrMissingDate), errors.Is(err, ErrInvalidDate):
		return "InvalidRequestException",
			"A date header is required for this request.", http.StatusBadRequest
	default:
		return "SignatureDoesNotMatch", "Access Denied", http.StatusForbidden
	}
}
