// Package api implements the Secrets Manager JSON 1.1 RPC surface:
// target dispatch, request validation and the operation handlers.
package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// Wire error codes returned in the __type field.
const (
	CodeResourceNotFound     = "ResourceNotFoundException"
	CodeResourceExists       = "ResourceExistsException"
	CodeInvalidRequest       = "InvalidRequestException"
	CodeInvalidParameter     = "InvalidParameterException"
	CodeNotImplemented       = "NotImplementedException"
	CodeInternalServiceError = "InternalServiceError"
)

// apiError is an error that maps directly onto the wire envelope.
type apiError struct {
	Code    string
	Message string
	Status  int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func resourceNotFound() *apiError {
	return &apiError{
		Code:    CodeResourceNotFound,
		Message: "Secrets Manager can't find the specified secret.",
		Status:  400,
	}
}

func resourceExists(format string, args ...any) *apiError {
	return &apiError{
		Code:    CodeResourceExists,
		Message: fmt.Sprintf(format, args...),
		Status:  400,
	}
}

func invalidRequest(format string, args ...any) *apiError {
	return &apiError{
		Code:    CodeInvalidRequest,
		Message: fmt.Sprintf(format, args...),
		Status:  400,
	}
}

func invalidParameter(format string, args ...any) *apiError {
	return &apiError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf(format, args...),
		Status:  400,
	}
}

func unknownOperation() *apiError {
	return &apiError{
		Code:    CodeNotImplemented,
		Message: "The requested operation is not supported.",
		Status:  400,
	}
}

func internalError() *apiError {
	return &apiError{
		Code:    CodeInternalServiceError,
		Message: "An error occurred on the server side.",
		Status:  400,
	}
}

// errorEnvelope is the JSON body of every error response.
type errorEnvelope struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// WriteError renders err as a Secrets Manager wire error. Unrecognized
// errors become InternalServiceError.
func WriteError(c *gin.Context, err error) {
	apiErr, ok := err.(*apiError)
	if !ok {
		apiErr = internalError()
	}
	WriteErrorCode(c, apiErr.Code, apiErr.Message, apiErr.Status)
}

// WriteErrorCode renders an explicit wire error.
func WriteErrorCode(c *gin.Context, code, message string, status int) {
	c.Header("x-amzn-errortype", code)
	c.JSON(status, errorEnvelope{Type: code, Message: message})
}

// epochSeconds renders a time as whole seconds since the Unix epoch.
func epochSeconds(t time.Time) int64 {
	return t.Unix()
}

// epochFloat renders a time as fractional seconds since the Unix epoch
// with millisecond precision.
func epochFloat(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.UnixMilli()%1000)/1000
}

func epochFloatPtr(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	f := epochFloat(*t)
	return &f
}
