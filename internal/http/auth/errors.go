package auth

import (
	"errors"
	"net/http"

	"iam/internal/services/auth"
)

// oauthError is the wire form of a failed request
type oauthError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// toOAuthError maps service errors onto OAuth error codes. Causes of invalid grants
// and internal failures never reach the client.
func toOAuthError(err error) oauthError {
	var e oauthError
	switch {
	case errors.Is(err, auth.ErrInvalidRequest):
		e = oauthError{Status: http.StatusBadRequest, Code: "invalid_request", Description: "request is malformed"}
	case errors.Is(err, auth.ErrInvalidClient):
		e = oauthError{Status: http.StatusUnauthorized, Code: "invalid_client", Description: "client authentication failed"}
	case errors.Is(err, auth.ErrInvalidGrant):
		return oauthError{Status: http.StatusBadRequest, Code: "invalid_grant", Description: "grant is invalid, expired or revoked"}
	case errors.Is(err, auth.ErrUnsupportedGrantType):
		e = oauthError{Status: http.StatusBadRequest, Code: "unsupported_grant_type", Description: "grant type is not supported"}
	case errors.Is(err, auth.ErrUnsupportedResponseType):
		e = oauthError{Status: http.StatusBadRequest, Code: "unsupported_response_type", Description: "response type is not supported"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return oauthError{Status: http.StatusBadRequest, Code: "invalid_credentials", Description: "Invalid credentials"}
	default:
		return oauthError{Status: http.StatusInternalServerError, Code: "server_error", Description: "internal server error"}
	}

	if description := auth.Description(err); description != "" {
		e.Description = description
	}
	return e
}
