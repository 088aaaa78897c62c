package auth

import "errors"

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidClient           = errors.New("invalid client")
	ErrInvalidGrant            = errors.New("invalid grant")
	ErrUnsupportedGrantType    = errors.New("unsupported grant type")
	ErrUnsupportedResponseType = errors.New("unsupported response type")
	ErrInvalidCredentials      = errors.New("invalid credentials")
)

// requestError is a client error with a description safe to return to the caller
type requestError struct {
	kind        error
	description string
}

func (e *requestError) Error() string {
	return e.kind.Error() + ": " + e.description
}

func (e *requestError) Unwrap() error {
	return e.kind
}

func describe(kind error, description string) error {
	return &requestError{kind: kind, description: description}
}

// Description returns the client facing description of err, empty if it has none
func Description(err error) string {
	var re *requestError
	if errors.As(err, &re) {
		return re.description
	}
	return ""
}
