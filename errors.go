package savon

import "fmt"

// Error codes returned by the client. Callers should match on these rather
// than on message text.
const (
	ErrInitialization       = "INITIALIZATION_ERROR"
	ErrInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrMissingContract      = "MISSING_CONTRACT"
	ErrInvalidArgument      = "INVALID_ARGUMENT"
	ErrVerificationFailed   = "VERIFICATION_FAILED"
)

// Error is the standard error envelope returned by the client for its own
// precondition violations. Failures from collaborators (contract resolution,
// envelope building, transport, faults) propagate as their own types.
// It implements the error interface.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is a client *Error carrying the given code.
func IsCode(err error, code string) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// NewInitializationError returns an INITIALIZATION_ERROR for callers using
// the old calling convention of passing the WSDL location directly instead
// of a configuration value.
func NewInitializationError(got any) *Error {
	return &Error{
		Code: ErrInitialization,
		Message: fmt.Sprintf(
			"expected configuration to be *savon.Options or nil, got %T; "+
				"pass the WSDL location via WithWSDL or Options.WSDL instead",
			got,
		),
	}
}

// NewInvalidConfigurationError returns an INVALID_CONFIGURATION error.
func NewInvalidConfigurationError() *Error {
	return &Error{
		Code:    ErrInvalidConfiguration,
		Message: "expected either a WSDL document location or both an endpoint and a target namespace",
	}
}

// NewMissingContractError returns a MISSING_CONTRACT error.
func NewMissingContractError(what string) *Error {
	return &Error{
		Code:    ErrMissingContract,
		Message: fmt.Sprintf("unable to inspect the %s without a WSDL document", what),
	}
}

// NewArgumentError returns an INVALID_ARGUMENT error.
func NewArgumentError(msg string) *Error {
	return &Error{Code: ErrInvalidArgument, Message: msg}
}

// NewVerificationError returns a VERIFICATION_FAILED error wrapping the
// verifier's failure.
func NewVerificationError(cause error) *Error {
	return &Error{
		Code:    ErrVerificationFailed,
		Message: "response signature verification failed",
		Cause:   cause,
	}
}
