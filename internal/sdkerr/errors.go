// Package sdkerr defines the error taxonomy shared by all coordinators.
package sdkerr

import (
	"errors"
	"fmt"
)

// Kind classifies an orchestration error. Identity Service status codes are
// mapped into kinds at the coordinator boundary; everything unmapped is
// KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotInitialized
	KindUnknownUser
	KindUnknownAuthenticator
	KindRequiresAuthentication
	KindStatelessNotSupported
	KindPolicyViolation
	KindAccountDeregistered
	KindRegistrationCancelled
	KindOTPBusyOrInvalid
	KindPinMismatch
)

// String returns a short machine-friendly name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotInitialized:
		return "not_initialized"
	case KindUnknownUser:
		return "unknown_user"
	case KindUnknownAuthenticator:
		return "unknown_authenticator"
	case KindRequiresAuthentication:
		return "requires_authentication"
	case KindStatelessNotSupported:
		return "stateless_not_supported"
	case KindPolicyViolation:
		return "policy_violation"
	case KindAccountDeregistered:
		return "account_deregistered"
	case KindRegistrationCancelled:
		return "registration_cancelled"
	case KindOTPBusyOrInvalid:
		return "otp_busy_or_invalid"
	case KindPinMismatch:
		return "pin_mismatch"
	default:
		return "unknown"
	}
}

// Error carries a kind, an optional backend status code, and an optional
// wrapped cause.
type Error struct {
	Kind Kind
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind with a user-facing message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Backend status codes known to this orchestrator. The Identity Service
// reports failures as numeric codes; only the ones listed here get a
// dedicated kind.
const (
	CodeActionCancelled     = 9001
	CodeStatelessNotAllowed = 9002
	CodeUserDeregistered    = 9003
	CodePinPolicyViolation  = 9004
	CodeOTPBusy             = 9005
)

// FromCode maps a backend status code to a taxonomy error. Unmapped codes
// fall back to KindUnknown carrying the underlying error.
func FromCode(code int, err error) *Error {
	kind := KindUnknown
	switch code {
	case CodeActionCancelled:
		kind = KindRegistrationCancelled
	case CodeStatelessNotAllowed:
		kind = KindStatelessNotSupported
	case CodeUserDeregistered:
		kind = KindAccountDeregistered
	case CodePinPolicyViolation:
		kind = KindPolicyViolation
	case CodeOTPBusy:
		kind = KindOTPBusyOrInvalid
	}
	return &Error{Kind: kind, Code: code, Err: err}
}
