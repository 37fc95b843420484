package identity

// Event variants are closed per coordinator: each sink receives exactly the
// variants of its own sealed interface, so coordinators dispatch with a
// single type switch instead of open-ended delegate interfaces.

// RegistrationEvent is the sealed event type for registration flows.
type RegistrationEvent interface{ isRegistrationEvent() }

// AuthEvent is the sealed event type for authentication and PIN change flows.
type AuthEvent interface{ isAuthEvent() }

// MobileAuthEvent is the sealed event type for out-of-band transaction
// handling.
type MobileAuthEvent interface{ isMobileAuthEvent() }

// BrowserChallengeEvent delivers a browser-delegated registration challenge.
type BrowserChallengeEvent struct {
	Challenge BrowserChallenge
}

// CustomChallengeEvent delivers a custom-protocol registration challenge.
type CustomChallengeEvent struct {
	Challenge CustomChallenge
}

// CreatePinEvent delivers a create-PIN challenge. It occurs both during
// registration and during a PIN change (after re-authentication), so it is a
// member of both sealed sets.
type CreatePinEvent struct {
	Challenge CreatePinChallenge
}

// RegisteredEvent terminates a registration flow successfully.
type RegisteredEvent struct {
	UserID string
}

// RegistrationFailedEvent terminates a registration flow with a backend
// status code and underlying error.
type RegistrationFailedEvent struct {
	Code int
	Err  error
}

// PinChallengeEvent delivers a PIN entry challenge during authentication or
// PIN change.
type PinChallengeEvent struct {
	Challenge PinChallenge
}

// CustomAuthChallengeEvent delivers a custom-protocol authentication
// challenge.
type CustomAuthChallengeEvent struct {
	Challenge CustomChallenge
}

// AuthenticatedEvent terminates an authentication flow successfully.
type AuthenticatedEvent struct {
	UserID string
}

// AuthFailedEvent terminates an authentication or PIN change flow with a
// backend status code and underlying error.
type AuthFailedEvent struct {
	UserID string
	Code   int
	Err    error
}

// ConfirmationRequiredEvent escalates a transaction that only needs a local
// confirm/deny decision. Confirm must be called exactly once.
type ConfirmationRequiredEvent struct {
	TransactionID string
	Confirm       func(accepted bool)
}

// MobileAuthPinEvent escalates a transaction to PIN entry.
type MobileAuthPinEvent struct {
	TransactionID string
	Challenge     PinChallenge
}

// MobileAuthBiometricEvent escalates a transaction to biometric confirmation.
type MobileAuthBiometricEvent struct {
	TransactionID string
	Challenge     BiometricChallenge
}

// MobileAuthFinishedEvent terminates handling of one transaction. Err is nil
// on success and carries the backend status code otherwise.
type MobileAuthFinishedEvent struct {
	TransactionID string
	Code          int
	Err           error
}

func (BrowserChallengeEvent) isRegistrationEvent()   {}
func (CustomChallengeEvent) isRegistrationEvent()    {}
func (CreatePinEvent) isRegistrationEvent()          {}
func (RegisteredEvent) isRegistrationEvent()         {}
func (RegistrationFailedEvent) isRegistrationEvent() {}

func (CreatePinEvent) isAuthEvent()           {}
func (PinChallengeEvent) isAuthEvent()        {}
func (CustomAuthChallengeEvent) isAuthEvent() {}
func (AuthenticatedEvent) isAuthEvent()       {}
func (AuthFailedEvent) isAuthEvent()          {}

func (ConfirmationRequiredEvent) isMobileAuthEvent() {}
func (MobileAuthPinEvent) isMobileAuthEvent()        {}
func (MobileAuthBiometricEvent) isMobileAuthEvent()  {}
func (MobileAuthFinishedEvent) isMobileAuthEvent()   {}
