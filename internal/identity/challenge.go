package identity

// Challenges are single-use capabilities issued by the Client. Respond and
// Cancel consume the challenge; calling either more than once is a protocol
// violation on the caller's side and Clients may ignore the extra call.

// BrowserChallenge asks the user to complete registration in an external
// browser and hand the resulting redirect URL back.
type BrowserChallenge interface {
	URL() string
	Respond(redirectURL string)
	Cancel()
}

// CustomChallenge asks for an out-of-band value collected by the app itself
// (scanned code, typed prompt, or an empty default for stateless flows).
type CustomChallenge interface {
	Respond(value string)
	Cancel()
}

// PinChallenge asks for the user's existing PIN. AttemptsRemaining counts
// down on wrong entries; the backend deregisters the account when it hits
// zero and reports that through a terminal failure, not through this
// challenge.
type PinChallenge interface {
	AttemptsRemaining() int
	Respond(pin string)
	Cancel()
}

// CreatePinChallenge asks for a brand new PIN of the given length.
type CreatePinChallenge interface {
	PinLength() int
	Respond(pin string)
	Cancel()
}

// BiometricChallenge asks for a biometric confirmation. Respond accepts,
// Cancel declines.
type BiometricChallenge interface {
	Respond()
	Cancel()
}
