// Package identity defines the contracts between the orchestration layer and
// the Identity Service backend client. The orchestrator never talks to the
// network itself; it drives a Client and reacts to the events the Client
// delivers.
package identity

import "context"

// Provider describes an identity provider offered by the backend.
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is one out-of-band authentication request reported by the
// backend, identified by its transaction ID.
type Transaction struct {
	ID            string `json:"id"`
	Message       string `json:"message"`
	UserProfileID string `json:"user_profile_id"`
}

// TransactionHandle is an opaque reference to a pending transaction that can
// be handed back to the Client for handling.
type TransactionHandle interface {
	Transaction() Transaction
}

// Enrollment reports the device's out-of-band authentication enrollment as
// known by the backend.
type Enrollment struct {
	Mobile bool
	Push   bool
}

// Client is the Identity Service collaborator. Calls that collect user input
// deliver challenges and terminal results through a sink; the sink is invoked
// from arbitrary goroutines and each challenge is delivered at most once,
// with no further events after a terminal one.
type Client interface {
	Initialize(ctx context.Context) error
	ResetAll(ctx context.Context) error

	// RegisterUser starts a registration flow. Events arrive on sink until
	// a RegisteredEvent or RegistrationFailedEvent terminates the flow.
	RegisterUser(ctx context.Context, providerID string, scopes []string, stateless bool, sink func(RegistrationEvent))

	// AuthenticateUser starts an authentication flow for a registered
	// profile using the named authenticator.
	AuthenticateUser(ctx context.Context, profileID, authenticator string, sink func(AuthEvent))

	// AuthenticateImplicitly authenticates without user interaction. The
	// returned error is the terminal result.
	AuthenticateImplicitly(ctx context.Context, profileID string) error

	// ChangePin starts a PIN change flow; the backend first re-authenticates
	// with the current PIN and then issues a create-PIN challenge.
	ChangePin(ctx context.Context, sink func(AuthEvent))

	ValidatePinPolicy(ctx context.Context, pin string) error

	EnrollMobileAuth(ctx context.Context) error
	EnrollPush(ctx context.Context, token string) error
	MobileAuthEnrollment(ctx context.Context, profileID string) (Enrollment, error)

	FetchPendingTransactions(ctx context.Context) ([]TransactionHandle, error)

	// TransactionFromPush parses a pending transaction out of a raw push
	// payload. Returns false when the payload carries no resolvable
	// transaction for the current session.
	TransactionFromPush(payload []byte) (TransactionHandle, bool)

	// HandlePendingTransaction escalates a transaction to a concrete
	// authenticator; events arrive on sink until a MobileAuthFinishedEvent.
	HandlePendingTransaction(ctx context.Context, handle TransactionHandle, sink func(MobileAuthEvent))

	// HandleOTP submits a scanned or typed one-time code. An error means the
	// backend cannot accept the code right now (busy or invalid).
	HandleOTP(ctx context.Context, code string, sink func(MobileAuthEvent)) error

	Logout(ctx context.Context) error
	SingleSignOn(ctx context.Context, profileID string) (url string, err error)

	ListAuthenticators(ctx context.Context, profileID string, registered bool) ([]string, error)
	ListIdentityProviders(ctx context.Context) ([]Provider, error)
}

// Pusher is the badge collaborator on the presentation side. The count is
// always the full pending-transaction count, never a delta.
type Pusher interface {
	UpdateBadge(count int)
}

// Navigator is the navigation collaborator on the presentation side.
type Navigator interface {
	ShowPendingTransactions()
}
