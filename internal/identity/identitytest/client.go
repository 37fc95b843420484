// Package identitytest provides a configurable fake Identity Service client
// and fake challenges for coordinator tests.
package identitytest

import (
	"context"
	"sync"

	"idshowcase/internal/identity"
)

// Client implements identity.Client through optional function fields. Unset
// fields succeed with zero values.
type Client struct {
	InitializeFunc            func(ctx context.Context) error
	ResetAllFunc              func(ctx context.Context) error
	RegisterUserFunc          func(ctx context.Context, providerID string, scopes []string, stateless bool, sink func(identity.RegistrationEvent))
	AuthenticateUserFunc      func(ctx context.Context, profileID, authenticator string, sink func(identity.AuthEvent))
	AuthenticateImplicitFunc  func(ctx context.Context, profileID string) error
	ChangePinFunc             func(ctx context.Context, sink func(identity.AuthEvent))
	ValidatePinPolicyFunc     func(ctx context.Context, pin string) error
	EnrollMobileAuthFunc      func(ctx context.Context) error
	EnrollPushFunc            func(ctx context.Context, token string) error
	MobileAuthEnrollmentFunc  func(ctx context.Context, profileID string) (identity.Enrollment, error)
	FetchPendingFunc          func(ctx context.Context) ([]identity.TransactionHandle, error)
	TransactionFromPushFunc   func(payload []byte) (identity.TransactionHandle, bool)
	HandlePendingFunc         func(ctx context.Context, handle identity.TransactionHandle, sink func(identity.MobileAuthEvent))
	HandleOTPFunc             func(ctx context.Context, code string, sink func(identity.MobileAuthEvent)) error
	LogoutFunc                func(ctx context.Context) error
	SingleSignOnFunc          func(ctx context.Context, profileID string) (string, error)
	ListAuthenticatorsFunc    func(ctx context.Context, profileID string, registered bool) ([]string, error)
	ListIdentityProvidersFunc func(ctx context.Context) ([]identity.Provider, error)
}

func (c *Client) Initialize(ctx context.Context) error {
	if c.InitializeFunc != nil {
		return c.InitializeFunc(ctx)
	}
	return nil
}

func (c *Client) ResetAll(ctx context.Context) error {
	if c.ResetAllFunc != nil {
		return c.ResetAllFunc(ctx)
	}
	return nil
}

func (c *Client) RegisterUser(ctx context.Context, providerID string, scopes []string, stateless bool, sink func(identity.RegistrationEvent)) {
	if c.RegisterUserFunc != nil {
		c.RegisterUserFunc(ctx, providerID, scopes, stateless, sink)
	}
}

func (c *Client) AuthenticateUser(ctx context.Context, profileID, authenticator string, sink func(identity.AuthEvent)) {
	if c.AuthenticateUserFunc != nil {
		c.AuthenticateUserFunc(ctx, profileID, authenticator, sink)
	}
}

func (c *Client) AuthenticateImplicitly(ctx context.Context, profileID string) error {
	if c.AuthenticateImplicitFunc != nil {
		return c.AuthenticateImplicitFunc(ctx, profileID)
	}
	return nil
}

func (c *Client) ChangePin(ctx context.Context, sink func(identity.AuthEvent)) {
	if c.ChangePinFunc != nil {
		c.ChangePinFunc(ctx, sink)
	}
}

func (c *Client) ValidatePinPolicy(ctx context.Context, pin string) error {
	if c.ValidatePinPolicyFunc != nil {
		return c.ValidatePinPolicyFunc(ctx, pin)
	}
	return nil
}

func (c *Client) EnrollMobileAuth(ctx context.Context) error {
	if c.EnrollMobileAuthFunc != nil {
		return c.EnrollMobileAuthFunc(ctx)
	}
	return nil
}

func (c *Client) EnrollPush(ctx context.Context, token string) error {
	if c.EnrollPushFunc != nil {
		return c.EnrollPushFunc(ctx, token)
	}
	return nil
}

func (c *Client) MobileAuthEnrollment(ctx context.Context, profileID string) (identity.Enrollment, error) {
	if c.MobileAuthEnrollmentFunc != nil {
		return c.MobileAuthEnrollmentFunc(ctx, profileID)
	}
	return identity.Enrollment{}, nil
}

func (c *Client) FetchPendingTransactions(ctx context.Context) ([]identity.TransactionHandle, error) {
	if c.FetchPendingFunc != nil {
		return c.FetchPendingFunc(ctx)
	}
	return nil, nil
}

func (c *Client) TransactionFromPush(payload []byte) (identity.TransactionHandle, bool) {
	if c.TransactionFromPushFunc != nil {
		return c.TransactionFromPushFunc(payload)
	}
	return nil, false
}

func (c *Client) HandlePendingTransaction(ctx context.Context, handle identity.TransactionHandle, sink func(identity.MobileAuthEvent)) {
	if c.HandlePendingFunc != nil {
		c.HandlePendingFunc(ctx, handle, sink)
	}
}

func (c *Client) HandleOTP(ctx context.Context, code string, sink func(identity.MobileAuthEvent)) error {
	if c.HandleOTPFunc != nil {
		return c.HandleOTPFunc(ctx, code, sink)
	}
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	if c.LogoutFunc != nil {
		return c.LogoutFunc(ctx)
	}
	return nil
}

func (c *Client) SingleSignOn(ctx context.Context, profileID string) (string, error) {
	if c.SingleSignOnFunc != nil {
		return c.SingleSignOnFunc(ctx, profileID)
	}
	return "", nil
}

func (c *Client) ListAuthenticators(ctx context.Context, profileID string, registered bool) ([]string, error) {
	if c.ListAuthenticatorsFunc != nil {
		return c.ListAuthenticatorsFunc(ctx, profileID, registered)
	}
	return nil, nil
}

func (c *Client) ListIdentityProviders(ctx context.Context) ([]identity.Provider, error) {
	if c.ListIdentityProvidersFunc != nil {
		return c.ListIdentityProvidersFunc(ctx)
	}
	return nil, nil
}

// Handle wraps a transaction as an identity.TransactionHandle.
type Handle struct {
	Tx identity.Transaction
}

func (h Handle) Transaction() identity.Transaction { return h.Tx }

// BrowserChallenge records responses and cancellation.
type BrowserChallenge struct {
	mu        sync.Mutex
	URLValue  string
	Responses []string
	Cancelled bool
}

func (c *BrowserChallenge) URL() string { return c.URLValue }

func (c *BrowserChallenge) Respond(redirectURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses = append(c.Responses, redirectURL)
}

func (c *BrowserChallenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = true
}

func (c *BrowserChallenge) Responded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Responses...)
}

func (c *BrowserChallenge) WasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Cancelled
}

// CustomChallenge records responses and cancellation.
type CustomChallenge struct {
	mu        sync.Mutex
	Responses []string
	Cancelled bool
}

func (c *CustomChallenge) Respond(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses = append(c.Responses, value)
}

func (c *CustomChallenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = true
}

func (c *CustomChallenge) Responded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Responses...)
}

func (c *CustomChallenge) WasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Cancelled
}

// PinChallenge records responses and cancellation; OnRespond, when set, runs
// synchronously inside Respond.
type PinChallenge struct {
	mu        sync.Mutex
	Attempts  int
	Responses []string
	Cancelled bool
	OnRespond func(pin string)
}

func (c *PinChallenge) AttemptsRemaining() int { return c.Attempts }

func (c *PinChallenge) Respond(pin string) {
	c.mu.Lock()
	c.Responses = append(c.Responses, pin)
	fn := c.OnRespond
	c.mu.Unlock()
	if fn != nil {
		fn(pin)
	}
}

func (c *PinChallenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = true
}

func (c *PinChallenge) Responded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Responses...)
}

func (c *PinChallenge) WasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Cancelled
}

// CreatePinChallenge records responses and cancellation.
type CreatePinChallenge struct {
	mu        sync.Mutex
	Length    int
	Responses []string
	Cancelled bool
}

func (c *CreatePinChallenge) PinLength() int { return c.Length }

func (c *CreatePinChallenge) Respond(pin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses = append(c.Responses, pin)
}

func (c *CreatePinChallenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = true
}

func (c *CreatePinChallenge) Responded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Responses...)
}

func (c *CreatePinChallenge) WasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Cancelled
}

// BiometricChallenge records acceptance and cancellation.
type BiometricChallenge struct {
	mu        sync.Mutex
	Accepted  bool
	Cancelled bool
}

func (c *BiometricChallenge) Respond() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accepted = true
}

func (c *BiometricChallenge) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cancelled = true
}

func (c *BiometricChallenge) WasAccepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Accepted
}

func (c *BiometricChallenge) WasCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Cancelled
}

// Pusher records badge updates.
type Pusher struct {
	mu     sync.Mutex
	Badges []int
}

func (p *Pusher) UpdateBadge(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Badges = append(p.Badges, count)
}

// Last returns the most recent badge count, or -1 when none was pushed.
func (p *Pusher) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Badges) == 0 {
		return -1
	}
	return p.Badges[len(p.Badges)-1]
}

// Navigator counts navigation requests.
type Navigator struct {
	mu    sync.Mutex
	Shown int
}

func (n *Navigator) ShowPendingTransactions() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Shown++
}

func (n *Navigator) ShownCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Shown
}
