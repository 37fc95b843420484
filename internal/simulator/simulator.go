// Package simulator is an in-process Identity Service used by the demo
// server and the end-to-end tests. It implements the full challenge-response
// contract of identity.Client against in-memory state; events are delivered
// synchronously on the caller's goroutine.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"idshowcase/internal/identity"
	"idshowcase/internal/sdkerr"
)

type profile struct {
	id             string
	pin            string
	stateless      bool
	authenticators map[string]struct{}
}

// Service simulates the identity backend.
type Service struct {
	mu              sync.Mutex
	initialized     bool
	providers       []identity.Provider
	browserProvider map[string]bool
	profiles        map[string]*profile
	authenticated   string
	enrolledMobile  bool
	enrolledPush    bool
	pushToken       string
	pending         map[string]*pendingTx
	pendingOrder    []string
	otpBusy         bool

	pinLength   int
	maxAttempts int
}

// New creates a simulator with two identity providers: "demo-idp"
// (browser-delegated) and "demo-api" (custom protocol).
func New() *Service {
	return &Service{
		providers: []identity.Provider{
			{ID: "demo-idp", Name: "Demo IdP (browser)"},
			{ID: "demo-api", Name: "Demo IdP (API)"},
		},
		browserProvider: map[string]bool{"demo-idp": true},
		profiles:        make(map[string]*profile),
		pending:         make(map[string]*pendingTx),
		pinLength:       5,
		maxAttempts:     3,
	}
}

func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *Service) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.profiles = make(map[string]*profile)
	s.authenticated = ""
	s.enrolledMobile = false
	s.enrolledPush = false
	s.pushToken = ""
	s.pending = make(map[string]*pendingTx)
	s.pendingOrder = nil
	s.otpBusy = false
	return nil
}

// RegisterUser issues a browser or custom challenge depending on the
// provider, then a create-PIN challenge, then a terminal event.
func (s *Service) RegisterUser(ctx context.Context, providerID string, scopes []string, stateless bool, sink func(identity.RegistrationEvent)) {
	s.mu.Lock()
	known := false
	for _, p := range s.providers {
		if p.ID == providerID {
			known = true
		}
	}
	browser := s.browserProvider[providerID]
	s.mu.Unlock()

	if !known {
		sink(identity.RegistrationFailedEvent{Err: fmt.Errorf("unknown identity provider %q", providerID)})
		return
	}
	if stateless && browser {
		sink(identity.RegistrationFailedEvent{
			Code: sdkerr.CodeStatelessNotAllowed,
			Err:  errors.New("browser providers do not support stateless registration"),
		})
		return
	}

	flow := &registrationFlow{svc: s, sink: sink, stateless: stateless}
	if browser {
		sink(identity.BrowserChallengeEvent{Challenge: &browserChallenge{
			flow: flow,
			url:  "https://idp.example.com/authorize?provider=" + providerID,
		}})
		return
	}
	sink(identity.CustomChallengeEvent{Challenge: &customRegChallenge{flow: flow}})
}

type registrationFlow struct {
	svc       *Service
	sink      func(identity.RegistrationEvent)
	stateless bool
	done      bool
}

func (f *registrationFlow) cancel() {
	if f.done {
		return
	}
	f.done = true
	f.sink(identity.RegistrationFailedEvent{
		Code: sdkerr.CodeActionCancelled,
		Err:  errors.New("registration cancelled by user"),
	})
}

// identityVerified moves the flow past the identity step. Stateless users get
// no server-side profile PIN; everyone else sets one up.
func (f *registrationFlow) identityVerified() {
	if f.done {
		return
	}
	if f.stateless {
		f.complete("")
		return
	}
	f.sink(identity.CreatePinEvent{Challenge: &createPinChallenge{
		length: f.svc.pinLength,
		respond: func(pin string) {
			f.complete(pin)
		},
		cancel: f.cancel,
	}})
}

func (f *registrationFlow) complete(pin string) {
	if f.done {
		return
	}
	f.done = true

	userID := "user-" + uuid.NewString()[:8]
	f.svc.mu.Lock()
	f.svc.profiles[userID] = &profile{
		id:             userID,
		pin:            pin,
		stateless:      f.stateless,
		authenticators: map[string]struct{}{"PIN": {}},
	}
	f.svc.mu.Unlock()

	f.sink(identity.RegisteredEvent{UserID: userID})
}

type browserChallenge struct {
	flow *registrationFlow
	url  string
	used bool
}

func (c *browserChallenge) URL() string { return c.url }

func (c *browserChallenge) Respond(redirectURL string) {
	if c.used {
		return
	}
	c.used = true
	if redirectURL == "" {
		c.flow.cancel()
		return
	}
	c.flow.identityVerified()
}

func (c *browserChallenge) Cancel() {
	if c.used {
		return
	}
	c.used = true
	c.flow.cancel()
}

type customRegChallenge struct {
	flow *registrationFlow
	used bool
}

func (c *customRegChallenge) Respond(value string) {
	if c.used {
		return
	}
	c.used = true
	c.flow.identityVerified()
}

func (c *customRegChallenge) Cancel() {
	if c.used {
		return
	}
	c.used = true
	c.flow.cancel()
}

type createPinChallenge struct {
	length  int
	respond func(pin string)
	cancel  func()
	used    bool
}

func (c *createPinChallenge) PinLength() int { return c.length }

func (c *createPinChallenge) Respond(pin string) {
	if c.used {
		return
	}
	c.used = true
	c.respond(pin)
}

func (c *createPinChallenge) Cancel() {
	if c.used {
		return
	}
	c.used = true
	c.cancel()
}

// AuthenticateUser issues PIN challenges until the PIN matches or attempts
// run out; exhausting attempts deregisters the profile.
func (s *Service) AuthenticateUser(ctx context.Context, profileID, authenticator string, sink func(identity.AuthEvent)) {
	s.mu.Lock()
	p, ok := s.profiles[profileID]
	s.mu.Unlock()
	if !ok {
		sink(identity.AuthFailedEvent{UserID: profileID, Err: fmt.Errorf("unknown profile %q", profileID)})
		return
	}

	flow := &authFlow{svc: s, sink: sink, profile: p, attempts: s.maxAttempts}
	flow.issuePinChallenge()
}

type authFlow struct {
	svc      *Service
	sink     func(identity.AuthEvent)
	profile  *profile
	attempts int
	done     bool
}

func (f *authFlow) issuePinChallenge() {
	f.sink(identity.PinChallengeEvent{Challenge: &pinEntryChallenge{
		attempts: f.attempts,
		respond:  f.submitPin,
		cancel:   f.cancel,
	}})
}

func (f *authFlow) submitPin(pin string) {
	if f.done {
		return
	}
	if pin == f.profile.pin {
		f.done = true
		f.svc.mu.Lock()
		f.svc.authenticated = f.profile.id
		f.svc.mu.Unlock()
		f.sink(identity.AuthenticatedEvent{UserID: f.profile.id})
		return
	}

	f.attempts--
	if f.attempts > 0 {
		f.issuePinChallenge()
		return
	}

	f.done = true
	f.svc.mu.Lock()
	delete(f.svc.profiles, f.profile.id)
	if f.svc.authenticated == f.profile.id {
		f.svc.authenticated = ""
	}
	f.svc.mu.Unlock()
	f.sink(identity.AuthFailedEvent{
		UserID: f.profile.id,
		Code:   sdkerr.CodeUserDeregistered,
		Err:    errors.New("PIN attempts exhausted, account deregistered"),
	})
}

func (f *authFlow) cancel() {
	if f.done {
		return
	}
	f.done = true
	f.sink(identity.AuthFailedEvent{
		UserID: f.profile.id,
		Code:   sdkerr.CodeActionCancelled,
		Err:    errors.New("authentication cancelled by user"),
	})
}

type pinEntryChallenge struct {
	attempts int
	respond  func(pin string)
	cancel   func()
	used     bool
}

func (c *pinEntryChallenge) AttemptsRemaining() int { return c.attempts }

func (c *pinEntryChallenge) Respond(pin string) {
	if c.used {
		return
	}
	c.used = true
	c.respond(pin)
}

func (c *pinEntryChallenge) Cancel() {
	if c.used {
		return
	}
	c.used = true
	c.cancel()
}

// AuthenticateImplicitly succeeds for any registered profile.
func (s *Service) AuthenticateImplicitly(ctx context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return fmt.Errorf("unknown profile %q", profileID)
	}
	return nil
}

// ChangePin re-authenticates with the current PIN, then issues a create-PIN
// challenge for the replacement.
func (s *Service) ChangePin(ctx context.Context, sink func(identity.AuthEvent)) {
	s.mu.Lock()
	p := s.profiles[s.authenticated]
	s.mu.Unlock()
	if p == nil {
		sink(identity.AuthFailedEvent{Err: errors.New("no authenticated profile")})
		return
	}

	flow := &authFlow{svc: s, sink: sink, profile: p, attempts: s.maxAttempts}
	flow.sink = func(ev identity.AuthEvent) {
		// Intercept the re-authentication success and continue with the
		// new-PIN step instead of terminating.
		if _, ok := ev.(identity.AuthenticatedEvent); ok {
			sink(identity.CreatePinEvent{Challenge: &createPinChallenge{
				length: s.pinLength,
				respond: func(pin string) {
					s.mu.Lock()
					p.pin = pin
					s.mu.Unlock()
					sink(identity.AuthenticatedEvent{UserID: p.id})
				},
				cancel: func() {
					sink(identity.AuthFailedEvent{
						UserID: p.id,
						Code:   sdkerr.CodeActionCancelled,
						Err:    errors.New("PIN change cancelled by user"),
					})
				},
			}})
			return
		}
		sink(ev)
	}
	flow.issuePinChallenge()
}

// ValidatePinPolicy enforces exact length and digits only.
func (s *Service) ValidatePinPolicy(ctx context.Context, pin string) error {
	if len(pin) != s.pinLength {
		return fmt.Errorf("PIN must be exactly %d digits", s.pinLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errors.New("PIN must contain digits only")
		}
	}
	return nil
}

func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated == "" {
		return errors.New("profile not authenticated")
	}
	s.authenticated = ""
	return nil
}

func (s *Service) SingleSignOn(ctx context.Context, profileID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated != profileID {
		return "", fmt.Errorf("profile %q holds no access credential", profileID)
	}
	return "https://sso.example.com/dashboard?token=" + uuid.NewString(), nil
}

// ListAuthenticators returns the registered or unregistered authenticator
// names for a profile.
func (s *Service) ListAuthenticators(ctx context.Context, profileID string, registered bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", profileID)
	}

	all := []string{"PIN", "Biometric"}
	var out []string
	for _, name := range all {
		_, has := p.authenticators[name]
		if has == registered {
			out = append(out, name)
		}
	}
	return out, nil
}

func (s *Service) ListIdentityProviders(ctx context.Context) ([]identity.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.Provider, len(s.providers))
	copy(out, s.providers)
	return out, nil
}
