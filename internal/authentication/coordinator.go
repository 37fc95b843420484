// Package authentication drives authentication flows (PIN, custom, implicit,
// SSO) and the PIN change flow, including the mandatory cleanup when the
// backend deregisters an account.
package authentication

import (
	"context"
	"log/slog"
	"sync"

	"idshowcase/internal/identity"
	"idshowcase/internal/pin"
	"idshowcase/internal/sdkerr"
	"idshowcase/internal/session"
)

// Coordinator owns the authentication challenge slot and translates terminal
// authentication results into session state.
type Coordinator struct {
	state  *session.State
	client identity.Client
	pin    *pin.Coordinator

	mu     sync.Mutex
	custom identity.CustomChallenge
}

// New creates an authentication coordinator.
func New(state *session.State, client identity.Client, pinCoord *pin.Coordinator) *Coordinator {
	return &Coordinator{state: state, client: client, pin: pinCoord}
}

// Authenticate starts authentication of a registered user with the named
// authenticator. An existing authenticated or implicit session is logged out
// first; login and logout are never concurrent.
func (c *Coordinator) Authenticate(ctx context.Context, userID, authenticator string) error {
	user, ok := c.state.User(userID)
	if !ok {
		return sdkerr.New(sdkerr.KindUnknownUser, "no registered user "+userID)
	}
	if authenticator != "" && !user.HasAuthenticator(authenticator) {
		err := sdkerr.New(sdkerr.KindUnknownAuthenticator, "authenticator "+authenticator+" is not registered for "+userID)
		c.state.SetError(err.Error())
		return err
	}

	current := c.state.UserState()
	if current.Kind == session.UserAuthenticated || current.Kind == session.UserImplicit {
		if err := c.client.Logout(ctx); err != nil {
			slog.Warn("logout before re-authentication failed", "user_id", current.UserID, "error", err)
		}
		c.state.SetUserState(session.Unauthenticated())
	}

	c.state.SetProcessing(true)
	c.client.AuthenticateUser(ctx, userID, authenticator, c.Handle)
	return nil
}

// AuthenticateImplicitly authenticates without user interaction. Already
// being implicitly authenticated as the same user short-circuits with an
// informational message.
func (c *Coordinator) AuthenticateImplicitly(ctx context.Context, userID string) error {
	current := c.state.UserState()
	if current.Kind == session.UserImplicit && current.UserID == userID {
		c.state.SetInfo(userID + " is already implicitly authenticated")
		return nil
	}
	if _, ok := c.state.User(userID); !ok {
		return sdkerr.New(sdkerr.KindUnknownUser, "no registered user "+userID)
	}

	c.state.SetProcessing(true)
	defer c.state.SetProcessing(false)
	if err := c.client.AuthenticateImplicitly(ctx, userID); err != nil {
		c.state.SetUserState(session.Unauthenticated())
		c.state.SetError("implicit authentication failed: " + err.Error())
		return err
	}
	c.state.SetUserState(session.Implicit(userID))
	return nil
}

// Logout ends the current session. A failure (profile not authenticated)
// surfaces a message without changing state.
func (c *Coordinator) Logout(ctx context.Context) error {
	if err := c.client.Logout(ctx); err != nil {
		c.state.SetError("logout failed: " + err.Error())
		return err
	}
	c.state.SetUserState(session.Unauthenticated())
	c.state.SetInfo("logged out")
	return nil
}

// SingleSignOn exchanges the current access credential for an SSO URL. It
// requires a prior successful (non-implicit) authentication.
func (c *Coordinator) SingleSignOn(ctx context.Context) error {
	current := c.state.UserState()
	if current.Kind != session.UserAuthenticated {
		return sdkerr.New(sdkerr.KindRequiresAuthentication, "single sign-on requires an authenticated user")
	}
	url, err := c.client.SingleSignOn(ctx, current.UserID)
	if err != nil {
		c.state.SetError("single sign-on failed: " + err.Error())
		return err
	}
	c.state.SetUserState(session.SingleSignOn(current.UserID, url))
	return nil
}

// StartPinChange begins a PIN change flow for the authenticated user. The
// backend re-authenticates with the current PIN and then issues a create-PIN
// challenge; both arrive as auth events.
func (c *Coordinator) StartPinChange(ctx context.Context) error {
	if c.state.UserState().Kind != session.UserAuthenticated {
		return sdkerr.New(sdkerr.KindRequiresAuthentication, "PIN change requires an authenticated user")
	}
	c.state.SetProcessing(true)
	c.client.ChangePin(ctx, c.Handle)
	return nil
}

// Handle consumes one authentication event from the Identity Service.
func (c *Coordinator) Handle(ev identity.AuthEvent) {
	switch e := ev.(type) {
	case identity.PinChallengeEvent:
		c.pin.PresentEntry(e.Challenge)
	case identity.CreatePinEvent:
		c.pin.PresentCreate(e.Challenge)
	case identity.CustomAuthChallengeEvent:
		c.onCustomChallenge(e.Challenge)
	case identity.AuthenticatedEvent:
		c.onAuthenticated(e.UserID)
	case identity.AuthFailedEvent:
		c.onFailed(e.UserID, e.Code, e.Err)
	}
}

func (c *Coordinator) onCustomChallenge(ch identity.CustomChallenge) {
	c.mu.Lock()
	if c.custom != nil {
		slog.Warn("custom auth challenge received while one was held, replacing")
	}
	c.custom = ch
	c.mu.Unlock()
}

// RespondCustom delivers the out-of-band value for a held custom
// authentication challenge. No-op when none is held.
func (c *Coordinator) RespondCustom(value string) {
	c.mu.Lock()
	ch := c.custom
	c.custom = nil
	c.mu.Unlock()
	if ch == nil {
		slog.Debug("custom auth response with no held challenge, dropping")
		return
	}
	ch.Respond(value)
}

func (c *Coordinator) onAuthenticated(userID string) {
	c.mu.Lock()
	c.custom = nil
	c.mu.Unlock()

	c.state.ClearMessages()
	c.state.SetUserState(session.Authenticated(userID))
	c.pin.Hide()
	c.state.SetProcessing(false)
	slog.Info("user authenticated", "user_id", userID)

	// Refresh enrollment status in the background; the session stays usable
	// if the lookup fails.
	go c.refreshEnrollment(userID)
}

func (c *Coordinator) refreshEnrollment(userID string) {
	enr, err := c.client.MobileAuthEnrollment(context.Background(), userID)
	if err != nil {
		slog.Warn("enrollment refresh failed", "user_id", userID, "error", err)
		return
	}
	switch {
	case enr.Push:
		c.state.SetEnrollmentState(session.PushEnrolled)
	case enr.Mobile:
		c.state.SetEnrollmentState(session.MobileEnrolled)
	default:
		c.state.SetEnrollmentState(session.Unenrolled)
	}
}

func (c *Coordinator) onFailed(userID string, code int, err error) {
	c.mu.Lock()
	c.custom = nil
	c.mu.Unlock()
	c.state.SetProcessing(false)

	mapped := sdkerr.FromCode(code, err)
	if mapped.Kind == sdkerr.KindAccountDeregistered {
		c.state.RemoveUser(userID)
		c.state.SetEnrollmentState(session.Unenrolled)
		c.pin.Hide()
		c.state.SetError("account " + userID + " was deregistered")
		slog.Warn("account deregistered during authentication", "user_id", userID)
		return
	}
	c.state.SetError("authentication failed")
	slog.Warn("authentication failed", "user_id", userID, "code", code, "error", err)
}
