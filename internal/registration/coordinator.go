// Package registration drives browser-delegated and custom-protocol
// registration flows.
package registration

import (
	"context"
	"log/slog"
	"sync"

	"idshowcase/internal/identity"
	"idshowcase/internal/pin"
	"idshowcase/internal/sdkerr"
	"idshowcase/internal/session"
)

// Scopes requested for every registration.
var scopes = []string{"read", "openid", "email"}

// Coordinator owns the registration challenge slots. At most one of
// {browser challenge, custom challenge} is held at any time.
type Coordinator struct {
	state  *session.State
	client identity.Client
	pin    *pin.Coordinator

	mu        sync.Mutex
	browser   identity.BrowserChallenge
	custom    identity.CustomChallenge
	stateless bool
}

// New creates a registration coordinator.
func New(state *session.State, client identity.Client, pinCoord *pin.Coordinator) *Coordinator {
	return &Coordinator{state: state, client: client, pin: pinCoord}
}

// Begin starts a registration flow with the given identity provider.
func (c *Coordinator) Begin(ctx context.Context, providerID string, stateless bool) error {
	if !c.state.Initialized() {
		return sdkerr.New(sdkerr.KindNotInitialized, "SDK is not initialized")
	}
	c.mu.Lock()
	c.stateless = stateless
	c.mu.Unlock()
	c.state.SetProcessing(true)
	c.client.RegisterUser(ctx, providerID, scopes, stateless, c.Handle)
	return nil
}

// Handle consumes one registration event from the Identity Service. Events
// may arrive on any goroutine.
func (c *Coordinator) Handle(ev identity.RegistrationEvent) {
	switch e := ev.(type) {
	case identity.BrowserChallengeEvent:
		c.onBrowserChallenge(e.Challenge)
	case identity.CustomChallengeEvent:
		c.onCustomChallenge(e.Challenge)
	case identity.CreatePinEvent:
		c.pin.PresentCreate(e.Challenge)
	case identity.RegisteredEvent:
		c.onRegistered(e.UserID)
	case identity.RegistrationFailedEvent:
		c.onFailed(e.Code, e.Err)
	}
}

func (c *Coordinator) onBrowserChallenge(ch identity.BrowserChallenge) {
	c.mu.Lock()
	if c.browser != nil || c.custom != nil {
		slog.Warn("browser challenge received while another challenge was held, replacing")
	}
	c.browser = ch
	c.custom = nil
	c.mu.Unlock()
	c.state.SetUserState(session.Registering(session.ProtocolBrowser))
}

func (c *Coordinator) onCustomChallenge(ch identity.CustomChallenge) {
	c.mu.Lock()
	if c.browser != nil || c.custom != nil {
		slog.Warn("custom challenge received while another challenge was held, replacing")
	}
	stateless := c.stateless
	if stateless {
		c.browser = nil
		c.custom = nil
	} else {
		c.browser = nil
		c.custom = ch
	}
	c.mu.Unlock()

	c.state.SetUserState(session.Registering(session.ProtocolAPI))
	if stateless {
		// Stateless registration needs no user interaction.
		ch.Respond("")
		return
	}
	c.state.SetScannerState(session.ScannerForRegistration)
}

// Redirect forwards a browser redirect URL to the held browser challenge.
// A redirect arriving after cancellation finds no challenge and is dropped.
func (c *Coordinator) Redirect(url string) {
	c.mu.Lock()
	ch := c.browser
	c.browser = nil
	c.mu.Unlock()
	if ch == nil {
		slog.Debug("redirect with no held browser challenge, dropping", "url", url)
		return
	}
	ch.Respond(url)
}

// RespondCustom delivers the out-of-band value (scanned or typed) collected
// for a custom registration challenge. No-op when none is held.
func (c *Coordinator) RespondCustom(value string) {
	c.mu.Lock()
	ch := c.custom
	c.custom = nil
	c.mu.Unlock()
	c.state.SetScannerState(session.ScannerHidden)
	if ch == nil {
		slog.Debug("custom response with no held challenge, dropping")
		return
	}
	ch.Respond(value)
}

// Cancel aborts the in-flight registration, cancelling whichever challenge is
// held.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	browser, custom := c.browser, c.custom
	c.browser, c.custom = nil, nil
	stateless := c.stateless
	c.mu.Unlock()

	if browser != nil {
		browser.Cancel()
	}
	if custom != nil {
		custom.Cancel()
	}
	c.state.SetScannerState(session.ScannerHidden)
	if stateless {
		c.state.SetUserState(session.Stateless())
	} else {
		c.state.SetUserState(session.Unauthenticated())
	}
	c.state.SetProcessing(false)
}

func (c *Coordinator) onRegistered(userID string) {
	c.mu.Lock()
	c.browser, c.custom = nil, nil
	stateless := c.stateless
	c.mu.Unlock()

	c.state.AddUser(session.RegisteredUser{UserID: userID, Stateless: stateless})
	c.state.SetEnrollmentState(session.Unenrolled)
	c.pin.Hide()
	c.state.SetScannerState(session.ScannerHidden)
	if stateless {
		c.state.SetUserState(session.Stateless())
	} else {
		c.state.SetUserState(session.Registered())
	}
	c.state.SetInfo("registration successful for " + userID)
	c.state.SetProcessing(false)
	slog.Info("user registered", "user_id", userID, "stateless", stateless)

	// Populate the authenticator list in the background; failure only costs
	// the picker its entries.
	go func() {
		names, err := c.client.ListAuthenticators(context.Background(), userID, true)
		if err != nil {
			slog.Warn("failed to list authenticators after registration", "user_id", userID, "error", err)
			return
		}
		c.state.SetAuthenticators(userID, names)
	}()
}

func (c *Coordinator) onFailed(code int, err error) {
	c.mu.Lock()
	c.browser, c.custom = nil, nil
	c.mu.Unlock()
	c.state.SetScannerState(session.ScannerHidden)
	c.state.SetProcessing(false)

	mapped := sdkerr.FromCode(code, err)
	switch mapped.Kind {
	case sdkerr.KindRegistrationCancelled:
		c.state.SetError("registration cancelled")
	case sdkerr.KindStatelessNotSupported:
		c.state.SetError("stateless registration is not supported by this provider")
	default:
		// Failure events are not guaranteed to carry an error value.
		if err != nil {
			c.state.SetError(err.Error())
		} else {
			c.state.SetError(mapped.Error())
		}
	}
	slog.Warn("registration failed", "code", code, "error", err)
}
