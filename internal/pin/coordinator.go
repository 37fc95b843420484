// Package pin owns PIN collection: creation with double entry, existing-PIN
// entry for authentication and change flows, and policy validation.
package pin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"idshowcase/internal/identity"
	"idshowcase/internal/sdkerr"
	"idshowcase/internal/session"
)

// Coordinator drives the pin-pad state machine. It is the only writer of
// session.PinPadState and the only holder of PIN challenges: at most one of
// {create challenge, entry challenge} is held at a time.
type Coordinator struct {
	state    *session.State
	client   identity.Client
	debounce time.Duration

	mu              sync.Mutex
	createChallenge identity.CreatePinChallenge
	entryChallenge  identity.PinChallenge
	firstEntry      string
}

// New creates a PIN coordinator. debounce is the delay between force-hiding
// an interrupted flow and presenting a re-issued create-PIN challenge; it
// exists so the presentation layer can dismiss first, and is not load-bearing
// for correctness.
func New(state *session.State, client identity.Client, debounce time.Duration) *Coordinator {
	return &Coordinator{state: state, client: client, debounce: debounce}
}

// PresentCreate takes ownership of a create-PIN challenge and shows the pad
// in creating mode. If another PIN flow is live it is forced hidden first and
// the pad re-appears after the configured debounce.
func (c *Coordinator) PresentCreate(ch identity.CreatePinChallenge) {
	c.mu.Lock()
	if c.createChallenge != nil {
		slog.Warn("create-pin challenge replaced while one was held")
	}
	c.createChallenge = ch
	c.entryChallenge = nil
	c.firstEntry = ""
	c.mu.Unlock()

	if c.state.PinPadState() != session.PinPadHidden {
		c.state.SetPinPadState(session.PinPadHidden)
		time.AfterFunc(c.debounce, func() {
			c.state.SetPinPadState(session.PinPadCreating)
		})
		return
	}
	c.state.SetPinPadState(session.PinPadCreating)
}

// PresentEntry takes ownership of an existing-PIN challenge and shows the pad
// in changing mode. Changing covers every existing-PIN entry: login, PIN
// change, and transaction confirmation. A re-issued challenge while the pad
// is already showing means the previous entry was wrong; the remaining
// attempts are surfaced without resetting the pad.
func (c *Coordinator) PresentEntry(ch identity.PinChallenge) {
	c.mu.Lock()
	retry := c.state.PinPadState() == session.PinPadChanging
	c.entryChallenge = ch
	c.firstEntry = ""
	c.mu.Unlock()

	if retry {
		c.state.SetError(fmt.Sprintf("wrong PIN, %d attempts remaining", ch.AttemptsRemaining()))
		return
	}
	c.state.SetPinPadState(session.PinPadChanging)
}

// Submit routes one pad entry according to the current pad state. Stale
// submissions (hidden pad, no held challenge) are no-ops.
func (c *Coordinator) Submit(ctx context.Context, pin string) error {
	switch c.state.PinPadState() {
	case session.PinPadCreating:
		if err := c.client.ValidatePinPolicy(ctx, pin); err != nil {
			policyErr := sdkerr.Wrap(sdkerr.KindPolicyViolation, err)
			c.state.SetError(policyErr.Error())
			return policyErr
		}
		c.mu.Lock()
		c.firstEntry = pin
		c.mu.Unlock()
		c.state.SetPinPadState(session.PinPadCreated)
		return nil

	case session.PinPadCreated:
		c.mu.Lock()
		if pin != c.firstEntry {
			c.mu.Unlock()
			mismatch := sdkerr.New(sdkerr.KindPinMismatch, "PINs do not match")
			c.state.SetError(mismatch.Error())
			return mismatch
		}
		ch := c.createChallenge
		c.createChallenge = nil
		c.firstEntry = ""
		c.mu.Unlock()
		c.state.SetPinPadState(session.PinPadHidden)
		if ch == nil {
			slog.Warn("create-pin confirmation with no held challenge, dropping")
			return nil
		}
		ch.Respond(pin)
		return nil

	case session.PinPadChanging:
		c.mu.Lock()
		ch := c.entryChallenge
		c.entryChallenge = nil
		c.mu.Unlock()
		if ch == nil {
			slog.Warn("pin entry with no held challenge, dropping")
			return nil
		}
		// Stay in changing mode: a wrong entry comes back as a re-issued
		// challenge, a terminal outcome hides the pad via Hide.
		ch.Respond(pin)
		return nil

	default:
		return nil
	}
}

// CancelCreate cancels a held create-PIN challenge and hides the pad. No-op
// when nothing is held.
func (c *Coordinator) CancelCreate() {
	c.mu.Lock()
	ch := c.createChallenge
	c.createChallenge = nil
	c.firstEntry = ""
	c.mu.Unlock()
	c.state.SetPinPadState(session.PinPadHidden)
	if ch != nil {
		ch.Cancel()
	}
}

// CancelEntry cancels a held existing-PIN challenge and hides the pad. No-op
// when nothing is held.
func (c *Coordinator) CancelEntry() {
	c.mu.Lock()
	ch := c.entryChallenge
	c.entryChallenge = nil
	c.mu.Unlock()
	c.state.SetPinPadState(session.PinPadHidden)
	if ch != nil {
		ch.Cancel()
	}
}

// Hide drops any held challenge without responding and hides the pad. Used
// when a terminal result (success or deregistration) makes the challenge
// dead on the backend side.
func (c *Coordinator) Hide() {
	c.mu.Lock()
	c.createChallenge = nil
	c.entryChallenge = nil
	c.firstEntry = ""
	c.mu.Unlock()
	c.state.SetPinPadState(session.PinPadHidden)
}
