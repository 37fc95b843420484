// Package mobileauth reconciles the three sources of out-of-band
// authentication transactions (push delivery, interactive polling, and
// escalation callbacks) behind a single-flight queue.
package mobileauth

import (
	"context"
	"log/slog"
	"sync"

	"idshowcase/internal/identity"
	"idshowcase/internal/pin"
	"idshowcase/internal/sdkerr"
	"idshowcase/internal/session"
)

// Coordinator owns enrollment, push registration, pending-transaction
// bookkeeping, and the escalation queue.
type Coordinator struct {
	state  *session.State
	client identity.Client
	pin    *pin.Coordinator
	pusher identity.Pusher
	nav    identity.Navigator
	queue  *Queue

	mu      sync.Mutex
	handles map[string]identity.TransactionHandle
}

// New creates a mobile-auth coordinator.
func New(state *session.State, client identity.Client, pinCoord *pin.Coordinator, pusher identity.Pusher, nav identity.Navigator) *Coordinator {
	c := &Coordinator{
		state:   state,
		client:  client,
		pin:     pinCoord,
		pusher:  pusher,
		nav:     nav,
		handles: make(map[string]identity.TransactionHandle),
	}
	c.queue = NewQueue(c.beginHandling)
	return c
}

// Enroll registers the device for out-of-band authentication. The user must
// be fully (non-stateless) authenticated.
func (c *Coordinator) Enroll(ctx context.Context) error {
	current := c.state.UserState()
	if current.Kind != session.UserAuthenticated {
		return sdkerr.New(sdkerr.KindRequiresAuthentication, "mobile auth enrollment requires an authenticated user")
	}
	if user, ok := c.state.User(current.UserID); ok && user.Stateless {
		return sdkerr.New(sdkerr.KindStatelessNotSupported, "stateless users cannot enroll for mobile auth")
	}
	if err := c.client.EnrollMobileAuth(ctx); err != nil {
		c.state.SetError("mobile auth enrollment failed: " + err.Error())
		return err
	}
	c.state.SetEnrollmentState(session.MobileEnrolled)
	c.state.SetInfo("enrolled for mobile authentication")
	return nil
}

// RegisterForPush submits the device push token. Requires prior mobile
// enrollment.
func (c *Coordinator) RegisterForPush(ctx context.Context, deviceToken string) error {
	if c.state.EnrollmentState() == session.Unenrolled {
		return sdkerr.New(sdkerr.KindRequiresAuthentication, "push registration requires mobile auth enrollment")
	}
	if err := c.client.EnrollPush(ctx, deviceToken); err != nil {
		c.state.SetError("push enrollment failed: " + err.Error())
		return err
	}
	c.state.SetEnrollmentState(session.PushEnrolled)
	c.state.SetInfo("enrolled for push authentication")
	return nil
}

// FetchPendingTransactions polls the backend for open transactions, inserts
// them into the pending set (de-duplicated by transaction ID), refreshes the
// badge, and returns the ordered transaction IDs. This is the one blocking
// operation of the orchestrator.
func (c *Coordinator) FetchPendingTransactions(ctx context.Context) ([]string, error) {
	if c.state.UserState().Kind != session.UserAuthenticated {
		return nil, sdkerr.New(sdkerr.KindRequiresAuthentication, "fetching transactions requires an authenticated user")
	}
	if c.state.EnrollmentState() == session.Unenrolled {
		return nil, sdkerr.New(sdkerr.KindRequiresAuthentication, "fetching transactions requires mobile auth enrollment")
	}

	handles, err := c.client.FetchPendingTransactions(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		tx := h.Transaction()
		ids = append(ids, tx.ID)
		if c.state.AddTransaction(session.PendingTransaction{
			TransactionID: tx.ID,
			Message:       tx.Message,
			UserProfileID: tx.UserProfileID,
		}) {
			c.storeHandle(tx.ID, h)
		}
	}
	c.updateBadge()
	return ids, nil
}

// HandlePush ingests a raw push payload. Payloads that resolve to no
// transaction (typically because nobody is authenticated) only surface a
// message.
func (c *Coordinator) HandlePush(payload []byte) {
	h, ok := c.client.TransactionFromPush(payload)
	if !ok {
		c.state.SetInfo("push not handled, user likely not authenticated")
		slog.Info("push payload not resolvable to a transaction")
		return
	}
	tx := h.Transaction()
	if c.state.AddTransaction(session.PendingTransaction{
		TransactionID: tx.ID,
		Message:       tx.Message,
		UserProfileID: tx.UserProfileID,
	}) {
		c.storeHandle(tx.ID, h)
	}
	c.updateBadge()
	c.nav.ShowPendingTransactions()
	slog.Info("push transaction received", "transaction_id", tx.ID)
}

// PresentOTPScanner shows the scanner for one-time-code capture.
func (c *Coordinator) PresentOTPScanner() {
	c.state.SetScannerState(session.ScannerForOTP)
}

// DismissOTPScanner hides the scanner without submitting a code.
func (c *Coordinator) DismissOTPScanner() {
	c.state.SetScannerState(session.ScannerHidden)
}

// HandleOTP forwards a scanned or typed one-time code.
func (c *Coordinator) HandleOTP(ctx context.Context, code string) error {
	if err := c.client.HandleOTP(ctx, code, c.Handle); err != nil {
		otpErr := sdkerr.Wrap(sdkerr.KindOTPBusyOrInvalid, err)
		c.state.SetError(otpErr.Error())
		return otpErr
	}
	c.state.SetScannerState(session.ScannerHidden)
	return nil
}

// Decide records the user's confirm/decline decision for a pending
// transaction and hands its handle to the backend for escalation. Unknown
// transaction IDs are no-ops.
func (c *Coordinator) Decide(ctx context.Context, transactionID string, confirmed bool) {
	if !c.state.DecideTransaction(transactionID, confirmed) {
		slog.Debug("decision for unknown transaction, dropping", "transaction_id", transactionID)
		return
	}
	c.mu.Lock()
	h := c.handles[transactionID]
	c.mu.Unlock()
	if h == nil {
		slog.Debug("no handle for decided transaction, dropping", "transaction_id", transactionID)
		return
	}
	c.state.SetProcessing(true)
	c.client.HandlePendingTransaction(ctx, h, c.Handle)
}

// Handle consumes one mobile-auth event from the Identity Service.
// Escalations are queued; at most one is handled at a time.
func (c *Coordinator) Handle(ev identity.MobileAuthEvent) {
	switch e := ev.(type) {
	case identity.ConfirmationRequiredEvent:
		c.queue.Enqueue(&Request{TransactionID: e.TransactionID, Confirm: e.Confirm})
	case identity.MobileAuthPinEvent:
		c.dispatch(&Request{TransactionID: e.TransactionID, Pin: e.Challenge})
	case identity.MobileAuthBiometricEvent:
		c.dispatch(&Request{TransactionID: e.TransactionID, Biometric: e.Challenge})
	case identity.MobileAuthFinishedEvent:
		c.onFinished(e)
	}
}

// dispatch queues a new escalation. A challenge re-issued for the transaction
// that is already the active head is a retry (wrong PIN), not a new
// escalation: it is handled in place so the queue never holds the same
// transaction twice.
func (c *Coordinator) dispatch(r *Request) {
	if r.TransactionID == c.queue.ActiveID() {
		c.beginHandling(r)
		return
	}
	c.queue.Enqueue(r)
}

// beginHandling dispatches the request that just became the queue head,
// consulting the locally recorded decision.
func (c *Coordinator) beginHandling(r *Request) {
	tx, ok := c.state.Transaction(r.TransactionID)
	confirmed := ok && tx.Decided && tx.Confirmed

	switch {
	case r.Confirm != nil:
		// Confirmation-only: answer with the recorded decision right away.
		r.Confirm(confirmed)
		c.dropTransaction(r.TransactionID)

	case r.Pin != nil:
		if !confirmed {
			r.Pin.Cancel()
			c.dropTransaction(r.TransactionID)
			return
		}
		c.pin.PresentEntry(r.Pin)

	case r.Biometric != nil:
		if !confirmed {
			r.Biometric.Cancel()
			c.dropTransaction(r.TransactionID)
			return
		}
		r.Biometric.Respond()
	}
}

func (c *Coordinator) onFinished(ev identity.MobileAuthFinishedEvent) {
	// Only the active head owns the PIN pad and may advance the queue; a
	// terminal event for a never-escalated transaction must not dismiss an
	// unrelated pad or pop someone else's entry.
	active := c.queue.ActiveID() == ev.TransactionID

	if ev.Err != nil {
		mapped := sdkerr.FromCode(ev.Code, ev.Err)
		switch mapped.Kind {
		case sdkerr.KindAccountDeregistered:
			if tx, ok := c.state.Transaction(ev.TransactionID); ok {
				c.state.RemoveUser(tx.UserProfileID)
				c.state.SetEnrollmentState(session.Unenrolled)
				c.state.SetError("account " + tx.UserProfileID + " was deregistered")
				slog.Warn("account deregistered during mobile auth", "user_id", tx.UserProfileID)
			}
			c.pin.Hide()
		case sdkerr.KindRegistrationCancelled:
			c.state.SetInfo("transaction declined")
		default:
			c.state.SetError("mobile authentication failed: " + ev.Err.Error())
		}
	} else if active && c.state.PinPadState() != session.PinPadHidden {
		c.pin.Hide()
	}

	c.dropTransaction(ev.TransactionID)
	c.state.SetProcessing(false)

	if active {
		c.queue.Dequeue()
	}
}

func (c *Coordinator) storeHandle(id string, h identity.TransactionHandle) {
	c.mu.Lock()
	c.handles[id] = h
	c.mu.Unlock()
}

func (c *Coordinator) dropTransaction(id string) {
	c.mu.Lock()
	delete(c.handles, id)
	c.mu.Unlock()
	c.state.RemoveTransaction(id)
	c.updateBadge()
}

func (c *Coordinator) updateBadge() {
	c.pusher.UpdateBadge(c.state.PendingCount())
}
