package mobileauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"idshowcase/internal/identity"
	"idshowcase/internal/identity/identitytest"
	"idshowcase/internal/pin"
	"idshowcase/internal/sdkerr"
	"idshowcase/internal/session"
)

type fixture struct {
	coord  *Coordinator
	state  *session.State
	pusher *identitytest.Pusher
	nav    *identitytest.Navigator
}

func newFixture(client *identitytest.Client) *fixture {
	state := session.New()
	state.SetInitialized(true)
	pusher := &identitytest.Pusher{}
	nav := &identitytest.Navigator{}
	pinCoord := pin.New(state, client, time.Millisecond)
	return &fixture{
		coord:  New(state, client, pinCoord, pusher, nav),
		state:  state,
		pusher: pusher,
		nav:    nav,
	}
}

func authenticated(f *fixture, userID string) {
	f.state.AddUser(session.RegisteredUser{UserID: userID})
	f.state.SetUserState(session.Authenticated(userID))
}

func TestEnroll_RequiresAuthentication(t *testing.T) {
	f := newFixture(&identitytest.Client{})

	err := f.coord.Enroll(context.Background())
	if !sdkerr.Is(err, sdkerr.KindRequiresAuthentication) {
		t.Fatalf("Expected requires-authentication, got %v", err)
	}
}

func TestEnroll_RejectsStatelessUser(t *testing.T) {
	f := newFixture(&identitytest.Client{})
	f.state.AddUser(session.RegisteredUser{UserID: "user-1", Stateless: true})
	f.state.SetUserState(session.Authenticated("user-1"))

	err := f.coord.Enroll(context.Background())
	if !sdkerr.Is(err, sdkerr.KindStatelessNotSupported) {
		t.Fatalf("Expected stateless rejection, got %v", err)
	}
}

func TestEnroll_Success(t *testing.T) {
	f := newFixture(&identitytest.Client{})
	authenticated(f, "user-1")

	if err := f.coord.Enroll(context.Background()); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if f.state.EnrollmentState() != session.MobileEnrolled {
		t.Errorf("Expected mobile enrolled, got %v", f.state.EnrollmentState())
	}
}

func TestRegisterForPush_RequiresEnrollment(t *testing.T) {
	f := newFixture(&identitytest.Client{})
	authenticated(f, "user-1")

	err := f.coord.RegisterForPush(context.Background(), "device-token")
	if !sdkerr.Is(err, sdkerr.KindRequiresAuthentication) {
		t.Fatalf("Expected enrollment guard, got %v", err)
	}

	f.state.SetEnrollmentState(session.MobileEnrolled)
	if err := f.coord.RegisterForPush(context.Background(), "device-token"); err != nil {
		t.Fatalf("RegisterForPush failed: %v", err)
	}
	if f.state.EnrollmentState() != session.PushEnrolled {
		t.Errorf("Expected push enrolled, got %v", f.state.EnrollmentState())
	}
}

func TestFetchPendingTransactions_DeduplicatesAndUpdatesBadge(t *testing.T) {
	client := &identitytest.Client{
		FetchPendingFunc: func(ctx context.Context) ([]identity.TransactionHandle, error) {
			return []identity.TransactionHandle{
				identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", Message: "Pay $10", UserProfileID: "user-1"}},
				identitytest.Handle{Tx: identity.Transaction{ID: "tx-2", Message: "Pay $20", UserProfileID: "user-1"}},
			}, nil
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")
	f.state.SetEnrollmentState(session.PushEnrolled)

	ids, err := f.coord.FetchPendingTransactions(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "tx-1" || ids[1] != "tx-2" {
		t.Fatalf("Expected ordered IDs, got %v", ids)
	}
	if f.pusher.Last() != 2 {
		t.Errorf("Expected badge 2, got %d", f.pusher.Last())
	}

	// A second poll returning the same transactions must not duplicate them.
	if _, err := f.coord.FetchPendingTransactions(context.Background()); err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if f.state.PendingCount() != 2 {
		t.Errorf("Expected 2 pending after refetch, got %d", f.state.PendingCount())
	}
}

func TestHandlePush_UnresolvedPayloadOnlySurfacesMessage(t *testing.T) {
	f := newFixture(&identitytest.Client{})

	f.coord.HandlePush([]byte(`{"transaction_id":"tx-9"}`))

	if f.state.PendingCount() != 0 {
		t.Errorf("Expected no transaction, got %d", f.state.PendingCount())
	}
	if f.state.Info() == "" {
		t.Error("Expected informational message")
	}
	if f.nav.ShownCount() != 0 {
		t.Error("Expected no navigation")
	}
}

func TestHandlePush_InsertsAndNavigates(t *testing.T) {
	client := &identitytest.Client{
		TransactionFromPushFunc: func(payload []byte) (identity.TransactionHandle, bool) {
			return identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", Message: "Pay $10", UserProfileID: "user-1"}}, true
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")

	f.coord.HandlePush([]byte(`{"transaction_id":"tx-1"}`))

	if f.state.PendingCount() != 1 {
		t.Fatalf("Expected 1 pending, got %d", f.state.PendingCount())
	}
	if f.pusher.Last() != 1 {
		t.Errorf("Expected badge 1, got %d", f.pusher.Last())
	}
	if f.nav.ShownCount() != 1 {
		t.Errorf("Expected navigation to pending view, got %d", f.nav.ShownCount())
	}
}

func TestHandleOTP_FailureWrapped(t *testing.T) {
	client := &identitytest.Client{
		HandleOTPFunc: func(ctx context.Context, code string, sink func(identity.MobileAuthEvent)) error {
			return errors.New("mobile authentication already in progress")
		},
	}
	f := newFixture(client)

	err := f.coord.HandleOTP(context.Background(), "otp-tx-1")
	if !sdkerr.Is(err, sdkerr.KindOTPBusyOrInvalid) {
		t.Fatalf("Expected OTP busy/invalid, got %v", err)
	}
	if f.state.LastError() == "" {
		t.Error("Expected failure surfaced")
	}
}

func TestDecide_UnknownTransactionIsNoop(t *testing.T) {
	called := false
	client := &identitytest.Client{
		HandlePendingFunc: func(ctx context.Context, h identity.TransactionHandle, sink func(identity.MobileAuthEvent)) {
			called = true
		},
	}
	f := newFixture(client)

	f.coord.Decide(context.Background(), "tx-missing", true)
	if called {
		t.Error("Expected no backend call for unknown transaction")
	}
}

func TestDecide_ConfirmationOnlyFlow(t *testing.T) {
	var confirmed *bool
	client := &identitytest.Client{
		TransactionFromPushFunc: func(payload []byte) (identity.TransactionHandle, bool) {
			return identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", UserProfileID: "user-1"}}, true
		},
		HandlePendingFunc: func(ctx context.Context, h identity.TransactionHandle, sink func(identity.MobileAuthEvent)) {
			sink(identity.ConfirmationRequiredEvent{
				TransactionID: h.Transaction().ID,
				Confirm:       func(ok bool) { confirmed = &ok },
			})
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")
	f.coord.HandlePush(nil)

	f.coord.Decide(context.Background(), "tx-1", true)

	if confirmed == nil || !*confirmed {
		t.Fatal("Expected recorded decision forwarded as confirmation")
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("Expected transaction removed, got %d pending", f.state.PendingCount())
	}
	if f.pusher.Last() != 0 {
		t.Errorf("Expected badge back to 0, got %d", f.pusher.Last())
	}
}

func TestDecide_DeclinedPinEscalationIsCancelled(t *testing.T) {
	pinCh := &identitytest.PinChallenge{Attempts: 3}
	client := &identitytest.Client{
		TransactionFromPushFunc: func(payload []byte) (identity.TransactionHandle, bool) {
			return identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", UserProfileID: "user-1"}}, true
		},
		HandlePendingFunc: func(ctx context.Context, h identity.TransactionHandle, sink func(identity.MobileAuthEvent)) {
			sink(identity.MobileAuthPinEvent{TransactionID: h.Transaction().ID, Challenge: pinCh})
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")
	f.coord.HandlePush(nil)

	f.coord.Decide(context.Background(), "tx-1", false)

	if !pinCh.WasCancelled() {
		t.Error("Expected declined escalation to cancel the challenge")
	}
	if f.state.PinPadState() != session.PinPadHidden {
		t.Errorf("Expected pin pad hidden, got %v", f.state.PinPadState())
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("Expected transaction removed, got %d pending", f.state.PendingCount())
	}
}

// Confirming a transaction that escalates to PIN entry presents the pad;
// submitting the PIN completes the transaction and shrinks the badge.
func TestDecide_ConfirmedPinEscalationPresentsPad(t *testing.T) {
	pinCh := &identitytest.PinChallenge{Attempts: 3}
	var sink func(identity.MobileAuthEvent)
	client := &identitytest.Client{
		TransactionFromPushFunc: func(payload []byte) (identity.TransactionHandle, bool) {
			return identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", UserProfileID: "user-1"}}, true
		},
		HandlePendingFunc: func(ctx context.Context, h identity.TransactionHandle, s func(identity.MobileAuthEvent)) {
			sink = s
			s(identity.MobileAuthPinEvent{TransactionID: h.Transaction().ID, Challenge: pinCh})
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")
	f.coord.HandlePush(nil)
	if f.pusher.Last() != 1 {
		t.Fatalf("Expected badge 1 after push, got %d", f.pusher.Last())
	}

	f.coord.Decide(context.Background(), "tx-1", true)

	if f.state.PinPadState() != session.PinPadChanging {
		t.Fatalf("Expected pin pad presented, got %v", f.state.PinPadState())
	}

	// Correct PIN: the backend finishes the transaction.
	pinCh.OnRespond = func(pin string) {
		sink(identity.MobileAuthFinishedEvent{TransactionID: "tx-1"})
	}
	pinCoord := f.coord.pin
	if err := pinCoord.Submit(context.Background(), "11111"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if f.state.PinPadState() != session.PinPadHidden {
		t.Errorf("Expected pin pad hidden after completion, got %v", f.state.PinPadState())
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("Expected transaction removed, got %d pending", f.state.PendingCount())
	}
	if f.pusher.Last() != 0 {
		t.Errorf("Expected badge 0, got %d", f.pusher.Last())
	}
}

// A wrong PIN makes the backend re-issue an entry challenge for the same
// transaction. The re-issue is a retry of the active head, not a new
// escalation: it must be handled in place, keep the pad up with the remaining
// attempts surfaced, and leave the queue able to drain once the correct PIN
// arrives.
func TestHandle_ReissuedPinChallengeRetriesInPlace(t *testing.T) {
	pin1 := &identitytest.PinChallenge{Attempts: 3}
	pin2 := &identitytest.PinChallenge{Attempts: 2}
	var sink func(identity.MobileAuthEvent)
	client := &identitytest.Client{
		TransactionFromPushFunc: func(payload []byte) (identity.TransactionHandle, bool) {
			return identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", UserProfileID: "user-1"}}, true
		},
		HandlePendingFunc: func(ctx context.Context, h identity.TransactionHandle, s func(identity.MobileAuthEvent)) {
			sink = s
			s(identity.MobileAuthPinEvent{TransactionID: h.Transaction().ID, Challenge: pin1})
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")
	f.coord.HandlePush(nil)

	f.coord.Decide(context.Background(), "tx-1", true)
	if f.state.PinPadState() != session.PinPadChanging {
		t.Fatalf("Expected pin pad presented, got %v", f.state.PinPadState())
	}

	// Wrong PIN: the backend answers with a fresh challenge for tx-1.
	pin1.OnRespond = func(pin string) {
		sink(identity.MobileAuthPinEvent{TransactionID: "tx-1", Challenge: pin2})
	}
	if err := f.coord.pin.Submit(context.Background(), "99999"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if got := f.coord.queue.Len(); got != 1 {
		t.Fatalf("Expected tx-1 queued exactly once, got queue length %d", got)
	}
	if f.state.PinPadState() != session.PinPadChanging {
		t.Fatalf("Expected pin pad still up for retry, got %v", f.state.PinPadState())
	}
	if msg := f.state.LastError(); !strings.Contains(msg, "2 attempts remaining") {
		t.Fatalf("Expected remaining attempts surfaced, got %q", msg)
	}

	// Correct PIN on the retry challenge finishes the transaction.
	pin2.OnRespond = func(pin string) {
		sink(identity.MobileAuthFinishedEvent{TransactionID: "tx-1"})
	}
	if err := f.coord.pin.Submit(context.Background(), "11111"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if got := pin2.Responded(); len(got) != 1 || got[0] != "11111" {
		t.Fatalf("Expected retry challenge to receive the PIN, got %v", got)
	}
	if f.coord.queue.Len() != 0 {
		t.Errorf("Expected queue drained, got length %d", f.coord.queue.Len())
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("Expected transaction removed, got %d pending", f.state.PendingCount())
	}
	if f.state.PinPadState() != session.PinPadHidden {
		t.Errorf("Expected pin pad hidden, got %v", f.state.PinPadState())
	}
}

func TestDecide_BiometricEscalationResponds(t *testing.T) {
	bio := &identitytest.BiometricChallenge{}
	client := &identitytest.Client{
		TransactionFromPushFunc: func(payload []byte) (identity.TransactionHandle, bool) {
			return identitytest.Handle{Tx: identity.Transaction{ID: "tx-1", UserProfileID: "user-1"}}, true
		},
		HandlePendingFunc: func(ctx context.Context, h identity.TransactionHandle, sink func(identity.MobileAuthEvent)) {
			sink(identity.MobileAuthBiometricEvent{TransactionID: h.Transaction().ID, Challenge: bio})
		},
	}
	f := newFixture(client)
	authenticated(f, "user-1")
	f.coord.HandlePush(nil)

	f.coord.Decide(context.Background(), "tx-1", true)

	if !bio.WasAccepted() {
		t.Error("Expected biometric challenge accepted")
	}
}

// A second escalation arriving while the first is still being handled waits
// in the queue and only begins after the first finishes.
func TestHandle_SecondEscalationWaitsForFirst(t *testing.T) {
	pin1 := &identitytest.PinChallenge{Attempts: 3}
	pin2 := &identitytest.PinChallenge{Attempts: 3}
	f := newFixture(&identitytest.Client{})
	authenticated(f, "user-1")
	f.state.AddTransaction(session.PendingTransaction{TransactionID: "tx-1", Decided: true, Confirmed: true})
	f.state.AddTransaction(session.PendingTransaction{TransactionID: "tx-2", Decided: true, Confirmed: true})

	f.coord.Handle(identity.MobileAuthPinEvent{TransactionID: "tx-1", Challenge: pin1})
	f.coord.Handle(identity.MobileAuthPinEvent{TransactionID: "tx-2", Challenge: pin2})

	if err := f.coord.pin.Submit(context.Background(), "11111"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := pin1.Responded(); len(got) != 1 || got[0] != "11111" {
		t.Fatalf("Expected first challenge to receive the PIN, got %v", got)
	}
	if len(pin2.Responded()) != 0 {
		t.Fatal("Expected second escalation to stay queued")
	}

	f.coord.Handle(identity.MobileAuthFinishedEvent{TransactionID: "tx-1"})

	// Now tx-2 becomes the head and its pad is presented.
	if f.state.PinPadState() != session.PinPadChanging {
		t.Fatalf("Expected second escalation presented, got %v", f.state.PinPadState())
	}
	if err := f.coord.pin.Submit(context.Background(), "22222"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := pin2.Responded(); len(got) != 1 || got[0] != "22222" {
		t.Errorf("Expected second challenge to receive the PIN, got %v", got)
	}
}

func TestHandle_FinishedForUnqueuedTransactionDoesNotAdvanceQueue(t *testing.T) {
	pin1 := &identitytest.PinChallenge{Attempts: 3}
	f := newFixture(&identitytest.Client{})
	authenticated(f, "user-1")
	f.state.AddTransaction(session.PendingTransaction{TransactionID: "tx-1", Decided: true, Confirmed: true})

	f.coord.Handle(identity.MobileAuthPinEvent{TransactionID: "tx-1", Challenge: pin1})

	// A confirmation-only transaction finishes without ever being queued.
	f.coord.Handle(identity.MobileAuthFinishedEvent{TransactionID: "tx-other"})

	if f.coord.queue.ActiveID() != "tx-1" {
		t.Errorf("Expected tx-1 still active, got %q", f.coord.queue.ActiveID())
	}
	if f.state.PinPadState() != session.PinPadChanging {
		t.Errorf("Expected tx-1's pin pad untouched, got %v", f.state.PinPadState())
	}
}

func TestHandle_FinishedDeregistrationCleansUp(t *testing.T) {
	f := newFixture(&identitytest.Client{})
	authenticated(f, "user-1")
	f.state.SetEnrollmentState(session.PushEnrolled)
	f.state.SetPinPadState(session.PinPadChanging)
	f.state.AddTransaction(session.PendingTransaction{TransactionID: "tx-1", UserProfileID: "user-1"})

	f.coord.Handle(identity.MobileAuthFinishedEvent{
		TransactionID: "tx-1",
		Code:          sdkerr.CodeUserDeregistered,
		Err:           errors.New("user deregistered"),
	})

	if _, ok := f.state.User("user-1"); ok {
		t.Error("Expected user removed")
	}
	if f.state.EnrollmentState() != session.Unenrolled {
		t.Errorf("Expected unenrolled, got %v", f.state.EnrollmentState())
	}
	if f.state.PinPadState() != session.PinPadHidden {
		t.Errorf("Expected pin pad hidden, got %v", f.state.PinPadState())
	}
	if f.state.LastError() == "" {
		t.Error("Expected deregistration surfaced")
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("Expected transaction removed, got %d pending", f.state.PendingCount())
	}
}
