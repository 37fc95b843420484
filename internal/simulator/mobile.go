package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"idshowcase/internal/identity"
	"idshowcase/internal/sdkerr"
)

// Escalation kinds for seeded transactions.
const (
	KindConfirm   = "confirm"
	KindPin       = "pin"
	KindBiometric = "biometric"
)

type pendingTx struct {
	tx   identity.Transaction
	kind string
	otp  string
}

type txHandle struct {
	tx identity.Transaction
}

func (h txHandle) Transaction() identity.Transaction { return h.tx }

func (s *Service) EnrollMobileAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated == "" {
		return errors.New("mobile auth enrollment requires authentication")
	}
	s.enrolledMobile = true
	return nil
}

func (s *Service) EnrollPush(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enrolledMobile {
		return errors.New("push enrollment requires mobile auth enrollment")
	}
	if token == "" {
		return errors.New("empty device token")
	}
	s.pushToken = token
	s.enrolledPush = true
	return nil
}

func (s *Service) MobileAuthEnrollment(ctx context.Context, profileID string) (identity.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return identity.Enrollment{}, fmt.Errorf("unknown profile %q", profileID)
	}
	return identity.Enrollment{Mobile: s.enrolledMobile, Push: s.enrolledPush}, nil
}

// Seed adds a pending transaction awaiting the given escalation kind and
// returns it. The demo API uses this to stage transactions; tests use it to
// script scenarios.
func (s *Service) Seed(message, kind string) (identity.Transaction, error) {
	switch kind {
	case KindConfirm, KindPin, KindBiometric:
	default:
		return identity.Transaction{}, fmt.Errorf("unknown escalation kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := identity.Transaction{
		ID:            "tx-" + uuid.NewString()[:8],
		Message:       message,
		UserProfileID: s.authenticated,
	}
	s.pending[tx.ID] = &pendingTx{tx: tx, kind: kind, otp: "otp-" + tx.ID}
	s.pendingOrder = append(s.pendingOrder, tx.ID)
	return tx, nil
}

// PushPayload renders the push notification payload for a seeded transaction.
func (s *Service) PushPayload(transactionID string) []byte {
	payload, _ := json.Marshal(map[string]string{"transaction_id": transactionID})
	return payload
}

func (s *Service) FetchPendingTransactions(ctx context.Context) ([]identity.TransactionHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated == "" {
		return nil, errors.New("fetching transactions requires authentication")
	}
	out := make([]identity.TransactionHandle, 0, len(s.pendingOrder))
	for _, id := range s.pendingOrder {
		if p, ok := s.pending[id]; ok {
			out = append(out, txHandle{tx: p.tx})
		}
	}
	return out, nil
}

func (s *Service) TransactionFromPush(payload []byte) (identity.TransactionHandle, bool) {
	var msg struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil || msg.TransactionID == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated == "" {
		return nil, false
	}
	p, ok := s.pending[msg.TransactionID]
	if !ok {
		return nil, false
	}
	return txHandle{tx: p.tx}, true
}

// HandlePendingTransaction escalates the transaction to its configured
// authenticator kind and reports a terminal event when done.
func (s *Service) HandlePendingTransaction(ctx context.Context, handle identity.TransactionHandle, sink func(identity.MobileAuthEvent)) {
	id := handle.Transaction().ID
	s.mu.Lock()
	p, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		sink(identity.MobileAuthFinishedEvent{TransactionID: id, Err: fmt.Errorf("no pending transaction %q", id)})
		return
	}

	switch p.kind {
	case KindPin:
		s.escalatePin(p, sink)
	case KindBiometric:
		sink(identity.MobileAuthBiometricEvent{TransactionID: id, Challenge: &biometricTxChallenge{
			accept:  func() { s.finish(id, sink, 0, nil) },
			decline: func() { s.decline(id, sink) },
		}})
	default:
		sink(identity.ConfirmationRequiredEvent{TransactionID: id, Confirm: func(accepted bool) {
			if !accepted {
				s.decline(id, sink)
				return
			}
			s.finish(id, sink, 0, nil)
		}})
	}
}

func (s *Service) escalatePin(p *pendingTx, sink func(identity.MobileAuthEvent)) {
	id := p.tx.ID
	attempts := s.maxAttempts

	var issue func()
	issue = func() {
		sink(identity.MobileAuthPinEvent{TransactionID: id, Challenge: &pinEntryChallenge{
			attempts: attempts,
			respond: func(pin string) {
				s.mu.Lock()
				owner := s.profiles[p.tx.UserProfileID]
				s.mu.Unlock()
				if owner == nil {
					s.finish(id, sink, 0, fmt.Errorf("profile %q no longer registered", p.tx.UserProfileID))
					return
				}
				if pin == owner.pin {
					s.finish(id, sink, 0, nil)
					return
				}
				attempts--
				if attempts > 0 {
					issue()
					return
				}
				s.mu.Lock()
				delete(s.profiles, owner.id)
				if s.authenticated == owner.id {
					s.authenticated = ""
				}
				s.mu.Unlock()
				s.finish(id, sink, sdkerr.CodeUserDeregistered, errors.New("PIN attempts exhausted, account deregistered"))
			},
			cancel: func() { s.decline(id, sink) },
		}})
	}
	issue()
}

// decline finishes a transaction the user refused. The terminal event carries
// the cancellation code so callers can tell a refusal from a success.
func (s *Service) decline(id string, sink func(identity.MobileAuthEvent)) {
	s.finish(id, sink, sdkerr.CodeActionCancelled, errors.New("transaction declined by user"))
}

func (s *Service) finish(id string, sink func(identity.MobileAuthEvent), code int, err error) {
	s.mu.Lock()
	delete(s.pending, id)
	for i, pid := range s.pendingOrder {
		if pid == id {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
	s.otpBusy = false
	s.mu.Unlock()
	sink(identity.MobileAuthFinishedEvent{TransactionID: id, Code: code, Err: err})
}

type biometricTxChallenge struct {
	accept  func()
	decline func()
	used    bool
}

func (c *biometricTxChallenge) Respond() {
	if c.used {
		return
	}
	c.used = true
	c.accept()
}

func (c *biometricTxChallenge) Cancel() {
	if c.used {
		return
	}
	c.used = true
	c.decline()
}

// HandleOTP resolves a one-time code to its transaction and escalates it as
// a confirmation. Only one OTP may be in flight at a time.
func (s *Service) HandleOTP(ctx context.Context, code string, sink func(identity.MobileAuthEvent)) error {
	s.mu.Lock()
	if s.otpBusy {
		s.mu.Unlock()
		return errors.New("another OTP request is already in flight")
	}
	var match *pendingTx
	for _, p := range s.pending {
		if p.otp == code || p.tx.ID == code {
			match = p
			break
		}
	}
	if match == nil {
		s.mu.Unlock()
		return fmt.Errorf("no transaction matches the provided code")
	}
	s.otpBusy = true
	s.mu.Unlock()

	id := match.tx.ID
	sink(identity.ConfirmationRequiredEvent{TransactionID: id, Confirm: func(accepted bool) {
		if !accepted {
			s.decline(id, sink)
			return
		}
		s.finish(id, sink, 0, nil)
	}})
	return nil
}
