package session

import "sync"

// State is the single source of truth for the device's identity session.
// Mutations may arrive from any goroutine; every accessor takes the internal
// mutex so each operation is one atomic turn. Operations never fail; this is
// pure in-memory mutation.
type State struct {
	mu sync.Mutex

	initialized  bool
	userState    UserState
	enrollment   EnrollmentState
	pinPad       PinPadState
	scanner      ScannerState
	processing   bool
	lastInfo     string
	lastError    string
	users        map[userKey]*RegisteredUser
	transactions []PendingTransaction
}

type userKey struct {
	userID    string
	stateless bool
}

// New creates a State with all fields at their initial values.
func New() *State {
	return &State{
		userState: NotRegistered(),
		users:     make(map[userKey]*RegisteredUser),
	}
}

// Reset restores every field to its initial value, clearing the
// registered-user and pending-transaction sets. Idempotent.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.userState = NotRegistered()
	s.enrollment = Unenrolled
	s.pinPad = PinPadHidden
	s.scanner = ScannerHidden
	s.processing = false
	s.lastInfo = ""
	s.lastError = ""
	s.users = make(map[userKey]*RegisteredUser)
	s.transactions = nil
}

func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *State) SetInitialized(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = v
}

func (s *State) UserState() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userState
}

// SetUserState installs the new variant. Entering Authenticated clears any
// stale message left over from an unauthenticated state.
func (s *State) SetUserState(u UserState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userState = u
	if u.Kind == UserAuthenticated {
		s.lastError = ""
	}
}

func (s *State) EnrollmentState() EnrollmentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollment
}

func (s *State) SetEnrollmentState(e EnrollmentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollment = e
}

func (s *State) PinPadState() PinPadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinPad
}

func (s *State) SetPinPadState(p PinPadState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinPad = p
}

func (s *State) ScannerState() ScannerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanner
}

func (s *State) SetScannerState(sc ScannerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanner = sc
}

func (s *State) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

func (s *State) SetProcessing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = v
}

func (s *State) Info() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInfo
}

func (s *State) SetInfo(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInfo = msg
}

func (s *State) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *State) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInfo = ""
	s.lastError = ""
}

// AddUser inserts or replaces the registered user keyed by
// (UserID, Stateless).
func (s *State) AddUser(u RegisteredUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Authenticators == nil {
		u.Authenticators = make(map[string]struct{})
	}
	s.users[userKey{u.UserID, u.Stateless}] = &u
}

// User looks up a registered user by ID, regardless of the stateless flag.
func (s *State) User(userID string) (RegisteredUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, u := range s.users {
		if k.userID == userID {
			return *u, true
		}
	}
	return RegisteredUser{}, false
}

// RemoveUser deletes every entry for the user ID (stateless and stateful).
func (s *State) RemoveUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.users {
		if k.userID == userID {
			delete(s.users, k)
		}
	}
}

// SetAuthenticators replaces the authenticator name set of a registered user.
func (s *State) SetAuthenticators(userID string, names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, u := range s.users {
		if k.userID == userID {
			set := make(map[string]struct{}, len(names))
			for _, n := range names {
				set[n] = struct{}{}
			}
			u.Authenticators = set
		}
	}
}

// Users returns a copy of the registered-user set.
func (s *State) Users() []RegisteredUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RegisteredUser, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

// AddTransaction appends the transaction if its ID is not already present.
// Returns true when inserted.
func (s *State) AddTransaction(tx PendingTransaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.transactions {
		if existing.TransactionID == tx.TransactionID {
			return false
		}
	}
	s.transactions = append(s.transactions, tx)
	return true
}

// Transaction looks up a pending transaction by ID.
func (s *State) Transaction(id string) (PendingTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.TransactionID == id {
			return tx, true
		}
	}
	return PendingTransaction{}, false
}

// DecideTransaction records the user's local confirm/decline decision.
// Returns false when the transaction is not pending.
func (s *State) DecideTransaction(id string, confirmed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].TransactionID == id {
			s.transactions[i].Decided = true
			s.transactions[i].Confirmed = confirmed
			return true
		}
	}
	return false
}

// RemoveTransaction drops the pending transaction with the given ID.
// Returns true when something was removed.
func (s *State) RemoveTransaction(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.transactions {
		if tx.TransactionID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return true
		}
	}
	return false
}

// Transactions returns the pending transactions in arrival order.
func (s *State) Transactions() []PendingTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingTransaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// PendingCount returns the size of the pending-transaction set.
func (s *State) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// Snapshot is a read-only view of the session state for the presentation
// layer.
type Snapshot struct {
	Initialized  bool                 `json:"initialized"`
	UserState    UserState            `json:"user_state"`
	Enrollment   string               `json:"enrollment"`
	PinPad       string               `json:"pin_pad"`
	Processing   bool                 `json:"processing"`
	Info         string               `json:"info,omitempty"`
	Error        string               `json:"error,omitempty"`
	Users        []string             `json:"users"`
	Transactions []PendingTransaction `json:"transactions"`
}

// Snapshot copies the current state for serialization.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.users))
	for k := range s.users {
		users = append(users, k.userID)
	}
	txs := make([]PendingTransaction, len(s.transactions))
	copy(txs, s.transactions)
	return Snapshot{
		Initialized:  s.initialized,
		UserState:    s.userState,
		Enrollment:   s.enrollment.String(),
		PinPad:       s.pinPad.String(),
		Processing:   s.processing,
		Info:         s.lastInfo,
		Error:        s.lastError,
		Users:        users,
		Transactions: txs,
	}
}
