// Package session holds the canonical identity and session state of the
// device. All coordinators read and mutate the single State instance; no
// coordinator keeps a private copy of any session-level field.
package session

// UserStateKind tags the user/session variant. Exactly one variant is live at
// a time and drives which payload fields of UserState are meaningful.
type UserStateKind int

const (
	UserNotRegistered UserStateKind = iota
	UserRegistering
	UserRegistered
	UserUnauthenticated
	UserAuthenticated
	UserStateless
	UserImplicit
	UserSingleSignOn
)

func (k UserStateKind) String() string {
	switch k {
	case UserRegistering:
		return "registering"
	case UserRegistered:
		return "registered"
	case UserUnauthenticated:
		return "unauthenticated"
	case UserAuthenticated:
		return "authenticated"
	case UserStateless:
		return "stateless"
	case UserImplicit:
		return "implicit"
	case UserSingleSignOn:
		return "single_sign_on"
	default:
		return "not_registered"
	}
}

// RegistrationProtocol distinguishes browser-delegated registration from the
// custom API protocol.
type RegistrationProtocol int

const (
	ProtocolBrowser RegistrationProtocol = iota
	ProtocolAPI
)

// UserState is the tagged user/session variant. Payload fields are valid
// only for the kinds noted on the constructors.
type UserState struct {
	Kind     UserStateKind        `json:"kind"`
	Protocol RegistrationProtocol `json:"protocol,omitempty"`
	UserID   string               `json:"user_id,omitempty"`
	SSOURL   string               `json:"sso_url,omitempty"`
}

func NotRegistered() UserState                       { return UserState{Kind: UserNotRegistered} }
func Registering(p RegistrationProtocol) UserState   { return UserState{Kind: UserRegistering, Protocol: p} }
func Registered() UserState                          { return UserState{Kind: UserRegistered} }
func Unauthenticated() UserState                     { return UserState{Kind: UserUnauthenticated} }
func Authenticated(userID string) UserState          { return UserState{Kind: UserAuthenticated, UserID: userID} }
func Stateless() UserState                           { return UserState{Kind: UserStateless} }
func Implicit(userID string) UserState               { return UserState{Kind: UserImplicit, UserID: userID} }
func SingleSignOn(userID, url string) UserState      { return UserState{Kind: UserSingleSignOn, UserID: userID, SSOURL: url} }

// EnrollmentState tracks out-of-band authentication enrollment. Push implies
// mobile; deregistration resets it explicitly.
type EnrollmentState int

const (
	Unenrolled EnrollmentState = iota
	MobileEnrolled
	PushEnrolled
)

func (e EnrollmentState) String() string {
	switch e {
	case MobileEnrolled:
		return "mobile"
	case PushEnrolled:
		return "push"
	default:
		return "unenrolled"
	}
}

// PinPadState tracks the single live PIN collection flow.
type PinPadState int

const (
	PinPadHidden PinPadState = iota
	PinPadCreating
	PinPadCreated
	PinPadChanging
)

func (p PinPadState) String() string {
	switch p {
	case PinPadCreating:
		return "creating"
	case PinPadCreated:
		return "created"
	case PinPadChanging:
		return "changing"
	default:
		return "hidden"
	}
}

// ScannerState tracks the code scanner overlay.
type ScannerState int

const (
	ScannerHidden ScannerState = iota
	ScannerForRegistration
	ScannerForOTP
)

// RegisteredUser is a user profile known to this device, keyed by
// (UserID, Stateless).
type RegisteredUser struct {
	UserID         string
	Stateless      bool
	Authenticators map[string]struct{}
}

// HasAuthenticator reports whether the named authenticator is registered for
// this user.
func (u RegisteredUser) HasAuthenticator(name string) bool {
	_, ok := u.Authenticators[name]
	return ok
}

// PendingTransaction is one out-of-band authentication request awaiting the
// user's local decision. Identity is TransactionID.
type PendingTransaction struct {
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
	UserProfileID string `json:"user_profile_id"`
	Decided       bool   `json:"decided"`
	Confirmed     bool   `json:"confirmed"`
}
