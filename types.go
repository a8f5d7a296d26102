package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/permission"
)

// UserRole is the platform role of a user.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleLawyer UserRole = "lawyer"
	RoleClient UserRole = "client"
)

// WorkModeSolo is the LawyerWorkMode of an operator without a firm.
const WorkModeSolo = "solo"

// User is the identity returned by the auth backend.
type User struct {
	ID                 string              `json:"id"`
	Username           string              `json:"username"`
	Email              string              `json:"email"`
	FirstName          string              `json:"firstName,omitempty"`
	LastName           string              `json:"lastName,omitempty"`
	Role               UserRole            `json:"role"`
	FirmID             string              `json:"firmId,omitempty"`
	FirmRole           string              `json:"firmRole,omitempty"`
	FirmStatus         string              `json:"firmStatus,omitempty"`
	Plan               string              `json:"plan,omitempty"`
	Features           []string            `json:"features,omitempty"`
	IsEmailVerified    bool                `json:"isEmailVerified"`
	MustChangePassword bool                `json:"mustChangePassword,omitempty"`
	PasswordBreached   bool                `json:"passwordBreached,omitempty"`
	MFAEnabled         bool                `json:"mfaEnabled,omitempty"`
	MFAPending         *bool               `json:"mfaPending,omitempty"`
	IsSoloLawyer       bool                `json:"isSoloLawyer,omitempty"`
	LawyerWorkMode     string              `json:"lawyerWorkMode,omitempty"`
	Permissions        *permission.Payload `json:"permissions,omitempty"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Features != nil {
		out.Features = append([]string(nil), u.Features...)
	}
	if u.MFAPending != nil {
		v := *u.MFAPending
		out.MFAPending = &v
	}
	out.Permissions = u.Permissions.Clone()
	return &out
}

// IsMFAPending reports the backend's mfaPending flag, treating an absent
// flag as false. MFAEnabled is never consulted.
func (u *User) IsMFAPending() bool {
	return u != nil && u.MFAPending != nil && *u.MFAPending
}

// IsSolo reports whether u is a solo operator.
func (u *User) IsSolo() bool {
	return u != nil && (u.IsSoloLawyer || u.LawyerWorkMode == WorkModeSolo)
}

// IsFirmLawyer reports whether u is a lawyer affiliated with a firm.
func (u *User) IsFirmLawyer() bool {
	return u != nil && u.Role == RoleLawyer && u.FirmID != ""
}

// PasswordBreachWarning is the advisory attached to a login whose password
// appeared in a known breach.
type PasswordBreachWarning struct {
	Breached bool   `json:"breached"`
	Count    int    `json:"count,omitempty"`
	Message  string `json:"message,omitempty"`
}

// EmailVerification mirrors the backend's email-verification status.
type EmailVerification struct {
	IsVerified           bool       `json:"isVerified"`
	RequiresVerification bool       `json:"requiresVerification"`
	VerificationSentAt   *time.Time `json:"verificationSentAt,omitempty"`
}

func (e *EmailVerification) clone() *EmailVerification {
	if e == nil {
		return nil
	}
	out := *e
	if e.VerificationSentAt != nil {
		t := *e.VerificationSentAt
		out.VerificationSentAt = &t
	}
	return &out
}

// OTPData is the email OTP sub-session. LoginSessionToken is single use and
// must accompany the code on verification. Values are shared by pointer and
// must not be modified.
type OTPData struct {
	LoginSessionToken     string
	Email                 string
	FullEmail             string
	Message               string
	ExpiresIn             time.Duration
	LoginSessionExpiresIn time.Duration
	IssuedAt              time.Time
}

// LoginCredentials is the password login request.
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String omits the password.
func (c LoginCredentials) String() string {
	return "LoginCredentials{Username:" + c.Username + "}"
}

// OTPVerification is the OTP submit request.
type OTPVerification struct {
	Email             string `json:"email"`
	Code              string `json:"otp"`
	Purpose           string `json:"purpose"`
	LoginSessionToken string `json:"loginSessionToken"`
}

// LoginResultType tags a [LoginResult].
type LoginResultType string

const (
	LoginSuccess     LoginResultType = "success"
	LoginOTPRequired LoginResultType = "otp_required"
	LoginMFARequired LoginResultType = "mfa_required"
)

// LoginResult is the outcome of Login or VerifyOTP. User is set for success
// and mfa_required; OTPData is set for otp_required.
type LoginResult struct {
	Type    LoginResultType
	User    *User
	OTPData *OTPData
}

// AuthResponse is an interpreted login or OTP-verify response. Exactly one of
// User and OTP is set.
type AuthResponse struct {
	User              *User
	OTP               *OTPData
	PasswordWarning   *PasswordBreachWarning
	EmailVerification *EmailVerification
	AccessToken       string
}

// AuthAPI is the backend contract consumed by the Manager.
//
// GetCurrentUser returns (nil, nil) when the backend explicitly reports no
// session. GetCachedUser must not perform I/O.
type AuthAPI interface {
	Login(ctx context.Context, creds LoginCredentials) (*AuthResponse, error)
	VerifyOTP(ctx context.Context, req OTPVerification) (*AuthResponse, error)
	Logout(ctx context.Context) error
	GetCurrentUser(ctx context.Context) (*User, error)
	GetCachedUser() *User
}

// AccessTokenSource is implemented by an AuthAPI that can report the access
// token it currently holds.
type AccessTokenSource interface {
	AccessToken() string
}

// DiagnosticsIdentity is the user identity attached to diagnostics reports.
type DiagnosticsIdentity struct {
	ID       string
	Email    string
	Username string
	FirmID   string
}

// Diagnostics receives identity changes. A nil identity detaches the user.
type Diagnostics interface {
	SetUser(*DiagnosticsIdentity)
}

// DiagnosticsFunc adapts a function to [Diagnostics].
type DiagnosticsFunc func(*DiagnosticsIdentity)

// SetUser calls f(id).
func (f DiagnosticsFunc) SetUser(id *DiagnosticsIdentity) {
	f(id)
}

// State is a point-in-time copy of the session.
type State struct {
	User                  *User
	IsAuthenticated       bool
	IsLoading             bool
	Error                 string
	PasswordBreachWarning *PasswordBreachWarning
	OTPRequired           bool
	OTPData               *OTPData
	EmailVerification     *EmailVerification
}

// sessionState is the mutable session held by the Manager. IsAuthenticated
// is derived and never stored.
type sessionState struct {
	user              *User
	isLoading         bool
	errMsg            string
	breachWarning     *PasswordBreachWarning
	otpRequired       bool
	otpData           *OTPData
	emailVerification *EmailVerification
}

func (s *sessionState) isAuthenticated() bool {
	return s.user != nil && !s.user.IsMFAPending()
}

func (s *sessionState) export() State {
	out := State{
		User:              s.user.Clone(),
		IsAuthenticated:   s.isAuthenticated(),
		IsLoading:         s.isLoading,
		Error:             s.errMsg,
		OTPRequired:       s.otpRequired,
		EmailVerification: s.emailVerification.clone(),
	}
	if s.breachWarning != nil {
		w := *s.breachWarning
		out.PasswordBreachWarning = &w
	}
	if s.otpData != nil {
		d := *s.otpData
		out.OTPData = &d
	}
	return out
}

// authRecord is the persisted {user, isAuthenticated} projection.
type authRecord struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}
