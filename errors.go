package goSession

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthFailure reports rejected credentials or OTP codes (HTTP 400/401).
	ErrAuthFailure = errors.New("authentication failed")
	// ErrRateLimited reports a throttled request (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork reports a transport failure before a response was received.
	ErrNetwork = errors.New("network failure")
	// ErrLoginSessionExpired reports that the OTP login session token is no longer valid.
	ErrLoginSessionExpired = errors.New("login session expired")
	// ErrOTPNotPending is returned by VerifyOTP when no OTP challenge is held.
	ErrOTPNotPending = errors.New("no otp challenge pending")
	// ErrManagerNotReady is returned by calls on a nil or closed Manager.
	ErrManagerNotReady = errors.New("session manager not ready")
	// ErrServer reports a backend failure (HTTP 5xx).
	ErrServer = errors.New("server error")
	// ErrForbidden reports a request rejected for authorization reasons (HTTP 403).
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound reports a missing resource (HTTP 404).
	ErrNotFound = errors.New("not found")
	// ErrInvalidResponse reports a response that could not be interpreted.
	ErrInvalidResponse = errors.New("invalid response")
)

// APIError is a classified backend failure. It matches its Kind sentinel and
// the wrapped cause with errors.Is.
type APIError struct {
	Kind    error
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	kind := "api error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	switch {
	case e.Status != 0 && msg != "":
		return fmt.Sprintf("%s (status %d): %s", kind, e.Status, msg)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", kind, e.Status)
	case msg != "":
		return kind + ": " + msg
	default:
		return kind
	}
}

func (e *APIError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindForStatus maps an HTTP status code to its error sentinel. It returns
// nil for 2xx and 3xx codes.
func KindForStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusBadRequest, status == http.StatusUnauthorized:
		return ErrAuthFailure
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusGone:
		return ErrLoginSessionExpired
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServer
	default:
		return ErrInvalidResponse
	}
}

// UserMessage returns the text shown to the user for err. A backend-supplied
// message wins over the generic one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch {
	case errors.Is(err, ErrAuthFailure):
		return "Invalid username or password."
	case errors.Is(err, ErrRateLimited):
		return "Too many attempts. Please wait and try again."
	case errors.Is(err, ErrLoginSessionExpired):
		return "Your login session has expired. Please sign in again."
	case errors.Is(err, ErrNetwork):
		return "Unable to reach the server. Check your connection."
	case errors.Is(err, ErrServer):
		return "The server encountered an error. Please try again later."
	case errors.Is(err, ErrOTPNotPending):
		return "No verification code was requested. Please sign in again."
	default:
		return "Sign-in failed. Please try again."
	}
}
