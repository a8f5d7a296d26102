package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

const (
	defaultOTPExpiry          = 300 * time.Second
	defaultLoginSessionExpiry = 600 * time.Second
)

// wireUser is the backend's user document. The id may arrive as "_id" and
// the firm as a nested firm or tenant object.
type wireUser struct {
	goSession.User
	MongoID string  `json:"_id"`
	Firm    *wireID `json:"firm"`
	Tenant  *wireID `json:"tenant"`
}

type wireID struct {
	ID string `json:"id"`
}

func (w *wireUser) normalize() *goSession.User {
	if w == nil {
		return nil
	}
	u := w.User.Clone()
	if u.ID == "" {
		u.ID = w.MongoID
	}
	if u.FirmID == "" {
		switch {
		case w.Firm != nil && w.Firm.ID != "":
			u.FirmID = w.Firm.ID
		case w.Tenant != nil && w.Tenant.ID != "":
			u.FirmID = w.Tenant.ID
		}
	}
	return u
}

type wireRequires struct {
	OTP bool `json:"otp"`
	MFA bool `json:"mfa"`
}

// authEnvelope covers login, verify-otp and /auth/me responses. Tokens may
// use snake_case or camelCase names.
type authEnvelope struct {
	Error     bool   `json:"error"`
	Message   string `json:"message"`
	MessageEn string `json:"messageEn"`
	Code      string `json:"code"`

	User *wireUser `json:"user"`

	Requires              *wireRequires `json:"requires"`
	RequiresOTP           bool          `json:"requiresOtp"`
	Email                 string        `json:"email"`
	LoginSessionToken     string        `json:"loginSessionToken"`
	ExpiresIn             int           `json:"expiresIn"`
	LoginSessionExpiresIn int           `json:"loginSessionExpiresIn"`

	AccessTokenSnake string `json:"access_token"`
	AccessToken      string `json:"accessToken"`

	PasswordWarning   *goSession.PasswordBreachWarning `json:"passwordWarning"`
	EmailVerification *goSession.EmailVerification     `json:"emailVerification"`
}

func (e *authEnvelope) otpRequired() bool {
	return e.RequiresOTP || (e.Requires != nil && e.Requires.OTP)
}

func (e *authEnvelope) token() string {
	if e.AccessTokenSnake != "" {
		return e.AccessTokenSnake
	}
	return e.AccessToken
}

func (e *authEnvelope) message() string {
	if e.MessageEn != "" {
		return e.MessageEn
	}
	return e.Message
}

// Login posts the credentials. An OTP challenge comes back as AuthResponse.OTP
// with FullEmail set to the submitted username.
func (c *Client) Login(ctx context.Context, creds goSession.LoginCredentials) (*goSession.AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", creds)
	if err != nil {
		return nil, err
	}
	var env authEnvelope
	if err := parseResponse(resp, &env); err != nil {
		return nil, err
	}

	if env.otpRequired() {
		if env.LoginSessionToken == "" {
			return nil, &goSession.APIError{
				Kind:    goSession.ErrInvalidResponse,
				Status:  resp.StatusCode,
				Code:    env.Code,
				Message: "Authentication system error. Please try again.",
				Err:     errors.New("otp challenge without login session token"),
			}
		}
		otp := &goSession.OTPData{
			LoginSessionToken:     env.LoginSessionToken,
			Email:                 env.Email,
			FullEmail:             creds.Username,
			Message:               env.message(),
			ExpiresIn:             seconds(env.ExpiresIn, defaultOTPExpiry),
			LoginSessionExpiresIn: seconds(env.LoginSessionExpiresIn, defaultLoginSessionExpiry),
			IssuedAt:              time.Now(),
		}
		c.logger.Debug().Str("email", env.Email).Msg("login: otp challenge")
		return &goSession.AuthResponse{OTP: otp}, nil
	}

	return c.userResponse(resp.StatusCode, &env)
}

// VerifyOTP submits the code together with the login session token.
func (c *Client) VerifyOTP(ctx context.Context, req goSession.OTPVerification) (*goSession.AuthResponse, error) {
	if req.Purpose == "" {
		req.Purpose = "login"
	}
	if req.Purpose == "login" && req.LoginSessionToken == "" {
		return nil, &goSession.APIError{Kind: goSession.ErrLoginSessionExpired, Err: errors.New("verify otp without login session token")}
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/verify-otp", req)
	if err != nil {
		return nil, err
	}
	var env authEnvelope
	if err := parseResponse(resp, &env); err != nil {
		return nil, err
	}
	return c.userResponse(resp.StatusCode, &env)
}

func (c *Client) userResponse(status int, env *authEnvelope) (*goSession.AuthResponse, error) {
	if env.Error || env.User == nil {
		return nil, &goSession.APIError{
			Kind:    goSession.ErrAuthFailure,
			Status:  status,
			Code:    env.Code,
			Message: env.message(),
		}
	}
	u := env.User.normalize()
	token := env.token()
	if token == "" {
		c.logger.Warn().Msg("auth response without access token")
	}
	c.remember(u, token)

	return &goSession.AuthResponse{
		User:              u,
		PasswordWarning:   env.PasswordWarning,
		EmailVerification: env.EmailVerification,
		AccessToken:       token,
	}, nil
}

// Logout invalidates the backend session. Local credentials are dropped even
// when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.forget()
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}

// GetCurrentUser asks /auth/me for the session user. A 401, or a body without
// a user, is the backend's explicit "no session" and yields (nil, nil).
func (c *Client) GetCurrentUser(ctx context.Context) (*goSession.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = parseResponse(resp, nil)
		return nil, nil
	}
	var env authEnvelope
	if err := parseResponse(resp, &env); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	if env.Error || env.User == nil {
		return nil, nil
	}
	u := env.User.normalize()
	c.remember(u, "")
	return u, nil
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
