package goSession

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/jwt"
)

// Login submits credentials.
//
// While an OTP challenge with a live login session token is held, Login
// performs no I/O and returns the existing otp_required result with the same
// *OTPData. Otherwise it clears the error and breach warning, leaves any OTP
// sub-session untouched until the response is known, and applies the outcome.
//
// On failure the user is cleared, State.Error is set, and the error is
// returned. The OTP sub-session is dropped only for [ErrAuthFailure].
func (m *Manager) Login(ctx context.Context, creds LoginCredentials) (LoginResult, error) {
	if err := m.ready(); err != nil {
		return LoginResult{}, err
	}
	attemptID := attemptIDFromContext(ctx)

	m.mu.Lock()
	if otp := m.st.otpData; m.st.otpRequired && otp != nil && otp.LoginSessionToken != "" {
		m.mu.Unlock()
		m.metrics.Inc(MetricLoginGuarded)
		m.logger.Debug().Str("attempt_id", attemptID).Msg("login ignored: otp challenge in flight")
		return LoginResult{Type: LoginOTPRequired, OTPData: otp}, nil
	}
	m.st.isLoading = true
	m.st.errMsg = ""
	m.st.breachWarning = nil
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	start := m.now()
	resp, err := m.api.Login(ctx, creds)
	m.metrics.Observe(MetricLoginLatency, m.now().Sub(start))
	if err != nil {
		return m.failLogin(ctx, attemptID, AuditLoginFailure, err, errors.Is(err, ErrAuthFailure))
	}
	return m.applyAuthResponse(ctx, attemptID, resp)
}

// VerifyOTP submits the code for the held OTP challenge. Success is handled
// like a direct login response. A failed verification keeps the challenge so
// the user can retry, unless the backend reports the login session expired.
func (m *Manager) VerifyOTP(ctx context.Context, code string) (LoginResult, error) {
	if err := m.ready(); err != nil {
		return LoginResult{}, err
	}
	attemptID := attemptIDFromContext(ctx)

	m.mu.Lock()
	otp := m.st.otpData
	if !m.st.otpRequired || otp == nil || otp.LoginSessionToken == "" {
		m.mu.Unlock()
		return LoginResult{}, ErrOTPNotPending
	}
	m.st.isLoading = true
	m.st.errMsg = ""
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	email := otp.FullEmail
	if email == "" {
		email = otp.Email
	}
	start := m.now()
	resp, err := m.api.VerifyOTP(ctx, OTPVerification{
		Email:             email,
		Code:              code,
		Purpose:           "login",
		LoginSessionToken: otp.LoginSessionToken,
	})
	m.metrics.Observe(MetricLoginLatency, m.now().Sub(start))
	if err != nil {
		m.metrics.Inc(MetricOTPVerifyFailure)
		return m.failLogin(ctx, attemptID, AuditOTPVerifyFailure, err, errors.Is(err, ErrLoginSessionExpired))
	}
	res, err := m.applyAuthResponse(ctx, attemptID, resp)
	if err == nil {
		m.metrics.Inc(MetricOTPVerifySuccess)
	}
	return res, err
}

func (m *Manager) applyAuthResponse(ctx context.Context, attemptID string, resp *AuthResponse) (LoginResult, error) {
	switch {
	case resp == nil:
		return m.failLogin(ctx, attemptID, AuditLoginFailure, fmt.Errorf("%w: empty auth response", ErrInvalidResponse), false)
	case resp.OTP != nil:
		return m.applyOTPChallenge(ctx, attemptID, resp.OTP)
	case resp.User != nil:
		return m.applyUser(ctx, attemptID, resp)
	default:
		return m.failLogin(ctx, attemptID, AuditLoginFailure, fmt.Errorf("%w: response carries neither user nor otp challenge", ErrInvalidResponse), false)
	}
}

func (m *Manager) applyOTPChallenge(ctx context.Context, attemptID string, otp *OTPData) (LoginResult, error) {
	if otp.LoginSessionToken == "" {
		return m.failLogin(ctx, attemptID, AuditLoginFailure, fmt.Errorf("%w: otp challenge without login session token", ErrInvalidResponse), false)
	}
	if otp.IssuedAt.IsZero() {
		otp.IssuedAt = m.now()
	}

	m.mu.Lock()
	m.st.otpRequired = true
	m.st.otpData = otp
	m.st.isLoading = false
	m.st.errMsg = ""
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	m.metrics.Inc(MetricLoginOTPRequired)
	m.logger.Debug().Str("attempt_id", attemptID).Msg("login: otp required")
	m.emitAudit(ctx, AuditEvent{
		EventType: AuditLoginOTPRequired,
		AttemptID: attemptID,
		Success:   true,
	})
	return LoginResult{Type: LoginOTPRequired, OTPData: otp}, nil
}

func (m *Manager) applyUser(ctx context.Context, attemptID string, resp *AuthResponse) (LoginResult, error) {
	u := resp.User.Clone()
	var warning *PasswordBreachWarning
	if resp.PasswordWarning != nil {
		w := *resp.PasswordWarning
		warning = &w
		if w.Breached {
			u.MustChangePassword = true
			u.PasswordBreached = true
		}
	}
	var token *jwt.Claims
	if resp.AccessToken != "" {
		claims, err := jwt.Inspect(resp.AccessToken)
		if err != nil {
			m.logger.Warn().Err(err).Msg("access token not inspectable")
		} else {
			token = claims
		}
	}
	mfaPending := u.IsMFAPending()

	m.mu.Lock()
	sameUser := m.st.user != nil && m.st.user.ID == u.ID
	m.st.user = u
	m.st.otpRequired = false
	m.st.otpData = nil
	m.st.breachWarning = warning
	if resp.EmailVerification != nil {
		m.st.emailVerification = resp.EmailVerification.clone()
	}
	m.st.isLoading = false
	m.st.errMsg = ""
	m.token = token
	m.gen++
	gen := m.gen
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	if !sameUser {
		m.perms.Clear()
	}
	m.persistAuth()
	m.setDiagnostics(u)
	if !mfaPending {
		m.populatePermissions(u, gen)
	}

	res := LoginResult{Type: LoginSuccess, User: s.User}
	ev := AuditEvent{EventType: AuditLoginSuccess, AttemptID: attemptID, Success: true}
	if mfaPending {
		res.Type = LoginMFARequired
		ev.EventType = AuditLoginMFARequired
		m.metrics.Inc(MetricLoginMFARequired)
	} else {
		m.metrics.Inc(MetricLoginSuccess)
	}
	if warning != nil && warning.Breached {
		ev.Metadata = map[string]string{"password_breached": "true"}
	}
	auditUser(&ev, u)
	m.emitAudit(ctx, ev)
	m.logger.Debug().Str("attempt_id", attemptID).Str("user_id", u.ID).Str("result", string(res.Type)).Msg("login applied")
	return res, nil
}

func (m *Manager) failLogin(ctx context.Context, attemptID, eventType string, err error, clearOTP bool) (LoginResult, error) {
	msg := UserMessage(err)

	m.mu.Lock()
	hadUser := m.st.user != nil
	m.st.user = nil
	m.st.isLoading = false
	m.st.errMsg = msg
	if clearOTP {
		m.st.otpRequired = false
		m.st.otpData = nil
	}
	m.token = nil
	if hadUser {
		m.gen++
	}
	s := m.st.export()
	m.mu.Unlock()
	m.notify(s)

	if hadUser {
		m.perms.Clear()
		m.persistAuth()
		m.setDiagnostics(nil)
	}

	m.metrics.Inc(MetricLoginFailure)
	if errors.Is(err, ErrRateLimited) {
		m.metrics.Inc(MetricLoginRateLimited)
	}
	m.emitAudit(ctx, AuditEvent{
		EventType: eventType,
		AttemptID: attemptID,
		Success:   false,
		Error:     auditErr(err),
		Metadata:  map[string]string{"otp_cleared": fmt.Sprint(clearOTP)},
	})
	m.logger.Debug().Err(err).Str("attempt_id", attemptID).Bool("otp_cleared", clearOTP).Msg("login failed")
	return LoginResult{}, err
}
