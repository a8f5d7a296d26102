package goSession

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeAPI struct {
	mu sync.Mutex

	loginResp  *AuthResponse
	loginErr   error
	loginGate  chan struct{}
	loginCalls atomic.Int32

	verifyResp  *AuthResponse
	verifyErr   error
	verifyReqs  []OTPVerification
	verifyCalls atomic.Int32

	logoutErr   error
	logoutCalls atomic.Int32

	currentUser *User
	currentErr  error
	cachedUser  *User

	perms      *permission.Payload
	permsErr   error
	permsGate  chan struct{}
	permsCalls atomic.Int32
}

func (f *fakeAPI) Login(ctx context.Context, _ LoginCredentials) (*AuthResponse, error) {
	f.loginCalls.Add(1)
	if f.loginGate != nil {
		select {
		case <-f.loginGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) VerifyOTP(_ context.Context, req OTPVerification) (*AuthResponse, error) {
	f.verifyCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyReqs = append(f.verifyReqs, req)
	return f.verifyResp, f.verifyErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func (f *fakeAPI) GetCurrentUser(context.Context) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentUser.Clone(), f.currentErr
}

func (f *fakeAPI) GetCachedUser() *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cachedUser.Clone()
}

func (f *fakeAPI) GetMyPermissions(ctx context.Context) (*permission.Payload, error) {
	f.permsCalls.Add(1)
	if f.permsGate != nil {
		select {
		case <-f.permsGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perms.Clone(), f.permsErr
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func boolPtr(v bool) *bool { return &v }

func firmLawyer() *User {
	return &User{
		ID:         "u-firm",
		Username:   "lawyer",
		Email:      "lawyer@example.com",
		Role:       RoleLawyer,
		FirmID:     "firm-1",
		MFAPending: boolPtr(false),
	}
}

// otherFirmLawyer is a second member of the same firm with a distinct ID.
func otherFirmLawyer() *User {
	u := firmLawyer()
	u.ID = "u-other"
	u.Username = "associate"
	u.Email = "associate@example.com"
	return u
}

func ownerPerms() *permission.Payload {
	return &permission.Payload{Modules: map[string]string{"cases": "full"}, Role: "owner"}
}

func memberPerms() *permission.Payload {
	return &permission.Payload{Modules: map[string]string{"cases": "view"}, Role: "member"}
}

func soloLawyer() *User {
	return &User{
		ID:             "u-solo",
		Username:       "solo",
		Email:          "solo@example.com",
		Role:           RoleLawyer,
		IsSoloLawyer:   true,
		LawyerWorkMode: WorkModeSolo,
	}
}

func otpChallenge(token string) *AuthResponse {
	return &AuthResponse{OTP: &OTPData{
		LoginSessionToken:     token,
		Email:                 "l***@example.com",
		FullEmail:             "lawyer@example.com",
		ExpiresIn:             5 * time.Minute,
		LoginSessionExpiresIn: 10 * time.Minute,
	}}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type managerOpts struct {
	cfg         *Config
	backend     session.Backend
	diagnostics Diagnostics
	sink        AuditSink
	source      permission.Source
	now         func() time.Time
}

func newTestManager(t *testing.T, api *fakeAPI, opts managerOpts) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	if opts.cfg != nil {
		cfg = *opts.cfg
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	b := New().WithConfig(cfg).WithAuthAPI(api)
	if opts.backend != nil {
		b.WithBackend(opts.backend)
	}
	if opts.diagnostics != nil {
		b.WithDiagnostics(opts.diagnostics)
	}
	if opts.sink != nil {
		b.WithAuditSink(opts.sink)
	}
	if opts.source != nil {
		b.WithPermissionSource(opts.source)
	}
	if opts.now != nil {
		b.withClock(opts.now)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
