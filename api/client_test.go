package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/permission"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

type backend struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{t: t, routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		b.mu.Lock()
		b.requests = append(b.requests, rec)
		h := b.routes[r.Method+" "+r.URL.Path]
		b.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) handle(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (b *backend) last() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		b.t.Fatalf("no requests recorded")
	}
	return b.requests[len(b.requests)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL+"/", Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  ", Options{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestLoginDirectUser(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("POST /auth/login", 200, `{
		"user": {"_id": "u1", "username": "lawyer", "email": "l@example.com", "role": "lawyer", "tenant": {"id": "firm-9"}},
		"access_token": "tok-snake",
		"passwordWarning": {"breached": true, "count": 3},
		"emailVerification": {"isVerified": false, "requiresVerification": true, "verificationSentAt": "2026-01-02T03:04:05Z"}
	}`)
	c := newTestClient(t, srv)

	res, err := c.Login(context.Background(), goSession.LoginCredentials{Username: "lawyer", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.User == nil || res.User.ID != "u1" || res.User.FirmID != "firm-9" {
		t.Fatalf("user not normalized: %+v", res.User)
	}
	if res.AccessToken != "tok-snake" || c.AccessToken() != "tok-snake" {
		t.Fatalf("token not captured")
	}
	if res.PasswordWarning == nil || !res.PasswordWarning.Breached || res.PasswordWarning.Count != 3 {
		t.Fatalf("unexpected warning %+v", res.PasswordWarning)
	}
	ev := res.EmailVerification
	if ev == nil || !ev.RequiresVerification || ev.VerificationSentAt == nil || ev.VerificationSentAt.Year() != 2026 {
		t.Fatalf("unexpected email verification %+v", ev)
	}
	if cached := c.GetCachedUser(); cached == nil || cached.ID != "u1" {
		t.Fatalf("user not cached")
	}
	if got := b.last().body["password"]; got != "pw" {
		t.Fatalf("credentials not posted")
	}
}

func TestLoginOTPNestedAndFlat(t *testing.T) {
	for name, body := range map[string]string{
		"nested": `{"requires": {"otp": true}, "email": "l***@example.com", "loginSessionToken": "lst", "expiresIn": 120}`,
		"flat":   `{"requiresOtp": true, "code": "OTP_REQUIRED", "email": "l***@example.com", "loginSessionToken": "lst", "expiresIn": 120}`,
	} {
		t.Run(name, func(t *testing.T) {
			b, srv := newBackend(t)
			b.handle("POST /auth/login", 200, body)
			c := newTestClient(t, srv)

			res, err := c.Login(context.Background(), goSession.LoginCredentials{Username: "lawyer@example.com"})
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			otp := res.OTP
			if otp == nil || res.User != nil {
				t.Fatalf("expected otp challenge, got %+v", res)
			}
			if otp.LoginSessionToken != "lst" || otp.FullEmail != "lawyer@example.com" || otp.Email != "l***@example.com" {
				t.Fatalf("unexpected otp %+v", otp)
			}
			if otp.ExpiresIn != 2*time.Minute || otp.LoginSessionExpiresIn != 10*time.Minute {
				t.Fatalf("unexpected expiries %v %v", otp.ExpiresIn, otp.LoginSessionExpiresIn)
			}
		})
	}
}

func TestLoginOTPWithoutTokenFails(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("POST /auth/login", 200, `{"requiresOtp": true}`)
	c := newTestClient(t, srv)

	if _, err := c.Login(context.Background(), goSession.LoginCredentials{}); !errors.Is(err, goSession.ErrInvalidResponse) {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   error
		msg    string
	}{
		{401, `{"message": "Invalid credentials"}`, goSession.ErrAuthFailure, "Invalid credentials"},
		{400, `{"messageEn": "Bad request", "message": "طلب غير صالح"}`, goSession.ErrAuthFailure, "Bad request"},
		{429, `{}`, goSession.ErrRateLimited, ""},
		{401, `{"code": "LOGIN_SESSION_EXPIRED"}`, goSession.ErrLoginSessionExpired, ""},
		{503, `upstream down`, goSession.ErrServer, ""},
		{422, `{}`, goSession.ErrInvalidResponse, ""},
	}
	for _, tc := range cases {
		b, srv := newBackend(t)
		b.handle("POST /auth/login", tc.status, tc.body)
		c := newTestClient(t, srv)

		_, err := c.Login(context.Background(), goSession.LoginCredentials{})
		if !errors.Is(err, tc.kind) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.kind, err)
		}
		var apiErr *goSession.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != tc.status || apiErr.Message != tc.msg {
			t.Fatalf("status %d: unexpected api error %+v", tc.status, apiErr)
		}
	}
}

func TestNetworkFailure(t *testing.T) {
	_, srv := newBackend(t)
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Login(context.Background(), goSession.LoginCredentials{})
	if !errors.Is(err, goSession.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestVerifyOTP(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("POST /auth/verify-otp", 200, `{"user": {"id": "u1", "firm": {"id": "f1"}}, "accessToken": "tok-camel"}`)
	c := newTestClient(t, srv)

	res, err := c.VerifyOTP(context.Background(), goSession.OTPVerification{
		Email:             "lawyer@example.com",
		Code:              "123456",
		LoginSessionToken: "lst",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.User.FirmID != "f1" || res.AccessToken != "tok-camel" {
		t.Fatalf("unexpected response %+v", res)
	}
	body := b.last().body
	if body["otp"] != "123456" || body["purpose"] != "login" || body["loginSessionToken"] != "lst" || body["email"] != "lawyer@example.com" {
		t.Fatalf("unexpected verify body %v", body)
	}
}

func TestVerifyOTPRequiresLoginSessionToken(t *testing.T) {
	b, srv := newBackend(t)
	c := newTestClient(t, srv)

	_, err := c.VerifyOTP(context.Background(), goSession.OTPVerification{Code: "1"})
	if !errors.Is(err, goSession.ErrLoginSessionExpired) {
		t.Fatalf("expected expired login session, got %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) != 0 {
		t.Fatalf("no request expected")
	}
}

func TestBearerTokenAndLogout(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("POST /auth/login", 200, `{"user": {"id": "u1"}, "accessToken": "tok"}`)
	b.handle("GET /auth/me", 200, `{"user": {"id": "u1", "firmId": "f1"}}`)
	b.handle("POST /auth/logout", 500, `{}`)
	c := newTestClient(t, srv)

	if _, err := c.Login(context.Background(), goSession.LoginCredentials{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	u, err := c.GetCurrentUser(context.Background())
	if err != nil || u == nil || u.FirmID != "f1" {
		t.Fatalf("current user: %+v %v", u, err)
	}
	if b.last().auth != "Bearer tok" {
		t.Fatalf("bearer token not sent: %q", b.last().auth)
	}

	if err := c.Logout(context.Background()); !errors.Is(err, goSession.ErrServer) {
		t.Fatalf("expected server error from logout, got %v", err)
	}
	if c.AccessToken() != "" || c.GetCachedUser() != nil {
		t.Fatalf("local credentials must be dropped even on failure")
	}
}

func TestGetCurrentUserNoSession(t *testing.T) {
	for name, resp := range map[string]struct {
		status int
		body   string
	}{
		"unauthorized": {401, `{"message": "no session"}`},
		"empty":        {200, `{"error": true}`},
	} {
		t.Run(name, func(t *testing.T) {
			b, srv := newBackend(t)
			b.handle("GET /auth/me", resp.status, resp.body)
			c := newTestClient(t, srv)

			u, err := c.GetCurrentUser(context.Background())
			if err != nil || u != nil {
				t.Fatalf("expected (nil, nil), got %+v %v", u, err)
			}
		})
	}
}

func TestGetCurrentUserServerError(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("GET /auth/me", 502, `{}`)
	c := newTestClient(t, srv)

	if _, err := c.GetCurrentUser(context.Background()); !errors.Is(err, goSession.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestGetMyPermissions(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("GET /permissions/my", 200, `{"data": {"modules": {"cases": "edit"}, "special": {"canViewReports": true}, "role": "admin"}}`)
	c := newTestClient(t, srv)

	p, err := c.GetMyPermissions(context.Background())
	if err != nil {
		t.Fatalf("permissions: %v", err)
	}
	if p.Modules["cases"] != "edit" || !p.Special["canViewReports"] || p.Role != "admin" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestGetMyPermissionsBarePayload(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("GET /permissions/my", 200, `{"modules": {"tasks": "full"}, "role": "owner"}`)
	c := newTestClient(t, srv)

	p, err := c.GetMyPermissions(context.Background())
	if err != nil || p.Modules["tasks"] != "full" || p.Role != "owner" {
		t.Fatalf("unexpected payload %+v %v", p, err)
	}
}

func TestGetMyPermissionsNoFirm(t *testing.T) {
	_, srv := newBackend(t)
	c := newTestClient(t, srv)

	if _, err := c.GetMyPermissions(context.Background()); !errors.Is(err, permission.ErrNoFirm) {
		t.Fatalf("expected ErrNoFirm, got %v", err)
	}
}

func TestCookieJarCarriesRefreshCookie(t *testing.T) {
	b, srv := newBackend(t)
	b.mu.Lock()
	b.routes["POST /auth/login"] = func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/"})
		_, _ = w.Write([]byte(`{"user": {"id": "u1"}}`))
	}
	var cookie string
	b.routes["GET /auth/me"] = func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("refreshToken"); err == nil {
			b.mu.Lock()
			cookie = ck.Value
			b.mu.Unlock()
		}
		_, _ = w.Write([]byte(`{"user": {"id": "u1"}}`))
	}
	b.mu.Unlock()
	c := newTestClient(t, srv)

	if _, err := c.Login(context.Background(), goSession.LoginCredentials{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.GetCurrentUser(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cookie != "r1" {
		t.Fatalf("refresh cookie not replayed")
	}
}

func TestClientBacksManager(t *testing.T) {
	b, srv := newBackend(t)
	b.handle("POST /auth/login", 200, `{"user": {"id": "u1", "role": "lawyer", "firmId": "f1"}, "accessToken": "tok"}`)
	b.handle("GET /permissions/my", 200, `{"modules": {"cases": "view"}}`)
	c := newTestClient(t, srv)

	m, err := goSession.New().WithAuthAPI(c).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := m.Login(context.Background(), goSession.LoginCredentials{Username: "lawyer"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	m.Close()
	if !m.Permissions().CanView("cases") || m.Permissions().CanEdit("cases") {
		t.Fatalf("firm permissions not fetched through the client")
	}
	if !strings.HasPrefix(b.last().auth, "Bearer ") {
		t.Fatalf("permissions request must carry the bearer token")
	}
}
