package middleware

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/permission"
)

type stateContextKey struct{}

// StateFromContext returns the session state admitted by a guard.
func StateFromContext(ctx context.Context) (goSession.State, bool) {
	s, ok := ctx.Value(stateContextKey{}).(goSession.State)
	return s, ok
}

// Rule decides whether an authenticated session may proceed.
type Rule func(goSession.State, *permission.Cache) bool

// Guard rejects anonymous or MFA-pending sessions with 401 and sessions that
// fail rule with 403. A nil rule admits every authenticated session.
func Guard(m *goSession.Manager, rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			s := m.State()
			if !s.IsAuthenticated {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if rule != nil && !rule(s, m.Permissions()) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), stateContextKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuthenticated(m *goSession.Manager) func(http.Handler) http.Handler {
	return Guard(m, nil)
}

// RequireModule admits sessions holding at least level on module. Departed
// members are always rejected.
func RequireModule(m *goSession.Manager, module string, level permission.Level) func(http.Handler) http.Handler {
	return Guard(m, func(_ goSession.State, p *permission.Cache) bool {
		return !p.IsDeparted() && p.HasPermission(module, level)
	})
}
