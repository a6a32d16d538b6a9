package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

// RequireRole admits only actors holding one of the allowed roles. Requests
// that reach it without an authenticated actor get 401, not 403.
func RequireRole(logg *logger.Logger, allowed ...enums.StaffRole) func(http.Handler) http.Handler {
	names := strings.Join(lo.Map(allowed, func(r enums.StaffRole, _ int) string { return r.String() }), " or ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			switch {
			case actor.StaffID == "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !lo.Contains(allowed, actor.Role):
				responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeForbidden, "%s role required", names))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
