package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/meridianhr/payroll-backend-go/internal/domain/user"
	"github.com/meridianhr/payroll-backend-go/internal/handler/http/response"
)

// RequireRole restricts a route to the given roles.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Forbidden(w, "Insufficient role")
				return
			}

			roleStr, ok := claims["role"].(string)
			if !ok {
				response.Forbidden(w, "Insufficient role")
				return
			}

			role := user.Role(roleStr)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Forbidden(w, "Insufficient role")
		})
	}
}
