package middleware

import (
	"net/http"
	"strings"

	"github.com/questboard/questboard/internal/ctxkeys"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/service"
)

// AuthMiddleware resolves the session token from the auth cookie or an
// Authorization bearer header and adds user + profile to the context.
// Requests without a valid session continue anonymously.
func AuthMiddleware(authService *service.AuthService, userService *service.UserService, profileService *service.ProfileService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			// A stale cookie is dropped so the browser stops sending it.
			reject := func() {
				if fromCookie {
					authService.ClearJWTCookie(w)
				}
				next.ServeHTTP(w, r)
			}

			userID, err := authService.UserIDFromToken(token)
			if err != nil {
				reject()
				return
			}

			user, err := userService.ByID(r.Context(), userID)
			if err != nil {
				reject()
				return
			}
			user.PasswordHash = nil

			profile, err := profileService.ByUserID(r.Context(), userID)
			if err != nil {
				reject()
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			ctx = ctxkeys.WithProfile(ctx, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 unless AuthMiddleware found a session.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil || ctxkeys.Profile(r.Context()) == nil {
			render.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if bearer, ok := bearerToken(r); ok {
		return bearer, false
	}

	cookie, err := r.Cookie(service.AuthCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
