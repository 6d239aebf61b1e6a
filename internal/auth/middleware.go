package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/inkwell/internal/apperror"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session"

// contextKey is unexported so no other package can read or shadow the
// values stored here.
type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns a copy of ctx carrying the signed-in user's id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the signed-in user's id, or (0, false) for an
// anonymous request.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// Session reads the session cookie and, when it holds a valid token, puts
// the user id in the request context. Requests without a valid cookie
// continue anonymously.
func Session(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
				if userID, err := tokens.Validate(cookie.Value); err == nil {
					r = r.WithContext(WithUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LastSeenRecorder is the part of the user store TrackLastSeen needs.
type LastSeenRecorder interface {
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
}

// TrackLastSeen records activity for every authenticated request before the
// handler runs. A token whose user no longer exists is dropped and the
// request continues anonymously; any other failure is logged and ignored.
// secure marks the clearing cookie Secure, like every other cookie write.
func TrackLastSeen(users LastSeenRecorder, logger *slog.Logger, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			err := users.TouchLastSeen(r.Context(), userID, time.Now())
			switch {
			case errors.Is(err, apperror.ErrNotFound):
				ClearSessionCookie(w, secure)
				r = r.WithContext(WithUserID(r.Context(), 0))
			case err != nil:
				logger.Warn("recording last seen failed",
					slog.Int64("userID", userID),
					slog.String("error", err.Error()),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin redirects anonymous requests to the login page, remembering
// where they were headed in the "next" query parameter.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie stores token in the session cookie. A remembered session
// outlives the browser session; otherwise the cookie is dropped on close
// while the token itself still expires after ttl.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, remember, secure bool) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeNext returns next if it is a same-site relative path, else "/".
// Absolute URLs, scheme-relative "//host" and backslash tricks are refused
// so the login form cannot be used as an open redirect.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
