package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/form"
	"github.com/sakif/inkwell/internal/service"
)

// GitHubAuthenticator is the OAuth provider used for "Sign in with GitHub".
// *auth.GitHubProvider implements it.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages sign-in, sign-out and registration.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin          → username/password sign-in with "remember me"
//   - HandleLogout         → clear the session cookie
//   - HandleRegister       → create an account
//   - HandleGitHubLogin    → redirect to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code and sign the reader in
type AuthHandler struct {
	users      *service.UserService
	github     GitHubAuthenticator // nil when GitHub sign-in is not configured
	pages      *Renderer
	logger     *slog.Logger
	sessionTTL time.Duration
	secure     bool
}

func NewAuthHandler(
	users *service.UserService,
	github GitHubAuthenticator,
	pages *Renderer,
	logger *slog.Logger,
	sessionTTL time.Duration,
	secureCookies bool,
) *AuthHandler {
	return &AuthHandler{
		users:      users,
		github:     github,
		pages:      pages,
		logger:     logger,
		sessionTTL: sessionTTL,
		secure:     secureCookies,
	}
}

// HandleLogin shows the sign-in form (GET) or signs the reader in (POST).
// Readers who are already signed in go straight to the home page.
//
// HTTP: GET/POST /login?next=/path
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if CurrentUser(r.Context()) != nil {
		redirect(w, r, "/")
		return
	}

	if r.Method != http.MethodPost {
		h.renderLogin(w, r, http.StatusOK, form.LoginForm{Next: r.URL.Query().Get("next")}, nil)
		return
	}

	var f form.LoginForm
	if errs := decodeAndValidate(r, &f); errs != nil {
		f.Password = ""
		h.renderLogin(w, r, http.StatusUnprocessableEntity, f, errs)
		return
	}

	res, err := h.users.Authenticate(r.Context(), f.Username, f.Password)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			SetFlash(w, apperror.MessageOf(err, service.InvalidCredentials), h.secure)
			target := "/login"
			if f.Next != "" {
				target += "?next=" + url.QueryEscape(f.Next)
			}
			redirect(w, r, target)
			return
		}
		h.pages.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.sessionTTL, f.RememberMe, h.secure)
	h.logger.Info("user signed in", slog.Int64("userID", res.User.ID))
	redirect(w, r, auth.SafeNext(f.Next))
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, f form.LoginForm, errs form.Errors) {
	h.pages.Render(w, r, status, "login", Page{
		Form:   f,
		Errors: errs,
		Data:   map[string]any{"GitHub": h.github != nil},
	})
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires, but the browser no longer sends it.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	redirect(w, r, "/")
}

// HandleRegister shows the registration form (GET) or creates the account
// (POST). A taken username or email is reported on that field.
//
// HTTP: GET/POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if CurrentUser(r.Context()) != nil {
		redirect(w, r, "/")
		return
	}

	if r.Method != http.MethodPost {
		h.renderRegister(w, r, http.StatusOK, form.RegistrationForm{}, nil)
		return
	}

	var f form.RegistrationForm
	if errs := decodeAndValidate(r, &f); errs != nil {
		h.renderRegister(w, r, http.StatusUnprocessableEntity, f, errs)
		return
	}

	if _, err := h.users.Register(r.Context(), f.Username, f.Email, f.Password); err != nil {
		if status, ok := formStatus(err); ok {
			errs := form.Errors{}
			errs.AddError(err)
			h.renderRegister(w, r, status, f, errs)
			return
		}
		h.pages.Error(w, r, err)
		return
	}

	SetFlash(w, "Great job! You're now part of the network!", h.secure)
	redirect(w, r, "/login")
}

func (h *AuthHandler) renderRegister(w http.ResponseWriter, r *http.Request, status int, f form.RegistrationForm, errs form.Errors) {
	f.Password, f.ConfirmPassword = "", ""
	h.pages.Render(w, r, status, "register", Page{Form: f, Errors: errs})
}

const oauthStateCookie = "oauth_state"

// HandleGitHubLogin redirects the reader to GitHub's authorization page.
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the authorization
// URL. The callback only proceeds when both match.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.pages.NotFound(w, r)
		return
	}

	state := xid.New().String()
	h.setStateCookie(w, state, 600)
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// setStateCookie writes the OAuth state cookie. A negative maxAge deletes it;
// the deletion carries the same attributes as the original.
func (h *AuthHandler) setStateCookie(w http.ResponseWriter, state string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleGitHubCallback completes the GitHub sign-in.
//
// FLOW:
//  1. Check the state parameter against the cookie
//  2. Exchange the code for the GitHub profile
//  3. Sign in (or register) the user owning that email
//  4. Set the session cookie and go home
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		h.pages.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	h.setStateCookie(w, "", -1)

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", denied))
		SetFlash(w, "GitHub sign-in was cancelled.", h.secure)
		redirect(w, r, "/login")
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		SetFlash(w, "GitHub sign-in failed. Please try again.", h.secure)
		redirect(w, r, "/login")
		return
	}

	res, err := h.users.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			SetFlash(w, apperror.MessageOf(err, service.InvalidCredentials), h.secure)
			redirect(w, r, "/login")
			return
		}
		h.pages.Error(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.sessionTTL, true, h.secure)
	h.logger.Info("user signed in via GitHub",
		slog.Int64("userID", res.User.ID),
		slog.String("login", ghUser.Login),
	)
	redirect(w, r, "/")
}
