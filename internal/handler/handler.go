// Package handler contains the HTTP handlers of the blog.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, forms, query strings)
//  2. Call the service layer
//  3. Render a page, redirect, or write JSON
//
// Business rules live in the service package. Handlers only translate
// between HTTP and the services, including mapping apperror kinds onto
// status codes and error pages.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/form"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/service"
)

// Page is the data every template receives.
type Page struct {
	Title  string
	User   *model.User // signed-in user, nil for anonymous readers
	Flash  string
	Form   any
	Errors form.Errors
	Data   map[string]any
}

// Renderer renders HTML pages. Each page template is parsed once at startup
// together with base.html and partials.html, the way the layout "extends"
// works in other template engines.
type Renderer struct {
	pages         map[string]*template.Template
	logger        *slog.Logger
	secureCookies bool
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("January 2, 2006")
	},
	"datetime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
	"excerpt": func(s string, n int) string {
		if utf8.RuneCountInString(s) <= n {
			return s
		}
		return string([]rune(s)[:n]) + "…"
	},
	"hasID": func(ids []int64, id int64) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	},
}

// NewRenderer parses every page in files.
func NewRenderer(files fs.FS, logger *slog.Logger, secureCookies bool) (*Renderer, error) {
	names, err := fs.Glob(files, "*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == "base.html" || name == "partials.html" {
			continue
		}
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "base.html", "partials.html", name)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s: %w", name, err)
		}
		pages[strings.TrimSuffix(path.Base(name), ".html")] = tmpl
	}

	return &Renderer{pages: pages, logger: logger, secureCookies: secureCookies}, nil
}

// Render executes page with p and writes it with status. The page is
// rendered into a buffer first so a template error never leaves a half
// written response.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, p Page) {
	tmpl, ok := rn.pages[page]
	if !ok {
		rn.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p.User = CurrentUser(r.Context())
	if p.Flash == "" {
		p.Flash = popFlash(w, r, rn.secureCookies)
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", p); err != nil {
		rn.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page matching err. Unexpected errors are logged
// and shown as a generic 500; their details never reach the page.
func (rn *Renderer) Error(w http.ResponseWriter, r *http.Request, err error) {
	status, title, message := http.StatusInternalServerError, "Something went wrong",
		"An unexpected error occurred. Please try again later."

	switch {
	case errors.Is(err, apperror.ErrNotFound):
		status, title = http.StatusNotFound, "Page not found"
		message = apperror.MessageOf(err, "The page you are looking for does not exist.")
	case errors.Is(err, apperror.ErrForbidden):
		status, title = http.StatusForbidden, "Forbidden"
		message = apperror.MessageOf(err, "You are not allowed to do that.")
	default:
		rn.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	rn.Render(w, r, status, "error", Page{
		Data: map[string]any{"Status": status, "Title": title, "Message": message},
	})
}

// NotFound renders the 404 page for unmatched routes.
func (rn *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rn.Error(w, r, apperror.NotFound("page", r.URL.Path))
}

// formStatus picks the status for re-rendering a form after err, and
// reports whether err belongs on the form at all.
func formStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, true
	default:
		return 0, false
	}
}

// ===== flash messages =====

const flashCookie = "flash"

// SetFlash stores a one-time message shown on the next rendered page.
func SetFlash(w http.ResponseWriter, msg string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request, secure bool) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	msg, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

// ===== current user =====

type userKey struct{}

// CurrentUser returns the signed-in user loaded by LoadUser, or nil.
func CurrentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey{}).(*model.User)
	return u
}

// LoadUser resolves the session's user id into the full user record so
// pages can greet the reader. It runs after auth.Session.
func LoadUser(users *service.UserService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.Get(r.Context(), id)
			if err != nil {
				if !errors.Is(err, apperror.ErrNotFound) {
					logger.Error("loading session user",
						slog.Int64("userID", id),
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
		})
	}
}

// ===== request helpers =====

// pathID parses the {name} URL parameter. Anything but a positive integer
// is reported as NotFound, like a route that never matched.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound("page", raw)
	}
	return id, nil
}

// queryInt reads a positive integer query parameter, or 0.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// queryID reads an optional id filter from the query string.
func queryID(r *http.Request, name string) *int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// redirect issues a 303 so the browser follows up with a GET.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}
