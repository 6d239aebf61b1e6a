package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkwell/internal/form"
	"github.com/sakif/inkwell/internal/service"
)

// UserHandler serves profile pages.
type UserHandler struct {
	users  *service.UserService
	posts  *service.PostService
	pages  *Renderer
	logger *slog.Logger
	secure bool
}

func NewUserHandler(
	users *service.UserService,
	posts *service.PostService,
	pages *Renderer,
	logger *slog.Logger,
	secureCookies bool,
) *UserHandler {
	return &UserHandler{
		users:  users,
		posts:  posts,
		pages:  pages,
		logger: logger,
		secure: secureCookies,
	}
}

// HandleProfile shows a user's about text, last activity and posts.
//
// HTTP: GET /user/{username} (login required)
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}

	page, err := h.posts.List(r.Context(), service.PostQuery{
		Page:     queryInt(r, "page"),
		AuthorID: &user.ID,
	})
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}

	me := CurrentUser(r.Context())
	h.pages.Render(w, r, http.StatusOK, "user", Page{
		Data: map[string]any{
			"Profile":  user,
			"Page":     page,
			"BasePath": "/user/" + url.PathEscape(user.Username),
			"IsSelf":   me != nil && me.ID == user.ID,
		},
	})
}

// HandleEditProfile edits the signed-in user's about text.
//
// HTTP: GET/POST /profile (login required)
func (h *UserHandler) HandleEditProfile(w http.ResponseWriter, r *http.Request) {
	me := CurrentUser(r.Context())
	if me == nil {
		redirect(w, r, "/login?next=%2Fprofile")
		return
	}

	if r.Method != http.MethodPost {
		h.pages.Render(w, r, http.StatusOK, "profile", Page{Form: form.ProfileForm{AboutMe: me.AboutMe}})
		return
	}

	var f form.ProfileForm
	errs := decodeAndValidate(r, &f)
	if errs == nil {
		err := h.users.UpdateProfile(r.Context(), me.ID, f.AboutMe)
		if err == nil {
			SetFlash(w, "Your changes have been saved.", h.secure)
			redirect(w, r, "/user/"+url.PathEscape(me.Username))
			return
		}
		if _, ok := formStatus(err); !ok {
			h.pages.Error(w, r, err)
			return
		}
		errs = form.Errors{}
		errs.AddError(err)
	}
	h.pages.Render(w, r, http.StatusUnprocessableEntity, "profile", Page{Form: f, Errors: errs})
}
