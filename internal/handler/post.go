package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/form"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/service"
)

// PostHandler serves the home page, the post pages and the category and
// tag listings.
type PostHandler struct {
	posts    *service.PostService
	taxonomy *service.TaxonomyService
	pages    *Renderer
	logger   *slog.Logger
	secure   bool
}

func NewPostHandler(
	posts *service.PostService,
	taxonomy *service.TaxonomyService,
	pages *Renderer,
	logger *slog.Logger,
	secureCookies bool,
) *PostHandler {
	return &PostHandler{
		posts:    posts,
		taxonomy: taxonomy,
		pages:    pages,
		logger:   logger,
		secure:   secureCookies,
	}
}

// HandleIndex shows the newest posts.
//
// HTTP: GET / and GET /index
func (h *PostHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Recent(r.Context(), service.RecentPostCount)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "index", Page{
		Data: map[string]any{"Posts": posts},
	})
}

// HandleList shows every post, newest first, one page at a time.
//
// HTTP: GET /posts?page=N
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.renderListing(w, r, "All posts", "/posts", service.PostQuery{})
}

// HandleCategory lists the posts filed under a category.
//
// HTTP: GET /categories/{id}
func (h *PostHandler) HandleCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	c, err := h.taxonomy.GetCategory(r.Context(), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.renderListing(w, r, "Category: "+c.Name, fmt.Sprintf("/categories/%d", id),
		service.PostQuery{CategoryID: &id})
}

// HandleTag lists the posts carrying a tag.
//
// HTTP: GET /tags/{id}
func (h *PostHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	tag, err := h.taxonomy.GetTag(r.Context(), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.renderListing(w, r, "Tagged: "+tag.Name, fmt.Sprintf("/tags/%d", id),
		service.PostQuery{TagID: &id})
}

func (h *PostHandler) renderListing(w http.ResponseWriter, r *http.Request, heading, basePath string, q service.PostQuery) {
	q.Page = queryInt(r, "page")
	page, err := h.posts.List(r.Context(), q)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, http.StatusOK, "posts", Page{
		Data: map[string]any{"Heading": heading, "Page": page, "BasePath": basePath},
	})
}

// HandleShow shows a single post with its category and tags.
//
// HTTP: GET /posts/{id}
func (h *PostHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}

	canEdit := false
	if u := CurrentUser(r.Context()); u != nil {
		canEdit = post.OwnedBy(u.ID)
	}
	h.pages.Render(w, r, http.StatusOK, "post", Page{
		Data: map[string]any{"Post": post, "CanEdit": canEdit},
	})
}

// HandleNew shows the empty post form (GET) or publishes a post (POST).
// The signed-in user becomes the author.
//
// HTTP: GET/POST /posts/new (login required)
func (h *PostHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.renderForm(w, r, http.StatusOK, "New post", "/posts/new", form.PostForm{}, nil)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	var f form.PostForm
	errs := decodeAndValidate(r, &f)
	if errs != nil {
		h.renderForm(w, r, http.StatusUnprocessableEntity, "New post", "/posts/new", f, errs)
		return
	}

	post, err := h.posts.Create(r.Context(), userID, postInput(f))
	if err != nil {
		if status, ok := formStatus(err); ok {
			errs = form.Errors{}
			errs.AddError(err)
			h.renderForm(w, r, status, "New post", "/posts/new", f, errs)
			return
		}
		h.pages.Error(w, r, err)
		return
	}

	SetFlash(w, "Your post has been published.", h.secure)
	redirect(w, r, fmt.Sprintf("/posts/%d", post.ID))
}

// HandleEdit shows the filled-in form (GET) or saves the changes (POST).
// Only the author may edit; posts without an author are open to anyone
// signed in.
//
// HTTP: GET/POST /posts/edit/{id} (login required)
func (h *PostHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	action := fmt.Sprintf("/posts/edit/%d", id)

	if r.Method != http.MethodPost {
		post, err := h.posts.Editable(r.Context(), userID, id)
		if err != nil {
			h.pages.Error(w, r, err)
			return
		}
		h.renderForm(w, r, http.StatusOK, "Edit post", action, postForm(post), nil)
		return
	}

	var f form.PostForm
	if errs := decodeAndValidate(r, &f); errs != nil {
		// Ownership is checked before showing the form again.
		if _, err := h.posts.Editable(r.Context(), userID, id); err != nil {
			h.pages.Error(w, r, err)
			return
		}
		h.renderForm(w, r, http.StatusUnprocessableEntity, "Edit post", action, f, errs)
		return
	}

	if _, err := h.posts.Update(r.Context(), userID, id, service.UpdateFromInput(postInput(f))); err != nil {
		if status, ok := formStatus(err); ok {
			errs := form.Errors{}
			errs.AddError(err)
			h.renderForm(w, r, status, "Edit post", action, f, errs)
			return
		}
		h.pages.Error(w, r, err)
		return
	}

	SetFlash(w, "Your changes have been saved.", h.secure)
	redirect(w, r, fmt.Sprintf("/posts/%d", id))
}

// HandleDelete removes a post and returns to the post list.
//
// HTTP: POST /posts/delete/{id} (login required)
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.posts.Delete(r.Context(), userID, id); err != nil {
		h.pages.Error(w, r, err)
		return
	}

	SetFlash(w, "The post has been deleted.", h.secure)
	redirect(w, r, "/posts")
}

func (h *PostHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, heading, action string, f form.PostForm, errs form.Errors) {
	categories, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	tags, err := h.taxonomy.ListTags(r.Context())
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, status, "post_form", Page{
		Form:   f,
		Errors: errs,
		Data: map[string]any{
			"Heading":    heading,
			"Action":     action,
			"Categories": categories,
			"Tags":       tags,
		},
	})
}

// decodeAndValidate fills dst from the request body and runs its rules.
// A body that cannot be decoded is reported as a form-level error.
func decodeAndValidate(r *http.Request, dst any) form.Errors {
	if err := form.Decode(r, dst); err != nil {
		return form.Errors{"form": "The form could not be read. Please check your input."}
	}
	return form.Validate(dst)
}

func postInput(f form.PostForm) service.PostInput {
	in := service.PostInput{
		Title:      f.Title,
		Slug:       f.Slug,
		Content:    f.Content,
		AuthorName: f.AuthorName,
		TagIDs:     f.TagIDs,
	}
	if f.CategoryID > 0 {
		in.CategoryID = &f.CategoryID
	}
	return in
}

func postForm(p *model.Post) form.PostForm {
	f := form.PostForm{
		Title:      p.Title,
		Slug:       p.Slug,
		Content:    p.Content,
		AuthorName: p.AuthorName,
	}
	if p.CategoryID != nil {
		f.CategoryID = *p.CategoryID
	}
	for _, t := range p.Tags {
		f.TagIDs = append(f.TagIDs, t.ID)
	}
	return f
}
