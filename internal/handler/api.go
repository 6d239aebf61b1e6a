package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/service"
)

// APIHandler serves the read-only JSON API.
type APIHandler struct {
	posts    *service.PostService
	taxonomy *service.TaxonomyService
	logger   *slog.Logger
}

func NewAPIHandler(posts *service.PostService, taxonomy *service.TaxonomyService, logger *slog.Logger) *APIHandler {
	return &APIHandler{posts: posts, taxonomy: taxonomy, logger: logger}
}

// PostListResponse is one page of posts.
type PostListResponse struct {
	Posts    []model.Post `json:"posts"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	Total    int          `json:"total"`
}

// HandleListPosts returns a page of posts, newest first.
//
// HTTP: GET /api/posts?page=1&pageSize=10&category=ID&tag=ID&author=ID
func (h *APIHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.List(r.Context(), service.PostQuery{
		Page:       queryInt(r, "page"),
		PageSize:   queryInt(r, "pageSize"),
		CategoryID: queryID(r, "category"),
		TagID:      queryID(r, "tag"),
		AuthorID:   queryID(r, "author"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, PostListResponse{
		Posts:    page.Posts,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
	})
}

// HandleGetPost returns a single post with its tags.
//
// HTTP: GET /api/posts/{id}
func (h *APIHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// HandleListCategories returns every category ordered by name.
//
// HTTP: GET /api/categories
func (h *APIHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, r, http.StatusOK, categories)
}

// HandleListTags returns every tag ordered by name.
//
// HTTP: GET /api/tags
func (h *APIHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.taxonomy.ListTags(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, r, http.StatusOK, tags)
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("api request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, r, err)
}
