package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// PostService handles creating, listing and editing blog posts.
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		logger: logger,
	}
}

// PostInput is what an author submits for a post. A nil CategoryID means
// "no category".
type PostInput struct {
	Title      string
	Slug       string
	Content    string
	AuthorName string
	CategoryID *int64
	TagIDs     []int64
}

// PostQuery selects a page of posts. Page is 1-based.
type PostQuery struct {
	Page       int
	PageSize   int
	CategoryID *int64
	TagID      *int64
	AuthorID   *int64
}

// PostPage is one page of a post listing.
type PostPage struct {
	Posts    []model.Post
	Page     int
	PageSize int
	Total    int
}

func (p PostPage) HasPrev() bool { return p.Page > 1 }
func (p PostPage) HasNext() bool { return p.Page*p.PageSize < p.Total }
func (p PostPage) PrevPage() int { return p.Page - 1 }
func (p PostPage) NextPage() int { return p.Page + 1 }

// Create validates in and stores a new post written by authorID. The slug
// is stored as given; it is never derived from the title.
func (s *PostService) Create(ctx context.Context, authorID int64, in PostInput) (*model.Post, error) {
	title, err := requireText("title", "title", in.Title, model.MaxTitleLength)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	slug := strings.TrimSpace(in.Slug)
	if err := maxText("slug", "slug", slug, model.MaxSlugLength); err != nil {
		return nil, err
	}
	authorName := strings.TrimSpace(in.AuthorName)
	if err := maxText("author_name", "author name", authorName, model.MaxAuthorNameLength); err != nil {
		return nil, err
	}

	post, err := s.posts.CreatePost(ctx, model.NewPost{
		Title:      title,
		Slug:       slug,
		Content:    in.Content,
		AuthorID:   authorID,
		AuthorName: authorName,
		CategoryID: in.CategoryID,
		TagIDs:     in.TagIDs,
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("failed to create post",
				slog.Int64("authorID", authorID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("id", post.ID),
		slog.Int64("authorID", authorID),
	)
	return post, nil
}

// Get returns a post with its tags.
func (s *PostService) Get(ctx context.Context, id int64) (*model.Post, error) {
	return s.posts.GetPost(ctx, id)
}

// Recent returns the newest n posts without their tags.
func (s *PostService) Recent(ctx context.Context, n int) ([]model.Post, error) {
	if n <= 0 {
		n = RecentPostCount
	}
	posts := make([]model.Post, 0, n)
	for post, err := range s.posts.Posts(ctx, repository.ListOptions{Limit: n}) {
		if err != nil {
			return nil, fmt.Errorf("listing recent posts: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// List returns one page of posts, newest first.
func (s *PostService) List(ctx context.Context, q PostQuery) (*PostPage, error) {
	page, size := clampPage(q.Page, q.PageSize)
	opts := repository.ListOptions{
		Limit:      size,
		Offset:     (page - 1) * size,
		CategoryID: q.CategoryID,
		TagID:      q.TagID,
		AuthorID:   q.AuthorID,
	}

	total, err := s.posts.CountPosts(ctx, opts)
	if err != nil {
		s.logger.Error("failed to count posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("counting posts: %w", err)
	}
	posts, err := s.posts.ListPosts(ctx, opts)
	if err != nil {
		s.logger.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	return &PostPage{Posts: posts, Page: page, PageSize: size, Total: total}, nil
}

// Editable returns the post if userID may change it, and a Forbidden error
// otherwise.
func (s *PostService) Editable(ctx context.Context, userID, id int64) (*model.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.OwnedBy(userID) {
		return nil, apperror.Forbidden("you can only change your own posts")
	}
	return post, nil
}

// Update applies a partial update on behalf of userID. Only the supplied
// fields are validated and written.
func (s *PostService) Update(ctx context.Context, userID, id int64, upd model.PostUpdate) (*model.Post, error) {
	if _, err := s.Editable(ctx, userID, id); err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title, err := requireText("title", "title", *upd.Title, model.MaxTitleLength)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if upd.Content != nil && strings.TrimSpace(*upd.Content) == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if upd.Slug != nil {
		slug := strings.TrimSpace(*upd.Slug)
		if err := maxText("slug", "slug", slug, model.MaxSlugLength); err != nil {
			return nil, err
		}
		upd.Slug = &slug
	}
	if upd.AuthorName != nil {
		name := strings.TrimSpace(*upd.AuthorName)
		if err := maxText("author_name", "author name", name, model.MaxAuthorNameLength); err != nil {
			return nil, err
		}
		upd.AuthorName = &name
	}

	post, err := s.posts.UpdatePost(ctx, id, upd)
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("failed to update post",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.logger.Info("post updated", slog.Int64("id", id), slog.Int64("userID", userID))
	return post, nil
}

// Delete removes a post and its tag links on behalf of userID.
func (s *PostService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Editable(ctx, userID, id); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	s.logger.Info("post deleted", slog.Int64("id", id), slog.Int64("userID", userID))
	return nil
}

// UpdateFromInput turns a full form submission into a PostUpdate that
// replaces every editable field, including the tag set.
func UpdateFromInput(in PostInput) model.PostUpdate {
	upd := model.PostUpdate{
		Title:       &in.Title,
		Slug:        &in.Slug,
		Content:     &in.Content,
		AuthorName:  &in.AuthorName,
		ReplaceTags: true,
		TagIDs:      in.TagIDs,
	}
	if in.CategoryID != nil {
		upd.CategoryID = in.CategoryID
	} else {
		upd.ClearCategory = true
	}
	return upd
}

// isDomainError reports whether err is an expected outcome rather than a
// storage failure worth logging.
func isDomainError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}
