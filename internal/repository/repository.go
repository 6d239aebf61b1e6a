// Package repository declares the storage contracts the services depend on.
// The sqldb subpackage implements all of them on top of SQLite or PostgreSQL.
package repository

import (
	"context"
	"iter"
	"time"

	"github.com/sakif/inkwell/internal/model"
)

// ListOptions selects and pages posts. Zero filters match every post.
// Posts are ordered by date posted, newest first unless OldestFirst is set;
// posts sharing a timestamp are ordered by ascending id.
type ListOptions struct {
	Limit       int
	Offset      int
	CategoryID  *int64
	TagID       *int64
	AuthorID    *int64
	OldestFirst bool
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, id int64, aboutMe string) error
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
	DeleteUser(ctx context.Context, id int64) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	// Posts streams matching posts without their tags. The sequence is
	// restartable: each range re-runs the query.
	Posts(ctx context.Context, opts ListOptions) iter.Seq2[model.Post, error]
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	CountPosts(ctx context.Context, opts ListOptions) (int, error)
	UpdatePost(ctx context.Context, id int64, upd model.PostUpdate) (*model.Post, error)
	DeletePost(ctx context.Context, id int64) error
}

type TaxonomyRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	CreateTag(ctx context.Context, tag *model.Tag) error
	GetTag(ctx context.Context, id int64) (*model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	AttachTag(ctx context.Context, postID, tagID int64) error
	DetachTag(ctx context.Context, postID, tagID int64) error
	TagsForPost(ctx context.Context, postID int64) ([]model.Tag, error)
}
