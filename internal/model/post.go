package model

import "time"

const (
	MaxTitleLength      = 255
	MaxSlugLength       = 255
	MaxAuthorNameLength = 30

	// UnknownAuthor is shown when a post has neither a resolvable author
	// nor a legacy author label.
	UnknownAuthor = "Not Available"
)

// Post is a blog post.
//
// AUTHOR REPRESENTATION:
// AuthorID is the authoritative link to the writing user. AuthorName is a
// free-text label kept for posts imported without an account; it is display
// only and never used to resolve a user. AuthorUsername and CategoryName are
// filled by the store's joins and are read-only.
type Post struct {
	ID             int64     `json:"id"                       db:"id"`
	Title          string    `json:"title"                    db:"title"`
	Slug           string    `json:"slug,omitempty"           db:"slug"`
	Content        string    `json:"content"                  db:"content"`
	AuthorID       *int64    `json:"authorId,omitempty"       db:"author_id"`
	AuthorName     string    `json:"authorName,omitempty"     db:"author_name"`
	AuthorUsername *string   `json:"authorUsername,omitempty" db:"author_username"`
	CategoryID     *int64    `json:"categoryId,omitempty"     db:"category_id"`
	CategoryName   *string   `json:"categoryName,omitempty"   db:"category_name"`
	DatePosted     time.Time `json:"datePosted"               db:"date_posted"`
	Tags           []Tag     `json:"tags"                     db:"-"`
}

// Author returns the name to display for the post's author.
func (p Post) Author() string {
	if p.AuthorUsername != nil && *p.AuthorUsername != "" {
		return *p.AuthorUsername
	}
	if p.AuthorName != "" {
		return p.AuthorName
	}
	return UnknownAuthor
}

// OwnedBy reports whether userID may edit the post. Posts without an author
// reference are legacy content and editable by any signed-in user.
func (p Post) OwnedBy(userID int64) bool {
	return p.AuthorID == nil || *p.AuthorID == userID
}

// NewPost carries the fields accepted when creating a post. DatePosted is
// always assigned by the store.
type NewPost struct {
	Title      string
	Slug       string
	Content    string
	AuthorID   int64
	AuthorName string
	CategoryID *int64
	TagIDs     []int64
}

// PostUpdate is a partial update. Nil pointers leave the column untouched.
// ClearCategory detaches the post from its category; ReplaceTags swaps the
// post's tag set for TagIDs (an empty TagIDs removes every tag).
type PostUpdate struct {
	Title         *string
	Slug          *string
	Content       *string
	AuthorName    *string
	AuthorID      *int64
	CategoryID    *int64
	ClearCategory bool
	ReplaceTags   bool
	TagIDs        []int64
}

// Empty reports whether the update would change nothing.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Slug == nil && u.Content == nil &&
		u.AuthorName == nil && u.AuthorID == nil && u.CategoryID == nil &&
		!u.ClearCategory && !u.ReplaceTags
}
