package model

import "time"

// MaxTaxonomyNameLength bounds category and tag names.
const MaxTaxonomyNameLength = 30

// Category groups posts. Deleting a category deletes its posts.
type Category struct {
	ID         int64     `json:"id"             db:"id"`
	Name       string    `json:"name"           db:"name"`
	Slug       string    `json:"slug,omitempty" db:"slug"`
	DatePosted time.Time `json:"datePosted"     db:"date_posted"`
}

// Tag labels posts many-to-many. Deleting a tag only removes its links.
type Tag struct {
	ID         int64     `json:"id"             db:"id"`
	Name       string    `json:"name"           db:"name"`
	Slug       string    `json:"slug,omitempty" db:"slug"`
	DatePosted time.Time `json:"datePosted"     db:"date_posted"`
}
