// Package service contains the business rules of the blog.
//
// THE LAYERS:
//
//	Handler (HTTP)      → parses forms, renders pages
//	Service (this pkg)  → validates, checks ownership, orchestrates
//	Repository (sqldb)  → reads/writes the database
//
// Services accept plain values and return domain errors from apperror, so
// the same rules serve the web handlers and the admin CLI. They depend on
// the repository interfaces, never on sqldb directly; tests pass in-memory
// fakes.
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/inkwell/internal/apperror"
)

// validate checks single values (emails) for callers that bypass the forms,
// such as the admin CLI.
var validate = validator.New()

// Paging limits for post listings.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	RecentPostCount = 5
)

// requireText trims s and checks it is non-empty and at most max characters.
func requireText(field, label, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, label+" is required")
	}
	return s, maxText(field, label, s, max)
}

// maxText checks s is at most max characters (runes, not bytes).
func maxText(field, label, s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or fewer", label, max))
	}
	return nil
}

// clampPage normalises a 1-based page number and page size.
func clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}
