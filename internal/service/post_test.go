package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
)

func newTestPostService() (*PostService, *mockPostRepo) {
	repo := newMockPostRepo()
	return NewPostService(repo, testLogger()), repo
}

func ptr[T any](v T) *T { return &v }

func TestPostService_Create(t *testing.T) {
	svc, repo := newTestPostService()

	post, err := svc.Create(context.Background(), 7, PostInput{
		Title:      "  Hello  ",
		Slug:       " hello ",
		Content:    "Body text",
		AuthorName: " Al ",
		CategoryID: ptr(int64(3)),
		TagIDs:     []int64{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Title)

	require.Len(t, repo.created, 1)
	got := repo.created[0]
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "hello", got.Slug)
	assert.Equal(t, "Al", got.AuthorName)
	assert.Equal(t, int64(7), got.AuthorID)
	assert.Equal(t, ptr(int64(3)), got.CategoryID)
	assert.Equal(t, []int64{1, 2}, got.TagIDs)
}

func TestPostService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input PostInput
		field string
	}{
		{"empty title", PostInput{Title: "   ", Content: "x"}, "title"},
		{"title too long", PostInput{Title: strings.Repeat("t", 256), Content: "x"}, "title"},
		{"empty content", PostInput{Title: "T", Content: " \n\t"}, "content"},
		{"slug too long", PostInput{Title: "T", Content: "x", Slug: strings.Repeat("s", 256)}, "slug"},
		{"author label too long", PostInput{Title: "T", Content: "x", AuthorName: strings.Repeat("a", 31)}, "author_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestPostService()
			_, err := svc.Create(context.Background(), 1, tt.input)

			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, apperror.FieldOf(err))
			assert.Empty(t, repo.created, "nothing may be stored on validation failure")
		})
	}
}

func TestPostService_Create_TitleLimitCountsCharacters(t *testing.T) {
	svc, _ := newTestPostService()
	_, err := svc.Create(context.Background(), 1, PostInput{Title: strings.Repeat("é", 255), Content: "x"})
	assert.NoError(t, err)
}

func TestPostService_Create_PropagatesReferenceError(t *testing.T) {
	svc, repo := newTestPostService()
	repo.err = apperror.Reference("category", 99)

	_, err := svc.Create(context.Background(), 1, PostInput{Title: "T", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrReference)
}

func TestPostService_List_Paging(t *testing.T) {
	svc, repo := newTestPostService()
	for range 25 {
		repo.add(model.Post{Title: "p", Content: "c"})
	}

	page, err := svc.List(context.Background(), PostQuery{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, repo.lastOpt.Limit)
	assert.Equal(t, 10, repo.lastOpt.Offset)
	assert.Len(t, page.Posts, 10)
	assert.Equal(t, 25, page.Total)
	assert.True(t, page.HasPrev())
	assert.True(t, page.HasNext())

	page, err = svc.List(context.Background(), PostQuery{Page: 3})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 5)
	assert.False(t, page.HasNext())

	page, err = svc.List(context.Background(), PostQuery{Page: -4, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPageSize, page.PageSize)
	assert.False(t, page.HasPrev())
}

func TestPostService_Recent(t *testing.T) {
	svc, repo := newTestPostService()
	for range 8 {
		repo.add(model.Post{Title: "p", Content: "c"})
	}

	posts, err := svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, posts, RecentPostCount)
	assert.Equal(t, int64(8), posts[0].ID, "newest first")
}

func TestPostService_Recent_Error(t *testing.T) {
	svc, repo := newTestPostService()
	repo.err = errors.New("database is locked")

	_, err := svc.Recent(context.Background(), 3)
	assert.ErrorContains(t, err, "database is locked")
}

func TestPostService_Update_Ownership(t *testing.T) {
	svc, repo := newTestPostService()
	owned := repo.add(model.Post{Title: "Mine", Content: "c", AuthorID: ptr(int64(1))})
	legacy := repo.add(model.Post{Title: "Old", Content: "c", AuthorName: "Someone"})

	_, err := svc.Update(context.Background(), 2, owned.ID, model.PostUpdate{Title: ptr("Stolen")})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Empty(t, repo.updated)

	post, err := svc.Update(context.Background(), 1, owned.ID, model.PostUpdate{Title: ptr(" Renamed ")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", post.Title)

	_, err = svc.Update(context.Background(), 2, legacy.ID, model.PostUpdate{Content: ptr("new body")})
	assert.NoError(t, err, "posts without an author reference are editable by anyone signed in")
}

func TestPostService_Update_Validation(t *testing.T) {
	svc, repo := newTestPostService()
	p := repo.add(model.Post{Title: "T", Content: "c", AuthorID: ptr(int64(1))})

	_, err := svc.Update(context.Background(), 1, p.ID, model.PostUpdate{Title: ptr("  ")})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Update(context.Background(), 1, p.ID, model.PostUpdate{Content: ptr("")})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Update(context.Background(), 1, p.ID, model.PostUpdate{AuthorName: ptr(strings.Repeat("a", 31))})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Empty(t, repo.updated)
}

func TestPostService_Update_NotFound(t *testing.T) {
	svc, _ := newTestPostService()
	_, err := svc.Update(context.Background(), 1, 404, model.PostUpdate{Title: ptr("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPostService_Delete(t *testing.T) {
	svc, repo := newTestPostService()
	p := repo.add(model.Post{Title: "T", Content: "c", AuthorID: ptr(int64(1))})

	assert.ErrorIs(t, svc.Delete(context.Background(), 2, p.ID), apperror.ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), 1, p.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), 1, p.ID), apperror.ErrNotFound)
}

func TestUpdateFromInput(t *testing.T) {
	upd := UpdateFromInput(PostInput{Title: "T", Content: "c", TagIDs: []int64{4}})
	assert.True(t, upd.ClearCategory)
	assert.True(t, upd.ReplaceTags)
	assert.Equal(t, []int64{4}, upd.TagIDs)
	assert.Equal(t, "T", *upd.Title)

	upd = UpdateFromInput(PostInput{Title: "T", Content: "c", CategoryID: ptr(int64(2))})
	assert.False(t, upd.ClearCategory)
	assert.Equal(t, int64(2), *upd.CategoryID)
}
