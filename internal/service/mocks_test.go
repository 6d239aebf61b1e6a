package service

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/mail"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// =========================================================================
// HAND-WRITTEN FAKES
// =========================================================================
//
// The fakes keep rows in maps and mimic the store's error contract
// (NotFound, Conflict) closely enough for the service rules under test.
// Setting err makes every call fail with it.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
	err    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", "username")
		}
		if u.Email == user.Email {
			return apperror.Conflict("user", "email")
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	user.LastSeen = user.CreatedAt
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) find(match func(*model.User) bool, key string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (m *mockUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username }, username)
}

func (m *mockUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (m *mockUserRepo) ListUsers(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	slices.SortFunc(out, func(a, b model.User) int { return cmp.Compare(a.Username, b.Username) })
	return out, m.err
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id int64, aboutMe string) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.AboutMe = aboutMe
	return nil
}

func (m *mockUserRepo) TouchLastSeen(_ context.Context, id int64, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.LastSeen = at
	return nil
}

func (m *mockUserRepo) DeleteUser(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

type mockPostRepo struct {
	posts   map[int64]*model.Post
	nextID  int64
	created []model.NewPost
	updated []model.PostUpdate
	lastOpt repository.ListOptions
	err     error
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[int64]*model.Post)}
}

// add stores a post directly, bypassing CreatePost bookkeeping.
func (m *mockPostRepo) add(p model.Post) *model.Post {
	m.nextID++
	p.ID = m.nextID
	if p.Tags == nil {
		p.Tags = []model.Tag{}
	}
	m.posts[p.ID] = &p
	return &p
}

func (m *mockPostRepo) CreatePost(_ context.Context, in model.NewPost) (*model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = append(m.created, in)
	authorID := in.AuthorID
	return m.add(model.Post{
		Title:      in.Title,
		Slug:       in.Slug,
		Content:    in.Content,
		AuthorID:   &authorID,
		AuthorName: in.AuthorName,
		CategoryID: in.CategoryID,
		DatePosted: time.Now().UTC(),
	}), nil
}

func (m *mockPostRepo) GetPost(_ context.Context, id int64) (*model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	out := *p
	return &out, nil
}

// sorted returns posts newest first by id, which tracks insertion order.
func (m *mockPostRepo) sorted() []model.Post {
	out := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b model.Post) int { return cmp.Compare(b.ID, a.ID) })
	return out
}

func (m *mockPostRepo) Posts(_ context.Context, opts repository.ListOptions) iter.Seq2[model.Post, error] {
	m.lastOpt = opts
	return func(yield func(model.Post, error) bool) {
		if m.err != nil {
			yield(model.Post{}, m.err)
			return
		}
		for i, p := range m.sorted() {
			if opts.Limit > 0 && i >= opts.Limit {
				return
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (m *mockPostRepo) ListPosts(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	m.lastOpt = opts
	if m.err != nil {
		return nil, m.err
	}
	all := m.sorted()
	if opts.Offset >= len(all) {
		return []model.Post{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (m *mockPostRepo) CountPosts(_ context.Context, _ repository.ListOptions) (int, error) {
	return len(m.posts), m.err
}

func (m *mockPostRepo) UpdatePost(_ context.Context, id int64, upd model.PostUpdate) (*model.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	m.updated = append(m.updated, upd)
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.AuthorName != nil {
		p.AuthorName = *upd.AuthorName
	}
	out := *p
	return &out, nil
}

func (m *mockPostRepo) DeletePost(_ context.Context, id int64) error {
	if _, ok := m.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(m.posts, id)
	return nil
}

type mockTaxonomyRepo struct {
	categories map[int64]*model.Category
	tags       map[int64]*model.Tag
	links      map[[2]int64]bool
	nextID     int64
}

func newMockTaxonomyRepo() *mockTaxonomyRepo {
	return &mockTaxonomyRepo{
		categories: make(map[int64]*model.Category),
		tags:       make(map[int64]*model.Tag),
		links:      make(map[[2]int64]bool),
	}
}

func (m *mockTaxonomyRepo) CreateCategory(_ context.Context, c *model.Category) error {
	m.nextID++
	c.ID = m.nextID
	stored := *c
	m.categories[c.ID] = &stored
	return nil
}

func (m *mockTaxonomyRepo) GetCategory(_ context.Context, id int64) (*model.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	return c, nil
}

func (m *mockTaxonomyRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	var out []model.Category
	for _, c := range m.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockTaxonomyRepo) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := m.categories[id]; !ok {
		return apperror.NotFound("category", id)
	}
	delete(m.categories, id)
	return nil
}

func (m *mockTaxonomyRepo) CreateTag(_ context.Context, tag *model.Tag) error {
	m.nextID++
	tag.ID = m.nextID
	stored := *tag
	m.tags[tag.ID] = &stored
	return nil
}

func (m *mockTaxonomyRepo) GetTag(_ context.Context, id int64) (*model.Tag, error) {
	t, ok := m.tags[id]
	if !ok {
		return nil, apperror.NotFound("tag", id)
	}
	return t, nil
}

func (m *mockTaxonomyRepo) ListTags(_ context.Context) ([]model.Tag, error) {
	var out []model.Tag
	for _, t := range m.tags {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTaxonomyRepo) DeleteTag(_ context.Context, id int64) error {
	if _, ok := m.tags[id]; !ok {
		return apperror.NotFound("tag", id)
	}
	delete(m.tags, id)
	return nil
}

func (m *mockTaxonomyRepo) AttachTag(_ context.Context, postID, tagID int64) error {
	if _, ok := m.tags[tagID]; !ok {
		return apperror.NotFound("tag", tagID)
	}
	m.links[[2]int64{postID, tagID}] = true
	return nil
}

func (m *mockTaxonomyRepo) DetachTag(_ context.Context, postID, tagID int64) error {
	if _, ok := m.tags[tagID]; !ok {
		return apperror.NotFound("tag", tagID)
	}
	delete(m.links, [2]int64{postID, tagID})
	return nil
}

func (m *mockTaxonomyRepo) TagsForPost(_ context.Context, postID int64) ([]model.Tag, error) {
	out := []model.Tag{}
	for link := range m.links {
		if link[0] == postID {
			out = append(out, *m.tags[link[1]])
		}
	}
	return out, nil
}

type mockMailer struct {
	sent []mail.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// newTestUserService wires a UserService with a cheap bcrypt cost.
func newTestUserService(t *testing.T) (*UserService, *mockUserRepo, *auth.TokenService) {
	t.Helper()
	repo := newMockUserRepo()
	tokens, err := auth.NewTokenService("test-secret-key-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc := NewUserService(repo, auth.NewPasswordServiceForTest(4), tokens, testLogger())
	return svc, repo, tokens
}
