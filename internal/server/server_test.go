package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/mail"
)

// ============================================================================
// Test helpers
// ============================================================================

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:        0,
		DatabaseURL: ":memory:",
		SecretKey:   "server-test-secret-0123456789",
		SessionTTL:  time.Hour,
		Mail: config.Mail{
			Sender:     "blog@example.com",
			Recipients: []string{"owner@example.com"},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeMailer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	mailer := &fakeMailer{}

	s, err := New(context.Background(), testConfig(), logger,
		WithMailer(mailer),
		WithPasswordService(auth.NewPasswordServiceForTest(4)),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts, mailer
}

// browser keeps cookies between requests and does not follow redirects, so
// tests can assert on Location.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: ts.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (b *browser) signUpAndIn(username, email, password string) {
	b.t.Helper()
	resp, _ := b.post("/register", url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(b.t, "/login", resp.Header.Get("Location"))

	resp, _ = b.post("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(b.t, "/", resp.Header.Get("Location"))
}

// ============================================================================
// Scenarios
// ============================================================================

func TestServer_PostLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)
	b.signUpAndIn("alice", "alice@x.com", "pw123")

	resp, _ := b.post("/posts/new", url.Values{"title": {"Hello"}, "content": {"World"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/posts/"), location)

	resp, body := b.get(location)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Hello")
	assert.Contains(t, body, "World")
	assert.Contains(t, body, "Your post has been published.")

	resp, body = b.get("/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, `href="`+location+`"`))

	id := strings.TrimPrefix(location, "/posts/")
	resp, _ = b.post("/posts/edit/"+id, url.Values{"title": {"Hi"}, "content": {"World"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body = b.get(location)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Hi")
	assert.Contains(t, body, "World")
	assert.NotContains(t, body, "Hello")

	resp, _ = b.post("/posts/delete/"+id, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/posts", resp.Header.Get("Location"))

	resp, _ = b.get(location)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ContactWithEmptyMessage(t *testing.T) {
	ts, mailer := newTestServer(t)
	b := newBrowser(t, ts)

	resp, body := b.post("/contact", url.Values{
		"name":    {"Reader"},
		"email":   {"reader@example.com"},
		"subject": {"Hi"},
		"message": {""},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Your message is too short")
	assert.Zero(t, mailer.count())
}

func TestServer_ContactSendsMail(t *testing.T) {
	ts, mailer := newTestServer(t)
	b := newBrowser(t, ts)

	resp, _ := b.post("/contact", url.Values{
		"name":    {"Reader"},
		"email":   {"reader@example.com"},
		"message": {"Lovely blog, thanks."},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, mailer.count())
	msg := mailer.sent[0]
	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, "reader@example.com", msg.ReplyTo)
	assert.Contains(t, msg.Body, "From: Reader <reader@example.com>")
}

// ============================================================================
// Access control
// ============================================================================

func TestServer_RequireLoginRedirects(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	resp, _ := b.get("/posts/new")

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fposts%2Fnew", resp.Header.Get("Location"))
}

func TestServer_BadCredentialsFlash(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	resp, _ := b.post("/login", url.Values{"username": {"nobody"}, "password": {"nope"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := b.get("/login")
	assert.Contains(t, body, "Invalid Username or Password")
}

func TestServer_OnlyAuthorMayEdit(t *testing.T) {
	ts, _ := newTestServer(t)

	alice := newBrowser(t, ts)
	alice.signUpAndIn("alice", "alice@x.com", "pw123")
	resp, _ := alice.post("/posts/new", url.Values{"title": {"Hello"}, "content": {"World"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	id := strings.TrimPrefix(resp.Header.Get("Location"), "/posts/")

	bob := newBrowser(t, ts)
	bob.signUpAndIn("bob", "bob@x.com", "pw456")

	resp, _ = bob.get("/posts/edit/" + id)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = bob.post("/posts/delete/"+id, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = alice.get("/posts/" + id)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_DuplicateRegistration(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)
	form := url.Values{
		"username":         {"alice"},
		"email":            {"alice@x.com"},
		"password":         {"pw123"},
		"confirm_password": {"pw123"},
	}

	resp, _ := b.post("/register", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = b.post("/register", form)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// ============================================================================
// Plumbing
// ============================================================================

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	resp, body := b.get("/healthz")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "sqlite", got["database"])
}

func TestServer_API(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)
	b.signUpAndIn("alice", "alice@x.com", "pw123")
	resp, _ := b.post("/posts/new", url.Values{"title": {"Hello"}, "content": {"World"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	id := strings.TrimPrefix(resp.Header.Get("Location"), "/posts/")

	t.Run("list", func(t *testing.T) {
		resp, body := b.get("/api/posts")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

		var got struct {
			Posts []struct {
				Title          string `json:"title"`
				AuthorUsername string `json:"authorUsername"`
			} `json:"posts"`
			Total int `json:"total"`
		}
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.Equal(t, 1, got.Total)
		require.Len(t, got.Posts, 1)
		assert.Equal(t, "Hello", got.Posts[0].Title)
		assert.Equal(t, "alice", got.Posts[0].AuthorUsername)
	})

	t.Run("get", func(t *testing.T) {
		resp, _ := b.get("/api/posts/" + id)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing", func(t *testing.T) {
		resp, body := b.get("/api/posts/9999")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, body, `"not_found"`)
	})
}

func TestServer_UnknownRoute(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	resp, body := b.get("/no/such/page")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Page not found")
}

func TestServer_StaticAssets(t *testing.T) {
	ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	resp, _ := b.get("/static/css/style.css")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
}
