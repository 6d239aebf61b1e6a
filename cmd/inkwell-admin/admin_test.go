package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/inkwell/internal/auth"
)

// runAdmin executes one command line against dsn and returns its stdout.
func runAdmin(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{out: &out, errOut: &errOut, passwords: auth.NewPasswordServiceForTest(4)}
	root := a.rootCmd()
	root.SetArgs(append([]string{"--db", dsn, "--env", filepath.Join(t.TempDir(), "absent.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func testDSN(t *testing.T) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "nested", "admin.db")
}

func TestMigrate(t *testing.T) {
	dsn := testDSN(t)

	out, err := runAdmin(t, dsn, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema is up to date")

	_, err = runAdmin(t, dsn, "migrate")
	assert.NoError(t, err, "migrate is repeatable")
}

func TestUserCommands(t *testing.T) {
	dsn := testDSN(t)

	out, err := runAdmin(t, dsn, "user", "create", "alice", "alice@x.com", "--password", "pw123")
	require.NoError(t, err)
	assert.Contains(t, out, "created user alice (id 1)")

	_, err = runAdmin(t, dsn, "user", "create", "alice", "other@x.com", "--password", "pw123")
	assert.Error(t, err, "duplicate username")

	_, err = runAdmin(t, dsn, "user", "create", "bob", "bob@x.com")
	assert.ErrorContains(t, err, "--password")

	out, err = runAdmin(t, dsn, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "alice@x.com")

	out, err = runAdmin(t, dsn, "user", "list", "--json")
	require.NoError(t, err)
	var users []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	_, err = runAdmin(t, dsn, "user", "delete", "1")
	require.NoError(t, err)
	_, err = runAdmin(t, dsn, "user", "delete", "1")
	assert.Error(t, err, "already gone")

	_, err = runAdmin(t, dsn, "user", "delete", "zero")
	assert.ErrorContains(t, err, "invalid id")
}

func TestTaxonomyCommands(t *testing.T) {
	dsn := testDSN(t)

	out, err := runAdmin(t, dsn, "category", "create", "Release notes", "--slug", "release-notes")
	require.NoError(t, err)
	assert.Contains(t, out, `created category "Release notes"`)

	// Category names may repeat; only ids identify a category.
	out, err = runAdmin(t, dsn, "category", "create", "Release notes")
	require.NoError(t, err)
	assert.Contains(t, out, "(id 2)")

	_, err = runAdmin(t, dsn, "tag", "create", "go")
	require.NoError(t, err)

	out, err = runAdmin(t, dsn, "tag", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "go")

	out, err = runAdmin(t, dsn, "category", "list", "--json")
	require.NoError(t, err)
	var rows []taxonomyRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, "release-notes", rows[0].Slug)
	assert.Equal(t, int64(2), rows[1].ID)
	assert.Equal(t, "Release notes", rows[1].Name)
	assert.Empty(t, rows[1].Slug)

	_, err = runAdmin(t, dsn, "tag", "delete", "1")
	require.NoError(t, err)
	out, err = runAdmin(t, dsn, "tag", "list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}
