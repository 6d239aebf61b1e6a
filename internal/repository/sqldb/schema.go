package sqldb

import (
	"context"
	"fmt"
	"strings"
)

// The schema is written once with two placeholders that differ per engine:
//
//	{{pk}}  → surrogate integer primary key
//	{{ts}}  → timestamp column type
//
// Every statement is idempotent, so migrate runs on each Open.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            {{pk}},
		username      VARCHAR(30)  NOT NULL UNIQUE CHECK (length(username) > 0),
		email         VARCHAR(120) NOT NULL UNIQUE CHECK (length(email) > 0),
		password_hash VARCHAR(128) NOT NULL,
		about_me      VARCHAR(250) NOT NULL DEFAULT '',
		last_seen     {{ts}}       NOT NULL,
		created_at    {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id          {{pk}},
		name        VARCHAR(30)  NOT NULL CHECK (length(name) > 0),
		slug        VARCHAR(255) NOT NULL DEFAULT '',
		date_posted {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id          {{pk}},
		name        VARCHAR(30)  NOT NULL CHECK (length(name) > 0),
		slug        VARCHAR(255) NOT NULL DEFAULT '',
		date_posted {{ts}}       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id          {{pk}},
		title       VARCHAR(255) NOT NULL CHECK (length(title) > 0),
		slug        VARCHAR(255) NOT NULL DEFAULT '',
		content     TEXT         NOT NULL CHECK (length(content) > 0),
		author_id   BIGINT       REFERENCES users(id) ON DELETE CASCADE,
		author_name VARCHAR(30)  NOT NULL DEFAULT '',
		date_posted {{ts}}       NOT NULL,
		category_id BIGINT       REFERENCES categories(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS post_tags (
		post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		tag_id  BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (post_id, tag_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_date_posted ON posts(date_posted)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_category_id ON posts(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id)`,
	`CREATE INDEX IF NOT EXISTS idx_post_tags_tag_id ON post_tags(tag_id)`,
}

func (db *DB) migrate(ctx context.Context) error {
	pk, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME"
	if db.dialect == dialectPostgres {
		pk, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	r := strings.NewReplacer("{{pk}}", pk, "{{ts}}", ts)

	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
