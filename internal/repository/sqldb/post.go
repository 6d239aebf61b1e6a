package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// postSelect joins the author's username and the category name so a post
// can be rendered without further lookups.
const postSelect = `
	SELECT p.id, p.title, p.slug, p.content, p.author_id, p.author_name,
	       p.date_posted, p.category_id,
	       u.username AS author_username, c.name AS category_name
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id
	LEFT JOIN categories c ON c.id = p.category_id`

// CreatePost inserts a post and its tag links in one transaction.
//
// The author, category and every tag must exist; otherwise nothing is
// written and a Reference error names the missing record. DatePosted is
// always the store's clock, never the caller's.
func (db *DB) CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error) {
	var post *model.Post
	now := db.timestamp()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireRef(ctx, tx, "users", "user", in.AuthorID); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if err := requireRef(ctx, tx, "categories", "category", *in.CategoryID); err != nil {
				return err
			}
		}
		tagIDs := uniqueIDs(in.TagIDs)
		for _, tagID := range tagIDs {
			if err := requireRef(ctx, tx, "tags", "tag", tagID); err != nil {
				return err
			}
		}

		id, err := insertID(ctx, tx,
			`INSERT INTO posts (title, slug, content, author_id, author_name, date_posted, category_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.Title, in.Slug, in.Content, in.AuthorID, in.AuthorName, now, in.CategoryID,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.Reference("author or category", "of this post")
			}
			return err
		}

		if err := insertPostTags(ctx, tx, id, tagIDs); err != nil {
			return err
		}

		post, err = getPost(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sqldb: creating post: %w", err)
	}
	return post, nil
}

// GetPost returns the post with its tags.
func (db *DB) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := getPost(ctx, db.conn, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("sqldb: getting post: %w", err)
	}
	return post, nil
}

func getPost(ctx context.Context, q sqlx.ExtContext, id int64) (*model.Post, error) {
	var post model.Post
	if err := sqlx.GetContext(ctx, q, &post, q.Rebind(postSelect+` WHERE p.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, err
	}

	tags, err := tagsForPost(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	post.Tags = tags
	return &post, nil
}

// Posts streams matching posts in order, without tags.
//
// LAZY ITERATION:
// The query runs when the caller starts ranging and the rows are released
// when the loop ends, including on an early break. Ranging again re-runs the
// query, so the sequence is restartable. The sequence holds a pooled
// connection while it is being consumed; callers that need to query again
// per row should collect first (see ListPosts).
func (db *DB) Posts(ctx context.Context, opts repository.ListOptions) iter.Seq2[model.Post, error] {
	return func(yield func(model.Post, error) bool) {
		query, args := db.postQuery(opts)
		rows, err := db.conn.QueryxContext(ctx, db.conn.Rebind(query), args...)
		if err != nil {
			yield(model.Post{}, fmt.Errorf("sqldb: listing posts: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var post model.Post
			if err := rows.StructScan(&post); err != nil {
				yield(model.Post{}, fmt.Errorf("sqldb: scanning post: %w", err))
				return
			}
			if !yield(post, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Post{}, fmt.Errorf("sqldb: iterating posts: %w", err))
		}
	}
}

// ListPosts collects a page of posts and loads their tags.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	posts := []model.Post{}
	for post, err := range db.Posts(ctx, opts) {
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	byPost, err := tagsForPosts(ctx, db.conn, ids)
	if err != nil {
		return nil, fmt.Errorf("sqldb: loading post tags: %w", err)
	}
	for i := range posts {
		posts[i].Tags = byPost[posts[i].ID]
		if posts[i].Tags == nil {
			posts[i].Tags = []model.Tag{}
		}
	}
	return posts, nil
}

// CountPosts counts posts matching the filters of opts. Paging is ignored.
func (db *DB) CountPosts(ctx context.Context, opts repository.ListOptions) (int, error) {
	where, args := postFilters(opts)
	var n int
	query := db.conn.Rebind(`SELECT COUNT(*) FROM posts p` + where)
	if err := db.conn.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("sqldb: counting posts: %w", err)
	}
	return n, nil
}

func (db *DB) postQuery(opts repository.ListOptions) (string, []any) {
	where, args := postFilters(opts)

	var b strings.Builder
	b.WriteString(postSelect)
	b.WriteString(where)
	if opts.OldestFirst {
		b.WriteString(` ORDER BY p.date_posted ASC, p.id ASC`)
	} else {
		b.WriteString(` ORDER BY p.date_posted DESC, p.id ASC`)
	}

	switch {
	case opts.Limit > 0:
		b.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, opts.Limit, max(opts.Offset, 0))
	case opts.Offset > 0 && db.dialect == dialectSQLite:
		// SQLite only accepts OFFSET after a LIMIT.
		b.WriteString(` LIMIT -1 OFFSET ?`)
		args = append(args, opts.Offset)
	case opts.Offset > 0:
		b.WriteString(` OFFSET ?`)
		args = append(args, opts.Offset)
	}
	return b.String(), args
}

func postFilters(opts repository.ListOptions) (string, []any) {
	var conds []string
	var args []any
	if opts.CategoryID != nil {
		conds = append(conds, `p.category_id = ?`)
		args = append(args, *opts.CategoryID)
	}
	if opts.AuthorID != nil {
		conds = append(conds, `p.author_id = ?`)
		args = append(args, *opts.AuthorID)
	}
	if opts.TagID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id = ?)`)
		args = append(args, *opts.TagID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// UpdatePost applies a partial update. id and DatePosted never change.
func (db *DB) UpdatePost(ctx context.Context, id int64, upd model.PostUpdate) (*model.Post, error) {
	var post *model.Post

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, "posts", id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("post", id)
		}

		var sets []string
		var args []any
		set := func(column string, value any) {
			sets = append(sets, column+` = ?`)
			args = append(args, value)
		}

		if upd.Title != nil {
			set("title", *upd.Title)
		}
		if upd.Slug != nil {
			set("slug", *upd.Slug)
		}
		if upd.Content != nil {
			set("content", *upd.Content)
		}
		if upd.AuthorName != nil {
			set("author_name", *upd.AuthorName)
		}
		if upd.AuthorID != nil {
			if err := requireRef(ctx, tx, "users", "user", *upd.AuthorID); err != nil {
				return err
			}
			set("author_id", *upd.AuthorID)
		}
		switch {
		case upd.ClearCategory:
			set("category_id", nil)
		case upd.CategoryID != nil:
			if err := requireRef(ctx, tx, "categories", "category", *upd.CategoryID); err != nil {
				return err
			}
			set("category_id", *upd.CategoryID)
		}

		if len(sets) > 0 {
			args = append(args, id)
			query := tx.Rebind(`UPDATE posts SET ` + strings.Join(sets, `, `) + ` WHERE id = ?`)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				if isForeignKeyViolation(err) {
					return apperror.Reference("author or category", "of this post")
				}
				return err
			}
		}

		if upd.ReplaceTags {
			tagIDs := uniqueIDs(upd.TagIDs)
			for _, tagID := range tagIDs {
				if err := requireRef(ctx, tx, "tags", "tag", tagID); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), id); err != nil {
				return err
			}
			if err := insertPostTags(ctx, tx, id, tagIDs); err != nil {
				return err
			}
		}

		post, err = getPost(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sqldb: updating post: %w", err)
	}
	return post, nil
}

// DeletePost removes the post and its tag links. Its author and category
// are untouched.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, "posts", id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("post", id)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM post_tags WHERE post_id = ?`), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM posts WHERE id = ?`), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqldb: deleting post: %w", err)
	}
	return nil
}

// requireRef returns a Reference error when table has no row with id.
func requireRef(ctx context.Context, tx *sqlx.Tx, table, resource string, id int64) error {
	ok, err := exists(ctx, tx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Reference(resource, id)
	}
	return nil
}

func insertPostTags(ctx context.Context, tx *sqlx.Tx, postID int64, tagIDs []int64) error {
	query := tx.Rebind(`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)`)
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, query, postID, tagID); err != nil {
			if isForeignKeyViolation(err) {
				return apperror.Reference("tag", tagID)
			}
			return fmt.Errorf("linking tag %d: %w", tagID, err)
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
