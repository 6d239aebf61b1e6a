package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.TaxonomyRepository = (*DB)(nil)

// ===== CATEGORIES =====

func (db *DB) CreateCategory(ctx context.Context, c *model.Category) error {
	now := db.timestamp()
	id, err := insertID(ctx, db.conn,
		`INSERT INTO categories (name, slug, date_posted) VALUES (?, ?, ?)`,
		c.Name, c.Slug, now,
	)
	if err != nil {
		return fmt.Errorf("sqldb: creating category: %w", err)
	}
	c.ID = id
	c.DatePosted = now
	return nil
}

func (db *DB) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := db.conn.GetContext(ctx, &c,
		db.conn.Rebind(`SELECT id, name, slug, date_posted FROM categories WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqldb: getting category: %w", err)
	}
	return &c, nil
}

func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories := []model.Category{}
	err := db.conn.SelectContext(ctx, &categories,
		`SELECT id, name, slug, date_posted FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing categories: %w", err)
	}
	return categories, nil
}

// DeleteCategory removes the category, every post filed under it and those
// posts' tag links.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, "categories", id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("category", id)
		}

		stmts := []string{
			`DELETE FROM post_tags WHERE post_id IN (SELECT id FROM posts WHERE category_id = ?)`,
			`DELETE FROM posts WHERE category_id = ?`,
			`DELETE FROM categories WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqldb: deleting category: %w", err)
	}
	return nil
}

// ===== TAGS =====

func (db *DB) CreateTag(ctx context.Context, tag *model.Tag) error {
	now := db.timestamp()
	id, err := insertID(ctx, db.conn,
		`INSERT INTO tags (name, slug, date_posted) VALUES (?, ?, ?)`,
		tag.Name, tag.Slug, now,
	)
	if err != nil {
		return fmt.Errorf("sqldb: creating tag: %w", err)
	}
	tag.ID = id
	tag.DatePosted = now
	return nil
}

func (db *DB) GetTag(ctx context.Context, id int64) (*model.Tag, error) {
	var tag model.Tag
	err := db.conn.GetContext(ctx, &tag,
		db.conn.Rebind(`SELECT id, name, slug, date_posted FROM tags WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tag", id)
		}
		return nil, fmt.Errorf("sqldb: getting tag: %w", err)
	}
	return &tag, nil
}

func (db *DB) ListTags(ctx context.Context) ([]model.Tag, error) {
	tags := []model.Tag{}
	err := db.conn.SelectContext(ctx, &tags,
		`SELECT id, name, slug, date_posted FROM tags ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing tags: %w", err)
	}
	return tags, nil
}

// DeleteTag removes the tag and its links. Tagged posts survive.
func (db *DB) DeleteTag(ctx context.Context, id int64) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, "tags", id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("tag", id)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM post_tags WHERE tag_id = ?`), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tags WHERE id = ?`), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqldb: deleting tag: %w", err)
	}
	return nil
}

// ===== POST ↔ TAG =====

// AttachTag links a tag to a post. Attaching an existing link is a no-op.
func (db *DB) AttachTag(ctx context.Context, postID, tagID int64) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requirePostAndTag(ctx, tx, postID, tagID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`),
			postID, tagID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqldb: attaching tag: %w", err)
	}
	return nil
}

// DetachTag removes a link. Detaching a link that does not exist is a no-op.
func (db *DB) DetachTag(ctx context.Context, postID, tagID int64) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requirePostAndTag(ctx, tx, postID, tagID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`DELETE FROM post_tags WHERE post_id = ? AND tag_id = ?`),
			postID, tagID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqldb: detaching tag: %w", err)
	}
	return nil
}

func requirePostAndTag(ctx context.Context, tx *sqlx.Tx, postID, tagID int64) error {
	ok, err := exists(ctx, tx, "posts", postID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("post", postID)
	}
	ok, err = exists(ctx, tx, "tags", tagID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("tag", tagID)
	}
	return nil
}

// TagsForPost returns the post's tags ordered by name.
func (db *DB) TagsForPost(ctx context.Context, postID int64) ([]model.Tag, error) {
	tags, err := tagsForPost(ctx, db.conn, postID)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing tags for post: %w", err)
	}
	return tags, nil
}

func tagsForPost(ctx context.Context, q sqlx.ExtContext, postID int64) ([]model.Tag, error) {
	tags := []model.Tag{}
	err := sqlx.SelectContext(ctx, q, &tags, q.Rebind(
		`SELECT t.id, t.name, t.slug, t.date_posted
		 FROM tags t JOIN post_tags pt ON pt.tag_id = t.id
		 WHERE pt.post_id = ?
		 ORDER BY t.name, t.id`), postID)
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// tagsForPosts loads the tags of many posts in one query, keyed by post id.
func tagsForPosts(ctx context.Context, q sqlx.ExtContext, postIDs []int64) (map[int64][]model.Tag, error) {
	byPost := make(map[int64][]model.Tag, len(postIDs))
	if len(postIDs) == 0 {
		return byPost, nil
	}

	query, args, err := sqlx.In(
		`SELECT pt.post_id, t.id, t.name, t.slug, t.date_posted
		 FROM tags t JOIN post_tags pt ON pt.tag_id = t.id
		 WHERE pt.post_id IN (?)
		 ORDER BY t.name, t.id`, postIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		PostID int64 `db:"post_id"`
		model.Tag
	}
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		byPost[row.PostID] = append(byPost[row.PostID], row.Tag)
	}
	return byPost, nil
}
