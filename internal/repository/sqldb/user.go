package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, about_me, last_seen, created_at`

// CreateUser inserts user and fills in its ID, CreatedAt and LastSeen.
//
// UNIQUENESS:
// The username/email check and the INSERT share one transaction, so a failed
// check writes nothing. A concurrent writer that slips past the check still
// trips the UNIQUE constraints and is reported as the same conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := db.timestamp()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var taken []struct {
			Username string `db:"username"`
			Email    string `db:"email"`
		}
		err := tx.SelectContext(ctx, &taken,
			tx.Rebind(`SELECT username, email FROM users WHERE username = ? OR email = ?`),
			user.Username, user.Email,
		)
		if err != nil {
			return fmt.Errorf("checking uniqueness: %w", err)
		}
		for _, row := range taken {
			if row.Username == user.Username {
				return apperror.Conflict("user", "username")
			}
		}
		if len(taken) > 0 {
			return apperror.Conflict("user", "email")
		}

		id, err := insertID(ctx, tx,
			`INSERT INTO users (username, email, password_hash, about_me, last_seen, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			user.Username, user.Email, user.PasswordHash, user.AboutMe, now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("user", conflictField(err))
			}
			return err
		}
		user.ID = id
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqldb: creating user: %w", err)
	}

	user.CreatedAt = now
	user.LastSeen = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByUsername matches the username exactly.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, "username", username)
}

// GetUserByEmail expects email already normalised by the caller.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "email", email)
}

func (db *DB) getUser(ctx context.Context, column string, value any) (*model.User, error) {
	var user model.User
	query := db.conn.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`)
	if err := db.conn.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqldb: getting user by %s: %w", column, err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := db.conn.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY username, id`); err != nil {
		return nil, fmt.Errorf("sqldb: listing users: %w", err)
	}
	return users, nil
}

func (db *DB) UpdateProfile(ctx context.Context, id int64, aboutMe string) error {
	return db.updateUserColumn(ctx, id, "about_me", aboutMe)
}

// TouchLastSeen records activity for the user. It is called on every
// authenticated request.
func (db *DB) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	return db.updateUserColumn(ctx, id, "last_seen", storedTime(at))
}

func (db *DB) updateUserColumn(ctx context.Context, id int64, column string, value any) error {
	result, err := db.conn.ExecContext(ctx,
		db.conn.Rebind(`UPDATE users SET `+column+` = ? WHERE id = ?`), value, id)
	if err != nil {
		return fmt.Errorf("sqldb: updating user %s: %w", column, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// DeleteUser removes the user together with every post they wrote and those
// posts' tag links. The cascade is spelled out so it holds even on
// connections where the engine does not enforce foreign keys.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := exists(ctx, tx, "users", id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("user", id)
		}

		stmts := []string{
			`DELETE FROM post_tags WHERE post_id IN (SELECT id FROM posts WHERE author_id = ?)`,
			`DELETE FROM posts WHERE author_id = ?`,
			`DELETE FROM users WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqldb: deleting user: %w", err)
	}
	return nil
}
