package user

import (
	"context"
	"time"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
)

// UserSQL accounts in the users table
type UserSQL struct {
	Conn          driver.ITransactionalDB
	UUIDGenerator uuid.Generator
}

var _ UserRepository = &UserSQL{}

// NewUserSQL .
func NewUserSQL(Conn driver.ITransactionalDB, UUIDGenerator uuid.Generator) *UserSQL {
	return &UserSQL{Conn, UUIDGenerator}
}

// Migrate .
func (repo *UserSQL) Migrate(ctx context.Context) error {
	_, err := repo.Conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS users (
	id          VARCHAR(64) NOT NULL PRIMARY KEY,
	username    VARCHAR(64) NOT NULL UNIQUE,
	email       VARCHAR(255) NOT NULL UNIQUE,
	password    VARCHAR(128) NOT NULL,
	login_retry INTEGER NOT NULL DEFAULT 0,
	last_login  BIGINT NOT NULL DEFAULT 0,
	created_at  VARCHAR(40) NOT NULL
)`)
	return err
}

// FindByCredential query user with provided credential
func (repo *UserSQL) FindByCredential(ctx context.Context, username, email string) (*UserModel, error) {
	row, err := repo.Conn.QueryContext(ctx, `
SELECT id, username, password, email, login_retry, last_login, created_at
FROM users WHERE username = $1 OR email = $2`, username, email)
	if err != nil {
		return nil, err
	}
	defer row.Close()

	if !row.Next() {
		return nil, row.Err()
	}
	var (
		user      = new(UserModel)
		createdAt string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.Email, &user.LoginRetry, &user.LastLogin, &createdAt); err != nil {
		return nil, err
	}
	if user.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser assigns post a fresh ID and inserts it
func (repo *UserSQL) SaveUser(ctx context.Context, post *UserModel) error {
	id, err := repo.UUIDGenerator.Generate()
	if err != nil {
		return err
	}
	post.ID = id

	_, err = repo.Conn.ExecContext(ctx, `
INSERT INTO users (id, username, password, email, login_retry, last_login, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.Username, post.Password, post.Email, post.LoginRetry, post.LastLogin,
		post.CreatedAt.UTC().Format(time.RFC3339))
	if driver.IsUniqueViolation(err) {
		return ErrDuplicatedUser
	}
	return err
}

// UpdateLogin .
func (repo *UserSQL) UpdateLogin(ctx context.Context, post *UserModel) error {
	_, err := repo.Conn.ExecContext(ctx, `UPDATE users SET login_retry = $1, last_login = $2 WHERE id = $3`,
		post.LoginRetry, post.LastLogin, post.ID)
	return err
}
