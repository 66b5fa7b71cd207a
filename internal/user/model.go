// Package user manages reader accounts and credential checks.
package user

import (
	"context"
	"errors"
	"time"
)

// ErrNoSuchUser failed to validate the credential
var ErrNoSuchUser = errors.New("No such user or password is incorrect")

// ErrDuplicatedUser unique key constraint violation
var ErrDuplicatedUser = errors.New("Username or email is already registered")

// ErrUserTooManyRetry sign in is locked after too many failed attempts
var ErrUserTooManyRetry = errors.New("Too many failed sign in attempts, try again later")

// UserModel an account. Password holds the bcrypt hash.
type UserModel struct {
	ID         string    `json:"id" bson:"_id"`
	Username   string    `json:"username" bson:"username"`
	Email      string    `json:"email" bson:"email"`
	Password   string    `json:"-" bson:"password"`
	LoginRetry int       `json:"-" bson:"login_retry"`
	LastLogin  int64     `json:"-" bson:"last_login"` // unix seconds of the last sign in attempt
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// UserRepository .
type UserRepository interface {
	// FindByCredential user whose username or email matches, nil when none
	FindByCredential(ctx context.Context, username, email string) (*UserModel, error)
	SaveUser(ctx context.Context, post *UserModel) error
	UpdateLogin(ctx context.Context, post *UserModel) error
}

// UserUseCase .
type UserUseCase interface {
	SignUp(ctx context.Context, username, email, password string) (*UserModel, error)
	SignIn(ctx context.Context, credential, password string) (*UserModel, error)
	Exists(ctx context.Context, username, email string) (bool, error)
}
