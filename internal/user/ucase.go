package user

import (
	"context"
	"errors"
	"time"

	"github.com/pot-code/speedread/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserUseCaseImpl ...
type UserUseCaseImpl struct {
	UserRepository UserRepository
	// MaxLoginAttempts failed attempts allowed before sign in is locked for RetryTimeout
	MaxLoginAttempts int
	RetryTimeout     time.Duration
	HashCost         int
	Now              func() time.Time
}

var _ UserUseCase = &UserUseCaseImpl{}

// NewUserUseCase ...
func NewUserUseCase(
	UserRepository UserRepository,
	MaxLoginAttempts int,
	RetryTimeout time.Duration,
) *UserUseCaseImpl {
	return &UserUseCaseImpl{
		UserRepository:   UserRepository,
		MaxLoginAttempts: MaxLoginAttempts,
		RetryTimeout:     RetryTimeout,
		HashCost:         bcrypt.DefaultCost,
		Now:              time.Now,
	}
}

// SignUp create a user
func (uu *UserUseCaseImpl) SignUp(ctx context.Context, username, email, password string) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignUp", "service")
	defer apmSpan.End()

	ur := uu.UserRepository
	// search for existence
	if m, err := ur.FindByCredential(ctx, username, email); err != nil {
		return nil, err
	} else if m != nil {
		return nil, ErrDuplicatedUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), uu.HashCost)
	if err != nil {
		return nil, err
	}
	post := &UserModel{
		Username:  username,
		Email:     email,
		Password:  string(hash),
		CreatedAt: uu.Now().UTC().Truncate(time.Second),
	}
	if err := ur.SaveUser(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// SignIn checks the password of the user named by credential (username or
// email). Sign in is refused with ErrUserTooManyRetry once MaxLoginAttempts
// failures pile up, until RetryTimeout has passed since the last attempt.
func (uu *UserUseCaseImpl) SignIn(ctx context.Context, credential, password string) (*UserModel, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.SignIn", "service")
	defer apmSpan.End()

	ur := uu.UserRepository
	user, err := ur.FindByCredential(ctx, credential, credential)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSuchUser
	}

	now := uu.Now()
	if uu.MaxLoginAttempts > 0 && user.LoginRetry >= uu.MaxLoginAttempts {
		if now.Sub(time.Unix(user.LastLogin, 0)) < uu.RetryTimeout {
			return nil, ErrUserTooManyRetry
		}
		user.LoginRetry = 0
	}

	user.LastLogin = now.Unix()
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, err
		}
		user.LoginRetry++
		if err := ur.UpdateLogin(ctx, user); err != nil {
			logging.ExtractLoggerFromContext(ctx).Error("failed to record sign in attempt",
				zap.String("user.id", user.ID), zap.Error(err))
		}
		return nil, ErrNoSuchUser
	}

	// reset retry number
	user.LoginRetry = 0
	if err := ur.UpdateLogin(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Exists find if user exists in database
func (uu *UserUseCaseImpl) Exists(ctx context.Context, username, email string) (bool, error) {
	apmSpan, _ := apm.StartSpan(ctx, "UserUseCaseImpl.Exists", "service")
	defer apmSpan.End()

	user, err := uu.UserRepository.FindByCredential(ctx, username, email)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
