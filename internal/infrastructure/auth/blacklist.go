package auth

import (
	"context"
	"errors"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
)

const blacklistPrefix = "token:revoked:"

// TokenBlacklist signed out token IDs, kept until the token would expire anyway
type TokenBlacklist struct {
	KV driver.KeyValueDB
}

// NewTokenBlacklist .
func NewTokenBlacklist(KV driver.KeyValueDB) *TokenBlacklist {
	return &TokenBlacklist{KV}
}

// Revoke blacklists the token of claims for the rest of its lifetime, expired
// tokens are skipped
func (tb *TokenBlacklist) Revoke(ctx context.Context, claims *ReaderClaims) error {
	ttl := claims.TimeRemaining()
	if ttl <= 0 || claims.Id == "" {
		return nil
	}
	return tb.KV.SetEX(ctx, blacklistPrefix+claims.Id, claims.Subject, ttl)
}

// IsRevoked .
func (tb *TokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ok, err := tb.KV.Exists(ctx, blacklistPrefix+tokenID)
	if errors.Is(err, driver.ErrKeyNotFound) {
		return false, nil
	}
	return ok, err
}
