package user

import (
	"context"
	"errors"
	"testing"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"github.com/stretchr/testify/assert"
)

type brokenConn struct {
	driver.ITransactionalDB
	err error
}

func (bc brokenConn) QueryContext(ctx context.Context, query string, args ...interface{}) (driver.ISQLRows, error) {
	return brokenRows{bc.err}, nil
}

type brokenRows struct{ err error }

func (br brokenRows) Next() bool                     { return false }
func (br brokenRows) Scan(dest ...interface{}) error { return br.err }
func (br brokenRows) Err() error                     { return br.err }
func (br brokenRows) Close() error                   { return nil }

func TestUserSQL_FindByCredentialIterationError(t *testing.T) {
	connErr := errors.New("connection reset")
	repo := NewUserSQL(brokenConn{err: connErr}, uuid.RandomGenerator{})

	user, err := repo.FindByCredential(context.Background(), "alice", "alice@example.com")
	assert.ErrorIs(t, err, connErr)
	assert.Nil(t, user)
}
