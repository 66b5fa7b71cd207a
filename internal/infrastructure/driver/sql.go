package driver

import (
	"context"
	"database/sql"
	"strings"
	"time"

	// mysql driver
	_ "github.com/go-sql-driver/mysql"
	// sqlite driver
	_ "modernc.org/sqlite"
)

// SQLWrapper Wraps a *sql.db object and provides the implementation of ITransactionalDB.
//
// it serves the database/sql based dialects, mysql and sqlite
type SQLWrapper struct {
	db      *sql.DB
	dialect Dialect
}

// SQLWrapperTx transaction wrapper
type SQLWrapperTx struct {
	tx      *sql.Tx
	dialect Dialect
}

var (
	_ ITransactionalDB = &SQLWrapper{}
	_ ITransactionalDB = &SQLWrapperTx{}
)

// NewMySQLConn Returns a MySQL connection pool
func NewMySQLConn(dsn string, cfg *DBConfig) (ITransactionalDB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(int(cfg.MaxConn))
	return &SQLWrapper{conn, DialectMySQL}, nil
}

// NewSQLiteConn Returns a SQLite connection pool on the database file at path
func NewSQLiteConn(path string, cfg *DBConfig) (ITransactionalDB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.MaxConn > 0 {
		conn.SetMaxOpenConns(int(cfg.MaxConn))
	}
	return &SQLWrapper{conn, DialectSQLite}, nil
}

// BeginTx start a new transaction context
func (sw *SQLWrapper) BeginTx(ctx context.Context, opts *TxOptions) (ITransactionalDB, error) {
	startTime := time.Now()
	tx, err := sw.db.BeginTx(ctx, sqlTxOptionAdapter(opts, sw.dialect))
	logQuery(ctx, "BeginTx", "", nil, startTime, err)
	if err != nil {
		return nil, err
	}
	return &SQLWrapperTx{tx, sw.dialect}, nil
}

func sqlTxOptionAdapter(opts *TxOptions, dialect Dialect) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	txOpts := &sql.TxOptions{
		Isolation: opts.Isolation,
		ReadOnly:  opts.AccessMode == AccessReadOnly,
	}
	// sqlite transactions are always serializable
	if dialect == DialectSQLite {
		txOpts.Isolation = sql.LevelDefault
	}
	return txOpts
}

// Commit no-op outside of a transaction
func (sw *SQLWrapper) Commit(ctx context.Context) error {
	return nil
}

// Rollback no-op outside of a transaction
func (sw *SQLWrapper) Rollback(ctx context.Context) error {
	return nil
}

// Close .
func (sw *SQLWrapper) Close(ctx context.Context) error {
	return sw.db.Close()
}

// Ping .
func (sw *SQLWrapper) Ping(ctx context.Context) error {
	return sw.db.PingContext(ctx)
}

// Dialect .
func (sw *SQLWrapper) Dialect() Dialect {
	return sw.dialect
}

// ExecContext .
func (sw *SQLWrapper) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	startTime := time.Now()
	query = rewriteQuery(query, sw.dialect)
	res, err := sw.db.ExecContext(ctx, query, args...)
	logQuery(ctx, "Exec", query, args, startTime, err)
	return res, err
}

// QueryContext .
func (sw *SQLWrapper) QueryContext(ctx context.Context, query string, args ...interface{}) (ISQLRows, error) {
	startTime := time.Now()
	query = rewriteQuery(query, sw.dialect)
	rows, err := sw.db.QueryContext(ctx, query, args...)
	logQuery(ctx, "Query", query, args, startTime, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BeginTx nested transactions are not supported
func (swt *SQLWrapperTx) BeginTx(ctx context.Context, opts *TxOptions) (ITransactionalDB, error) {
	panic("create transaction inside a transaction")
}

// ExecContext .
func (swt *SQLWrapperTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	startTime := time.Now()
	query = rewriteQuery(query, swt.dialect)
	res, err := swt.tx.ExecContext(ctx, query, args...)
	logQuery(ctx, "Exec", query, args, startTime, err)
	return res, err
}

// QueryContext .
func (swt *SQLWrapperTx) QueryContext(ctx context.Context, query string, args ...interface{}) (ISQLRows, error) {
	startTime := time.Now()
	query = rewriteQuery(query, swt.dialect)
	rows, err := swt.tx.QueryContext(ctx, query, args...)
	logQuery(ctx, "Query", query, args, startTime, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Commit .
func (swt *SQLWrapperTx) Commit(ctx context.Context) error {
	startTime := time.Now()
	err := swt.tx.Commit()
	logQuery(ctx, "Commit", "", nil, startTime, err)
	return err
}

// Rollback .
func (swt *SQLWrapperTx) Rollback(ctx context.Context) error {
	startTime := time.Now()
	err := swt.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	logQuery(ctx, "RollBack", "", nil, startTime, err)
	return err
}

// Close .
func (swt *SQLWrapperTx) Close(ctx context.Context) error {
	return nil
}

// Ping .
func (swt *SQLWrapperTx) Ping(ctx context.Context) error {
	return nil
}

// Dialect .
func (swt *SQLWrapperTx) Dialect() Dialect {
	return swt.dialect
}

func rewriteQuery(query string, dialect Dialect) string {
	if dialect == DialectMySQL {
		query = strings.Replace(query, "\"", "`", -1)
	}
	query = DollarPlaceholderPattern.ReplaceAllString(query, "?")
	query = SpacePattern.ReplaceAllString(query, " ")
	return query
}
