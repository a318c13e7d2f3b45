// Package dbpool implements a semaphore-guarded pool of live database
// connections, the Go counterpart of the original server's SqlConnPool:
// a fixed count of handles handed out via Acquire and returned via
// Release, with a scoped-acquisition helper for the common case.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// Config describes how to reach the database and how many connections to
// keep open, mirroring the constructor arguments the original took
// (host, port, user, password, dbName, connSize).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	PoolSize int
}

// Pool hands out *sql.Conn values bounded by a counting semaphore sized to
// PoolSize, backed by a single *sql.DB whose own connection limit is set
// to match.
type Pool struct {
	db  *sql.DB
	sem chan struct{}
}

// Open connects to the database described by cfg and sizes the pool's
// semaphore (and the underlying *sql.DB's max-open-conns) to cfg.PoolSize.
func Open(cfg Config) (*Pool, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 8
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "dbpool: open")
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	p := &Pool{db: db, sem: make(chan struct{}, size)}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}
	return p, nil
}

// Acquire blocks until a connection slot is available, or ctx is done,
// then returns a live *sql.Conn. The caller must pass the returned Conn to
// Release exactly once.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	select {
	case <-p.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.sem <- struct{}{}
		return nil, errors.Wrap(err, "dbpool: acquire")
	}
	return conn, nil
}

// Release returns conn's slot to the pool and closes the handle, matching
// the original's acquire/release-by-value pattern (the *sql.DB behind it
// keeps the real TCP connection pooled for reuse).
func (p *Pool) Release(conn *sql.Conn) {
	if conn != nil {
		conn.Close()
	}
	p.sem <- struct{}{}
}

// WithConn acquires a connection, runs fn, and releases it even if fn
// panics or returns an error, the scoped-acquisition helper spec.md calls
// for as the analogue of the original's SqlConnRAII.
func (p *Pool) WithConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// Close drains the pool and closes the underlying *sql.DB.
func (p *Pool) Close() error {
	return p.db.Close()
}
