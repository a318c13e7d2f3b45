package server

import (
	"context"
	"database/sql"

	"github.com/kfcemployee/goserver/internal/dbpool"
	"github.com/kfcemployee/goserver/internal/logger"
)

// These queries assume the user table of spec.md §6: username is unique and
// password stores the hash (or, for this trivial auth workflow, the
// plaintext password itself — the dialect is explicitly out of scope).
const (
	selectPasswordSQL = "SELECT password FROM user WHERE username = ?"
	insertUserSQL     = "INSERT INTO user(username, password) VALUES (?, ?)"
)

// newVerifier builds an httpx.UserVerifier backed by db: login compares
// the stored password, register inserts if the username is absent. Any
// database error degrades to a failed-auth response and is logged at
// WARN, per spec.md §4.2/§7's DatabaseUnavailable policy.
func newVerifier(db *dbpool.Pool) func(username, password string, isLogin bool) bool {
	return func(username, password string, isLogin bool) bool {
		ctx := context.Background()
		var ok bool
		err := db.WithConn(ctx, func(conn *sql.Conn) error {
			if isLogin {
				var stored string
				row := conn.QueryRowContext(ctx, selectPasswordSQL, username)
				if err := row.Scan(&stored); err != nil {
					return err
				}
				ok = stored == password
				return nil
			}

			var existing string
			row := conn.QueryRowContext(ctx, selectPasswordSQL, username)
			switch err := row.Scan(&existing); err {
			case sql.ErrNoRows:
				_, err := conn.ExecContext(ctx, insertUserSQL, username, password)
				ok = err == nil
				return err
			case nil:
				ok = false
				return nil
			default:
				return err
			}
		})
		if err != nil {
			logger.Warnf("auth: verify username=%q isLogin=%v: %v", username, isLogin, err)
			return false
		}
		return ok
	}
}
