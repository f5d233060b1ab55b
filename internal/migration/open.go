package migration

import (
	"strings"

	"golopo/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to url. postgres:// and postgresql:// URLs use lib/pq.
// sqlite:<path>, or sqlite::memory:, opens a local SQLite database for trying
// the schema without a server.
func Open(url string) (*sqlx.DB, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := sqlx.Connect("postgres", url)
		if err != nil {
			return nil, errors.DatabaseError("failed to connect to postgres", err)
		}
		return db, nil
	case strings.HasPrefix(url, "sqlite:"):
		path := strings.TrimPrefix(url, "sqlite:")
		if path == "" {
			return nil, errors.ConfigInvalid("sqlite url needs a path")
		}
		db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
		if err != nil {
			return nil, errors.DatabaseError("failed to open sqlite database", err)
		}
		// Every connection to :memory: is a separate database.
		if path == ":memory:" {
			db.SetMaxOpenConns(1)
		}
		return db, nil
	default:
		return nil, errors.ConfigInvalid("unsupported database url, expected postgres:// or sqlite:")
	}
}
