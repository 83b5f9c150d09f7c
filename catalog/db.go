package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// OpenDB opens the catalog database named by url. Supported forms are
// postgres://..., postgresql://... and sqlite:<path> (or file:<path>).
// The connection is verified with a ping.
func OpenDB(ctx context.Context, url string) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		db    *bun.DB
		err   error
	)

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		sqldb, err = sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		dsn := strings.TrimPrefix(url, "sqlite:")
		sqldb, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
			// Every pooled connection would otherwise see its own empty database.
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database url %q", redactURL(url))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// CreateSchema creates the four catalog tables if they do not exist.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*ArtistModel)(nil),
		(*AlbumModel)(nil),
		(*GenreModel)(nil),
		(*TrackModel)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

func redactURL(url string) string {
	if i := strings.Index(url, "@"); i >= 0 {
		if j := strings.Index(url, "://"); j >= 0 && j < i {
			return url[:j+3] + "***" + url[i:]
		}
	}
	return url
}
