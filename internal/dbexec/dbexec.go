// Package dbexec owns the actual database connection inside the tool host
// process. It opens a database/sql handle for the configured driver,
// introspects the schema, and runs validated statements, mapping driver
// failures onto stable error kinds.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/sqlbridge/sqlbridge/internal/config"
)

// BuildDSN derives a driver DSN from the discrete connection fields. An
// explicit cfg.DSN always wins; file-backed drivers treat Name as the
// database path.
func BuildDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch cfg.Driver {
	case "sqlserver":
		query := url.Values{}
		query.Set("database", cfg.Name)
		if cfg.TrustServerCert {
			query.Set("trustservercertificate", "true")
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			RawQuery: query.Encode(),
		}
		if !cfg.IntegratedAuth {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		return u.String(), nil
	case "pgx":
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:   "/" + cfg.Name,
		}
		return u.String(), nil
	case "sqlite", "duckdb":
		if cfg.Name == "" {
			return "", fmt.Errorf("%s requires a database path", cfg.Driver)
		}
		return cfg.Name, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// Open connects with the configured driver and verifies the connection
// with a bounded ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
