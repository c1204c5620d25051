package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresHost = "localhost"
	defaultPostgresPort = 5432
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// buildPostgresDSN renders a postgres:// URL. Sessions default to UTC without TLS unless
// Options say otherwise. The result is parsed by pgconn so malformed input fails at start-up.
func buildPostgresDSN(cfg Config) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.User == "" || cfg.Name == "" {
			return "", errors.New("postgres configuration requires user and database name")
		}

		host := cfg.Host
		if host == "" {
			host = defaultPostgresHost
		}
		port := cfg.Port
		if port == 0 {
			port = defaultPostgresPort
		}

		query := url.Values{}
		query.Set("sslmode", "disable")
		query.Set("TimeZone", "UTC")
		for key, value := range cfg.Options {
			query.Set(key, value)
		}

		u := url.URL{
			Scheme:   "postgres",
			User:     url.User(cfg.User),
			Host:     net.JoinHostPort(host, strconv.Itoa(port)),
			Path:     "/" + cfg.Name,
			RawQuery: query.Encode(),
		}
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		}
		dsn = u.String()
	}

	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("invalid postgres dsn: %w", err)
	}
	return dsn, nil
}
