package database

import (
	"strings"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "pinky", Name: "pinky"})
	require.NoError(t, err)
	require.Equal(t, "postgres://pinky@localhost:5432/pinky?TimeZone=UTC&sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com", parsed.Host)
	require.EqualValues(t, 6543, parsed.Port)
	require.Equal(t, "user", parsed.User)
	require.Equal(t, "pass", parsed.Password)
	require.Equal(t, "db", parsed.Database)
	require.Equal(t, "public", parsed.RuntimeParams["search_path"])
	require.Contains(t, dsn, "sslmode=require")
}

func TestBuildPostgresDSNOverride(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "host=db user=pinky dbname=pinky sslmode=disable"})
	require.NoError(t, err)
	require.Equal(t, "host=db user=pinky dbname=pinky sslmode=disable", dsn)

	_, err = buildPostgresDSN(Config{DSN: "postgres://pinky@db:notaport/pinky"})
	require.Error(t, err)
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "pinky", Name: "pinky"})
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "pinky", parsed.User)
	require.Equal(t, "127.0.0.1:3306", parsed.Addr)
	require.Equal(t, "pinky", parsed.DBName)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
	require.Contains(t, dsn, "charset=utf8mb4")
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "mysql.internal",
		Port:     3307,
		Options:  map[string]string{"timeout": "5s"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "user:secret@tcp(mysql.internal:3307)/db?"), dsn)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "secret", parsed.Passwd)
	require.Equal(t, 5*time.Second, parsed.Timeout)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)

	_, err = buildMySQLDSN(Config{DSN: "not a dsn"})
	require.Error(t, err)
}
