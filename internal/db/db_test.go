package db

import (
	"path/filepath"
	"strings"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-kose/FT-PINPON-sub002/internal/models"
)

func TestMySQLDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "3306", User: "pong", Password: "p@ss:word", DBName: "pong"}

	parsed, err := mysqldriver.ParseDSN(cfg.MySQLDSN(true))
	require.NoError(t, err)
	assert.Equal(t, "pong", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "pong", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.True(t, parsed.MultiStatements)

	parsed, err = mysqldriver.ParseDSN(cfg.MySQLDSN(false))
	require.NoError(t, err)
	assert.False(t, parsed.MultiStatements)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{Host: "pg", Port: "5432", User: "pong", Password: "secret", DBName: "pong"}
	dsn := cfg.PostgresDSN()
	assert.True(t, strings.HasPrefix(dsn, "postgres://pong:secret@pg:5432/pong"))
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestNew_SQLiteAutoMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pong.db")
	d, err := New(Config{Driver: "sqlite", DBName: path}, zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()

	for _, m := range models.All() {
		assert.True(t, d.Migrator().HasTable(m))
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)
}
