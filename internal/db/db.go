package db

import (
	"net"
	"net/url"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/e-kose/FT-PINPON-sub002/internal/migrations"
	"github.com/e-kose/FT-PINPON-sub002/internal/models"
)

// DB wraps the GORM database connection
type DB struct {
	*gorm.DB
}

// Config holds database connection configuration. For sqlite, DBName is the
// database file.
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	// Verbose logs every statement.
	Verbose bool
}

// MySQLDSN builds the DSN for MySQL. Migrations need multi statements.
func (c Config) MySQLDSN(multiStatements bool) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = multiStatements
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// PostgresDSN builds a lib/pq style URL usable by both gorm and migrations.
func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// New opens the database and brings the schema up to date: SQL migrations
// for MySQL and Postgres, AutoMigrate for sqlite.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	log = log.With().Str("component", "db").Str("driver", cfg.Driver).Logger()

	var dialector gorm.Dialector
	switch cfg.Driver {
	case migrations.MySQL:
		dialector = mysql.Open(cfg.MySQLDSN(false))
	case migrations.Postgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case "sqlite", "":
		name := cfg.DBName
		if name == "" {
			name = "pong.db"
		}
		dialector = sqlite.Open(name)
	default:
		return nil, eris.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logMode := logger.Warn
	if cfg.Verbose {
		logMode = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	gdb, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, eris.Wrap(err, "connect to database")
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, eris.Wrap(err, "get underlying sql.DB")
	}

	// sqlite serializes writers; one connection avoids "database is locked"
	if cfg.Driver == "sqlite" || cfg.Driver == "" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, eris.Wrap(err, "ping database")
	}

	switch cfg.Driver {
	case migrations.MySQL:
		err = migrations.Up(cfg.Driver, cfg.MySQLDSN(true), log)
	case migrations.Postgres:
		err = migrations.Up(cfg.Driver, cfg.PostgresDSN(), log)
	default:
		err = gdb.AutoMigrate(models.All()...)
	}
	if err != nil {
		return nil, eris.Wrap(err, "migrate schema")
	}

	log.Info().Msg("database connected and schema up to date")
	return &DB{gdb}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return eris.Wrap(err, "get underlying sql.DB")
	}
	return sqlDB.Close()
}
