package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/fs"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite3"

	migrationsDir = "migrations"
)

var errUnknownEngine = errors.New("unknown database engine")

func open(dbName string, admin bool, conf *core.Config) (*sql.DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   Postgres,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return sql.Open(Postgres, u.String())
}

// OpenSQLite opens a sqlite database file with WAL journaling and foreign keys on.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(SQLite, path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_loc=UTC")
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)
	return db, nil
}

// Open opens the configured database and wraps it for sqlx.
func Open(conf *core.Config) (*sqlx.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch conf.Database.Engine {
	case Postgres:
		db, err = open(conf.Database.Name, false, conf)
	case SQLite:
		db, err = OpenSQLite(conf.Database.Path)
	default:
		return nil, errors.Wrap(errUnknownEngine, conf.Database.Engine)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRow(query, args...).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database. sqlite files are created on open.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != Postgres {
		return nil
	}

	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

// MigrationsDir returns the embedded migrations directory of a dialect.
func MigrationsDir(engine string) string {
	return path.Join(migrationsDir, engine)
}

// RunMigrations runs a goose command against the embedded migrations of `engine`.
func RunMigrations(db *sql.DB, engine, command string, args ...string) error {
	if err := goose.SetDialect(engine); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	return goose.RunFS(command, db, appfs.FS, MigrationsDir(engine), args...)
}

func Migrate(db *sql.DB, engine string) error {
	if err := RunMigrations(db, engine, "up"); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
