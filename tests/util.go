package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/user"
	"github.com/coachingcentre/platform/storage/database"
)

// OpenDB opens a fresh, migrated sqlite database in a test temp dir.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	sqlDB, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	if err = database.Migrate(sqlDB, database.SQLite); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	db := sqlx.NewDb(sqlDB, database.SQLite)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// Logger writes to the test log.
type Logger struct {
	T *testing.T
}

var _ core.Logger = Logger{} // interface compliance check

func (l Logger) Debug(msg string, args ...interface{}) { l.T.Logf("DEBUG: %s %v", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.T.Logf("INFO: %s %v", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.T.Logf("WARN: %s %v", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.T.Logf("ERROR: %s %v", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) { l.T.Fatalf("FATAL: %s %v", msg, args) }
