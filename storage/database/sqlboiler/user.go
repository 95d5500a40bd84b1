package boiledrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/coachingcentre/platform/core"
	"github.com/coachingcentre/platform/core/user"
)

// userRow mirrors the "user" table. Roles are stored comma separated.
type userRow struct {
	ID           string      `boil:"id"`
	Name         string      `boil:"name"`
	Username     null.String `boil:"username"`
	Email        null.String `boil:"email"`
	IsActive     bool        `boil:"is_active"`
	Roles        string      `boil:"roles"`
	PasswordHash null.Bytes  `boil:"password_hash"`
	CreatedAt    time.Time   `boil:"created_at"`
	UpdatedAt    time.Time   `boil:"updated_at"`
	LastLogin    null.Time   `boil:"last_login"`
}

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var (
	_ user.Repository      = (*userRepository)(nil) // interface compliance check
	_ boil.ContextExecutor = (*sqlx.DB)(nil)
)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.Active(),
		Roles:        strings.Join(usr.Roles, ","),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Roles:        []string{},
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	usr.SetActive(row.IsActive)
	if row.Roles != "" {
		usr.Roles = strings.Split(row.Roles, ",")
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

// trapNoRowsErr maps "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps unique constraint violations to user.ErrUserExists
func (repo userRepository) trapUniqueErr(err error, msg string) error {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		if e.Code == "23505" {
			return user.ErrUserExists
		}
	case sqlite3.Error:
		if e.ExtendedCode == sqlite3.ErrConstraintUnique {
			return user.ErrUserExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User) error {
	q := `SELECT COUNT(*) AS count FROM "user" WHERE (username = ? OR email = ?)`
	args := []interface{}{username, email}
	for _, u := range excludedUsers {
		q += " AND id <> ?"
		args = append(args, u.ID)
	}

	var res struct {
		Count int `boil:"count"`
	}
	if err := queries.Raw(repo.db.Rebind(q), args...).Bind(ctx, repo.db, &res); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if res.Count > 0 {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.boil(usr)
	q := repo.db.Rebind(`INSERT INTO "user" (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(ctx, q,
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles,
		row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + strings.ToLower(filter.Search) + "%"
			conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)")
			args = append(args, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, "(',' || roles) LIKE ?")
				args = append(args, "%,"+role+"%")
			}
			conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = ?")
			args = append(args, *filter.IsActive)
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := user.OrderingFields[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	q += " ORDER BY " + strings.Join(append(orderList, "id ASC"), ", ")

	var rows []userRow
	if err := queries.Raw(repo.db.Rebind(q), args...).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unboil(r))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		q   string
		arg []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = `SELECT ` + userColumns + ` FROM "user" WHERE id = ?`
		arg = []interface{}{filter.ID}
	case filter.UsernameOrEmail != "":
		q = `SELECT ` + userColumns + ` FROM "user" WHERE username = ? OR email = ?`
		arg = []interface{}{filter.UsernameOrEmail, filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := queries.Raw(repo.db.Rebind(q), arg...).Bind(ctx, repo.db, &row); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.boil(usr)
	q := repo.db.Rebind(`UPDATE "user" SET name = ?, username = ?, email = ?, is_active = ?, roles = ?,
		password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?`)
	res, err := repo.db.ExecContext(ctx, q,
		row.Name, row.Username, row.Email, row.IsActive, row.Roles,
		row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID)
	if err != nil {
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(row), nil
}
