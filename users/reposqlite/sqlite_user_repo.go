package reposqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/users"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var _ users.UserRepo = (*SQLiteUserRepo)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	login_name    TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	roles         TEXT NOT NULL DEFAULT '[]',
	blocked       INTEGER NOT NULL DEFAULT 0,
	date_joined   TEXT NOT NULL,
	last_login    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_users_display_name ON users(display_name);
`

const userColumns = `id, login_name, display_name, email, password_hash, roles, blocked, date_joined, last_login`

// SQLiteUserRepo implements users.UserRepo on top of SQLite. All queries are
// parameterised; substring searches escape LIKE wildcards in the fragment.
type SQLiteUserRepo struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func New(path string) (*SQLiteUserRepo, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("[reposqlite.New] create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[reposqlite.New] open: %w", err)
	}
	if path == ":memory:" {
		// every new connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	repo := &SQLiteUserRepo{db: db}
	if err := repo.configure(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("SQLite user store ready")
	return repo, nil
}

func (r *SQLiteUserRepo) configure(path string) error {
	pragmas := []string{"PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := r.db.Exec(p); err != nil {
			return fmt.Errorf("[reposqlite.configure] %s: %w", p, err)
		}
	}
	return r.db.Ping()
}

func (r *SQLiteUserRepo) migrate() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("[reposqlite.migrate] %w", err)
	}
	return nil
}

// Close releases the database handle
func (r *SQLiteUserRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteUserRepo) Upsert(ctx context.Context, user *users.User) error {
	if user == nil || user.LoginName == "" {
		return errors.ErrInvalidUser
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}

	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("[SQLiteUserRepo.Upsert] marshal roles: %w", err)
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			login_name = excluded.login_name,
			display_name = excluded.display_name,
			email = excluded.email,
			password_hash = excluded.password_hash,
			roles = excluded.roles,
			blocked = excluded.blocked,
			last_login = excluded.last_login
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.LoginName,
		user.DisplayName,
		user.Email,
		user.PasswordHash,
		string(roles),
		boolToInt(user.Blocked),
		formatTime(user.DateJoined),
		formatTime(user.LastLogin),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.ErrLoginNameTaken
		}
		return fmt.Errorf("[SQLiteUserRepo.Upsert] %w", err)
	}
	return nil
}

func (r *SQLiteUserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("[SQLiteUserRepo.Delete] %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (r *SQLiteUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanOne(row)
}

func (r *SQLiteUserRepo) FindByLoginNameExact(ctx context.Context, loginName string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE login_name = ?`, loginName)
	return scanOne(row)
}

func (r *SQLiteUserRepo) FindByLoginNameContains(ctx context.Context, fragment string, req users.PageRequest) (users.Slice[*users.User], error) {
	req = req.Normalize()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(login_name) LIKE lower(?) ESCAPE '\'
		 ORDER BY login_name LIMIT ? OFFSET ?`,
		likePattern(fragment), req.Size+1, req.Offset())
	if err != nil {
		return users.Slice[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.FindByLoginNameContains] %w", err)
	}
	list, err := scanAll(rows)
	if err != nil {
		return users.Slice[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.FindByLoginNameContains] %w", err)
	}
	return users.NewSlice(list, req), nil
}

func (r *SQLiteUserRepo) FindByDisplayNameContains(ctx context.Context, fragment string, req users.PageRequest) (users.Page[*users.User], error) {
	req = req.Normalize()
	pattern := likePattern(fragment)

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE lower(display_name) LIKE lower(?) ESCAPE '\'`, pattern).Scan(&total)
	if err != nil {
		return users.Page[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.FindByDisplayNameContains] count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(display_name) LIKE lower(?) ESCAPE '\'
		 ORDER BY login_name LIMIT ? OFFSET ?`,
		pattern, req.Size, req.Offset())
	if err != nil {
		return users.Page[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.FindByDisplayNameContains] %w", err)
	}
	list, err := scanAll(rows)
	if err != nil {
		return users.Page[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.FindByDisplayNameContains] %w", err)
	}
	return users.NewPage(list, req, total), nil
}

func (r *SQLiteUserRepo) List(ctx context.Context, req users.PageRequest) (users.Page[*users.User], error) {
	req = req.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return users.Page[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.List] count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY login_name LIMIT ? OFFSET ?`, req.Size, req.Offset())
	if err != nil {
		return users.Page[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.List] %w", err)
	}
	list, err := scanAll(rows)
	if err != nil {
		return users.Page[*users.User]{}, fmt.Errorf("[SQLiteUserRepo.List] %w", err)
	}
	return users.NewPage(list, req, total), nil
}

func (r *SQLiteUserRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("[SQLiteUserRepo.SetLastLogin] %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*users.User, error) {
	var (
		u          users.User
		roles      string
		blocked    int
		dateJoined string
		lastLogin  string
	)
	if err := s.Scan(&u.ID, &u.LoginName, &u.DisplayName, &u.Email, &u.PasswordHash, &roles, &blocked, &dateJoined, &lastLogin); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("unmarshal roles: %w", err)
	}
	u.Blocked = blocked != 0
	u.DateJoined = parseTime(dateJoined)
	u.LastLogin = parseTime(lastLogin)
	return &u, nil
}

func scanOne(row *sql.Row) (*users.User, error) {
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[reposqlite.scanOne] %w", err)
	}
	return u, nil
}

func scanAll(rows *sql.Rows) ([]*users.User, error) {
	defer rows.Close()
	list := make([]*users.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// likePattern wraps fragment in wildcards, escaping the LIKE metacharacters it contains.
func likePattern(fragment string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(fragment)
	return "%" + escaped + "%"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
