package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"user-profile/internal/domain"
	"user-profile/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	login TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_fetched_at ON users(fetched_at);
`

// fetched_at is stored as unix nanoseconds so freshness comparisons stay numeric.
type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

func (s *UserStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (s *UserStore) Save(ctx context.Context, user *domain.User) error {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	if user.FetchedAt.IsZero() {
		user.FetchedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, login, name, company, avatar_url, bio, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	login = excluded.login,
	name = excluded.name,
	company = excluded.company,
	avatar_url = excluded.avatar_url,
	bio = excluded.bio,
	fetched_at = excluded.fetched_at`,
		user.ID,
		user.Login,
		user.Name,
		user.Company,
		user.AvatarURL,
		user.Bio,
		user.FetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, login, name, company, avatar_url, bio, fetched_at
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (s *UserStore) HasFreshUser(ctx context.Context, id string, timeout time.Duration) (bool, error) {
	cutoff := s.now().Add(-timeout).UnixNano()

	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM users
WHERE id = ? AND fetched_at > ?`,
		id,
		cutoff,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check user freshness: %w", err)
	}
	return count > 0, nil
}

func (s *UserStore) ListRecent(ctx context.Context, since time.Time) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, login, name, company, avatar_url, bio, fetched_at
FROM users
WHERE fetched_at >= ?
ORDER BY fetched_at DESC, id ASC`,
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query recent users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent users: %w", err)
	}
	return users, nil
}

func (s *UserStore) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE fetched_at < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete stale users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale users rows affected: %w", err)
	}
	return n, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user      domain.User
		fetchedAt int64
	)
	if err := row.Scan(
		&user.ID,
		&user.Login,
		&user.Name,
		&user.Company,
		&user.AvatarURL,
		&user.Bio,
		&fetchedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.FetchedAt = time.Unix(0, fetchedAt).UTC()
	return &user, nil
}

var _ repository.UserStore = (*UserStore)(nil)
