package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/birthday-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Users ---

// UpsertUser inserts or updates a user's registration. Last write wins.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	created := u.CreatedAt.UTC().Unix()
	if created == 0 {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, handle, birth_month, birth_day, birth_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			handle      = excluded.handle,
			birth_month = excluded.birth_month,
			birth_day   = excluded.birth_day,
			birth_year  = excluded.birth_year`,
		u.ChatID, u.Handle, int(u.BirthMonth), u.BirthDay, u.BirthYear, created,
	)
	return err
}

// GetUser returns a user by chatID, or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, handle, birth_month, birth_day, birth_year, created_at
		FROM users
		WHERE chat_id = ?`,
		chatID,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// AllUsers returns every registered user.
func (r *SQLiteRepo) AllUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, handle, birth_month, birth_day, birth_year, created_at
		FROM users
		ORDER BY chat_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// FindUsersByBirthday returns users whose stored (month, day) equals the arguments.
func (r *SQLiteRepo) FindUsersByBirthday(ctx context.Context, month time.Month, day int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, handle, birth_month, birth_day, birth_year, created_at
		FROM users
		WHERE birth_month = ? AND birth_day = ?
		ORDER BY chat_id`,
		int(month), day,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		month     int
		createdAt int64
	)
	if err := row.Scan(&u.ChatID, &u.Handle, &month, &u.BirthDay, &u.BirthYear, &createdAt); err != nil {
		return nil, err
	}
	u.BirthMonth = time.Month(month)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// --- Groups ---

// UpsertGroup records a group the bot has seen activity in.
// The digest marker is never overwritten by a title refresh.
func (r *SQLiteRepo) UpsertGroup(ctx context.Context, g *domain.Group) error {
	if g == nil {
		return errors.New("nil group")
	}

	created := g.CreatedAt.UTC().Unix()
	if created == 0 {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups (chat_id, title, created_at, last_digest_on)
		VALUES (?, ?, ?, '')
		ON CONFLICT(chat_id) DO UPDATE SET
			title = excluded.title`,
		g.ChatID, g.Title, created,
	)
	return err
}

// AllGroups returns every known group.
func (r *SQLiteRepo) AllGroups(ctx context.Context) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_id, title, created_at, last_digest_on
		FROM groups
		ORDER BY chat_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Group
	for rows.Next() {
		var (
			g         domain.Group
			createdAt int64
		)
		if err := rows.Scan(&g.ChatID, &g.Title, &createdAt, &g.LastDigestOn); err != nil {
			return nil, err
		}
		g.CreatedAt = time.Unix(createdAt, 0).UTC()
		res = append(res, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// GroupSettings returns the notification time override for a group, or
// ErrNotFound when the group uses the default.
func (r *SQLiteRepo) GroupSettings(ctx context.Context, chatID int64) (*domain.GroupSettings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, notify_minute
		FROM group_settings
		WHERE chat_id = ?`,
		chatID,
	)

	var (
		s      domain.GroupSettings
		minute int
	)
	if err := row.Scan(&s.ChatID, &minute); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.NotifyTime = domain.TimeOfDay(minute)
	return &s, nil
}

// SetGroupNotifyTime upserts the per-group override. One row per group, last write wins.
func (r *SQLiteRepo) SetGroupNotifyTime(ctx context.Context, chatID int64, t domain.TimeOfDay) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_settings (chat_id, notify_minute)
		VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			notify_minute = excluded.notify_minute`,
		chatID, t.Minutes(),
	)
	return err
}

// SetGroupDigestOn records the day a group's digest was delivered.
func (r *SQLiteRepo) SetGroupDigestOn(ctx context.Context, chatID int64, day string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE groups
		SET last_digest_on = ?
		WHERE chat_id = ?`,
		day, chatID,
	)
	return err
}

// --- Quotes ---

// AddQuote appends a quote to the pool.
func (r *SQLiteRepo) AddQuote(ctx context.Context, text string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO quotes (text) VALUES (?)`, text)
	return err
}

// AllQuotes returns the whole quote pool.
func (r *SQLiteRepo) AllQuotes(ctx context.Context) ([]domain.Quote, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, text FROM quotes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Quote
	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// RandomQuote returns one quote chosen by SQLite, or ErrNotFound for an empty pool.
func (r *SQLiteRepo) RandomQuote(ctx context.Context) (string, error) {
	var text string
	err := r.db.QueryRowContext(ctx, `SELECT text FROM quotes ORDER BY RANDOM() LIMIT 1`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// --- Cycle state ---

// PersonalPassOn returns the day key of the last completed personal pass.
func (r *SQLiteRepo) PersonalPassOn(ctx context.Context) (string, error) {
	var day string
	err := r.db.QueryRowContext(ctx, `SELECT personal_pass_on FROM cycle_state WHERE id = 1`).Scan(&day)
	if err != nil {
		return "", err
	}
	return day, nil
}

// SetPersonalPassOn records the day the personal pass completed.
func (r *SQLiteRepo) SetPersonalPassOn(ctx context.Context, day string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE cycle_state SET personal_pass_on = ? WHERE id = 1`, day)
	return err
}
