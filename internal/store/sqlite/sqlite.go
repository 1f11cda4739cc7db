package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/store"
	"github.com/loykin/timewarden/internal/usage"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path to the SQLite database file. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

var _ store.Store = (*DB)(nil)

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// every :memory: connection is its own database
	if p == ":memory:" {
		d.SetMaxOpenConns(1)
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app_id TEXT NOT NULL,
			app_name TEXT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NULL,
			duration_seconds INTEGER NULL,
			is_idle BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_time ON sessions(start_time, end_time);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_app ON sessions(app_id);`,
		`CREATE TABLE IF NOT EXISTS schedules(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			days TEXT NOT NULL,
			expected_apps TEXT NOT NULL,
			check_interval_secs INTEGER NOT NULL DEFAULT 5,
			grace_period_secs INTEGER NOT NULL DEFAULT 30,
			enabled BOOLEAN NOT NULL DEFAULT 1
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) ListSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+store.ScheduleColumns+` FROM schedules ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []schedule.Schedule{}
	for rows.Next() {
		sc, err := store.ScanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *DB) InsertSchedule(ctx context.Context, sc schedule.Schedule) (int64, error) {
	apps, err := store.EncodeApps(sc.ExpectedApps)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules(name, start_time, end_time, days, expected_apps, check_interval_secs, grace_period_secs, enabled)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?);`,
		sc.Name, sc.StartTime, sc.EndTime, store.EncodeDays(sc.Days), apps,
		sc.CheckIntervalSecs, sc.GracePeriodSecs, sc.Enabled)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *DB) UpdateSchedule(ctx context.Context, sc schedule.Schedule) error {
	if sc.ID == nil {
		return errors.New("update schedule: missing id")
	}
	apps, err := store.EncodeApps(sc.ExpectedApps)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET name=?, start_time=?, end_time=?, days=?, expected_apps=?, check_interval_secs=?, grace_period_secs=?, enabled=?
		WHERE id=?;`,
		sc.Name, sc.StartTime, sc.EndTime, store.EncodeDays(sc.Days), apps,
		sc.CheckIntervalSecs, sc.GracePeriodSecs, sc.Enabled, *sc.ID)
	return affected(res, err, *sc.ID)
}

func (s *DB) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id=?;`, id)
	return affected(res, err, id)
}

func (s *DB) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE schedules SET enabled=? WHERE id=?;`, enabled, id)
	return affected(res, err, id)
}

func (s *DB) InsertSession(ctx context.Context, sess usage.Session) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(app_id, app_name, start_time, end_time, duration_seconds, is_idle)
		VALUES(?, ?, ?, ?, ?, ?);`, store.SessionArgs(sess)...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *DB) SessionsBetween(ctx context.Context, from, to time.Time) ([]usage.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+store.SessionColumns+`
		FROM sessions
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time ASC, id ASC;`, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []usage.Session{}
	for rows.Next() {
		sess, err := store.ScanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *DB) AppTotalsBetween(ctx context.Context, from, to time.Time) ([]usage.AppTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT app_id, COALESCE(SUM(duration_seconds), 0) AS total
		FROM sessions
		WHERE start_time >= ? AND start_time < ? AND is_idle = 0
		GROUP BY app_id
		ORDER BY total DESC, app_id ASC;`, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []usage.AppTotal{}
	for rows.Next() {
		var t usage.AppTotal
		if err := rows.Scan(&t.Name, &t.Seconds); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error, id int64) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schedule %d: %w", id, store.ErrNotFound)
	}
	return nil
}
