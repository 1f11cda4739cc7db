package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/store"
	"github.com/loykin/timewarden/internal/usage"
)

// DB implements store.Store on PostgreSQL through the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

var _ store.Store = (*DB)(nil)

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions(
			id BIGSERIAL PRIMARY KEY,
			app_id TEXT NOT NULL,
			app_name TEXT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NULL,
			duration_seconds BIGINT NULL,
			is_idle BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_time ON sessions(start_time, end_time);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_app ON sessions(app_id);`,
		`CREATE TABLE IF NOT EXISTS schedules(
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			days TEXT NOT NULL,
			expected_apps TEXT NOT NULL,
			check_interval_secs INTEGER NOT NULL DEFAULT 5,
			grace_period_secs INTEGER NOT NULL DEFAULT 30,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) ListSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+store.ScheduleColumns+` FROM schedules ORDER BY id;`)
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

func (p *DB) InsertSchedule(ctx context.Context, sc schedule.Schedule) (int64, error) {
	apps, err := store.EncodeApps(sc.ExpectedApps)
	if err != nil {
		return 0, err
	}
	var id int64
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO schedules(name, start_time, end_time, days, expected_apps, check_interval_secs, grace_period_secs, enabled)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id;`,
		sc.Name, sc.StartTime, sc.EndTime, store.EncodeDays(sc.Days), apps,
		sc.CheckIntervalSecs, sc.GracePeriodSecs, sc.Enabled).Scan(&id)
	return id, err
}

func (p *DB) UpdateSchedule(ctx context.Context, sc schedule.Schedule) error {
	if sc.ID == nil {
		return errors.New("update schedule: missing id")
	}
	apps, err := store.EncodeApps(sc.ExpectedApps)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE schedules
		SET name=$1, start_time=$2, end_time=$3, days=$4, expected_apps=$5,
			check_interval_secs=$6, grace_period_secs=$7, enabled=$8
		WHERE id=$9;`,
		sc.Name, sc.StartTime, sc.EndTime, store.EncodeDays(sc.Days), apps,
		sc.CheckIntervalSecs, sc.GracePeriodSecs, sc.Enabled, *sc.ID)
	return affected(res, err, *sc.ID)
}

func (p *DB) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM schedules WHERE id=$1;`, id)
	return affected(res, err, id)
}

func (p *DB) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := p.db.ExecContext(ctx, `UPDATE schedules SET enabled=$1 WHERE id=$2;`, enabled, id)
	return affected(res, err, id)
}

func (p *DB) InsertSession(ctx context.Context, sess usage.Session) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO sessions(app_id, app_name, start_time, end_time, duration_seconds, is_idle)
		VALUES($1,$2,$3,$4,$5,$6)
		RETURNING id;`, store.SessionArgs(sess)...).Scan(&id)
	return id, err
}

func (p *DB) SessionsBetween(ctx context.Context, from, to time.Time) ([]usage.Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+store.SessionColumns+`
		FROM sessions
		WHERE start_time >= $1 AND start_time < $2
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

func (p *DB) AppTotalsBetween(ctx context.Context, from, to time.Time) ([]usage.AppTotal, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT app_id, COALESCE(SUM(duration_seconds), 0)::BIGINT AS total
		FROM sessions
		WHERE start_time >= $1 AND start_time < $2 AND NOT is_idle
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
