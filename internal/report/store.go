// Package report provides PostgreSQL-backed audit storage for abuse
// reports and bans. The in-memory ban policy stays authoritative; this
// store is the durable trail moderators review after the fact.
package report

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store manages abuse report and ban rows in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Report is one persisted abuse report.
type Report struct {
	ReporterID  string
	ReportedID  string
	ReportCount int // reported user's running count when the report landed
	CreatedAt   time.Time
}

// Ban is one persisted ban application.
type Ban struct {
	UserID      string
	ReportCount int
	BanUntil    time.Time
	CreatedAt   time.Time
}

// NewStore creates a report store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("report: load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("report: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("report: migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("report: migrate up: %w", err)
	}
	return nil
}

// RecordReport inserts an abuse report row.
func (s *Store) RecordReport(ctx context.Context, r Report) error {
	const query = `
		INSERT INTO abuse_reports (reporter_id, reported_id, report_count)
		VALUES ($1, $2, $3)`

	_, err := s.db.ExecContext(ctx, query, r.ReporterID, r.ReportedID, r.ReportCount)
	if err != nil {
		return fmt.Errorf("report: insert report: %w", err)
	}
	return nil
}

// RecordBan inserts a ban row.
func (s *Store) RecordBan(ctx context.Context, b Ban) error {
	const query = `
		INSERT INTO abuse_bans (user_id, report_count, ban_until)
		VALUES ($1, $2, $3)`

	_, err := s.db.ExecContext(ctx, query, b.UserID, b.ReportCount, b.BanUntil)
	if err != nil {
		return fmt.Errorf("report: insert ban: %w", err)
	}
	return nil
}

// CountRecent returns how many reports were filed against a user within
// the given window.
func (s *Store) CountRecent(ctx context.Context, reportedID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM abuse_reports
		WHERE reported_id = $1
		  AND created_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, reportedID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("report: count recent: %w", err)
	}
	return count, nil
}

// RecentReports returns the newest reports, most recent first, capped at
// limit. Feeds the moderator review log.
func (s *Store) RecentReports(ctx context.Context, limit int) ([]Report, error) {
	const query = `
		SELECT reporter_id, reported_id, report_count, created_at
		FROM abuse_reports
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("report: list recent: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ReporterID, &r.ReportedID, &r.ReportCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("report: scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: iterate reports: %w", err)
	}
	return out, nil
}
