/*
Package sqlite provides a SQLite-backed leave.Store.

PURPOSE:
  The default on-disk store for a single academy. It holds the leave
  requests, the instructor roster and the one active leave policy.

KEY TABLES:
  requests:    leave requests, dates kept as entered
  instructors: the roster (job level drives the allocation lookup)
  policy:      a single row holding the policy document (factory JSON form)

DATES:
  start_date/end_date are stored verbatim. The engine normalizes them on
  every computation, so a row with an unreadable date is still listed and
  simply contributes no usage.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block the single writer.

USAGE:
  store, err := sqlite.New("./leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := leave.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). The PostgreSQL store uses versioned
  migrations (store/postgres/migrations) run by cmd/migrate.

SEE ALSO:
  - leave/store.go: Store contract
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/academy-leave/factory"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	policies *factory.PolicyFactory
}

var (
	_ leave.Store    = (*Store)(nil)
	_ leave.Resetter = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, policies: factory.NewPolicyFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection. GET /api/health calls it.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instructors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		job_level TEXT NOT NULL DEFAULT '',
		contract_type TEXT NOT NULL DEFAULT '',
		employment_type TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		instructor_id TEXT NOT NULL,
		leave_type TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		job_level TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_instructor
		ON requests(instructor_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	-- Single active policy
	CREATE TABLE IF NOT EXISTS policy (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE
// =============================================================================

const requestColumns = `id, instructor_id, leave_type, start_date, end_date, status,
	job_level, reason, created_at, updated_at`

// SaveRequest inserts or replaces a request.
func (s *Store) SaveRequest(ctx context.Context, r leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			instructor_id = excluded.instructor_id,
			leave_type = excluded.leave_type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			job_level = excluded.job_level,
			reason = excluded.reason,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.InstructorID, r.LeaveType, r.StartDate, r.EndDate, string(r.Status),
		r.JobLevel, r.Reason,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns all requests ordered by creation time, then id.
func (s *Store) ListRequests(ctx context.Context) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+requestColumns+" FROM requests ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	requests := []leave.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// UpdateRequestStatus sets the status and bumps updated_at, only while the
// stored status is still from.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to leave.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), formatTime(time.Now()), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, "SELECT status FROM requests WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read request status: %w", err)
	}
	st, _ := leave.ParseStatus(current)
	return &leave.TransitionError{RequestID: id, From: st, To: to}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (leave.Request, error) {
	var (
		r                    leave.Request
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.InstructorID, &r.LeaveType, &r.StartDate, &r.EndDate, &status,
		&r.JobLevel, &r.Reason, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan request: %w", err)
	}
	r.Status = leave.Status(status)
	if st, ok := leave.ParseStatus(status); ok {
		r.Status = st
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// INSTRUCTOR STORE
// =============================================================================

// SaveInstructor inserts or replaces a roster entry.
func (s *Store) SaveInstructor(ctx context.Context, i leave.Instructor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO instructors (id, name, email, job_level, contract_type, employment_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			job_level = excluded.job_level,
			contract_type = excluded.contract_type,
			employment_type = excluded.employment_type
	`

	_, err := s.db.ExecContext(ctx, query,
		i.ID, i.Name, i.Email, i.JobLevel, i.ContractType, i.EmploymentType, formatTime(i.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save instructor: %w", err)
	}
	return nil
}

// GetInstructor retrieves a roster entry by ID.
func (s *Store) GetInstructor(ctx context.Context, id string) (*leave.Instructor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var i leave.Instructor
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, job_level, contract_type, employment_type, created_at FROM instructors WHERE id = ?",
		id,
	).Scan(&i.ID, &i.Name, &i.Email, &i.JobLevel, &i.ContractType, &i.EmploymentType, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instructor %s: %w", id, leave.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	i.CreatedAt = parseTime(createdAt)
	return &i, nil
}

// ListInstructors returns the roster ordered by id.
func (s *Store) ListInstructors(ctx context.Context) ([]leave.Instructor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, job_level, contract_type, employment_type, created_at FROM instructors ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instructors := []leave.Instructor{}
	for rows.Next() {
		var i leave.Instructor
		var createdAt string
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.JobLevel, &i.ContractType, &i.EmploymentType, &createdAt); err != nil {
			return nil, err
		}
		i.CreatedAt = parseTime(createdAt)
		instructors = append(instructors, i)
	}
	return instructors, rows.Err()
}

// =============================================================================
// POLICY STORE
// =============================================================================

// GetPolicy returns the saved policy, or ErrNotFound before the first save.
func (s *Store) GetPolicy(ctx context.Context) (*quota.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT config_json FROM policy WHERE id = 1").Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy: %w", leave.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p, err := s.policies.ParsePolicy([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("stored policy: %w", err)
	}
	return &p, nil
}

// SavePolicy replaces the policy and bumps its version.
func (s *Store) SavePolicy(ctx context.Context, p quota.Policy) error {
	doc, err := s.policies.MarshalPolicy(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policy (id, config_json, version, updated_at)
		VALUES (1, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			config_json = excluded.config_json,
			version = policy.version + 1,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, string(doc), formatTime(time.Now()))
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"requests", "instructors", "policy"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
