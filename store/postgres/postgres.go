// Package postgres provides a PostgreSQL-backed leave.Store over pgx.
//
// The schema is owned by the versioned migrations in ./migrations and
// applied with cmd/migrate; the store never creates tables itself.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/academy-leave/factory"
	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

const (
	uniqueViolationCode = "23505"
	checkViolationCode  = "23514"
)

// Queryer is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements leave.Store on PostgreSQL.
type Store struct {
	db       Queryer
	pool     *pgxpool.Pool
	policies *factory.PolicyFactory
}

var (
	_ leave.Store    = (*Store)(nil)
	_ leave.Resetter = (*Store)(nil)
)

// New wraps an existing connection.
func New(db Queryer) *Store {
	return &Store{db: db, policies: factory.NewPolicyFactory()}
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := New(pool)
	s.pool = pool
	return s, nil
}

// Close releases the pool opened by Open.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping checks the connection. GET /api/health calls it.
// A connection without a Ping method (a pgx.Tx) is reported healthy.
func (s *Store) Ping(ctx context.Context) error {
	p, ok := s.db.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// =============================================================================
// REQUESTS
// =============================================================================

const selectRequests = `
        SELECT id, instructor_id, leave_type, start_date, end_date, status, job_level, reason, created_at, updated_at
          FROM requests`

func (s *Store) SaveRequest(ctx context.Context, r leave.Request) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO requests (id, instructor_id, leave_type, start_date, end_date, status, job_level, reason, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE
           SET instructor_id = EXCLUDED.instructor_id,
               leave_type = EXCLUDED.leave_type,
               start_date = EXCLUDED.start_date,
               end_date = EXCLUDED.end_date,
               status = EXCLUDED.status,
               job_level = EXCLUDED.job_level,
               reason = EXCLUDED.reason,
               updated_at = EXCLUDED.updated_at
    `,
		r.ID, r.InstructorID, r.LeaveType, r.StartDate, r.EndDate, string(r.Status),
		r.JobLevel, r.Reason, timestamp(r.CreatedAt), timestamp(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: save request: %w", translatePgError(err))
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	row := s.db.QueryRow(ctx, selectRequests+`
         WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", id, translatePgError(err))
	}
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]leave.Request, error) {
	rows, err := s.db.Query(ctx, selectRequests+`
         ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list requests: %w", err)
	}
	defer rows.Close()

	out := []leave.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRequestStatus is a compare-and-set on the stored status.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to leave.Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("postgres: update request: %w", translatePgError(err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	if err := s.db.QueryRow(ctx, `SELECT status FROM requests WHERE id = $1`, id).Scan(&current); err != nil {
		return fmt.Errorf("request %s: %w", id, translatePgError(err))
	}
	st, _ := leave.ParseStatus(current)
	return &leave.TransitionError{RequestID: id, From: st, To: to}
}

func scanRequest(row pgx.Row) (leave.Request, error) {
	var (
		r      leave.Request
		status string
	)
	if err := row.Scan(&r.ID, &r.InstructorID, &r.LeaveType, &r.StartDate, &r.EndDate, &status,
		&r.JobLevel, &r.Reason, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.Status = leave.Status(status)
	if st, ok := leave.ParseStatus(status); ok {
		r.Status = st
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

// =============================================================================
// INSTRUCTORS
// =============================================================================

const selectInstructors = `
        SELECT id, name, email, job_level, contract_type, employment_type, created_at
          FROM instructors`

func (s *Store) SaveInstructor(ctx context.Context, i leave.Instructor) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO instructors (id, name, email, job_level, contract_type, employment_type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE
           SET name = EXCLUDED.name,
               email = EXCLUDED.email,
               job_level = EXCLUDED.job_level,
               contract_type = EXCLUDED.contract_type,
               employment_type = EXCLUDED.employment_type
    `,
		i.ID, i.Name, i.Email, i.JobLevel, i.ContractType, i.EmploymentType, timestamp(i.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: save instructor: %w", translatePgError(err))
	}
	return nil
}

func (s *Store) GetInstructor(ctx context.Context, id string) (*leave.Instructor, error) {
	row := s.db.QueryRow(ctx, selectInstructors+`
         WHERE id = $1`, id)
	i, err := scanInstructor(row)
	if err != nil {
		return nil, fmt.Errorf("instructor %s: %w", id, translatePgError(err))
	}
	return &i, nil
}

func (s *Store) ListInstructors(ctx context.Context) ([]leave.Instructor, error) {
	rows, err := s.db.Query(ctx, selectInstructors+`
         ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list instructors: %w", err)
	}
	defer rows.Close()

	out := []leave.Instructor{}
	for rows.Next() {
		i, err := scanInstructor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanInstructor(row pgx.Row) (leave.Instructor, error) {
	var i leave.Instructor
	if err := row.Scan(&i.ID, &i.Name, &i.Email, &i.JobLevel, &i.ContractType, &i.EmploymentType, &i.CreatedAt); err != nil {
		return i, err
	}
	i.CreatedAt = i.CreatedAt.UTC()
	return i, nil
}

// =============================================================================
// POLICY
// =============================================================================

func (s *Store) GetPolicy(ctx context.Context) (*quota.Policy, error) {
	var doc string
	err := s.db.QueryRow(ctx, `SELECT config_json::text FROM leave_policy WHERE id = 1`).Scan(&doc)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", translatePgError(err))
	}
	p, err := s.policies.ParsePolicy([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("stored policy: %w", err)
	}
	return &p, nil
}

func (s *Store) SavePolicy(ctx context.Context, p quota.Policy) error {
	doc, err := s.policies.MarshalPolicy(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO leave_policy (id, config_json, version, updated_at)
        VALUES (1, $1::jsonb, 1, now())
        ON CONFLICT (id) DO UPDATE
           SET config_json = EXCLUDED.config_json,
               version = leave_policy.version + 1,
               updated_at = now()
    `, string(doc))
	if err != nil {
		return fmt.Errorf("postgres: save policy: %w", translatePgError(err))
	}
	return nil
}

// Reset truncates every leave table (demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `TRUNCATE requests, instructors, leave_policy`); err != nil {
		return fmt.Errorf("postgres: reset: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return leave.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode, checkViolationCode:
			return fmt.Errorf("%w: %s", leave.ErrInvalidRequest, pgErr.Message)
		}
	}
	return err
}

func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
