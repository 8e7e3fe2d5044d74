/*
store.go - Persistence interface for requests, roster and policy

PURPOSE:
  The engine consumes already-fetched collections. Store is what fetches
  them. The service loads a fresh snapshot (all requests, the roster, the
  policy) for every computation and never caches it across calls, so a
  policy change is always seen by the next render.

IMPLEMENTATIONS:
  - store/memory:   in-memory, for tests and demo mode
  - store/sqlite:   default on-disk store
  - store/postgres: PostgreSQL via pgx

CONTRACT:
  - Missing rows return an error wrapping ErrNotFound.
  - Status updates are compare-and-set on the current status.
  - GetPolicy returns ErrNotFound until a policy has been saved; the
    service then falls back to quota.DefaultPolicy().
  - Returned slices are owned by the caller.
*/
package leave

import (
	"context"

	"github.com/warp/academy-leave/quota"
)

// Store persists leave requests, the instructor roster and the policy.
type Store interface {
	SaveRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListRequests(ctx context.Context) ([]Request, error)
	// UpdateRequestStatus moves a request from one status to another. When
	// the stored status is no longer from, nothing is written and a
	// *TransitionError carrying the stored status is returned.
	UpdateRequestStatus(ctx context.Context, id string, from, to Status) error

	SaveInstructor(ctx context.Context, i Instructor) error
	GetInstructor(ctx context.Context, id string) (*Instructor, error)
	ListInstructors(ctx context.Context) ([]Instructor, error)

	GetPolicy(ctx context.Context) (*quota.Policy, error)
	SavePolicy(ctx context.Context, p quota.Policy) error
}

// Resetter is implemented by stores that can wipe all data (demo scenarios).
type Resetter interface {
	Reset(ctx context.Context) error
}
