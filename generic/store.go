/*
store.go - Persistence interface for leave events and members

PURPOSE:
  Defines the interface between the classification engine and the database.
  Different implementations can use SQLite, MySQL, or in-memory storage.

KEY INTERFACES:
  Store:       Leave events of one member-year (list, insert, delete, flags)
  TxStore:     Runs a classify-and-persist cycle inside one transaction
  MemberStore: Member roster (referential checks, salaries for LOP deductions)
  SweepStore:  Enumerates every member-year that has leave (reclassify sweep)

ORDERING CONTRACT:
  ListEvents returns events ordered by date ascending, ties broken by
  insertion order. The evaluator re-sorts stably anyway, so a store that
  gets this wrong produces the same flags, only slower to read.

UNIQUENESS:
  InsertEvent rejects a second event for the same (MemberID, Date) with
  ErrDuplicateLeaveDay (usually wrapped in *DuplicateDayError).

IDEMPOTENCY:
  SaveFlags is an idempotent bulk update. Writing the same flags twice
  leaves the store unchanged.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (default)
  - store/mysql/mysql.go: MySQL, original schema
  - generic/store/memory.go: In-memory for tests and fixtures

SEE ALSO:
  - leave/ledger.go: Drives the stores
*/
package generic

import "context"

// =============================================================================
// STORE - Leave events
// =============================================================================

type Store interface {
	// ListEvents returns the member's events for year, ordered by date.
	ListEvents(ctx context.Context, memberID MemberID, year int) ([]LeaveEvent, error)

	// GetEvent returns a single event or ErrEventNotFound.
	GetEvent(ctx context.Context, id EventID) (LeaveEvent, error)

	// InsertEvent persists a new event and returns it with its assigned ID.
	InsertEvent(ctx context.Context, ev LeaveEvent) (LeaveEvent, error)

	// DeleteEvent removes an event or returns ErrEventNotFound.
	DeleteEvent(ctx context.Context, id EventID) error

	// SaveFlags writes recomputed flags. Idempotent.
	SaveFlags(ctx context.Context, updates []FlagUpdate) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic classify-and-persist cycles
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// MEMBER STORE
// =============================================================================

type MemberStore interface {
	// SaveMember creates or updates a member. An empty ID is assigned by the store.
	SaveMember(ctx context.Context, m Member) (Member, error)

	// GetMember returns a member or ErrMemberNotFound.
	GetMember(ctx context.Context, id MemberID) (Member, error)

	ListMembers(ctx context.Context) ([]Member, error)

	// DeleteMember removes a member together with all of their leave
	// events, or returns ErrMemberNotFound.
	DeleteMember(ctx context.Context, id MemberID) error
}

// SweepStore lists every member-year that currently holds leave events.
type SweepStore interface {
	ListMemberYears(ctx context.Context) ([]MemberYear, error)
}
