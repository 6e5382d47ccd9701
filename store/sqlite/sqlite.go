/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore, generic.MemberStore and generic.SweepStore
  using SQLite. This is the default data source.

KEY TABLES:
  members: Roster (salary kept as a decimal string)
  leaves:  One row per leave day, with the computed is_lop flag and its
           display status ('Valid' / 'LOP')

INDEXES:
  - idx_leaves_member_day (UNIQUE): one leave per member per day
  - idx_leaves_member_year: ListEvents hot path

ORDERING:
  ListEvents orders by leave_date then rowid, i.e. insertion order for
  ties. Ties cannot happen while idx_leaves_member_day holds, but the
  tie-break keeps the contract explicit.

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection. WithTx holds the write
  lock for the whole classify-and-persist cycle, so statements issued
  through the tx view never touch the pool.

USAGE:
  store, err := sqlite.New("./data/leaves.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := leave.NewLedger(store, leave.DefaultPolicy())

SEE ALSO:
  - generic/store.go: Interface definitions
  - store/mysql/mysql.go: Same contract on MySQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
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

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		position TEXT NOT NULL DEFAULT '',
		department TEXT,
		date_joined TEXT,
		salary TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'Active',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		leave_date TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		is_lop BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'Valid',
		created_at TEXT NOT NULL
	);

	-- One leave per member per day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leaves_member_day
		ON leaves(member_id, leave_date);

	CREATE INDEX IF NOT EXISTS idx_leaves_member_year
		ON leaves(member_id, year, leave_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEAVE STORE (generic.Store interface)
// =============================================================================

// ListEvents returns a member's leave days for one year, ordered by date.
func (s *Store) ListEvents(ctx context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEvents(ctx, s.db, memberID, year)
}

func listEvents(ctx context.Context, q querier, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, member_id, leave_date, year, month, is_lop, created_at
		FROM leaves
		WHERE member_id = ? AND year = ?
		ORDER BY leave_date ASC, rowid ASC
	`, memberID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var events []generic.LeaveEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetEvent returns a single leave day.
func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (generic.LeaveEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEvent(ctx, s.db, id)
}

func getEvent(ctx context.Context, q querier, id generic.EventID) (generic.LeaveEvent, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, member_id, leave_date, year, month, is_lop, created_at
		FROM leaves WHERE id = ?
	`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.LeaveEvent{}, generic.ErrEventNotFound
	}
	return ev, err
}

// InsertEvent stores a new leave day with a fresh uuid.
func (s *Store) InsertEvent(ctx context.Context, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertEvent(ctx, s.db, ev)
}

func insertEvent(ctx context.Context, q querier, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	if ev.ID == "" {
		ev.ID = generic.EventID(uuid.NewString())
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO leaves (id, member_id, leave_date, year, month, is_lop, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.MemberID,
		ev.Date.String(),
		ev.Year,
		int(ev.Month),
		ev.IsLOP,
		string(ev.Status()),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		switch {
		case isConstraintError(err, sqlite3.ErrConstraintUnique):
			return generic.LeaveEvent{}, &generic.DuplicateDayError{MemberID: ev.MemberID, Date: ev.Date}
		case isConstraintError(err, sqlite3.ErrConstraintForeignKey):
			return generic.LeaveEvent{}, fmt.Errorf("member %s: %w", ev.MemberID, generic.ErrMemberNotFound)
		}
		return generic.LeaveEvent{}, fmt.Errorf("failed to insert leave: %w", err)
	}
	return ev, nil
}

// DeleteEvent removes a leave day.
func (s *Store) DeleteEvent(ctx context.Context, id generic.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEvent(ctx, s.db, id)
}

func deleteEvent(ctx context.Context, q querier, id generic.EventID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM leaves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrEventNotFound
	}
	return nil
}

// SaveFlags updates is_lop and status for each event atomically.
func (s *Store) SaveFlags(ctx context.Context, updates []generic.FlagUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveFlags(ctx, sqlTx, updates); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func saveFlags(ctx context.Context, q querier, updates []generic.FlagUpdate) error {
	for _, u := range updates {
		status := generic.StatusValid
		if u.IsLOP {
			status = generic.StatusLOP
		}
		res, err := q.ExecContext(ctx,
			"UPDATE leaves SET is_lop = ?, status = ? WHERE id = ?",
			u.IsLOP, string(status), u.EventID,
		)
		if err != nil {
			return fmt.Errorf("failed to update leave %s: %w", u.EventID, err)
		}
		// SQLite counts matched rows, so an unchanged flag still reports 1.
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("leave %s: %w", u.EventID, generic.ErrEventNotFound)
		}
	}
	return nil
}

// ListMemberYears returns every (member, year) with at least one leave.
func (s *Store) ListMemberYears(ctx context.Context) ([]generic.MemberYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT member_id, year FROM leaves ORDER BY member_id, year",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []generic.MemberYear
	for rows.Next() {
		var k generic.MemberYear
		if err := rows.Scan(&k.MemberID, &k.Year); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (generic.LeaveEvent, error) {
	var (
		ev        generic.LeaveEvent
		leaveDate string
		month     int
		createdAt string
	)
	err := row.Scan(&ev.ID, &ev.MemberID, &leaveDate, &ev.Year, &month, &ev.IsLOP, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("failed to scan leave: %w", err)
	}

	date, err := time.Parse(generic.DateLayout, leaveDate)
	if err != nil {
		return ev, fmt.Errorf("corrupt leave_date %q: %w", leaveDate, err)
	}
	ev.Date = generic.FromTime(date)
	ev.Month = time.Month(month)
	ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return ev, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) ListEvents(ctx context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	return listEvents(ctx, ts.tx, memberID, year)
}

func (ts *txStore) GetEvent(ctx context.Context, id generic.EventID) (generic.LeaveEvent, error) {
	return getEvent(ctx, ts.tx, id)
}

func (ts *txStore) InsertEvent(ctx context.Context, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	return insertEvent(ctx, ts.tx, ev)
}

func (ts *txStore) DeleteEvent(ctx context.Context, id generic.EventID) error {
	return deleteEvent(ctx, ts.tx, id)
}

func (ts *txStore) SaveFlags(ctx context.Context, updates []generic.FlagUpdate) error {
	return saveFlags(ctx, ts.tx, updates)
}

// =============================================================================
// MEMBER STORE (generic.MemberStore interface)
// =============================================================================

// SaveMember creates or updates a member.
func (s *Store) SaveMember(ctx context.Context, m generic.Member) (generic.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = generic.MemberID(uuid.NewString())
	}
	if m.Status == "" {
		m.Status = generic.MemberActive
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO members (id, name, email, position, department, date_joined, salary, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			position = excluded.position,
			department = excluded.department,
			date_joined = excluded.date_joined,
			salary = excluded.salary,
			status = excluded.status
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, m.Email, m.Position, m.Department,
		dateString(m.DateJoined),
		m.Salary.String(),
		string(m.Status),
		m.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return generic.Member{}, fmt.Errorf("failed to save member: %w", err)
	}
	return m, nil
}

// GetMember retrieves a member by ID.
func (s *Store) GetMember(ctx context.Context, id generic.MemberID) (generic.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, position, department, date_joined, salary, status, created_at
		FROM members WHERE id = ?
	`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Member{}, generic.ErrMemberNotFound
	}
	return m, err
}

// DeleteMember removes a member. Their leaves go with them through the
// ON DELETE CASCADE foreign key.
func (s *Store) DeleteMember(ctx context.Context, id generic.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrMemberNotFound
	}
	return nil
}

// ListMembers returns all members ordered by name.
func (s *Store) ListMembers(ctx context.Context) ([]generic.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, position, department, date_joined, salary, status, created_at
		FROM members ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []generic.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMember(row scanner) (generic.Member, error) {
	var (
		m                 generic.Member
		email, department sql.NullString
		dateJoined        sql.NullString
		salary, status    string
		createdAt         string
	)
	err := row.Scan(&m.ID, &m.Name, &email, &m.Position, &department, &dateJoined, &salary, &status, &createdAt)
	if err != nil {
		return m, err
	}
	m.Email = email.String
	m.Department = department.String
	if dateJoined.Valid && dateJoined.String != "" {
		if t, err := time.Parse(generic.DateLayout, dateJoined.String); err == nil {
			m.DateJoined = generic.FromTime(t)
		}
	}
	m.Salary, err = decimal.NewFromString(salary)
	if err != nil {
		return m, fmt.Errorf("corrupt salary for member %s: %w", m.ID, err)
	}
	m.Status = generic.MemberStatus(status)
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return m, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"leaves", "members"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isConstraintError(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}

func dateString(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}
