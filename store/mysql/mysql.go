/*
Package mysql provides a MySQL-backed implementation of the storage interfaces.

PURPOSE:
  Runs the ledger against the HR database that already holds the roster.
  Keeps the existing table layout: INT AUTO_INCREMENT ids, DATE columns,
  DECIMAL(10,2) salaries and the 'Valid'/'LOP' status enum.

SCHEMA ADDITIONS:
  uq_leaves_member_day (UNIQUE member_id, leave_date) rejects a second
  leave on the same day. Tables created before the index existed need it
  added by hand; migrate() only creates missing tables.

LOCKING:
  Inside WithTx, ListEvents reads with SELECT ... FOR UPDATE, so two
  ledger processes reclassifying the same member-year serialize on the
  rows instead of overwriting each other's flags.

USAGE:
  store, err := mysql.Open("user:pass@tcp(localhost:3306)/hr")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: Default data source, same contract
*/
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

const (
	errDuplicateEntry     = 1062
	errNoReferencedRow    = 1452
	errNoReferencedRowOld = 1216
)

// Store implements generic.TxStore, generic.MemberStore and
// generic.SweepStore on MySQL.
type Store struct {
	db *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects using dsn and creates missing tables. parseTime is forced
// on because DATE columns are scanned into time.Time.
func Open(dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := New(db)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// New wraps an already opened database. No migration is run.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id INT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			position VARCHAR(255) NOT NULL,
			department VARCHAR(255),
			date_joined DATE NOT NULL,
			salary DECIMAL(10,2),
			status ENUM('Active', 'Inactive', 'On Leave') DEFAULT 'Active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS leaves (
			id INT AUTO_INCREMENT PRIMARY KEY,
			member_id INT,
			leave_date DATE NOT NULL,
			year INT NOT NULL,
			month INT NOT NULL,
			is_lop BOOLEAN DEFAULT FALSE,
			status ENUM('Valid', 'LOP') DEFAULT 'Valid',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
			UNIQUE KEY uq_leaves_member_day (member_id, leave_date),
			KEY idx_leaves_member_year (member_id, year, leave_date)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LEAVE STORE (generic.Store interface)
// =============================================================================

const selectLeaves = `SELECT id, member_id, leave_date, year, month, is_lop, created_at FROM leaves`

func (s *Store) ListEvents(ctx context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	return listEvents(ctx, s.db, memberID, year, false)
}

func listEvents(ctx context.Context, q querier, memberID generic.MemberID, year int, forUpdate bool) ([]generic.LeaveEvent, error) {
	query := selectLeaves + ` WHERE member_id = ? AND year = ? ORDER BY leave_date ASC, id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, string(memberID), year)
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

func (s *Store) GetEvent(ctx context.Context, id generic.EventID) (generic.LeaveEvent, error) {
	return getEvent(ctx, s.db, id)
}

func getEvent(ctx context.Context, q querier, id generic.EventID) (generic.LeaveEvent, error) {
	ev, err := scanEvent(q.QueryRowContext(ctx, selectLeaves+` WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.LeaveEvent{}, generic.ErrEventNotFound
	}
	return ev, err
}

// InsertEvent stores a leave day. The id is assigned by AUTO_INCREMENT.
func (s *Store) InsertEvent(ctx context.Context, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	return insertEvent(ctx, s.db, ev)
}

func insertEvent(ctx context.Context, q querier, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	status := ev.Status()
	res, err := q.ExecContext(ctx,
		`INSERT INTO leaves (member_id, leave_date, year, month, is_lop, status) VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.MemberID), ev.Date.String(), ev.Year, int(ev.Month), ev.IsLOP, string(status),
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case errDuplicateEntry:
				return generic.LeaveEvent{}, &generic.DuplicateDayError{MemberID: ev.MemberID, Date: ev.Date}
			case errNoReferencedRow, errNoReferencedRowOld:
				return generic.LeaveEvent{}, fmt.Errorf("member %s: %w", ev.MemberID, generic.ErrMemberNotFound)
			}
		}
		return generic.LeaveEvent{}, fmt.Errorf("failed to insert leave: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return generic.LeaveEvent{}, fmt.Errorf("failed to read leave id: %w", err)
	}
	ev.ID = generic.EventID(strconv.FormatInt(id, 10))
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return ev, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id generic.EventID) error {
	return deleteEvent(ctx, s.db, id)
}

func deleteEvent(ctx context.Context, q querier, id generic.EventID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM leaves WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete leave: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrEventNotFound
	}
	return nil
}

func (s *Store) SaveFlags(ctx context.Context, updates []generic.FlagUpdate) error {
	return s.WithTx(ctx, func(store generic.Store) error {
		return store.SaveFlags(ctx, updates)
	})
}

// saveFlags does not check RowsAffected: MySQL reports changed rows, not
// matched rows, so rewriting an unchanged flag reports 0.
func saveFlags(ctx context.Context, q querier, updates []generic.FlagUpdate) error {
	for _, u := range updates {
		status := generic.StatusValid
		if u.IsLOP {
			status = generic.StatusLOP
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE leaves SET is_lop = ?, status = ? WHERE id = ?`,
			u.IsLOP, string(status), string(u.EventID),
		); err != nil {
			return fmt.Errorf("failed to update leave %s: %w", u.EventID, err)
		}
	}
	return nil
}

func (s *Store) ListMemberYears(ctx context.Context) ([]generic.MemberYear, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT member_id, year FROM leaves WHERE member_id IS NOT NULL ORDER BY member_id, year`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []generic.MemberYear
	for rows.Next() {
		var (
			memberID int64
			year     int
		)
		if err := rows.Scan(&memberID, &year); err != nil {
			return nil, err
		}
		keys = append(keys, generic.MemberYear{
			MemberID: generic.MemberID(strconv.FormatInt(memberID, 10)),
			Year:     year,
		})
	}
	return keys, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (generic.LeaveEvent, error) {
	var (
		ev        generic.LeaveEvent
		id        int64
		memberID  sql.NullInt64
		leaveDate time.Time
		month     int
		isLOP     sql.NullBool
		createdAt sql.NullTime
	)
	if err := row.Scan(&id, &memberID, &leaveDate, &ev.Year, &month, &isLOP, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("failed to scan leave: %w", err)
	}
	ev.ID = generic.EventID(strconv.FormatInt(id, 10))
	if memberID.Valid {
		ev.MemberID = generic.MemberID(strconv.FormatInt(memberID.Int64, 10))
	}
	ev.Date = generic.FromTime(leaveDate)
	ev.Month = time.Month(month)
	ev.IsLOP = isLOP.Bool
	ev.CreatedAt = createdAt.Time
	return ev, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) ListEvents(ctx context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	return listEvents(ctx, ts.tx, memberID, year, true)
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

const selectMembers = `SELECT id, name, email, position, department, date_joined, salary, status, created_at FROM members`

// SaveMember inserts a member when ID is empty and upserts otherwise.
func (s *Store) SaveMember(ctx context.Context, m generic.Member) (generic.Member, error) {
	if m.Status == "" {
		m.Status = generic.MemberActive
	}
	if m.DateJoined.IsZero() {
		m.DateJoined = generic.Today()
	}
	args := []any{
		m.Name, nullString(m.Email), m.Position, nullString(m.Department),
		m.DateJoined.String(), m.Salary.StringFixed(2), string(m.Status),
	}

	if m.ID == "" {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO members (name, email, position, department, date_joined, salary, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return generic.Member{}, fmt.Errorf("failed to save member: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return generic.Member{}, fmt.Errorf("failed to read member id: %w", err)
		}
		m.ID = generic.MemberID(strconv.FormatInt(id, 10))
	} else {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO members (id, name, email, position, department, date_joined, salary, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE
				name = VALUES(name), email = VALUES(email), position = VALUES(position),
				department = VALUES(department), date_joined = VALUES(date_joined),
				salary = VALUES(salary), status = VALUES(status)`,
			append([]any{string(m.ID)}, args...)...)
		if err != nil {
			return generic.Member{}, fmt.Errorf("failed to save member: %w", err)
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return m, nil
}

func (s *Store) GetMember(ctx context.Context, id generic.MemberID) (generic.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, selectMembers+` WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Member{}, generic.ErrMemberNotFound
	}
	return m, err
}

// DeleteMember relies on the leaves foreign key cascade.
func (s *Store) DeleteMember(ctx context.Context, id generic.MemberID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrMemberNotFound
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context) ([]generic.Member, error) {
	rows, err := s.db.QueryContext(ctx, selectMembers+` ORDER BY name`)
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
		id                int64
		email, department sql.NullString
		dateJoined        sql.NullTime
		salary            decimal.NullDecimal
		status            sql.NullString
		createdAt         sql.NullTime
	)
	if err := row.Scan(&id, &m.Name, &email, &m.Position, &department, &dateJoined, &salary, &status, &createdAt); err != nil {
		return m, err
	}
	m.ID = generic.MemberID(strconv.FormatInt(id, 10))
	m.Email = email.String
	m.Department = department.String
	if dateJoined.Valid {
		m.DateJoined = generic.FromTime(dateJoined.Time)
	}
	m.Salary = salary.Decimal
	m.Status = generic.MemberStatus(status.String)
	if m.Status == "" {
		m.Status = generic.MemberActive
	}
	m.CreatedAt = createdAt.Time
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
