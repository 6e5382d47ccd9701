/*
ledger.go - Leave ledger service (record, delete, summarize)

PURPOSE:
  Wraps a generic.TxStore with the classify-and-persist cycle. Every
  mutation of a member's year reloads the whole year, reruns ClassifyYear
  and writes back every flag that changed, not only the new event's.

CYCLE:
  1. Lock (member, year) in process
  2. Begin store transaction
  3. Insert or delete the event
  4. ListEvents for the year -> ClassifyYear -> SaveFlags(changes)
  5. Commit, then refresh the summary cache and publish flag changes

  Steps 2-4 are atomic. If SaveFlags fails the transaction rolls back and
  the caller can retry the whole cycle; ClassifyYear is idempotent.

OPTIONAL COLLABORATORS:
  - generic.MemberStore: detected on the store; enables MemberNotFound
    checks and salary lookups for deductions
  - SummaryCache: read-through cache for GetSummary
  - FlagPublisher: notifies payroll about flipped flags
  Cache and publisher failures are logged, never returned; the store is
  the source of truth and has already committed.

EXAMPLE:
  ledger := leave.NewLedger(store, leave.DefaultPolicy())
  res, err := ledger.RecordLeave(ctx, "42", "2024-01-20", nil)
  // res.IsLOP == true if 42 already took a paid day in January

SEE ALSO:
  - evaluator.go: The pure classification
  - generic/store.go: Store interfaces
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// SummaryCache stores computed summaries between reads.
type SummaryCache interface {
	Get(ctx context.Context, memberID generic.MemberID, year int) (YearlySummary, bool, error)
	Set(ctx context.Context, summary YearlySummary) error
	Invalidate(ctx context.Context, memberID generic.MemberID, year int) error
}

// ChangeCause says which operation flipped a flag.
type ChangeCause string

const (
	CauseRecorded     ChangeCause = "recorded"
	CauseDeleted      ChangeCause = "deleted"
	CauseReclassified ChangeCause = "reclassified"
)

// FlagChange describes one persisted flag flip.
type FlagChange struct {
	EventID  generic.EventID
	MemberID generic.MemberID
	Date     generic.TimePoint
	Year     int
	IsLOP    bool
	Cause    ChangeCause
}

// FlagPublisher notifies downstream systems (payroll) about flag flips.
type FlagPublisher interface {
	PublishFlagChanges(ctx context.Context, changes []FlagChange) error
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store     generic.TxStore
	members   generic.MemberStore // nil if the store keeps no roster
	policy    Policy
	cache     SummaryCache
	publisher FlagPublisher
	logger    *zap.Logger
	now       func() time.Time

	locks   *keyLocks
	flights singleflight.Group
}

type Option func(*Ledger)

func WithCache(c SummaryCache) Option         { return func(l *Ledger) { l.cache = c } }
func WithPublisher(p FlagPublisher) Option    { return func(l *Ledger) { l.publisher = p } }
func WithLogger(lg *zap.Logger) Option        { return func(l *Ledger) { l.logger = lg } }
func WithClock(now func() time.Time) Option   { return func(l *Ledger) { l.now = now } }
func WithMembers(m generic.MemberStore) Option { return func(l *Ledger) { l.members = m } }

// NewLedger creates the service. If store also implements
// generic.MemberStore it is used for member lookups.
func NewLedger(store generic.TxStore, policy Policy, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		policy: policy,
		logger: zap.L().Named("leave.ledger"),
		now:    time.Now,
		locks:  newKeyLocks(),
	}
	if ms, ok := store.(generic.MemberStore); ok {
		l.members = ms
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the active policy.
func (l *Ledger) Policy() Policy { return l.policy }

func (l *Ledger) today() generic.TimePoint { return generic.FromTime(l.now()) }

// RecordResult is returned by RecordLeave.
type RecordResult struct {
	Event   generic.LeaveEvent
	IsLOP   bool
	Summary YearlySummary
}

// RecordLeave creates one leave day and reclassifies the member's year.
// year is optional; when given it must match the date's year.
func (l *Ledger) RecordLeave(ctx context.Context, memberID generic.MemberID, date string, year *int) (RecordResult, error) {
	day, err := generic.ParseDate(date)
	if err != nil {
		return RecordResult{}, err
	}
	if year != nil && *year != day.Year() {
		return RecordResult{}, &generic.InvalidDateError{
			Value:  date,
			Reason: fmt.Sprintf("year %d does not match date", *year),
		}
	}
	if err := l.checkMember(ctx, memberID); err != nil {
		return RecordResult{}, err
	}

	ev := generic.NewLeaveEvent(memberID, day)
	unlock := l.locks.Lock(ev.Key())
	defer unlock()

	var (
		saved  generic.LeaveEvent
		result Result
	)
	err = l.store.WithTx(ctx, func(s generic.Store) error {
		var err error
		if saved, err = s.InsertEvent(ctx, ev); err != nil {
			return err
		}
		result, err = l.classifyAndPersist(ctx, s, ev.Key())
		return err
	})
	if err != nil {
		return RecordResult{}, fmt.Errorf("record leave for member %s on %s: %w", memberID, day, err)
	}

	saved.IsLOP, _ = result.Flag(saved.ID)
	l.afterCommit(ctx, result, CauseRecorded)

	l.logger.Info("leave recorded",
		zap.String("member_id", string(memberID)),
		zap.String("event_id", string(saved.ID)),
		zap.String("date", day.String()),
		zap.Bool("is_lop", saved.IsLOP),
		zap.Int("flags_changed", len(result.Changes)),
	)
	return RecordResult{Event: saved, IsLOP: saved.IsLOP, Summary: result.Summary}, nil
}

// DeleteLeave removes a leave day and reclassifies what remains of its year.
func (l *Ledger) DeleteLeave(ctx context.Context, id generic.EventID) (YearlySummary, error) {
	ev, err := l.store.GetEvent(ctx, id)
	if err != nil {
		return YearlySummary{}, fmt.Errorf("delete leave %s: %w", id, err)
	}

	unlock := l.locks.Lock(ev.Key())
	defer unlock()

	var result Result
	err = l.store.WithTx(ctx, func(s generic.Store) error {
		if err := s.DeleteEvent(ctx, id); err != nil {
			return err
		}
		var err error
		result, err = l.classifyAndPersist(ctx, s, ev.Key())
		return err
	})
	if err != nil {
		return YearlySummary{}, fmt.Errorf("delete leave %s: %w", id, err)
	}

	l.afterCommit(ctx, result, CauseDeleted)
	l.logger.Info("leave deleted",
		zap.String("member_id", string(ev.MemberID)),
		zap.String("event_id", string(id)),
		zap.String("date", ev.Date.String()),
		zap.Int("flags_changed", len(result.Changes)),
	)
	return result.Summary, nil
}

// GetSummary recomputes the summary without mutating anything.
func (l *Ledger) GetSummary(ctx context.Context, memberID generic.MemberID, year int) (YearlySummary, error) {
	if !generic.ValidYear(year) {
		return YearlySummary{}, &generic.InvalidDateError{Value: strconv.Itoa(year), Reason: "year out of range"}
	}
	if err := l.checkMember(ctx, memberID); err != nil {
		return YearlySummary{}, err
	}

	today := l.today().String()
	if l.cache != nil {
		cached, ok, err := l.cache.Get(ctx, memberID, year)
		if err != nil {
			l.logger.Warn("summary cache read failed", zap.String("member_id", string(memberID)), zap.Error(err))
		} else if ok && cached.AsOf == today {
			return cached, nil
		}
	}

	flight := string(memberID) + "/" + strconv.Itoa(year)
	ch := l.flights.DoChan(flight, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not
		// fail the others.
		return l.loadSummary(context.WithoutCancel(ctx), generic.MemberYear{MemberID: memberID, Year: year})
	})
	select {
	case <-ctx.Done():
		return YearlySummary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return YearlySummary{}, fmt.Errorf("summary for member %s %d: %w", memberID, year, res.Err)
		}
		return res.Val.(YearlySummary), nil
	}
}

// loadSummary reads and caches a summary under the member-year lock, so a
// mutation committing mid-read cannot be overwritten by the older result.
func (l *Ledger) loadSummary(ctx context.Context, key generic.MemberYear) (YearlySummary, error) {
	unlock := l.locks.Lock(key)
	defer unlock()

	events, err := l.store.ListEvents(ctx, key.MemberID, key.Year)
	if err != nil {
		return YearlySummary{}, err
	}
	summary := ClassifyYear(l.input(key.MemberID, key.Year, events)).Summary
	if l.cache != nil {
		if err := l.cache.Set(ctx, summary); err != nil {
			l.logger.Warn("summary cache write failed", zap.String("member_id", string(key.MemberID)), zap.Error(err))
		}
	}
	return summary, nil
}

// ListLeaves returns the member's stored events for year, ordered by date.
func (l *Ledger) ListLeaves(ctx context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	if !generic.ValidYear(year) {
		return nil, &generic.InvalidDateError{Value: strconv.Itoa(year), Reason: "year out of range"}
	}
	events, err := l.store.ListEvents(ctx, memberID, year)
	if err != nil {
		return nil, fmt.Errorf("list leaves for member %s %d: %w", memberID, year, err)
	}
	return events, nil
}

// Reclassify reruns the full cycle for a member-year without inserting or
// deleting anything. Used to repair flags after a failed write-back.
func (l *Ledger) Reclassify(ctx context.Context, memberID generic.MemberID, year int) (Result, error) {
	if !generic.ValidYear(year) {
		return Result{}, &generic.InvalidDateError{Value: strconv.Itoa(year), Reason: "year out of range"}
	}
	key := generic.MemberYear{MemberID: memberID, Year: year}
	unlock := l.locks.Lock(key)
	defer unlock()

	var result Result
	err := l.store.WithTx(ctx, func(s generic.Store) error {
		var err error
		result, err = l.classifyAndPersist(ctx, s, key)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("reclassify member %s %d: %w", memberID, year, err)
	}
	l.afterCommit(ctx, result, CauseReclassified)
	return result, nil
}

// SweepReport summarizes a ReclassifyAll run.
type SweepReport struct {
	MemberYears int
	Changed     int
	Failed      int
}

// ReclassifyAll reclassifies every member-year the store knows about.
// Individual failures are logged and counted; the sweep keeps going.
func (l *Ledger) ReclassifyAll(ctx context.Context) (SweepReport, error) {
	sweeper, ok := l.store.(generic.SweepStore)
	if !ok {
		return SweepReport{}, generic.ErrStoreRequired
	}
	keys, err := sweeper.ListMemberYears(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list member years: %w", err)
	}

	var report SweepReport
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.MemberYears++
		result, err := l.Reclassify(ctx, k.MemberID, k.Year)
		if err != nil {
			report.Failed++
			l.logger.Error("reclassify failed",
				zap.String("member_id", string(k.MemberID)),
				zap.Int("year", k.Year),
				zap.Error(err),
			)
			continue
		}
		report.Changed += len(result.Changes)
	}
	return report, nil
}

// Deductions prices the member's LOP days for year against their salary.
func (l *Ledger) Deductions(ctx context.Context, memberID generic.MemberID, year int) (Deductions, error) {
	if l.members == nil {
		return Deductions{}, generic.ErrStoreRequired
	}
	member, err := l.members.GetMember(ctx, memberID)
	if err != nil {
		return Deductions{}, fmt.Errorf("deductions for member %s: %w", memberID, err)
	}
	summary, err := l.GetSummary(ctx, memberID, year)
	if err != nil {
		return Deductions{}, err
	}
	salary := member.Salary
	if salary.IsNegative() {
		salary = decimal.Zero
	}
	return ComputeDeductions(summary, salary), nil
}

// DeleteMember removes a member and every leave they hold. Each of their
// member-years is locked for the duration and its cached summary dropped.
func (l *Ledger) DeleteMember(ctx context.Context, memberID generic.MemberID) error {
	if l.members == nil {
		return generic.ErrStoreRequired
	}

	var years []generic.MemberYear
	if sweeper, ok := l.store.(generic.SweepStore); ok {
		keys, err := sweeper.ListMemberYears(ctx)
		if err != nil {
			return fmt.Errorf("delete member %s: %w", memberID, err)
		}
		for _, k := range keys {
			if k.MemberID == memberID {
				years = append(years, k)
			}
		}
	}
	// Keys come back sorted, so every multi-key holder locks in the same order.
	for _, k := range years {
		unlock := l.locks.Lock(k)
		defer unlock()
	}

	if err := l.members.DeleteMember(ctx, memberID); err != nil {
		return fmt.Errorf("delete member %s: %w", memberID, err)
	}
	if l.cache != nil {
		for _, k := range years {
			if err := l.cache.Invalidate(ctx, k.MemberID, k.Year); err != nil {
				l.logger.Warn("summary cache invalidate failed",
					zap.String("member_id", string(memberID)), zap.Int("year", k.Year), zap.Error(err))
			}
		}
	}
	l.logger.Info("member deleted",
		zap.String("member_id", string(memberID)),
		zap.Int("years_cleared", len(years)),
	)
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (l *Ledger) input(memberID generic.MemberID, year int, events []generic.LeaveEvent) Input {
	return Input{MemberID: memberID, Year: year, Events: events, Policy: l.policy, AsOf: l.today()}
}

// classifyAndPersist must run inside WithTx with the member-year locked.
func (l *Ledger) classifyAndPersist(ctx context.Context, s generic.Store, key generic.MemberYear) (Result, error) {
	events, err := s.ListEvents(ctx, key.MemberID, key.Year)
	if err != nil {
		return Result{}, fmt.Errorf("list events: %w", err)
	}
	result := ClassifyYear(l.input(key.MemberID, key.Year, events))
	if len(result.Changes) > 0 {
		if err := s.SaveFlags(ctx, result.Changes); err != nil {
			return Result{}, fmt.Errorf("save flags: %w: %w", generic.ErrTransactionFailed, err)
		}
	}
	return result, nil
}

func (l *Ledger) checkMember(ctx context.Context, memberID generic.MemberID) error {
	if memberID == "" {
		return generic.ErrMemberNotFound
	}
	if l.members == nil {
		return nil
	}
	if _, err := l.members.GetMember(ctx, memberID); err != nil {
		if errors.Is(err, generic.ErrMemberNotFound) {
			return fmt.Errorf("member %s: %w", memberID, err)
		}
		return fmt.Errorf("lookup member %s: %w", memberID, err)
	}
	return nil
}

func (l *Ledger) afterCommit(ctx context.Context, result Result, cause ChangeCause) {
	summary := result.Summary
	if l.cache != nil {
		if err := l.cache.Set(ctx, summary); err != nil {
			l.logger.Warn("summary cache refresh failed, invalidating",
				zap.String("member_id", string(summary.MemberID)), zap.Error(err))
			if err := l.cache.Invalidate(ctx, summary.MemberID, summary.Year); err != nil {
				l.logger.Error("summary cache invalidate failed",
					zap.String("member_id", string(summary.MemberID)), zap.Error(err))
			}
		}
	}

	if l.publisher == nil || len(result.Changes) == 0 {
		return
	}
	byID := make(map[generic.EventID]generic.LeaveEvent, len(result.Events))
	for _, ev := range result.Events {
		byID[ev.ID] = ev
	}
	changes := make([]FlagChange, 0, len(result.Changes))
	for _, c := range result.Changes {
		ev := byID[c.EventID]
		changes = append(changes, FlagChange{
			EventID:  c.EventID,
			MemberID: ev.MemberID,
			Date:     ev.Date,
			Year:     ev.Year,
			IsLOP:    c.IsLOP,
			Cause:    cause,
		})
	}
	if err := l.publisher.PublishFlagChanges(ctx, changes); err != nil {
		l.logger.Warn("publish flag changes failed",
			zap.String("member_id", string(summary.MemberID)),
			zap.Int("changes", len(changes)),
			zap.Error(err))
	}
}
