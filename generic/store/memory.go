// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/fixtures)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	events  map[generic.EventID]generic.LeaveEvent
	byDay   map[dayKey]generic.EventID
	members map[generic.MemberID]generic.Member
	seq     map[generic.EventID]int
	nextSeq int
}

type dayKey struct {
	MemberID generic.MemberID
	Date     string
}

func NewMemory() *Memory {
	return &Memory{
		events:  make(map[generic.EventID]generic.LeaveEvent),
		byDay:   make(map[dayKey]generic.EventID),
		members: make(map[generic.MemberID]generic.Member),
		seq:     make(map[generic.EventID]int),
	}
}

func (m *Memory) ListEvents(_ context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(memberID, year), nil
}

func (m *Memory) listLocked(memberID generic.MemberID, year int) []generic.LeaveEvent {
	var result []generic.LeaveEvent
	for _, ev := range m.events {
		if ev.MemberID == memberID && ev.Year == year {
			result = append(result, ev)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return m.seq[result[i].ID] < m.seq[result[j].ID]
	})
	return result
}

func (m *Memory) GetEvent(_ context.Context, id generic.EventID) (generic.LeaveEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id generic.EventID) (generic.LeaveEvent, error) {
	ev, ok := m.events[id]
	if !ok {
		return generic.LeaveEvent{}, generic.ErrEventNotFound
	}
	return ev, nil
}

func (m *Memory) InsertEvent(_ context.Context, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(ev)
}

func (m *Memory) insertLocked(ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	k := dayKey{MemberID: ev.MemberID, Date: ev.Date.String()}
	if _, exists := m.byDay[k]; exists {
		return generic.LeaveEvent{}, &generic.DuplicateDayError{MemberID: ev.MemberID, Date: ev.Date}
	}
	if ev.ID == "" {
		ev.ID = generic.EventID(uuid.NewString())
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.events[ev.ID] = ev
	m.byDay[k] = ev.ID
	m.nextSeq++
	m.seq[ev.ID] = m.nextSeq
	return ev, nil
}

func (m *Memory) DeleteEvent(_ context.Context, id generic.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Memory) deleteLocked(id generic.EventID) error {
	ev, ok := m.events[id]
	if !ok {
		return generic.ErrEventNotFound
	}
	delete(m.events, id)
	delete(m.byDay, dayKey{MemberID: ev.MemberID, Date: ev.Date.String()})
	delete(m.seq, id)
	return nil
}

func (m *Memory) SaveFlags(_ context.Context, updates []generic.FlagUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveFlagsLocked(updates)
}

func (m *Memory) saveFlagsLocked(updates []generic.FlagUpdate) error {
	// Validate first so a bad id leaves every flag untouched
	for _, u := range updates {
		if _, ok := m.events[u.EventID]; !ok {
			return generic.ErrEventNotFound
		}
	}
	for _, u := range updates {
		ev := m.events[u.EventID]
		ev.IsLOP = u.IsLOP
		m.events[u.EventID] = ev
	}
	return nil
}

// ListMemberYears returns every member-year holding at least one event.
func (m *Memory) ListMemberYears(_ context.Context) ([]generic.MemberYear, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[generic.MemberYear]bool)
	var keys []generic.MemberYear
	for _, ev := range m.events {
		k := ev.Key()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MemberID != keys[j].MemberID {
			return keys[i].MemberID < keys[j].MemberID
		}
		return keys[i].Year < keys[j].Year
	})
	return keys, nil
}

// =============================================================================
// MEMBERS
// =============================================================================

func (m *Memory) SaveMember(_ context.Context, member generic.Member) (generic.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if member.ID == "" {
		member.ID = generic.MemberID(uuid.NewString())
	}
	if existing, ok := m.members[member.ID]; ok {
		member.CreatedAt = existing.CreatedAt
	} else if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	if member.Status == "" {
		member.Status = generic.MemberActive
	}
	m.members[member.ID] = member
	return member, nil
}

func (m *Memory) GetMember(_ context.Context, id generic.MemberID) (generic.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	member, ok := m.members[id]
	if !ok {
		return generic.Member{}, generic.ErrMemberNotFound
	}
	return member, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]generic.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]generic.Member, 0, len(m.members))
	for _, member := range m.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

// DeleteMember removes the member and cascades to their events.
func (m *Memory) DeleteMember(_ context.Context, id generic.MemberID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[id]; !ok {
		return generic.ErrMemberNotFound
	}
	delete(m.members, id)
	for evID, ev := range m.events {
		if ev.MemberID == id {
			delete(m.events, evID)
			delete(m.byDay, dayKey{MemberID: id, Date: ev.Date.String()})
			delete(m.seq, evID)
		}
	}
	return nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = make(map[generic.EventID]generic.LeaveEvent)
	m.byDay = make(map[dayKey]generic.EventID)
	m.members = make(map[generic.MemberID]generic.Member)
	m.seq = make(map[generic.EventID]int)
	m.nextSeq = 0
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		events:  make(map[generic.EventID]generic.LeaveEvent, len(tm.events)),
		byDay:   make(map[dayKey]generic.EventID, len(tm.byDay)),
		seq:     make(map[generic.EventID]int, len(tm.seq)),
		nextSeq: tm.nextSeq,
	}
	for k, v := range tm.events {
		s.events[k] = v
	}
	for k, v := range tm.byDay {
		s.byDay[k] = v
	}
	for k, v := range tm.seq {
		s.seq[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.events = s.events
	tm.byDay = s.byDay
	tm.seq = s.seq
	tm.nextSeq = s.nextSeq
}

type memorySnapshot struct {
	events  map[generic.EventID]generic.LeaveEvent
	byDay   map[dayKey]generic.EventID
	seq     map[generic.EventID]int
	nextSeq int
}

// txMemoryView runs against the parent while its lock is already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) ListEvents(_ context.Context, memberID generic.MemberID, year int) ([]generic.LeaveEvent, error) {
	return tv.parent.listLocked(memberID, year), nil
}

func (tv *txMemoryView) GetEvent(_ context.Context, id generic.EventID) (generic.LeaveEvent, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) InsertEvent(_ context.Context, ev generic.LeaveEvent) (generic.LeaveEvent, error) {
	return tv.parent.insertLocked(ev)
}

func (tv *txMemoryView) DeleteEvent(_ context.Context, id generic.EventID) error {
	return tv.parent.deleteLocked(id)
}

func (tv *txMemoryView) SaveFlags(_ context.Context, updates []generic.FlagUpdate) error {
	return tv.parent.saveFlagsLocked(updates)
}
