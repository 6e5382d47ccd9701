package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedMember(t *testing.T, s *Store, id generic.MemberID) {
	t.Helper()
	_, err := s.SaveMember(context.Background(), generic.Member{
		ID:       id,
		Name:     "Member " + string(id),
		Position: "Engineer",
		Salary:   decimal.NewFromInt(30000),
	})
	require.NoError(t, err)
}

func day(m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(2024, m, d)
}

func TestStore_EventLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMember(t, s, "m-1")

	// GIVEN two leaves inserted out of order
	late, err := s.InsertEvent(ctx, generic.NewLeaveEvent("m-1", day(time.March, 5)))
	require.NoError(t, err)
	early, err := s.InsertEvent(ctx, generic.NewLeaveEvent("m-1", day(time.January, 9)))
	require.NoError(t, err)
	assert.NotEmpty(t, early.ID)

	// WHEN listing the year
	events, err := s.ListEvents(ctx, "m-1", 2024)
	require.NoError(t, err)

	// THEN they come back ordered by date
	require.Len(t, events, 2)
	assert.Equal(t, early.ID, events[0].ID)
	assert.Equal(t, late.ID, events[1].ID)
	assert.Equal(t, time.March, events[1].Month)

	// Other years are not returned
	other, err := s.ListEvents(ctx, "m-1", 2023)
	require.NoError(t, err)
	assert.Empty(t, other)

	// Flags round-trip
	require.NoError(t, s.SaveFlags(ctx, []generic.FlagUpdate{{EventID: late.ID, IsLOP: true}}))
	got, err := s.GetEvent(ctx, late.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLOP)
	assert.Equal(t, generic.StatusLOP, got.Status())

	require.NoError(t, s.DeleteEvent(ctx, late.ID))
	_, err = s.GetEvent(ctx, late.ID)
	assert.ErrorIs(t, err, generic.ErrEventNotFound)
	assert.ErrorIs(t, s.DeleteEvent(ctx, late.ID), generic.ErrEventNotFound)
}

func TestStore_DuplicateDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMember(t, s, "m-1")
	seedMember(t, s, "m-2")

	_, err := s.InsertEvent(ctx, generic.NewLeaveEvent("m-1", day(time.May, 1)))
	require.NoError(t, err)

	_, err = s.InsertEvent(ctx, generic.NewLeaveEvent("m-1", day(time.May, 1)))
	assert.ErrorIs(t, err, generic.ErrDuplicateLeaveDay)

	// Same day for another member is fine
	_, err = s.InsertEvent(ctx, generic.NewLeaveEvent("m-2", day(time.May, 1)))
	assert.NoError(t, err)
}

func TestStore_InsertUnknownMember(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertEvent(context.Background(), generic.NewLeaveEvent("ghost", day(time.May, 1)))
	assert.ErrorIs(t, err, generic.ErrMemberNotFound)
}

func TestStore_SaveFlagsUnknownEvent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMember(t, s, "m-1")
	ev, err := s.InsertEvent(ctx, generic.NewLeaveEvent("m-1", day(time.May, 1)))
	require.NoError(t, err)

	err = s.SaveFlags(ctx, []generic.FlagUpdate{
		{EventID: ev.ID, IsLOP: true},
		{EventID: "missing", IsLOP: true},
	})
	assert.ErrorIs(t, err, generic.ErrEventNotFound)

	// The whole batch rolled back
	got, err := s.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLOP)
}

func TestStore_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMember(t, s, "m-1")

	err := s.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.InsertEvent(ctx, generic.NewLeaveEvent("m-1", day(time.June, 3))); err != nil {
			return err
		}
		events, err := tx.ListEvents(ctx, "m-1", 2024)
		require.NoError(t, err)
		assert.Len(t, events, 1)
		return generic.ErrTransactionFailed
	})
	assert.ErrorIs(t, err, generic.ErrTransactionFailed)

	events, err := s.ListEvents(ctx, "m-1", 2024)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_ListMemberYears(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMember(t, s, "a")
	seedMember(t, s, "b")

	for _, ev := range []generic.LeaveEvent{
		generic.NewLeaveEvent("b", generic.NewTimePoint(2024, time.July, 1)),
		generic.NewLeaveEvent("a", generic.NewTimePoint(2024, time.July, 1)),
		generic.NewLeaveEvent("a", generic.NewTimePoint(2023, time.December, 31)),
		generic.NewLeaveEvent("a", generic.NewTimePoint(2024, time.August, 2)),
	} {
		_, err := s.InsertEvent(ctx, ev)
		require.NoError(t, err)
	}

	keys, err := s.ListMemberYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.MemberYear{
		{MemberID: "a", Year: 2023},
		{MemberID: "a", Year: 2024},
		{MemberID: "b", Year: 2024},
	}, keys)
}

func TestStore_Members(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.SaveMember(ctx, generic.Member{
		Name:       "Asha",
		Email:      "asha@example.com",
		Position:   "Engineer",
		DateJoined: generic.NewTimePoint(2022, time.June, 1),
		Salary:     decimal.RequireFromString("31000.50"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)

	got, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, generic.MemberActive, got.Status)
	assert.True(t, got.Salary.Equal(decimal.RequireFromString("31000.5")))
	assert.Equal(t, "2022-06-01", got.DateJoined.String())

	m.Status = generic.MemberOnLeave
	_, err = s.SaveMember(ctx, m)
	require.NoError(t, err)

	all, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, generic.MemberOnLeave, all[0].Status)

	_, err = s.GetMember(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrMemberNotFound)
}

func TestStore_DeleteMemberCascadesLeaves(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMember(t, s, "a")
	seedMember(t, s, "b")
	for _, ev := range []generic.LeaveEvent{
		generic.NewLeaveEvent("a", day(time.January, 5)),
		generic.NewLeaveEvent("b", day(time.January, 5)),
	} {
		_, err := s.InsertEvent(ctx, ev)
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteMember(ctx, "a"))

	keys, err := s.ListMemberYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.MemberYear{{MemberID: "b", Year: 2024}}, keys)
	assert.ErrorIs(t, s.DeleteMember(ctx, "a"), generic.ErrMemberNotFound)
}
