package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/generic/store"
)

func leaveOn(member generic.MemberID, date string) generic.LeaveEvent {
	d, err := generic.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return generic.NewLeaveEvent(member, d)
}

func TestMemory_ListOrdersByDateThenInsertion(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	for _, d := range []string{"2024-03-01", "2024-01-15", "2023-12-31", "2024-02-10"} {
		_, err := m.InsertEvent(ctx, leaveOn("a", d))
		require.NoError(t, err)
	}
	_, err := m.InsertEvent(ctx, leaveOn("b", "2024-01-01"))
	require.NoError(t, err)

	events, err := m.ListEvents(ctx, "a", 2024)
	require.NoError(t, err)

	var dates []string
	for _, ev := range events {
		dates = append(dates, ev.Date.String())
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.CreatedAt.IsZero())
	}
	assert.Equal(t, []string{"2024-01-15", "2024-02-10", "2024-03-01"}, dates)
}

func TestMemory_DuplicateDay(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	require.NoError(t, err)

	_, err = m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))

	var dup *generic.DuplicateDayError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, generic.MemberID("a"), dup.MemberID)
	assert.ErrorIs(t, err, generic.ErrDuplicateLeaveDay)

	// Other members may take the same day
	_, err = m.InsertEvent(ctx, leaveOn("b", "2024-01-15"))
	assert.NoError(t, err)
}

func TestMemory_DeleteFreesTheDay(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	ev, err := m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	require.NoError(t, err)

	require.NoError(t, m.DeleteEvent(ctx, ev.ID))
	assert.ErrorIs(t, m.DeleteEvent(ctx, ev.ID), generic.ErrEventNotFound)
	_, err = m.GetEvent(ctx, ev.ID)
	assert.ErrorIs(t, err, generic.ErrEventNotFound)

	_, err = m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	assert.NoError(t, err)
}

func TestMemory_SaveFlagsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	ev, err := m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	require.NoError(t, err)

	err = m.SaveFlags(ctx, []generic.FlagUpdate{
		{EventID: ev.ID, IsLOP: true},
		{EventID: "missing", IsLOP: true},
	})
	assert.ErrorIs(t, err, generic.ErrEventNotFound)

	got, err := m.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLOP)

	// Writing the same flag twice is idempotent
	for i := 0; i < 2; i++ {
		require.NoError(t, m.SaveFlags(ctx, []generic.FlagUpdate{{EventID: ev.ID, IsLOP: true}}))
	}
	got, _ = m.GetEvent(ctx, ev.ID)
	assert.True(t, got.IsLOP)
}

func TestTxMemory_RollsBackOnError(t *testing.T) {
	// GIVEN one stored event
	ctx := context.Background()
	tm := store.NewTxMemory()
	kept, err := tm.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	require.NoError(t, err)

	// WHEN a transaction inserts, deletes and then fails
	boom := errors.New("boom")
	err = tm.WithTx(ctx, func(s generic.Store) error {
		if _, err := s.InsertEvent(ctx, leaveOn("a", "2024-01-20")); err != nil {
			return err
		}
		if err := s.DeleteEvent(ctx, kept.ID); err != nil {
			return err
		}
		return boom
	})

	// THEN nothing of it is visible
	assert.ErrorIs(t, err, boom)
	events, err := tm.ListEvents(ctx, "a", 2024)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, kept.ID, events[0].ID)
}

func TestTxMemory_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()

	err := tm.WithTx(ctx, func(s generic.Store) error {
		ev, err := s.InsertEvent(ctx, leaveOn("a", "2024-01-20"))
		if err != nil {
			return err
		}
		return s.SaveFlags(ctx, []generic.FlagUpdate{{EventID: ev.ID, IsLOP: true}})
	})
	require.NoError(t, err)

	events, err := tm.ListEvents(ctx, "a", 2024)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsLOP)
}

func TestMemory_ListMemberYears(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, e := range []generic.LeaveEvent{
		leaveOn("b", "2024-05-01"),
		leaveOn("a", "2024-01-15"),
		leaveOn("a", "2023-07-04"),
		leaveOn("a", "2024-02-01"),
	} {
		_, err := m.InsertEvent(ctx, e)
		require.NoError(t, err)
	}

	keys, err := m.ListMemberYears(ctx)

	require.NoError(t, err)
	assert.Equal(t, []generic.MemberYear{
		{MemberID: "a", Year: 2023},
		{MemberID: "a", Year: 2024},
		{MemberID: "b", Year: 2024},
	}, keys)
}

func TestMemory_MembersAndReset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	saved, err := m.SaveMember(ctx, generic.Member{Name: "Zed"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, generic.MemberActive, saved.Status)

	// Upsert keeps CreatedAt
	created := saved.CreatedAt
	time.Sleep(time.Millisecond)
	saved.Position = "Lead"
	again, err := m.SaveMember(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, created, again.CreatedAt)

	_, err = m.SaveMember(ctx, generic.Member{ID: "a", Name: "Amy"})
	require.NoError(t, err)
	list, err := m.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Amy", list[0].Name)

	_, err = m.GetMember(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrMemberNotFound)

	_, err = m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	require.NoError(t, err)
	require.NoError(t, m.Reset(ctx))

	list, _ = m.ListMembers(ctx)
	assert.Empty(t, list)
	keys, _ := m.ListMemberYears(ctx)
	assert.Empty(t, keys)
}

func TestMemory_DeleteMemberCascades(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	for _, id := range []generic.MemberID{"a", "b"} {
		_, err := m.SaveMember(ctx, generic.Member{ID: id, Name: string(id)})
		require.NoError(t, err)
	}
	for _, e := range []generic.LeaveEvent{leaveOn("a", "2024-01-15"), leaveOn("a", "2023-03-01"), leaveOn("b", "2024-01-15")} {
		_, err := m.InsertEvent(ctx, e)
		require.NoError(t, err)
	}

	require.NoError(t, m.DeleteMember(ctx, "a"))

	keys, err := m.ListMemberYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.MemberYear{{MemberID: "b", Year: 2024}}, keys)
	assert.ErrorIs(t, m.DeleteMember(ctx, "a"), generic.ErrMemberNotFound)

	// The day index was cleared along with the events
	_, err = m.InsertEvent(ctx, leaveOn("a", "2024-01-15"))
	assert.NoError(t, err)
}
