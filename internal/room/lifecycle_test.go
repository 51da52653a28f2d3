// internal/room/lifecycle_test.go
package room

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorArmReplacesAndDisarms(t *testing.T) {
	sup := NewSupervisor()
	var fired int32

	sup.Arm(TimerSingleOccupant, "ROOM", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sup.Arm(TimerSingleOccupant, "ROOM", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	require.True(t, sup.Armed(TimerSingleOccupant, "ROOM"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired), "re-arming replaces the pending timer")

	sup.Arm(TimerLobbyIdle, "ROOM", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sup.Disarm(TimerLobbyIdle, "ROOM")
	assert.False(t, sup.Armed(TimerLobbyIdle, "ROOM"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired), "disarmed timers never fire")
}

func TestSupervisorDisarmAll(t *testing.T) {
	sup := NewSupervisor()
	var fired int32
	sup.Arm(TimerSingleOccupant, "ROOM", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sup.Arm(TimerInsufficient, "ROOM", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	sup.Arm(TimerSingleOccupant, "OTHER", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	sup.DisarmAll("ROOM")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired), "only the other room's timer fires")
}

func TestSingleOccupantTimeoutDeletesRoom(t *testing.T) {
	reg, bc := newTestRegistry(t)
	reg.SingleOccupantTimeout = 30 * time.Millisecond
	join1v1(t, reg, "abc", "u1", "Alice")

	require.Eventually(t, func() bool {
		return reg.RoomUsers("abc") == nil
	}, time.Second, 5*time.Millisecond, "lone occupant room should be evicted")

	roster, ok := bc.lastNamed(EventRoomUsers)
	require.True(t, ok)
	assert.Empty(t, roster.payload.(RoomUsersPayload).Users)
}

func TestSingleOccupantTimerCancelledBySecondJoin(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.SingleOccupantTimeout = 30 * time.Millisecond
	join1v1(t, reg, "abc", "u1", "Alice")
	join1v1(t, reg, "abc", "u2", "Bob")

	time.Sleep(90 * time.Millisecond)
	assert.Len(t, reg.RoomUsers("abc"), 2, "occupied room must survive the window")
}

func TestSingleOccupantTimerRearmedAfterDeparture(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.SingleOccupantTimeout = 30 * time.Millisecond
	join1v1(t, reg, "abc", "u1", "Alice")
	join1v1(t, reg, "abc", "u2", "Bob")
	reg.Leave("abc", "u2")

	require.Eventually(t, func() bool {
		return reg.RoomUsers("abc") == nil
	}, time.Second, 5*time.Millisecond, "dropping back to one occupant restarts the clock")
}

func promote2v2(t *testing.T, reg *Registry, code string) {
	t.Helper()
	players := []Participant{
		{UserID: "a1", UserName: "a1", Team: "team1", Position: 1, Role: "creator"},
		{UserID: "a2", UserName: "a2", Team: "team1", Position: 2, Role: "player"},
		{UserID: "b1", UserName: "b1", Team: "team2", Position: 1, Role: "player"},
		{UserID: "b2", UserName: "b2", Team: "team2", Position: 2, Role: "player"},
	}
	reg.CreateFromLobby(code, players, "a1", Meta{GameMode: ModeTwoVsTwo, Event: "3x3"})
}

func TestInsufficientCountdownRestored(t *testing.T) {
	reg, bc := newTestRegistry(t)
	reg.InsufficientTimeout = 60 * time.Millisecond
	promote2v2(t, reg, "match")
	bc.reset()

	reg.Disconnect("match", "b2")

	notice, ok := bc.lastNamed(EventInsufficientPlayers)
	require.True(t, ok, "dropping below full strength starts the countdown")
	deadline := notice.payload.(InsufficientPayload).Deadline
	assert.Greater(t, deadline, time.Now().UnixMilli())

	// The missing player returns before the deadline.
	err := reg.Join(JoinParams{RoomID: "match", UserID: "b2", UserName: "b2", GameMode: ModeTwoVsTwo})
	require.NoError(t, err)
	if _, ok := bc.lastNamed(EventPlayersRestored); !ok {
		t.Fatal("restoring full strength should announce the countdown cancellation")
	}

	time.Sleep(150 * time.Millisecond)
	assert.Len(t, reg.RoomUsers("match"), 4, "restored room must outlive the old deadline")
}

func TestInsufficientCountdownForceCloses(t *testing.T) {
	reg, bc := newTestRegistry(t)
	reg.InsufficientTimeout = 30 * time.Millisecond
	promote2v2(t, reg, "match")
	bc.reset()

	reg.Disconnect("match", "b2")

	require.Eventually(t, func() bool {
		return reg.RoomUsers("match") == nil
	}, time.Second, 5*time.Millisecond, "under-staffed room should be closed at the deadline")
	if _, ok := bc.lastNamed(EventRoomForceClosed); !ok {
		t.Fatal("force close must be announced before teardown")
	}
}

func TestCountdownSilentWhileRoomFillsUp(t *testing.T) {
	reg, bc := newTestRegistry(t)
	reg.InsufficientTimeout = 30 * time.Millisecond

	err := reg.Join(JoinParams{RoomID: "match", UserID: "u1", UserName: "u1", GameMode: ModeTwoVsTwo})
	require.NoError(t, err)
	err = reg.Join(JoinParams{RoomID: "match", UserID: "u2", UserName: "u2", GameMode: ModeTwoVsTwo})
	require.NoError(t, err)

	assert.Empty(t, bc.eventsNamed(EventInsufficientPlayers),
		"a room that has never been full shows no force-close countdown")

	require.Eventually(t, func() bool {
		return reg.RoomUsers("match") == nil
	}, time.Second, 5*time.Millisecond, "the never-full room is still evicted")
	if _, ok := bc.lastNamed(EventRoomForceClosed); !ok {
		t.Fatal("remaining occupants must still learn the room closed")
	}
}

func TestNoRestoredNoticeWithoutCountdown(t *testing.T) {
	reg, bc := newTestRegistry(t)
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		err := reg.Join(JoinParams{RoomID: "match", UserID: id, UserName: id, GameMode: ModeTwoVsTwo})
		require.NoError(t, err)
	}
	assert.Empty(t, bc.eventsNamed(EventPlayersRestored),
		"reaching full strength for the first time clears nothing a client ever saw")
	assert.Empty(t, bc.eventsNamed(EventInsufficientPlayers))
}

func TestListingsCarryInsufficientDeadline(t *testing.T) {
	reg, _ := newTestRegistry(t)
	promote2v2(t, reg, "match")
	reg.Disconnect("match", "b2")

	rows := reg.Listings()
	require.Len(t, rows, 1)
	assert.Greater(t, rows[0].InsufficientDeadline, time.Now().UnixMilli(),
		"browser rows expose the pending force-close instant")

	err := reg.Join(JoinParams{RoomID: "match", UserID: "b2", UserName: "b2", GameMode: ModeTwoVsTwo})
	require.NoError(t, err)
	rows = reg.Listings()
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].InsufficientDeadline, "restoring full strength clears the deadline")
}

func TestInsufficientDeadlineResetOnlyByRemoval(t *testing.T) {
	reg, bc := newTestRegistry(t)
	reg.InsufficientTimeout = 200 * time.Millisecond
	promote2v2(t, reg, "match")
	reg.Disconnect("match", "b1")
	reg.Disconnect("match", "b2")

	first := bc.eventsNamed(EventInsufficientPlayers)
	require.Len(t, first, 2, "each removal restarts the countdown")

	bc.reset()
	// A join that still leaves the room under strength must not move the
	// deadline or repeat the notice.
	err := reg.Join(JoinParams{RoomID: "match", UserID: "b1", UserName: "b1", GameMode: ModeTwoVsTwo})
	require.NoError(t, err)
	assert.Empty(t, bc.eventsNamed(EventInsufficientPlayers))
}
