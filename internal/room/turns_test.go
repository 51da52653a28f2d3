// internal/room/turns_test.go
package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTurnOrder(t *testing.T) {
	tests := []struct {
		name         string
		participants []Participant
		want         []string
	}{
		{
			name: "team1 then team2, each by seat position",
			participants: []Participant{
				{UserID: "b2", Team: "team2", Position: 2},
				{UserID: "a2", Team: "team1", Position: 2},
				{UserID: "b1", Team: "team2", Position: 1},
				{UserID: "a1", Team: "team1", Position: 1},
			},
			want: []string{"a1", "a2", "b1", "b2"},
		},
		{
			name: "no teams falls back to join order",
			participants: []Participant{
				{UserID: "x"},
				{UserID: "y"},
			},
			want: []string{"x", "y"},
		},
		{
			name: "observers excluded",
			participants: []Participant{
				{UserID: "a1", Team: "team1", Position: 1},
				{UserID: "w", Role: "observer"},
				{UserID: "b1", Team: "team2", Position: 1},
			},
			want: []string{"a1", "b1"},
		},
		{
			name:         "empty roster",
			participants: nil,
			want:         []string{},
		},
		{
			name: "equal positions keep roster order",
			participants: []Participant{
				{UserID: "first", Team: "team1", Position: 1},
				{UserID: "second", Team: "team1", Position: 1},
			},
			want: []string{"first", "second"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTurnOrder(tc.participants)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAdvanceTurnCycles2v2(t *testing.T) {
	reg, _ := newTestRegistry(t)
	players := []Participant{
		{UserID: "a1", UserName: "a1", Team: "team1", Position: 1, Role: "creator"},
		{UserID: "a2", UserName: "a2", Team: "team1", Position: 2, Role: "player"},
		{UserID: "b1", UserName: "b1", Team: "team2", Position: 1, Role: "player"},
		{UserID: "b2", UserName: "b2", Team: "team2", Position: 2, Role: "player"},
	}
	reg.CreateFromLobby("match", players, "a1", Meta{GameMode: ModeTwoVsTwo, Event: "3x3"})

	order := []string{"a1", "a2", "b1", "b2", "a1"}
	for i := 0; i < len(order)-1; i++ {
		require.Equal(t, order[i], reg.CurrentTurn("match"))
		next, err := reg.RecordSolve("match", order[i], order[i], 12000)
		require.NoError(t, err)
		assert.Equal(t, order[i+1], next)
	}
}

func TestAdvanceTurnSolverLeftOrder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	players := []Participant{
		{UserID: "a1", UserName: "a1", Team: "team1", Position: 1, Role: "creator"},
		{UserID: "a2", UserName: "a2", Team: "team1", Position: 2, Role: "player"},
		{UserID: "b1", UserName: "b1", Team: "team2", Position: 1, Role: "player"},
		{UserID: "b2", UserName: "b2", Team: "team2", Position: 2, Role: "player"},
	}
	reg.CreateFromLobby("match", players, "a1", Meta{GameMode: ModeTwoVsTwo, Event: "3x3"})

	// A solve result arriving after that solver already dropped out must not
	// stall the rotation.
	reg.Leave("match", "a1")
	next, err := reg.RecordSolve("match", "a1", "a1", 15000)
	require.NoError(t, err)
	assert.Contains(t, []string{"a2", "b1", "b2"}, next)
	assert.Equal(t, next, reg.CurrentTurn("match"))
}

func TestTurnReassignedWhenHolderLeaves2v2(t *testing.T) {
	reg, _ := newTestRegistry(t)
	players := []Participant{
		{UserID: "a1", UserName: "a1", Team: "team1", Position: 1, Role: "creator"},
		{UserID: "a2", UserName: "a2", Team: "team1", Position: 2, Role: "player"},
		{UserID: "b1", UserName: "b1", Team: "team2", Position: 1, Role: "player"},
		{UserID: "b2", UserName: "b2", Team: "team2", Position: 2, Role: "player"},
	}
	reg.CreateFromLobby("match", players, "a1", Meta{GameMode: ModeTwoVsTwo, Event: "3x3"})
	require.Equal(t, "a1", reg.CurrentTurn("match"))

	reg.Disconnect("match", "a1")

	turn := reg.CurrentTurn("match")
	assert.NotEmpty(t, turn)
	assert.NotEqual(t, "a1", turn)
	assert.Equal(t, "a2", reg.HostOf("match"), "host falls to the first remaining participant")
}
