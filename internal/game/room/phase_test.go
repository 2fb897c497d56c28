package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhase_CanTransitionTo(t *testing.T) {
	t.Parallel()

	all := []Phase{PhaseLobby, PhaseActive, PhaseMeeting, PhaseResolution, PhaseEnded}
	allowed := map[Phase][]Phase{
		PhaseLobby:      {PhaseActive},
		PhaseActive:     {PhaseMeeting, PhaseEnded},
		PhaseMeeting:    {PhaseResolution},
		PhaseResolution: {PhaseActive, PhaseEnded},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, p := range allowed[from] {
				if p == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPhase_InGame(t *testing.T) {
	t.Parallel()

	assert.False(t, PhaseLobby.InGame())
	assert.True(t, PhaseActive.InGame())
	assert.True(t, PhaseMeeting.InGame())
	assert.True(t, PhaseResolution.InGame())
	assert.False(t, PhaseEnded.InGame())
}

func TestSetPhase_RejectsIllegal(t *testing.T) {
	t.Parallel()

	r := &Room{Code: "1", phase: PhaseLobby}
	assert.Error(t, r.setPhase(PhaseMeeting))
	assert.Equal(t, PhaseLobby, r.phase)
	assert.NoError(t, r.setPhase(PhaseActive))
	assert.Equal(t, PhaseActive, r.phase)
}

func TestSettings_Normalize(t *testing.T) {
	t.Parallel()

	s := Settings{MinPlayers: 0, MaxPlayers: 0, ResolutionDelay: -1}.normalize()
	assert.Equal(t, 1, s.MinPlayers)
	assert.Equal(t, 10, s.MaxPlayers)
	assert.Zero(t, s.ResolutionDelay)
	assert.Equal(t, DefaultSettings().MeetingDuration, s.MeetingDuration)
	assert.Positive(t, s.WorldWidth)
}

func TestSettings_ValidStation(t *testing.T) {
	t.Parallel()

	open := Settings{}
	assert.True(t, open.validStation("anything"))
	assert.False(t, open.validStation(""))

	restricted := Settings{Stations: []string{"reactor", "o2"}}
	assert.True(t, restricted.validStation("o2"))
	assert.False(t, restricted.validStation("bridge"))
}
