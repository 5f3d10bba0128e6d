package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateRecording},
		{EventStop, StateProcessing},
		{EventProcessed, StateReviewing},
		{EventConfirm, StateSubmitting},
		{EventSubmitted, StateConfirmed},
		{EventStart, StateRecording},
	}
	for _, step := range steps {
		next, err := Transition(s, step.event)
		require.NoError(t, err)
		require.Equal(t, step.want, next)
		s = next
	}
}

func TestTransitionReviewingCanRecordAgain(t *testing.T) {
	next, err := Transition(StateReviewing, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)
}

func TestTransitionMatrix(t *testing.T) {
	valid := map[State]map[Event]State{
		StateIdle:       {EventStart: StateRecording},
		StateRecording:  {EventStop: StateProcessing},
		StateProcessing: {EventProcessed: StateReviewing},
		StateReviewing:  {EventStart: StateRecording, EventConfirm: StateSubmitting},
		StateSubmitting: {EventSubmitted: StateConfirmed},
		StateConfirmed:  {EventStart: StateRecording},
	}

	for _, state := range States {
		for _, event := range Events {
			t.Run(string(state)+"/"+string(event), func(t *testing.T) {
				next, err := Transition(state, event)
				want, ok := valid[state][event]
				if ok {
					require.NoError(t, err)
					require.Equal(t, want, next)
					require.True(t, Can(state, event))
					return
				}
				require.ErrorIs(t, err, ErrInvalidTransition)
				require.Contains(t, err.Error(), "invalid transition")
				require.Equal(t, state, next)
				require.False(t, Can(state, event))
			})
		}
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("paused"), EventStart)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, State("paused"), next)
}
