// Package fsm is the transition table of the ticket workflow:
// recording a conversation, processing it into tickets, reviewing them and
// submitting them to the board.
package fsm

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("fsm: invalid transition")

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateReviewing  State = "reviewing"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
)

const (
	EventStart     Event = "start"
	EventStop      Event = "stop"
	EventProcessed Event = "processed"
	EventConfirm   Event = "confirm"
	EventSubmitted Event = "submitted"
)

// States lists every state in workflow order.
var States = []State{StateIdle, StateRecording, StateProcessing, StateReviewing, StateSubmitting, StateConfirmed}

// Events lists every event.
var Events = []Event{EventStart, EventStop, EventProcessed, EventConfirm, EventSubmitted}

// Transition returns the state reached from current on event. On error the
// returned state is current.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateReviewing, StateConfirmed:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventConfirm:
			if current == StateReviewing {
				return StateSubmitting, nil
			}
		}
	case StateRecording:
		if event == EventStop {
			return StateProcessing, nil
		}
	case StateProcessing:
		if event == EventProcessed {
			return StateReviewing, nil
		}
	case StateSubmitting:
		if event == EventSubmitted {
			return StateConfirmed, nil
		}
	default:
		return current, fmt.Errorf("fsm: unknown state %q", current)
	}
	return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
}

// Can reports whether event is accepted in current.
func Can(current State, event Event) bool {
	_, err := Transition(current, event)
	return err == nil
}
