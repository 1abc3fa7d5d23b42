package capture

import "fmt"

// State is one phase of a recording attempt.
type State string

// Event drives transitions between capture states.
type Event string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateError      State = "error"
)

const (
	EventRequest   Event = "request"
	EventGranted   Event = "granted"
	EventStop      Event = "stop"
	EventFinalized Event = "finalized"
	EventFail      Event = "fail"
	EventReset     Event = "reset"
)

// Transition returns the next state for an event, or an error for an
// invalid pairing. Failure is reachable only while acquiring or holding
// the input stream.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventRequest:
			return StateRequesting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRequesting:
		switch event {
		case EventGranted:
			return StateRecording, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateFinalizing, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinalizing:
		switch event {
		case EventFinalized:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
