package stream

import "fmt"

type CompletionKind int

const (
	Finished CompletionKind = iota
	Failed
	Cancelled
)

func (k CompletionKind) String() string {
	switch k {
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("CompletionKind(%d)", int(k))
	}
}

// Completion is the terminal signal of a run. Err is set only for Failed.
type Completion struct {
	Kind CompletionKind
	Err  error
}

func (c Completion) String() string {
	if c.Err != nil {
		return fmt.Sprintf("%s: %v", c.Kind, c.Err)
	}
	return c.Kind.String()
}

// State is the lifecycle of a subscription. It leaves StateRunning exactly once.
type State int32

const (
	StateRunning State = iota
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func stateOf(c Completion) State {
	switch c.Kind {
	case Failed:
		return StateFailed
	case Cancelled:
		return StateCancelled
	default:
		return StateCompleted
	}
}
