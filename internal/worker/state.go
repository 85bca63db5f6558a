package worker

import "github.com/receiptme/receiptd/internal/core"

type State int

const (
	StateDisconnected State = iota
	StateIdle
	StatePrinting
	StateAcknowledging
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateIdle:
		return "idle"
	case StatePrinting:
		return "printing"
	case StateAcknowledging:
		return "acknowledging"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// draining states finish even after cancellation so a started receipt is
// printed and acknowledged.
func (s State) draining() bool {
	return s == StatePrinting || s == StateAcknowledging
}

type Stats struct {
	Printed         int
	PrintFailed     int
	AckFailed       int
	ConnectFailures int
	PollFailures    int
}

// runState is everything that changes while the loop runs.
type runState struct {
	state   State
	current *core.Message
	stats   Stats
}
