// Package conversation implements the DM (diagnostic-message) and VD
// (vehicle-discovery) conversations of spec.md §4.5: the public-facing
// wrapper around one internal/tcpchannel.Channel or
// internal/udpchannel.Channel respectively, plus the conversation
// handler contract each channel calls back into.
//
// Grounded on the teacher's composition style in
// internal/resolvers/chained.go (a small struct wrapping a lower-level
// resource and exposing a narrower, named interface to its caller) and
// internal/server/query_handler.go's Handle/HandleResult split, adapted
// here into Indication/HandleMessage.
package conversation

import "sync"

// State is a conversation's lifecycle state (spec.md §4.6: "any
// conversation still Active is force-shut-down with a warning").
type State int

const (
	StateCreated State = iota
	StateActive
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateActive:
		return "Active"
	case StateShutDown:
		return "ShutDown"
	default:
		return "Unknown"
	}
}

// stateBox is the small mutex-guarded state holder both conversation
// kinds embed.
type stateBox struct {
	mu    sync.Mutex
	state State
}

// State reports the conversation's current lifecycle state.
func (b *stateBox) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *stateBox) set(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}
