package domain

import "encoding/json"

type MessageType string

const (
	TypeInitialize  MessageType = "INITIALIZE"
	TypeUpdateState MessageType = "UPDATE_STATE"
)

// Message is the envelope for every frame on the wire. Data is the
// already-encoded payload so a message is serialized exactly once.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

type User struct {
	Token string `json:"token"`
	Color string `json:"color"`
}

type InitializeData struct {
	State    any  `json:"state"`
	Settings any  `json:"settings"`
	User     User `json:"user"`
}

type ConnState int32

const (
	StateConnected ConnState = iota
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Connection interface {
	ID() string
	Token() string
	State() ConnState
	Send(data []byte) error
	Close() error
}

type Registry interface {
	Register(conn Connection)
	Unregister(conn Connection)
	Broadcast(data []byte)
	Count() int
}

// UpdateFunc receives the state produced by a mutation.
type UpdateFunc func(state any)

// Simulation is the shared state the relay keeps clients in sync with.
type Simulation interface {
	// Read calls fn with the current state and settings. No update is
	// applied while fn runs.
	Read(fn func(state, settings any))
	// ApplyUpdates folds patch into the state and reports the result
	// through the UpdateFunc given at construction.
	ApplyUpdates(patch json.RawMessage) error
}

type MessageHandler interface {
	Connect(conn Connection)
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}
