package tcpworker

// Role selects the connection behavior of a Worker.
type Role int

const (
	Undefined Role = iota // Placeholder role; Start and SendMessage return ErrNotImplemented
	Server                // Listens on the endpoint and serves one client at a time
	Client                // Connects to the endpoint
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case Server:
		return "Server"
	case Client:
		return "Client"
	default:
		return "Undefined"
	}
}

// State represents the lifecycle state of a Worker.
type State int

const (
	Idle      State = iota // Created and never started
	Starting               // Start accepted, role-specific setup in progress
	Waiting                // Running without an attached peer
	Connected              // Running with a peer attached
	Stopped                // Torn down; Start may be called again unless the worker was closed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Starting:
		return "Starting"
	case Waiting:
		return "Waiting"
	case Connected:
		return "Connected"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// running reports whether the state belongs to an active session.
func (s State) running() bool {
	return s == Starting || s == Waiting || s == Connected
}
