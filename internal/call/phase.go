package call

import "time"

// Phase is the session's coarse state.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseConnecting Phase = "connecting"
	PhaseInCall     Phase = "incall"
)

// Role is fixed once a room is created or joined. The creator publishes the
// offer and expects exactly one answer; the joiner publishes exactly one
// answer and never an offer.
type Role string

const (
	RoleNone    Role = ""
	RoleCreator Role = "creator"
	RoleJoiner  Role = "joiner"
)

// EventKind classifies session events.
type EventKind string

const (
	// EventPhase announces a phase transition; Event.Phase holds the new phase.
	EventPhase EventKind = "phase"
	// EventNotice carries a user-facing notification; Event.Notice holds the text.
	EventNotice EventKind = "notice"
)

// Event is what the session surface renders. The session never blocks on a
// slow consumer; events may be dropped under backpressure.
type Event struct {
	Kind   EventKind
	Phase  Phase
	Notice string
}

// Stats are informational counters for the end-of-call summary.
type Stats struct {
	SignalsPublished   int
	SignalsApplied     int
	CandidatesBuffered int
	CandidatesApplied  int
	Duration           time.Duration
}
