package player

import "billy/models"

type EventType string

const (
	EventReady      EventType = "ready"
	EventLoadStart  EventType = "loadstart"
	EventPlaying    EventType = "playing"
	EventPaused     EventType = "paused"
	EventEnded      EventType = "ended"
	EventError      EventType = "error"
	EventTimeUpdate EventType = "timeupdate"
)

// Event is the normalized vocabulary every variant reports in. Kind is empty
// for the adapter wide ready event.
type Event struct {
	Type     EventType     `json:"type"`
	Kind     Kind          `json:"kind,omitempty"`
	Track    *models.Track `json:"track,omitempty"`
	Position float64       `json:"position,omitempty"`
	Duration float64       `json:"duration,omitempty"`
	Err      error         `json:"-"`
	Message  string        `json:"message,omitempty"`
}

func (e Event) EventName() string { return string(e.Type) }

type Phase string

const (
	PhaseStopped Phase = "stopped"
	PhaseLoading Phase = "loading"
	PhasePlaying Phase = "playing"
	PhasePaused  Phase = "paused"
)

// State is a snapshot of what the adapter holds.
type State struct {
	Track    *models.Track `json:"track"`
	Kind     Kind          `json:"kind,omitempty"`
	Phase    Phase         `json:"phase"`
	Volume   int           `json:"volume"`
	Position float64       `json:"position"`
	Duration float64       `json:"duration"`
	Ready    bool          `json:"ready"`
}
