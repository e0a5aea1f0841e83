package audio

import "time"

// PCM layout produced by the loader and consumed by the player: signed 16-bit
// little-endian, 48kHz stereo, cut into 20ms frames.
const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond
	FrameSamples  = SampleRate / 50 * Channels
	FrameBytes    = FrameSamples * 2
)

type PlaybackNotificationType string

const (
	PlaybackLoading      PlaybackNotificationType = "loading"
	PlaybackLoaded       PlaybackNotificationType = "loaded"
	PlaybackLoadError    PlaybackNotificationType = "load_error"
	PlaybackLoadCanceled PlaybackNotificationType = "load_canceled"
	PlaybackStarted      PlaybackNotificationType = "started"
	PlaybackPaused       PlaybackNotificationType = "paused"
	PlaybackResumed      PlaybackNotificationType = "resumed"
	PlaybackCompleted    PlaybackNotificationType = "completed"
	PlaybackStopped      PlaybackNotificationType = "stopped"
	PlaybackError        PlaybackNotificationType = "error"
)

// PlaybackNotification reports a transition of one load or playback run.
// Generation identifies the run so that late notifications from a replaced
// track can be told apart from the current one.
type PlaybackNotification struct {
	Error      error
	MediaID    string
	Event      PlaybackNotificationType
	Generation int64
	Duration   time.Duration
}

// DeckState is the coarse state of a Deck.
type DeckState int

const (
	DeckUnstarted DeckState = iota
	DeckCued
	DeckLoading
	DeckPlaying
	DeckPaused
	DeckStopped
	DeckEnded
)

func (s DeckState) String() string {
	switch s {
	case DeckCued:
		return "cued"
	case DeckLoading:
		return "loading"
	case DeckPlaying:
		return "playing"
	case DeckPaused:
		return "paused"
	case DeckStopped:
		return "stopped"
	case DeckEnded:
		return "ended"
	default:
		return "unstarted"
	}
}
