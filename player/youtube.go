package player

import (
	"fmt"
	"sync"
	"time"

	"billy/models"
)

// YouTube player states as reported by the iframe API.
const (
	YouTubeUnstarted = -1
	YouTubeEnded     = 0
	YouTubePlaying   = 1
	YouTubePaused    = 2
	YouTubeBuffering = 3
	YouTubeCued      = 5
)

type YouTubeHandlers struct {
	OnReady       func()
	OnStateChange func(state int)
	OnError       func(code int)
}

// YouTubeWidget is the subset of the YouTube player API the variant drives.
// Calls made before OnReady has fired are undefined.
type YouTubeWidget interface {
	Bind(handlers YouTubeHandlers)
	CueVideoByID(id string)
	PlayVideo()
	PauseVideo()
	StopVideo()
	ClearVideo()
	SeekTo(seconds float64)
	SetVolume(level int)
	GetCurrentTime() float64
	GetDuration() float64
	GetPlayerState() int
}

// TimeUpdateInterval is how often a playing YouTube track reports progress.
var TimeUpdateInterval = 250 * time.Millisecond

type YouTube struct {
	base
	widget YouTubeWidget

	stateMutex sync.Mutex
	loaded     bool
	volume     int
	interval   time.Duration
	stopTick   chan struct{}
}

func NewYouTube(widget YouTubeWidget) *YouTube {
	y := &YouTube{base: base{kind: KindYouTube}, widget: widget, volume: -1, interval: TimeUpdateInterval}
	widget.Bind(YouTubeHandlers{
		OnReady:       y.onReady,
		OnStateChange: y.onStateChange,
		OnError: func(code int) {
			y.stopTicker()
			y.fire(Event{Type: EventError, Err: fmt.Errorf("youtube player error %d", code)})
		},
	})
	return y
}

// youTubeEvent maps a numeric player state to the normalized vocabulary.
// Buffering has no counterpart.
func youTubeEvent(state int) (EventType, bool) {
	switch state {
	case YouTubeUnstarted, YouTubeCued:
		return EventLoadStart, true
	case YouTubeEnded:
		return EventEnded, true
	case YouTubePlaying:
		return EventPlaying, true
	case YouTubePaused:
		return EventPaused, true
	}
	return "", false
}

// onReady applies a volume set before the widget was usable.
func (y *YouTube) onReady() {
	y.stateMutex.Lock()
	volume := y.volume
	y.stateMutex.Unlock()

	if volume >= 0 {
		y.widget.SetVolume(volume)
	}
	y.markReady()
}

func (y *YouTube) onStateChange(state int) {
	if state == YouTubePlaying {
		y.startTicker()
	} else if state != YouTubeBuffering {
		y.stopTicker()
	}
	if event, ok := youTubeEvent(state); ok {
		y.fire(Event{Type: event})
	}
}

func (y *YouTube) startTicker() {
	y.stateMutex.Lock()
	defer y.stateMutex.Unlock()
	if y.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	y.stopTick = stop
	interval := y.interval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				y.fire(Event{Type: EventTimeUpdate, Position: y.CurrentTime(), Duration: y.Duration()})
			}
		}
	}()
}

func (y *YouTube) stopTicker() {
	y.stateMutex.Lock()
	defer y.stateMutex.Unlock()
	if y.stopTick != nil {
		close(y.stopTick)
		y.stopTick = nil
	}
}

func (y *YouTube) isLoaded() bool {
	y.stateMutex.Lock()
	defer y.stateMutex.Unlock()
	return y.loaded
}

func (y *YouTube) Load(track models.Track) error {
	if !y.Ready() {
		return ErrNotReady
	}
	y.stateMutex.Lock()
	y.loaded = true
	y.stateMutex.Unlock()

	y.widget.CueVideoByID(track.MediaID())
	return nil
}

func (y *YouTube) Play() {
	if y.Ready() && y.isLoaded() {
		y.widget.PlayVideo()
	}
}

func (y *YouTube) Pause() {
	if y.Ready() && y.isLoaded() {
		y.widget.PauseVideo()
	}
}

func (y *YouTube) Stop() {
	if y.Ready() && y.isLoaded() {
		y.stopTicker()
		y.widget.StopVideo()
	}
}

func (y *YouTube) Seek(seconds float64) {
	if y.Ready() && y.isLoaded() {
		y.widget.SeekTo(seconds)
	}
}

func (y *YouTube) SetVolume(level int) {
	y.stateMutex.Lock()
	y.volume = level
	y.stateMutex.Unlock()

	if y.Ready() {
		y.widget.SetVolume(level)
	}
}

func (y *YouTube) Clear() {
	y.stopTicker()
	y.stateMutex.Lock()
	wasLoaded := y.loaded
	y.loaded = false
	y.stateMutex.Unlock()

	if y.Ready() && wasLoaded {
		y.widget.StopVideo()
		y.widget.ClearVideo()
	}
}

func (y *YouTube) CurrentTime() float64 {
	if !y.Ready() || !y.isLoaded() || y.widget.GetPlayerState() == YouTubeUnstarted {
		return 0
	}
	return y.widget.GetCurrentTime()
}

func (y *YouTube) Duration() float64 {
	if !y.Ready() || !y.isLoaded() || y.widget.GetPlayerState() == YouTubeUnstarted {
		return 0
	}
	return y.widget.GetDuration()
}
