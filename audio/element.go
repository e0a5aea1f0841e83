package audio

import (
	"math"
	"sync"
	"time"

	"billy/player"
)

// TimeUpdateInterval is how often a playing Element reports progress.
var TimeUpdateInterval = 250 * time.Millisecond

// Element is a media element for direct links (files and http URLs) played
// through a Deck.
type Element struct {
	deck *Deck

	mutex    sync.Mutex
	handlers player.MediaHandlers
	src      string
	interval time.Duration
	stopTick chan struct{}
}

func NewElement(source Source, sinks SinkFactory) *Element {
	e := &Element{interval: TimeUpdateInterval}
	e.deck = NewDeck(source, sinks, e.onNotification)
	return e
}

// Bind stores the handlers and reports ready, the element needs no warm up.
func (e *Element) Bind(handlers player.MediaHandlers) {
	e.mutex.Lock()
	e.handlers = handlers
	e.mutex.Unlock()

	if handlers.OnReady != nil {
		handlers.OnReady()
	}
}

func (e *Element) Close() {
	e.stopTicker()
	e.deck.Close()
}

func (e *Element) SetMedia(url string) {
	e.mutex.Lock()
	e.src = url
	e.mutex.Unlock()

	e.stopTicker()
	e.deck.Cue(LoadJob{URL: url, MediaID: url})
}

func (e *Element) Play() {
	e.deck.Start()
}

func (e *Element) PlayAt(seconds float64) {
	e.deck.StartAt(time.Duration(seconds * float64(time.Second)))
}

func (e *Element) Pause() {
	e.deck.Pause()
}

func (e *Element) Stop() {
	e.stopTicker()
	e.deck.Stop()
}

func (e *Element) ClearMedia() {
	e.mutex.Lock()
	e.src = ""
	e.mutex.Unlock()

	e.stopTicker()
	e.deck.Clear()
}

func (e *Element) SetVolume(ratio float64) {
	e.deck.SetVolume(int(math.Round(ratio * 100)))
}

func (e *Element) Status() player.MediaStatus {
	e.mutex.Lock()
	src := e.src
	e.mutex.Unlock()

	return player.MediaStatus{
		Src:         src,
		CurrentTime: e.deck.Position().Seconds(),
		Duration:    e.deck.Duration().Seconds(),
		Paused:      e.deck.State() != DeckPlaying,
	}
}

func (e *Element) onNotification(n PlaybackNotification) {
	e.mutex.Lock()
	h := e.handlers
	e.mutex.Unlock()

	switch n.Event {
	case PlaybackLoading:
		call(h.OnLoadStart)
	case PlaybackStarted, PlaybackResumed:
		e.startTicker()
		call(h.OnPlay)
	case PlaybackPaused:
		e.stopTicker()
		call(h.OnPause)
	case PlaybackCompleted:
		e.stopTicker()
		call(h.OnEnded)
	case PlaybackLoadError, PlaybackError:
		e.stopTicker()
		if h.OnError != nil {
			h.OnError(n.Error)
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (e *Element) startTicker() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	e.stopTick = stop
	interval := e.interval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mutex.Lock()
				onTime := e.handlers.OnTimeUpdate
				e.mutex.Unlock()
				if onTime != nil {
					onTime(e.deck.Position().Seconds(), e.deck.Duration().Seconds())
				}
			}
		}
	}()
}

func (e *Element) stopTicker() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}
