package player

import (
	"sync"

	"billy/models"
)

// SoundCloudTrackURL is the API resource the widget loads for a track id.
const SoundCloudTrackURL = "https://api.soundcloud.com/tracks/"

type SoundCloudHandlers struct {
	OnReady        func()
	OnPlay         func()
	OnPause        func()
	OnFinish       func()
	OnPlayProgress func(positionMs, durationMs float64)
	OnError        func(err error)
}

// SoundCloudWidget is the subset of the SoundCloud widget API the variant
// drives. Positions are in milliseconds and volume is a 0..1 ratio.
type SoundCloudWidget interface {
	Bind(handlers SoundCloudHandlers)
	Load(url string, onLoaded func())
	Play()
	Pause()
	SeekTo(ms float64)
	SetVolume(ratio float64)
}

// SoundCloud caches position and duration from progress reports since the
// widget only answers those queries asynchronously.
type SoundCloud struct {
	base
	widget SoundCloudWidget

	stateMutex  sync.Mutex
	loaded      bool
	pendingPlay bool
	url         string
	position    float64
	duration    float64
}

func NewSoundCloud(widget SoundCloudWidget) *SoundCloud {
	s := &SoundCloud{base: base{kind: KindSoundCloud}, widget: widget}
	widget.Bind(SoundCloudHandlers{
		OnReady:        s.markReady,
		OnPlay:         func() { s.fire(Event{Type: EventPlaying}) },
		OnPause:        func() { s.fire(Event{Type: EventPaused}) },
		OnFinish:       func() { s.fire(Event{Type: EventEnded}) },
		OnPlayProgress: s.onProgress,
		OnError:        func(err error) { s.fire(Event{Type: EventError, Err: err}) },
	})
	return s
}

func (s *SoundCloud) onProgress(positionMs, durationMs float64) {
	s.stateMutex.Lock()
	s.position = positionMs / 1000
	s.duration = durationMs / 1000
	position, duration := s.position, s.duration
	s.stateMutex.Unlock()

	if positionMs == 0 {
		s.fire(Event{Type: EventLoadStart})
		return
	}
	s.fire(Event{Type: EventTimeUpdate, Position: position, Duration: duration})
}

func (s *SoundCloud) Load(track models.Track) error {
	if !s.Ready() {
		return ErrNotReady
	}
	url := SoundCloudTrackURL + track.MediaID()

	s.stateMutex.Lock()
	s.loaded = false
	s.pendingPlay = false
	s.url = url
	s.position, s.duration = 0, 0
	s.stateMutex.Unlock()

	s.widget.Load(url, func() { s.onLoaded(url) })
	return nil
}

// onLoaded plays the track when Play was requested while it was loading.
func (s *SoundCloud) onLoaded(url string) {
	s.stateMutex.Lock()
	if s.url != url {
		s.stateMutex.Unlock()
		return
	}
	s.loaded = true
	play := s.pendingPlay
	s.pendingPlay = false
	s.stateMutex.Unlock()

	if play {
		s.widget.Play()
	}
}

func (s *SoundCloud) Play() {
	s.stateMutex.Lock()
	if s.url == "" {
		s.stateMutex.Unlock()
		return
	}
	if !s.loaded {
		s.pendingPlay = true
		s.stateMutex.Unlock()
		return
	}
	s.stateMutex.Unlock()
	s.widget.Play()
}

func (s *SoundCloud) isLoaded() bool {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	return s.loaded
}

func (s *SoundCloud) Pause() {
	s.stateMutex.Lock()
	s.pendingPlay = false
	loaded := s.loaded
	s.stateMutex.Unlock()

	if loaded {
		s.widget.Pause()
	}
}

func (s *SoundCloud) Stop() {
	if !s.isLoaded() {
		return
	}
	s.widget.Pause()
	s.widget.SeekTo(0)
}

func (s *SoundCloud) Seek(seconds float64) {
	if s.isLoaded() {
		s.widget.SeekTo(seconds * 1000)
	}
}

func (s *SoundCloud) SetVolume(level int) {
	s.widget.SetVolume(float64(level) / 100)
}

func (s *SoundCloud) Clear() {
	s.stateMutex.Lock()
	loaded := s.loaded
	s.loaded = false
	s.pendingPlay = false
	s.url = ""
	s.position, s.duration = 0, 0
	s.stateMutex.Unlock()

	if loaded {
		s.widget.Pause()
	}
}

func (s *SoundCloud) CurrentTime() float64 {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	if !s.loaded {
		return 0
	}
	return s.position
}

func (s *SoundCloud) Duration() float64 {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	if !s.loaded {
		return 0
	}
	return s.duration
}
