package player

import (
	"sync"

	"billy/models"
)

type MediaHandlers struct {
	OnReady      func()
	OnLoadStart  func()
	OnPlay       func()
	OnPause      func()
	OnEnded      func()
	OnTimeUpdate func(position, duration float64)
	OnError      func(err error)
}

type MediaStatus struct {
	Src         string
	CurrentTime float64
	Duration    float64
	Paused      bool
}

// MediaElement is a plain audio element: one source at a time, times in
// seconds, volume as a 0..1 ratio.
type MediaElement interface {
	Bind(handlers MediaHandlers)
	SetMedia(url string)
	Play()
	PlayAt(seconds float64)
	Pause()
	Stop()
	ClearMedia()
	SetVolume(ratio float64)
	Status() MediaStatus
}

// LocalAudio plays direct links, its native events map one to one.
type LocalAudio struct {
	base
	element MediaElement

	stateMutex sync.Mutex
	loaded     bool
}

func NewLocalAudio(element MediaElement) *LocalAudio {
	l := &LocalAudio{base: base{kind: KindLocal}, element: element}
	element.Bind(MediaHandlers{
		OnReady:     l.markReady,
		OnLoadStart: func() { l.fire(Event{Type: EventLoadStart}) },
		OnPlay:      func() { l.fire(Event{Type: EventPlaying}) },
		OnPause:     func() { l.fire(Event{Type: EventPaused}) },
		OnEnded:     func() { l.fire(Event{Type: EventEnded}) },
		OnTimeUpdate: func(position, duration float64) {
			l.fire(Event{Type: EventTimeUpdate, Position: position, Duration: duration})
		},
		OnError: func(err error) { l.fire(Event{Type: EventError, Err: err}) },
	})
	return l
}

func (l *LocalAudio) isLoaded() bool {
	l.stateMutex.Lock()
	defer l.stateMutex.Unlock()
	return l.loaded
}

func (l *LocalAudio) Load(track models.Track) error {
	if !l.Ready() {
		return ErrNotReady
	}
	l.stateMutex.Lock()
	l.loaded = true
	l.stateMutex.Unlock()

	l.element.SetMedia(track.Link)
	return nil
}

func (l *LocalAudio) Play() {
	if l.isLoaded() {
		l.element.Play()
	}
}

func (l *LocalAudio) Pause() {
	if l.isLoaded() {
		l.element.Pause()
	}
}

func (l *LocalAudio) Stop() {
	if l.isLoaded() {
		l.element.Stop()
	}
}

func (l *LocalAudio) Seek(seconds float64) {
	if l.isLoaded() {
		l.element.PlayAt(seconds)
	}
}

func (l *LocalAudio) SetVolume(level int) {
	l.element.SetVolume(float64(level) / 100)
}

func (l *LocalAudio) Clear() {
	l.stateMutex.Lock()
	loaded := l.loaded
	l.loaded = false
	l.stateMutex.Unlock()

	if loaded {
		l.element.ClearMedia()
	}
}

func (l *LocalAudio) CurrentTime() float64 {
	if !l.isLoaded() {
		return 0
	}
	status := l.element.Status()
	if status.Src == "" {
		return 0
	}
	return status.CurrentTime
}

func (l *LocalAudio) Duration() float64 {
	if !l.isLoaded() {
		return 0
	}
	status := l.element.Status()
	if status.Src == "" {
		return 0
	}
	return status.Duration
}
