// Package player normalizes the playback back-ends behind one Adapter.
package player

import (
	"errors"
	"strings"
	"sync"

	"billy/models"
)

// Kind names a back-end variant.
type Kind string

const (
	KindLocal      Kind = "local"
	KindYouTube    Kind = "youtube"
	KindSoundCloud Kind = "soundcloud"
)

// KindForLink picks the variant that plays link.
func KindForLink(link string) Kind {
	switch {
	case strings.HasPrefix(link, models.YoutubePrefix):
		return KindYouTube
	case strings.HasPrefix(link, models.SoundcloudPrefix):
		return KindSoundCloud
	default:
		return KindLocal
	}
}

var ErrNotReady = errors.New("back-end has not reported ready")

// Backend is the capability set every variant offers to the Adapter. Methods
// other than Load are no-ops when nothing is loaded. Times are in seconds.
type Backend interface {
	Kind() Kind
	// Attach sets the function the variant reports normalized events
	// through. A variant that is already ready reports it immediately.
	Attach(emit func(Event))
	Ready() bool
	Load(track models.Track) error
	Play()
	Pause()
	Stop()
	Seek(seconds float64)
	SetVolume(level int)
	Clear()
	CurrentTime() float64
	Duration() float64
}

// base carries the bookkeeping shared by the variants: the emit hook and the
// one-shot ready flag.
type base struct {
	kind  Kind
	mutex sync.Mutex
	emit  func(Event)
	ready bool
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) Ready() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.ready
}

func (b *base) Attach(emit func(Event)) {
	b.mutex.Lock()
	b.emit = emit
	ready := b.ready
	b.mutex.Unlock()

	if ready {
		emit(Event{Type: EventReady, Kind: b.kind})
	}
}

func (b *base) markReady() {
	b.mutex.Lock()
	if b.ready {
		b.mutex.Unlock()
		return
	}
	b.ready = true
	emit := b.emit
	b.mutex.Unlock()

	if emit != nil {
		emit(Event{Type: EventReady, Kind: b.kind})
	}
}

func (b *base) fire(event Event) {
	b.mutex.Lock()
	emit := b.emit
	b.mutex.Unlock()

	if emit != nil {
		event.Kind = b.kind
		emit(event)
	}
}
