package player

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"billy/events"
	"billy/models"
)

// Adapter routes every track to the variant its link selects and re-emits
// the variants' events on one bus. Events from a variant that does not hold
// the current track are dropped, except for ready.
type Adapter struct {
	bus      *events.Bus[Event]
	backends map[Kind]Backend
	logger   *log.Entry

	mutex      sync.Mutex
	readySeen  map[Kind]bool
	readyFired bool
	current    *models.Track
	active     Kind
	phase      Phase
	volume     int
}

func NewAdapter(volume int, backends ...Backend) *Adapter {
	a := &Adapter{
		bus:       events.NewBus[Event](),
		backends:  make(map[Kind]Backend, len(backends)),
		logger:    log.WithFields(log.Fields{"module": "player"}),
		readySeen: make(map[Kind]bool),
		phase:     PhaseStopped,
		volume:    clampVolume(volume),
	}
	for _, b := range backends {
		a.backends[b.Kind()] = b
	}
	for _, b := range backends {
		b.SetVolume(a.volume)
		kind := b.Kind()
		b.Attach(func(e Event) { a.handle(kind, e) })
	}
	return a
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}

// Listen subscribes to one event type, or to all of them with "".
func (a *Adapter) Listen(name EventType, handler func(Event)) func() {
	return a.bus.Listen(string(name), handler)
}

func (a *Adapter) handle(kind Kind, e Event) {
	if e.Type == EventReady {
		a.mutex.Lock()
		a.readySeen[kind] = true
		fire := !a.readyFired && len(a.readySeen) == len(a.backends)
		if fire {
			a.readyFired = true
		}
		a.mutex.Unlock()

		a.logger.WithField("kind", kind).Debug("back-end ready")
		if fire {
			a.bus.Publish(Event{Type: EventReady})
		}
		return
	}

	a.mutex.Lock()
	if kind != a.active || a.current == nil {
		a.mutex.Unlock()
		a.logger.WithFields(log.Fields{"kind": kind, "event": e.Type}).Trace("dropping event from inactive back-end")
		return
	}
	switch e.Type {
	case EventLoadStart:
		a.phase = PhaseLoading
	case EventPlaying:
		a.phase = PhasePlaying
	case EventPaused:
		a.phase = PhasePaused
	case EventEnded, EventError:
		a.phase = PhaseStopped
	}
	track := *a.current
	a.mutex.Unlock()

	e.Track = &track
	if e.Err != nil && e.Message == "" {
		e.Message = e.Err.Error()
	}
	if e.Type == EventError {
		a.logger.WithFields(log.Fields{"kind": kind, "track": track.ID}).WithError(e.Err).Warn("playback error")
	}
	a.bus.Publish(e)
}

// IsReady reports whether every back-end has reported ready.
func (a *Adapter) IsReady() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.readyFired
}

func (a *Adapter) activeBackend() (Backend, *models.Track) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.current == nil {
		return nil, nil
	}
	track := *a.current
	return a.backends[a.active], &track
}

// Load hands track to its variant without starting it. Whatever was loaded
// before is cleared first, whichever variant held it.
func (a *Adapter) Load(track models.Track) error {
	a.Clear()
	kind := KindForLink(track.Link)

	a.mutex.Lock()
	backend, ok := a.backends[kind]
	if !ok {
		a.mutex.Unlock()
		return fmt.Errorf("no %s back-end registered for %q", kind, track.Link)
	}
	a.current = &track
	a.active = kind
	a.phase = PhaseStopped
	a.mutex.Unlock()

	a.logger.WithFields(log.Fields{"track": track.ID, "kind": kind}).Debug("loading track")
	if err := backend.Load(track); err != nil {
		a.bus.Publish(Event{Type: EventError, Kind: kind, Track: &track, Err: err, Message: err.Error()})
		return fmt.Errorf("loading %s: %w", track.ID, err)
	}
	return nil
}

func (a *Adapter) Play() {
	if b, _ := a.activeBackend(); b != nil {
		b.Play()
	}
}

func (a *Adapter) Pause() {
	if b, _ := a.activeBackend(); b != nil {
		b.Pause()
	}
}

func (a *Adapter) Stop() {
	b, _ := a.activeBackend()
	if b == nil {
		return
	}
	b.Stop()

	a.mutex.Lock()
	a.phase = PhaseStopped
	a.mutex.Unlock()
}

// Seek moves to seconds into the current track.
func (a *Adapter) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if b, _ := a.activeBackend(); b != nil {
		b.Seek(seconds)
	}
}

// Clear unloads the current track from its variant.
func (a *Adapter) Clear() {
	a.mutex.Lock()
	var backend Backend
	if a.current != nil {
		backend = a.backends[a.active]
	}
	a.current = nil
	a.active = ""
	a.phase = PhaseStopped
	a.mutex.Unlock()

	if backend != nil {
		backend.Clear()
	}
}

// LoadAndPlay clears whatever is loaded, loads track and plays it.
func (a *Adapter) LoadAndPlay(track models.Track) error {
	a.Clear()
	if err := a.Load(track); err != nil {
		return err
	}
	a.Play()
	return nil
}

// SetVolume applies level to every variant so switching tracks keeps it.
func (a *Adapter) SetVolume(level int) {
	level = clampVolume(level)

	a.mutex.Lock()
	a.volume = level
	backends := make([]Backend, 0, len(a.backends))
	for _, b := range a.backends {
		backends = append(backends, b)
	}
	a.mutex.Unlock()

	for _, b := range backends {
		b.SetVolume(level)
	}
}

func (a *Adapter) Volume() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.volume
}

// CurrentTime is 0 when nothing is loaded or the variant is not ready.
func (a *Adapter) CurrentTime() float64 {
	b, _ := a.activeBackend()
	if b == nil || !b.Ready() {
		return 0
	}
	return b.CurrentTime()
}

// Duration is 0 when nothing is loaded or the variant is not ready.
func (a *Adapter) Duration() float64 {
	b, _ := a.activeBackend()
	if b == nil || !b.Ready() {
		return 0
	}
	return b.Duration()
}

// Current returns the loaded track, if any.
func (a *Adapter) Current() (models.Track, bool) {
	_, track := a.activeBackend()
	if track == nil {
		return models.Track{}, false
	}
	return *track, true
}

func (a *Adapter) State() State {
	a.mutex.Lock()
	state := State{
		Kind:   a.active,
		Phase:  a.phase,
		Volume: a.volume,
		Ready:  a.readyFired,
	}
	if a.current != nil {
		track := *a.current
		state.Track = &track
	}
	a.mutex.Unlock()

	state.Position = a.CurrentTime()
	state.Duration = a.Duration()
	return state
}
