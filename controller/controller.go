package controller

import (
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"billy/events"
	"billy/models"
)

// None is the current index when nothing in the playlist is selected, for
// instance while a search result plays outside of it.
const None = -1

// Player is what the controller needs from the player adapter.
type Player interface {
	Load(track models.Track) error
	LoadAndPlay(track models.Track) error
	Play()
	Clear()
}

type EventType string

const (
	EventSet     EventType = "set"
	EventAdd     EventType = "add"
	EventRemove  EventType = "remove"
	EventReorder EventType = "reorder"
	EventPlay    EventType = "play"
	EventSelect  EventType = "select"
)

type Event struct {
	Type    EventType     `json:"type"`
	Index   int           `json:"index"`
	Current int           `json:"current"`
	Track   *models.Track `json:"track,omitempty"`
}

func (e Event) EventName() string { return string(e.Type) }

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Tracks         []models.Track `json:"tracks"`
	Current        int            `json:"current"`
	Repeat         bool           `json:"repeat"`
	LoopOnPrevious bool           `json:"loop_on_previous"`
}

// Controller owns the ordered tracks of the active playlist and the current
// index. Every mutation re-derives the index so it stays None or a valid
// position; the empty list keeps 0 as its current.
//
// Mutations compute under the lock and talk to the player and the bus only
// after releasing it.
type Controller struct {
	player Player
	bus    *events.Bus[Event]
	logger *log.Entry

	mutex          sync.Mutex
	tracks         []models.Track
	current        int
	repeat         bool
	loopOnPrevious bool
}

func NewController(player Player) *Controller {
	return &Controller{
		player:  player,
		bus:     events.NewBus[Event](),
		logger:  log.WithFields(log.Fields{"module": "controller"}),
		current: None,
	}
}

func (c *Controller) Listen(name EventType, handler func(Event)) func() {
	return c.bus.Listen(string(name), handler)
}

func (c *Controller) publish(e Event) {
	c.logger.WithFields(log.Fields{"event": e.Type, "index": e.Index, "current": e.Current}).Trace("playlist event")
	c.bus.Publish(e)
}

// normalize resolves a negative index from the end. The result may still be
// out of range.
func normalize(index, length int) int {
	if index < 0 {
		return length + index
	}
	return index
}

func (c *Controller) SetRepeat(enabled bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.repeat = enabled
}

func (c *Controller) Repeat() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.repeat
}

// SetLoopOnPrevious lets Previous wrap to the last track while repeat is on.
func (c *Controller) SetLoopOnPrevious(enabled bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.loopOnPrevious = enabled
}

func (c *Controller) Snapshot() Snapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Snapshot{
		Tracks:         append([]models.Track{}, c.tracks...),
		Current:        c.current,
		Repeat:         c.repeat,
		LoopOnPrevious: c.loopOnPrevious,
	}
}

// Tracks returns a copy of the sequence.
func (c *Controller) Tracks() []models.Track {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]models.Track{}, c.tracks...)
}

func (c *Controller) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.tracks)
}

// Current returns the current index, or None.
func (c *Controller) Current() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}

// SetPlaylist replaces the sequence. Nothing is selected afterwards.
func (c *Controller) SetPlaylist(tracks []models.Track) {
	c.mutex.Lock()
	c.tracks = append([]models.Track{}, tracks...)
	c.current = None
	c.mutex.Unlock()

	c.publish(Event{Type: EventSet, Index: None, Current: None})
}

// Add appends track. The first track of an empty playlist is selected but
// not played.
func (c *Controller) Add(track models.Track) {
	c.mutex.Lock()
	c.tracks = append(c.tracks, track)
	index := len(c.tracks) - 1
	current := c.current
	c.mutex.Unlock()

	c.publish(Event{Type: EventAdd, Index: index, Current: current, Track: &track})
	if index == 0 {
		c.Select(0)
	}
}

// Remove deletes the track at index. Out of range indexes are ignored.
func (c *Controller) Remove(index int) {
	c.mutex.Lock()
	index = normalize(index, len(c.tracks))
	if index < 0 || index >= len(c.tracks) {
		c.mutex.Unlock()
		return
	}

	removed := c.tracks[index]
	c.tracks = slices.Delete(c.tracks, index, index+1)

	clearPlayer, reselect := false, false
	switch {
	case len(c.tracks) == 0:
		clearPlayer = true
		c.current = 0
	case index == c.current:
		if index >= len(c.tracks) {
			c.current = len(c.tracks) - 1
		}
		clearPlayer, reselect = true, true
	case c.current != None && index < c.current:
		c.current--
	}
	current := c.current
	c.mutex.Unlock()

	if clearPlayer {
		c.player.Clear()
	}
	c.publish(Event{Type: EventRemove, Index: index, Current: current, Track: &removed})
	if reselect {
		c.Select(current)
	}
}

// Reposition moves the track at index to index-step, so a positive step
// moves it towards the front. Targets outside the playlist are ignored.
// The two guards adjusting current are not symmetric and are kept that way.
func (c *Controller) Reposition(index, step int) bool {
	c.mutex.Lock()
	target := index - step
	if index < 0 || index >= len(c.tracks) || target < 0 || target >= len(c.tracks) || step == 0 {
		c.mutex.Unlock()
		return false
	}

	item := c.tracks[index]
	c.tracks = slices.Insert(slices.Delete(c.tracks, index, index+1), target, item)

	if c.current != None {
		if c.current < index && c.current+step < index {
			c.current += step
		}
		if c.current < index && c.current+step > index {
			c.current -= step
		}
		// The guards can step past either end; keep current a valid index.
		c.current = max(0, min(c.current, len(c.tracks)-1))
	}
	current := c.current
	c.mutex.Unlock()

	c.publish(Event{Type: EventReorder, Index: target, Current: current, Track: &item})
	return true
}

// Select marks index as current and loads it without playing. An index
// outside the playlist resets current to 0.
func (c *Controller) Select(index int) {
	c.mutex.Lock()
	index = normalize(index, len(c.tracks))
	if index < 0 || index >= len(c.tracks) {
		c.current = 0
		c.mutex.Unlock()
		return
	}
	c.current = index
	track := c.tracks[index]
	c.mutex.Unlock()

	if err := c.player.Load(track); err != nil {
		c.logger.WithError(err).WithField("index", index).Warn("could not load selected track")
	}
	c.publish(Event{Type: EventSelect, Index: index, Current: index, Track: &track})
}

// Play selects index and plays it from the start. Negative indexes count
// from the end; others outside the playlist are ignored.
func (c *Controller) Play(index int) error {
	c.mutex.Lock()
	index = normalize(index, len(c.tracks))
	if index < 0 || index >= len(c.tracks) {
		c.mutex.Unlock()
		return nil
	}
	c.current = index
	track := c.tracks[index]
	c.mutex.Unlock()

	err := c.player.LoadAndPlay(track)
	if err != nil {
		c.logger.WithError(err).WithField("index", index).Warn("could not play track")
	}
	c.publish(Event{Type: EventPlay, Index: index, Current: index, Track: &track})
	return err
}

// Resume plays whatever the player currently holds.
func (c *Controller) Resume() {
	c.player.Play()
}

// Next advances with wraparound. Without repeat, wrapping back to the first
// track does not play it and the current index stays put.
func (c *Controller) Next() bool {
	c.mutex.Lock()
	index := 0
	if c.current+1 < len(c.tracks) {
		index = c.current + 1
	}
	play := len(c.tracks) > 0 && (c.repeat || index > 0)
	c.mutex.Unlock()

	if !play {
		return false
	}
	c.Play(index)
	return true
}

// Previous retreats with wraparound. Landing on the last track only plays
// with both repeat and loop on previous enabled.
func (c *Controller) Previous() bool {
	c.mutex.Lock()
	index := len(c.tracks) - 1
	if c.current-1 >= 0 {
		index = c.current - 1
	}
	play := len(c.tracks) > 0 && ((c.repeat && c.loopOnPrevious) || index < len(c.tracks)-1)
	c.mutex.Unlock()

	if !play {
		return false
	}
	c.Play(index)
	return true
}

// Detach drops the selection while a track from outside the playlist plays.
func (c *Controller) Detach() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.current = None
}

// Adopt makes index current without touching the player, used when the
// detached track that is playing gets added to the playlist.
func (c *Controller) Adopt(index int) {
	c.mutex.Lock()
	index = normalize(index, len(c.tracks))
	if index < 0 || index >= len(c.tracks) {
		c.mutex.Unlock()
		return
	}
	c.current = index
	track := c.tracks[index]
	c.mutex.Unlock()

	c.publish(Event{Type: EventSelect, Index: index, Current: index, Track: &track})
}
