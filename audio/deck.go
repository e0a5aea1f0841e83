package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Source turns a LoadJob into a PCM stream. *Loader is the ffmpeg backed one.
type Source interface {
	Load(ctx context.Context, job LoadJob) (*LoadResult, error)
}

// Deck drives a Source and a Player for one cued track at a time. Seeking and
// restarting are done by decoding again from the requested offset.
//
// Notifications from superseded runs are dropped, the rest are passed to the
// listener on a single goroutine, in order, with no Deck lock held.
type Deck struct {
	loader   Source
	player   *Player
	listener func(PlaybackNotification)
	internal chan PlaybackNotification
	done     chan struct{}
	logger   *log.Entry

	mutex      sync.Mutex
	job        *LoadJob
	generation int64
	state      DeckState
	duration   time.Duration
	cancel     context.CancelFunc
}

func NewDeck(loader Source, sinks SinkFactory, listener func(PlaybackNotification)) *Deck {
	internal := make(chan PlaybackNotification, 100)
	d := &Deck{
		loader:   loader,
		player:   NewPlayer(sinks, internal),
		listener: listener,
		internal: internal,
		done:     make(chan struct{}),
		logger:   log.WithFields(log.Fields{"module": "deck"}),
	}
	go d.pump()
	return d
}

// Close stops playback and the notification goroutine.
func (d *Deck) Close() {
	d.Clear()
	close(d.done)
}

func (d *Deck) pump() {
	for {
		select {
		case n := <-d.internal:
			d.dispatch(n)
		case <-d.done:
			return
		}
	}
}

func (d *Deck) dispatch(n PlaybackNotification) {
	d.mutex.Lock()
	if n.Generation != d.generation {
		d.mutex.Unlock()
		d.logger.WithFields(log.Fields{"event": n.Event, "generation": n.Generation}).Trace("dropping stale notification")
		return
	}
	switch n.Event {
	case PlaybackLoaded:
		if n.Duration > 0 {
			d.duration = n.Duration
		}
	case PlaybackStarted, PlaybackResumed:
		d.state = DeckPlaying
	case PlaybackPaused:
		d.state = DeckPaused
	case PlaybackCompleted:
		d.state = DeckEnded
	case PlaybackStopped, PlaybackLoadError, PlaybackError:
		if d.state != DeckUnstarted && d.state != DeckCued {
			d.state = DeckStopped
		}
	}
	if n.MediaID == "" && d.job != nil {
		n.MediaID = d.job.MediaID
	}
	d.mutex.Unlock()

	if d.listener != nil {
		d.listener(n)
	}
}

func (d *Deck) send(n PlaybackNotification) {
	select {
	case d.internal <- n:
	case <-d.done:
	}
}

// Cue replaces the current track without starting it.
func (d *Deck) Cue(job LoadJob) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.haltLocked()
	d.generation++
	d.job = &job
	d.duration = job.Duration
	d.state = DeckCued
}

// Start plays the cued track, resuming it when paused and restarting it from
// its cue offset when stopped or ended.
func (d *Deck) Start() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.job == nil {
		return
	}
	switch d.state {
	case DeckPaused:
		d.player.Resume()
		d.state = DeckPlaying
		return
	case DeckPlaying, DeckLoading:
		return
	}
	d.startLocked(d.job.Offset)
}

// StartAt plays the cued track from offset.
func (d *Deck) StartAt(offset time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.job == nil {
		return
	}
	d.startLocked(offset)
}

// SeekTo moves the play head. A running track is restarted at offset,
// otherwise the next Start begins there.
func (d *Deck) SeekTo(offset time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.job == nil {
		return
	}
	if offset < 0 {
		offset = 0
	}
	switch d.state {
	case DeckPlaying, DeckPaused, DeckLoading:
		d.startLocked(offset)
	default:
		d.job.Offset = offset
	}
}

func (d *Deck) Pause() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.state == DeckPlaying {
		d.player.Pause()
		d.state = DeckPaused
	}
}

// Stop ends playback but keeps the track cued.
func (d *Deck) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.job == nil {
		return
	}
	d.haltLocked()
	d.job.Offset = 0
	d.state = DeckStopped
}

// Clear stops playback and forgets the track.
func (d *Deck) Clear() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.haltLocked()
	d.generation++
	d.job = nil
	d.duration = 0
	d.state = DeckUnstarted
}

func (d *Deck) SetVolume(volume int) {
	d.player.SetVolume(volume)
}

func (d *Deck) State() DeckState {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.state
}

// Position is zero unless a track is playing or paused.
func (d *Deck) Position() time.Duration {
	d.mutex.Lock()
	state := d.state
	d.mutex.Unlock()

	switch state {
	case DeckPlaying, DeckPaused:
		return d.player.GetPosition()
	case DeckEnded:
		return d.Duration()
	}
	return 0
}

func (d *Deck) Duration() time.Duration {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.job == nil {
		return 0
	}
	return d.duration
}

func (d *Deck) haltLocked() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Deck) startLocked(offset time.Duration) {
	d.haltLocked()
	d.generation++
	generation := d.generation

	job := *d.job
	job.Offset = offset
	if d.duration > 0 {
		job.Duration = d.duration
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.state = DeckLoading

	go d.run(ctx, generation, job)
}

func (d *Deck) run(ctx context.Context, generation int64, job LoadJob) {
	d.send(PlaybackNotification{Event: PlaybackLoading, MediaID: job.MediaID, Generation: generation})

	result, err := d.loader.Load(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			d.send(PlaybackNotification{Event: PlaybackLoadCanceled, MediaID: job.MediaID, Generation: generation})
			return
		}
		d.send(PlaybackNotification{Event: PlaybackLoadError, MediaID: job.MediaID, Generation: generation, Error: err})
		return
	}
	result.Generation = generation

	d.send(PlaybackNotification{Event: PlaybackLoaded, MediaID: job.MediaID, Generation: generation, Duration: result.Duration})

	if err := d.player.Play(ctx, result); err != nil {
		d.logger.WithError(err).WithField("media_id", job.MediaID).Warn("playback ended with error")
	}
}
