// Package soundcloud plays SoundCloud tracks locally behind the widget
// interface the player adapter drives.
package soundcloud

import (
	"context"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"billy/audio"
	"billy/player"
)

// ProgressInterval is how often a playing track reports its position.
var ProgressInterval = 250 * time.Millisecond

// StreamResolver maps api.soundcloud.com track URLs to their stream
// endpoint when a client id is configured, and defers to fallback (yt-dlp)
// otherwise.
func StreamResolver(clientID string, fallback audio.Resolver) audio.Resolver {
	return func(ctx context.Context, trackURL string) (string, error) {
		if clientID == "" || !strings.HasPrefix(trackURL, player.SoundCloudTrackURL) {
			return fallback(ctx, trackURL)
		}
		return strings.TrimSuffix(trackURL, "/") + "/stream?client_id=" + url.QueryEscape(clientID), nil
	}
}

// Widget mirrors the SoundCloud widget API over a Deck. Positions are in
// milliseconds.
type Widget struct {
	deck   *audio.Deck
	logger *log.Entry

	mutex    sync.Mutex
	handlers player.SoundCloudHandlers
	url      string
	interval time.Duration
	stopTick chan struct{}
}

func NewWidget(source audio.Source, sinks audio.SinkFactory) *Widget {
	w := &Widget{
		interval: ProgressInterval,
		logger:   log.WithFields(log.Fields{"module": "soundcloud-widget"}),
	}
	w.deck = audio.NewDeck(source, sinks, w.onNotification)
	return w
}

func (w *Widget) Bind(handlers player.SoundCloudHandlers) {
	w.mutex.Lock()
	w.handlers = handlers
	w.mutex.Unlock()

	if handlers.OnReady != nil {
		handlers.OnReady()
	}
}

func (w *Widget) Close() {
	w.stopTicker()
	w.deck.Close()
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

func (w *Widget) progress() {
	w.mutex.Lock()
	onProgress := w.handlers.OnPlayProgress
	w.mutex.Unlock()

	if onProgress != nil {
		onProgress(ms(w.deck.Position()), ms(w.deck.Duration()))
	}
}

func (w *Widget) onNotification(n audio.PlaybackNotification) {
	w.mutex.Lock()
	h := w.handlers
	w.mutex.Unlock()

	switch n.Event {
	case audio.PlaybackStarted, audio.PlaybackResumed:
		w.startTicker()
		if h.OnPlay != nil {
			h.OnPlay()
		}
	case audio.PlaybackPaused:
		w.stopTicker()
		if h.OnPause != nil {
			h.OnPause()
		}
	case audio.PlaybackCompleted:
		w.stopTicker()
		if h.OnFinish != nil {
			h.OnFinish()
		}
	case audio.PlaybackLoadError, audio.PlaybackError:
		w.stopTicker()
		w.logger.WithError(n.Error).WithField("track", n.MediaID).Warn("track failed")
		if h.OnError != nil {
			h.OnError(n.Error)
		}
	}
}

// Load cues trackURL and calls onLoaded once it is cued. The widget reports
// a progress of zero for a freshly loaded track.
func (w *Widget) Load(trackURL string, onLoaded func()) {
	w.mutex.Lock()
	w.url = trackURL
	w.mutex.Unlock()

	w.stopTicker()
	id := strings.TrimPrefix(trackURL, player.SoundCloudTrackURL)
	w.deck.Cue(audio.LoadJob{URL: trackURL, MediaID: id})

	if onLoaded != nil {
		onLoaded()
	}
	w.progress()
}

func (w *Widget) Play() {
	w.deck.Start()
}

func (w *Widget) Pause() {
	w.deck.Pause()
}

func (w *Widget) SeekTo(positionMs float64) {
	offset := time.Duration(positionMs) * time.Millisecond
	if w.deck.State() == audio.DeckPaused && offset == 0 {
		// stop() is pause then seekTo(0); keep the track paused at the start.
		w.stopTicker()
		w.deck.Stop()
		return
	}
	w.deck.SeekTo(offset)
}

func (w *Widget) SetVolume(ratio float64) {
	w.deck.SetVolume(int(math.Round(ratio * 100)))
}

// URL is the loaded track resource.
func (w *Widget) URL() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.url
}

func (w *Widget) startTicker() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	w.stopTick = stop
	interval := w.interval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if w.deck.Position() > 0 {
					w.progress()
				}
			}
		}
	}()
}

func (w *Widget) stopTicker() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.stopTick != nil {
		close(w.stopTick)
		w.stopTick = nil
	}
}
