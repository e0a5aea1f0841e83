package youtube

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"billy/audio"
	"billy/player"
)

// YouTube iframe error codes reported through OnError.
const (
	ErrorCodeHTML5    = 5
	ErrorCodeNotFound = 100
)

// Widget plays YouTube videos locally: the watch page is resolved with
// yt-dlp and decoded through a Deck. It reports the same numeric states the
// iframe player does.
type Widget struct {
	deck   *audio.Deck
	logger *log.Entry

	mutex    sync.Mutex
	handlers player.YouTubeHandlers
	state    int
	videoID  string
}

// NewWidget plays through source, which must accept watch page URLs.
func NewWidget(source audio.Source, sinks audio.SinkFactory) *Widget {
	w := &Widget{
		state:  player.YouTubeUnstarted,
		logger: log.WithFields(log.Fields{"module": "youtube-widget"}),
	}
	w.deck = audio.NewDeck(source, sinks, w.onNotification)
	return w
}

func (w *Widget) Bind(handlers player.YouTubeHandlers) {
	w.mutex.Lock()
	w.handlers = handlers
	w.mutex.Unlock()

	if handlers.OnReady != nil {
		handlers.OnReady()
	}
}

func (w *Widget) Close() {
	w.deck.Close()
}

// setState records state and reports it when it changed. Cueing is always
// reported.
func (w *Widget) setState(state int) {
	w.mutex.Lock()
	changed := w.state != state || state == player.YouTubeCued
	w.state = state
	onChange := w.handlers.OnStateChange
	w.mutex.Unlock()

	if changed && onChange != nil {
		onChange(state)
	}
}

func (w *Widget) onNotification(n audio.PlaybackNotification) {
	switch n.Event {
	case audio.PlaybackLoading:
		w.setState(player.YouTubeBuffering)
	case audio.PlaybackStarted, audio.PlaybackResumed:
		w.setState(player.YouTubePlaying)
	case audio.PlaybackPaused:
		w.setState(player.YouTubePaused)
	case audio.PlaybackCompleted:
		w.setState(player.YouTubeEnded)
	case audio.PlaybackLoadError, audio.PlaybackError:
		code := ErrorCodeHTML5
		if n.Event == audio.PlaybackLoadError {
			code = ErrorCodeNotFound
		}
		w.logger.WithError(n.Error).WithField("video_id", n.MediaID).Warn("video failed")

		w.mutex.Lock()
		w.state = player.YouTubeUnstarted
		onError := w.handlers.OnError
		w.mutex.Unlock()
		if onError != nil {
			onError(code)
		}
	}
}

func (w *Widget) CueVideoByID(id string) {
	w.mutex.Lock()
	w.videoID = id
	w.mutex.Unlock()

	w.deck.Cue(audio.LoadJob{URL: WatchURL(id), MediaID: id})
	w.setState(player.YouTubeCued)
}

func (w *Widget) PlayVideo() {
	w.deck.Start()
}

func (w *Widget) PauseVideo() {
	w.deck.Pause()
}

// StopVideo keeps the video cued, the player reads as unstarted again.
func (w *Widget) StopVideo() {
	w.deck.Stop()
	w.mutex.Lock()
	w.state = player.YouTubeUnstarted
	w.mutex.Unlock()
}

func (w *Widget) ClearVideo() {
	w.deck.Clear()
	w.mutex.Lock()
	w.state = player.YouTubeUnstarted
	w.videoID = ""
	w.mutex.Unlock()
}

func (w *Widget) SeekTo(seconds float64) {
	w.deck.SeekTo(secondsToDuration(seconds))
}

func (w *Widget) SetVolume(level int) {
	w.deck.SetVolume(level)
}

func (w *Widget) GetCurrentTime() float64 {
	return w.deck.Position().Seconds()
}

func (w *Widget) GetDuration() float64 {
	return w.deck.Duration().Seconds()
}

func (w *Widget) GetPlayerState() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.state
}

// VideoID is the cued video, empty when cleared.
func (w *Widget) VideoID() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.videoID
}
