// Package app is the application state: the named playlist collection, the
// active playlist, cached search and recommendation results and the alert
// queue, tied to the player adapter and the playlist controller.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"billy/api"
	"billy/controller"
	"billy/database"
	"billy/events"
	"billy/gateway"
	"billy/metrics"
	"billy/models"
	"billy/player"
)

var (
	ErrPlaylistExists   = errors.New("playlist already exists")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrLastPlaylist     = errors.New("cannot delete the last playlist")
	ErrInvalidName      = errors.New("playlist name must not be empty")
	ErrNoActivePlaylist = errors.New("no active playlist")
	ErrUnknownTrack     = errors.New("track is not in the result cache")
	ErrUnreadable       = errors.New("could not read playlists document")
)

const (
	lastPlaylistMessage = "You should have at least one playlist. Please create a new one before deleting this one."
	unreadableMessage   = "Could not read file!"
)

// Player is what the application needs from the player adapter.
type Player interface {
	controller.Player
	Listen(name player.EventType, handler func(player.Event)) func()
	Current() (models.Track, bool)
	State() player.State
}

// Gateway covers session handling and playlist storage on the server.
type Gateway interface {
	BootstrapSession(ctx context.Context) (string, error)
	FetchPlaylists(ctx context.Context, token string) (models.Collection, error)
	PersistPlaylists(ctx context.Context, token string, collection models.Collection)
	Token() string
}

// Catalog covers the read side of the server API.
type Catalog interface {
	GetTracks(ctx context.Context, query, id string, offset int) (*models.TracksPage, error)
	GetRecommendation(ctx context.Context, token, name string, offset int) (*models.TracksPage, error)
	PostClicklog(ctx context.Context, token string, entry models.Clicklog) error
	GetWaveform(ctx context.Context, trackID string) (*models.Waveform, error)
	GetInfo(ctx context.Context) (*models.ServerInfo, error)
}

type History interface {
	RecordPlay(record database.PlayRecord) error
}

type EventType string

const (
	EventCreatePlaylist EventType = "create-playlist"
	EventPlaylists      EventType = "playlists"
	EventActive         EventType = "active"
	EventResults        EventType = "results"
	EventAlert          EventType = "alert"
	EventWaveform       EventType = "waveform"
	EventFatal          EventType = "fatal"
)

type Event struct {
	Type     EventType          `json:"type"`
	Playlist string             `json:"playlist,omitempty"`
	Tab      string             `json:"tab,omitempty"`
	TrackID  string             `json:"track_id,omitempty"`
	Page     *models.TracksPage `json:"page,omitempty"`
	Alert    *Alert             `json:"alert,omitempty"`
	Waveform json.RawMessage    `json:"waveform,omitempty"`
}

func (e Event) EventName() string { return string(e.Type) }

// Options are the collaborators of an App. History may be nil.
type Options struct {
	Player     Player
	Controller *controller.Controller
	Gateway    Gateway
	Catalog    Catalog
	History    History
	// AlertCooldown suppresses identical alerts; zero disables it.
	AlertCooldown time.Duration
}

// App must not call into the controller or the player while holding its
// mutex: both publish synchronously and App listens to them.
type App struct {
	player     Player
	controller *controller.Controller
	gateway    Gateway
	catalog    Catalog
	history    History
	bus        *events.Bus[Event]
	logger     *log.Entry
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	unlisten   []func()
	throttle   *throttle

	mutex        sync.Mutex
	playlists    models.Collection
	active       string
	results      map[string]resultPage
	alerts       []Alert
	waveformFor  string
	recordedFor  string
	lastWaveform json.RawMessage
}

func New(opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		player:     opts.Player,
		controller: opts.Controller,
		gateway:    opts.Gateway,
		catalog:    opts.Catalog,
		history:    opts.History,
		bus:        events.NewBus[Event](),
		logger:     log.WithFields(log.Fields{"module": "app"}),
		ctx:        ctx,
		cancel:     cancel,
		playlists:  models.Collection{},
		results:    map[string]resultPage{},
		throttle:   newThrottle(opts.AlertCooldown),
	}

	a.unlisten = append(a.unlisten,
		a.player.Listen("", a.onPlayerEvent),
		a.controller.Listen(controller.EventAdd, a.onPlaylistChanged),
		a.controller.Listen(controller.EventRemove, a.onPlaylistChanged),
		a.controller.Listen(controller.EventReorder, a.onPlaylistChanged),
	)
	return a
}

func (a *App) Listen(name EventType, handler func(Event)) func() {
	return a.bus.Listen(string(name), handler)
}

func (a *App) publish(e Event) {
	a.bus.Publish(e)
}

// Close unsubscribes from the player and controller and waits for
// background requests.
func (a *App) Close() {
	for _, unlisten := range a.unlisten {
		unlisten()
	}
	a.cancel()
	a.wg.Wait()
}

func (a *App) goBackground(f func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		f(a.ctx)
	}()
}

// Start bootstraps the session and loads the collection. An empty collection
// asks for a first playlist and selects nothing.
func (a *App) Start(ctx context.Context) error {
	span := sentry.StartSpan(ctx, "app.start")
	defer span.Finish()
	ctx = span.Context()

	token, err := a.gateway.BootstrapSession(ctx)
	if err != nil {
		a.alert(AlertError, api.AlertMessage(err))
		return err
	}

	collection, err := a.gateway.FetchPlaylists(ctx, token)
	if errors.Is(err, gateway.ErrSessionNotFound) {
		alert := a.alert(AlertError, gateway.ErrSessionNotFound.Error())
		a.publish(Event{Type: EventFatal, Alert: &alert})
		return err
	}
	if err != nil {
		a.alert(AlertError, api.AlertMessage(err))
		return err
	}

	a.mutex.Lock()
	a.playlists = models.Collection{}
	for name, p := range collection {
		if p == nil {
			continue
		}
		p.Name = name
		a.playlists[name] = p
	}
	names := a.playlists.Names()
	metrics.Playlists.Set(float64(len(names)))
	a.mutex.Unlock()

	a.publish(Event{Type: EventPlaylists})
	if len(names) == 0 {
		a.publish(Event{Type: EventCreatePlaylist})
		return nil
	}
	return a.ChangePlaylist(ctx, names[0])
}

func (a *App) onPlayerEvent(e player.Event) {
	kind := string(e.Kind)
	metrics.PlayerEvents.WithLabelValues(string(e.Type), kind).Inc()

	switch e.Type {
	case player.EventLoadStart:
		if e.Track != nil {
			a.fetchWaveform(e.Track.ID)
		}
	case player.EventPlaying:
		if e.Track != nil {
			a.recordPlay(*e.Track, e.Kind, e.Duration)
		}
	case player.EventEnded:
		a.mutex.Lock()
		a.recordedFor = ""
		a.mutex.Unlock()
		if a.controller.Current() != controller.None {
			a.controller.Next()
		}
	case player.EventError:
		title := "track"
		if e.Track != nil && e.Track.Title != "" {
			title = e.Track.Title
		}
		a.alert(AlertWarning, "Could not play "+title+" ("+e.Message+")")
	}
}

func (a *App) recordPlay(track models.Track, kind player.Kind, duration float64) {
	inPlaylist := a.controller.Current() != controller.None

	a.mutex.Lock()
	if a.recordedFor == track.ID {
		a.mutex.Unlock()
		return
	}
	a.recordedFor = track.ID
	playlist := ""
	if inPlaylist {
		playlist = a.active
	}
	a.mutex.Unlock()

	metrics.TracksPlayed.WithLabelValues(string(kind)).Inc()
	if a.history == nil {
		return
	}
	err := a.history.RecordPlay(database.PlayRecord{
		PlaylistName:    playlist,
		TrackID:         track.ID,
		Title:           track.Title,
		Artist:          track.Artist,
		Link:            track.Link,
		DurationSeconds: int(duration),
	})
	if err != nil {
		a.logger.WithError(err).Warn("Failed to record play")
	}
}

// fetchWaveform requests the waveform of trackID once per track change.
func (a *App) fetchWaveform(trackID string) {
	a.mutex.Lock()
	if a.waveformFor == trackID {
		a.mutex.Unlock()
		return
	}
	a.waveformFor = trackID
	a.lastWaveform = nil
	a.mutex.Unlock()

	a.goBackground(func(ctx context.Context) {
		waveform, err := a.catalog.GetWaveform(ctx, trackID)
		if err != nil {
			a.logger.WithError(err).WithField("track", trackID).Debug("No waveform")
			return
		}

		a.mutex.Lock()
		stale := a.waveformFor != trackID
		if !stale {
			a.lastWaveform = waveform.Waveform
		}
		a.mutex.Unlock()
		if !stale {
			a.publish(Event{Type: EventWaveform, TrackID: trackID, Waveform: waveform.Waveform})
		}
	})
}

// Waveform returns the waveform of the current track, if it has arrived.
func (a *App) Waveform() (string, json.RawMessage) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.waveformFor, a.lastWaveform
}

// Info returns the server status with the track counts summed.
func (a *App) Info(ctx context.Context) (*models.ServerInfo, error) {
	info, err := a.catalog.GetInfo(ctx)
	if err != nil {
		a.alert(AlertError, api.AlertMessage(err))
		return nil, err
	}
	return info, nil
}

// Status is the snapshot served to the UI.
type Status struct {
	Player   player.State        `json:"player"`
	Playlist controller.Snapshot `json:"playlist"`
	Active   string              `json:"active"`
}

func (a *App) Status() Status {
	status := Status{
		Player:   a.player.State(),
		Playlist: a.controller.Snapshot(),
	}
	a.mutex.Lock()
	status.Active = a.active
	a.mutex.Unlock()
	return status
}
