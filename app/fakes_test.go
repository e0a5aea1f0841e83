package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"billy/controller"
	"billy/database"
	"billy/events"
	"billy/models"
	"billy/player"
)

type fakePlayer struct {
	bus *events.Bus[player.Event]

	mutex   sync.Mutex
	current *models.Track
	calls   []string
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{bus: events.NewBus[player.Event]()}
}

func (p *fakePlayer) record(call string, track *models.Track) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if track != nil {
		t := *track
		p.current = &t
		call += ":" + t.ID
	}
	p.calls = append(p.calls, call)
}

func (p *fakePlayer) Load(track models.Track) error {
	p.record("load", &track)
	return nil
}

func (p *fakePlayer) LoadAndPlay(track models.Track) error {
	p.record("loadandplay", &track)
	return nil
}

func (p *fakePlayer) Play() { p.record("play", nil) }

func (p *fakePlayer) Clear() {
	p.mutex.Lock()
	p.current = nil
	p.calls = append(p.calls, "clear")
	p.mutex.Unlock()
}

func (p *fakePlayer) Listen(name player.EventType, handler func(player.Event)) func() {
	return p.bus.Listen(string(name), handler)
}

func (p *fakePlayer) Current() (models.Track, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.current == nil {
		return models.Track{}, false
	}
	return *p.current, true
}

func (p *fakePlayer) State() player.State {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return player.State{Track: p.current, Phase: player.PhaseStopped}
}

func (p *fakePlayer) Calls() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePlayer) emit(e player.Event) {
	p.bus.Publish(e)
}

type fakeGateway struct {
	token      string
	sessionErr error
	collection models.Collection
	fetchErr   error

	mutex     sync.Mutex
	persisted []models.Collection
}

func (g *fakeGateway) BootstrapSession(ctx context.Context) (string, error) {
	return g.token, g.sessionErr
}

func (g *fakeGateway) FetchPlaylists(ctx context.Context, token string) (models.Collection, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.collection.Clone(), nil
}

func (g *fakeGateway) PersistPlaylists(ctx context.Context, token string, collection models.Collection) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.persisted = append(g.persisted, collection)
}

func (g *fakeGateway) Token() string { return g.token }

func (g *fakeGateway) Persisted() []models.Collection {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return append([]models.Collection(nil), g.persisted...)
}

type fakeCatalog struct {
	search    models.TracksPage
	recommend models.TracksPage
	byID      map[string]models.Track
	err       error

	mutex       sync.Mutex
	recommended []string
	clicklogs   []models.Clicklog
	waveforms   []string
}

func (c *fakeCatalog) GetTracks(ctx context.Context, query, id string, offset int) (*models.TracksPage, error) {
	if c.err != nil {
		return nil, c.err
	}
	if id != "" {
		page := models.TracksPage{Results: []models.Track{}}
		if track, ok := c.byID[id]; ok {
			page.Results = append(page.Results, track)
		}
		return &page, nil
	}
	page := c.search
	page.Results = append([]models.Track(nil), c.search.Results...)
	return &page, nil
}

func (c *fakeCatalog) GetRecommendation(ctx context.Context, token, name string, offset int) (*models.TracksPage, error) {
	c.mutex.Lock()
	c.recommended = append(c.recommended, token+"/"+name)
	c.mutex.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	page := c.recommend
	page.Results = append([]models.Track(nil), c.recommend.Results...)
	return &page, nil
}

func (c *fakeCatalog) PostClicklog(ctx context.Context, token string, entry models.Clicklog) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.clicklogs = append(c.clicklogs, entry)
	return nil
}

func (c *fakeCatalog) GetWaveform(ctx context.Context, trackID string) (*models.Waveform, error) {
	c.mutex.Lock()
	c.waveforms = append(c.waveforms, trackID)
	c.mutex.Unlock()
	return &models.Waveform{Waveform: json.RawMessage(`[1,2]`)}, nil
}

func (c *fakeCatalog) GetInfo(ctx context.Context) (*models.ServerInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	info := &models.ServerInfo{Status: "ok", NumTracks: map[string]int{"youtube": 2, "jamendo": 3}}
	info.Sum()
	return info, nil
}

func (c *fakeCatalog) Recommended() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.recommended...)
}

type fakeHistory struct {
	mutex   sync.Mutex
	records []database.PlayRecord
}

func (h *fakeHistory) RecordPlay(r database.PlayRecord) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.records = append(h.records, r)
	return nil
}

type rig struct {
	app        *App
	player     *fakePlayer
	controller *controller.Controller
	gateway    *fakeGateway
	catalog    *fakeCatalog
	history    *fakeHistory

	eventsMutex sync.Mutex
	events      []Event
}

func newRig(t *testing.T, collection models.Collection) *rig {
	t.Helper()
	r := &rig{
		player:  newFakePlayer(),
		gateway: &fakeGateway{token: "tok", collection: collection},
		catalog: &fakeCatalog{byID: map[string]models.Track{}},
		history: &fakeHistory{},
	}
	r.controller = controller.NewController(r.player)
	r.app = New(Options{
		Player:     r.player,
		Controller: r.controller,
		Gateway:    r.gateway,
		Catalog:    r.catalog,
		History:    r.history,
	})
	r.app.Listen("", func(e Event) {
		r.eventsMutex.Lock()
		r.events = append(r.events, e)
		r.eventsMutex.Unlock()
	})
	t.Cleanup(r.app.Close)
	return r
}

func (r *rig) eventTypes() []EventType {
	r.eventsMutex.Lock()
	defer r.eventsMutex.Unlock()
	var types []EventType
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func track(id string) models.Track {
	return models.Track{ID: id, Title: "Track " + id, Link: "youtube:" + id}
}
