package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billy/api"
	"billy/app"
	"billy/controller"
	"billy/gateway"
	"billy/models"
	"billy/player"
)

// billyServer fakes the remote API with an in-memory playlist store.
type billyServer struct {
	mutex     sync.Mutex
	playlists map[string]models.WirePlaylist
	clicklogs []models.Clicklog
}

func (s *billyServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "fresh"}`))
	})
	mux.HandleFunc("/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "unknown session"}`))
			return
		}
		if r.Method == http.MethodPost {
			var posted map[string]models.WirePlaylist
			json.NewDecoder(r.Body).Decode(&posted)
			s.mutex.Lock()
			s.playlists = posted
			s.mutex.Unlock()
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"mix": {"name": "mix", "description": "", "tracks": []}}`))
	})
	mux.HandleFunc("/tracks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"offset": 0, "page_size": 10, "total": 1, "results": [{"_id": "t1", "title": "One", "link": "http://media.local/1.mp3"}]}`))
	})
	mux.HandleFunc("/recommend", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"offset": 0, "page_size": 10, "total": 0, "results": []}`))
	})
	mux.HandleFunc("/clicklog", func(w http.ResponseWriter, r *http.Request) {
		var entry models.Clicklog
		json.NewDecoder(r.Body).Decode(&entry)
		s.mutex.Lock()
		s.clicklogs = append(s.clicklogs, entry)
		s.mutex.Unlock()
	})
	mux.HandleFunc("/waveform", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"waveform": [0, 1]}`))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "num_tracks": {"jamendo": 10, "youtube": 5}}`))
	})
	return mux
}

func (s *billyServer) stored() map[string]models.WirePlaylist {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.playlists
}

// fakeElement plays instantly and reports synchronously.
type fakeElement struct {
	mutex    sync.Mutex
	handlers player.MediaHandlers
	src      string
	paused   bool
}

func (e *fakeElement) Bind(h player.MediaHandlers) {
	e.handlers = h
	h.OnReady()
}

func (e *fakeElement) SetMedia(url string) {
	e.mutex.Lock()
	e.src = url
	e.paused = true
	e.mutex.Unlock()
	e.handlers.OnLoadStart()
}

func (e *fakeElement) Play() {
	e.mutex.Lock()
	e.paused = false
	e.mutex.Unlock()
	e.handlers.OnPlay()
}

func (e *fakeElement) PlayAt(seconds float64) { e.Play() }

func (e *fakeElement) Pause() {
	e.mutex.Lock()
	e.paused = true
	e.mutex.Unlock()
	e.handlers.OnPause()
}

func (e *fakeElement) Stop() { e.Pause() }

func (e *fakeElement) ClearMedia() {
	e.mutex.Lock()
	e.src = ""
	e.mutex.Unlock()
}

func (e *fakeElement) SetVolume(ratio float64) {}

func (e *fakeElement) Status() player.MediaStatus {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return player.MediaStatus{Src: e.src, CurrentTime: 12, Duration: 125, Paused: e.paused}
}

func (e *fakeElement) Src() string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.src
}

type testEnv struct {
	router     *gin.Engine
	remote     *billyServer
	gateway    *gateway.Gateway
	app        *app.App
	controller *controller.Controller
	adapter    *player.Adapter
	element    *fakeElement
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	remote := &billyServer{}
	server := httptest.NewServer(remote.handler())
	t.Cleanup(server.Close)

	client := api.NewClient(server.URL, time.Second)
	gw := gateway.New(client, nil, "token8080", "tok")
	element := &fakeElement{}
	adapter := player.NewAdapter(80, player.NewLocalAudio(element))
	playlist := controller.NewController(adapter)
	application := app.New(app.Options{
		Player:     adapter,
		Controller: playlist,
		Gateway:    gw,
		Catalog:    client,
	})
	t.Cleanup(func() {
		application.Close()
		gw.Wait()
	})
	require.NoError(t, application.Start(context.Background()))

	return &testEnv{
		router:     NewManager(application, adapter, playlist).Router(),
		remote:     remote,
		gateway:    gw,
		app:        application,
		controller: playlist,
		adapter:    adapter,
		element:    element,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealthAndState(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do("GET", "/health", "").Code)

	rec := env.do("GET", "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state struct {
		Active       string `json:"active"`
		PositionText string `json:"position_text"`
		Player       struct {
			Phase  string `json:"phase"`
			Volume int    `json:"volume"`
			Ready  bool   `json:"ready"`
		} `json:"player"`
	}
	decode(t, rec, &state)
	assert.Equal(t, "mix", state.Active)
	assert.Equal(t, "00:00", state.PositionText)
	assert.Equal(t, "stopped", state.Player.Phase)
	assert.Equal(t, 80, state.Player.Volume)
	assert.True(t, state.Player.Ready)
}

func TestSearchAddAndPlay(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/search?query=one", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.TracksPage
	decode(t, rec, &page)
	require.Len(t, page.Results, 1)

	rec = env.do("POST", "/playlist/tracks", `{"track_id": "t1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.controller.Len())

	env.gateway.Wait()
	require.Contains(t, env.remote.stored(), "mix")
	assert.Equal(t, []string{"t1"}, env.remote.stored()["mix"].Tracks)

	rec = env.do("POST", "/playlist/tracks/0/play", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://media.local/1.mp3", env.element.Src())

	rec = env.do("GET", "/state", "")
	var state struct {
		PositionText string `json:"position_text"`
		DurationText string `json:"duration_text"`
		Player       struct {
			Phase string `json:"phase"`
		} `json:"player"`
	}
	decode(t, rec, &state)
	assert.Equal(t, "playing", state.Player.Phase)
	assert.Equal(t, "00:12", state.PositionText)
	assert.Equal(t, "02:05", state.DurationText)

	assert.Equal(t, http.StatusOK, env.do("POST", "/player/pause", "").Code)
	assert.Equal(t, player.PhasePaused, env.adapter.State().Phase)
	assert.Equal(t, http.StatusOK, env.do("POST", "/player/play", "").Code)
	assert.Equal(t, player.PhasePlaying, env.adapter.State().Phase)
}

func TestPlayerControls(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do("POST", "/player/volume", `{"level": 150}`).Code)
	assert.Equal(t, 100, env.adapter.Volume())
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/player/volume", `{}`).Code)

	assert.Equal(t, http.StatusOK, env.do("POST", "/player/seek", `{"position": 0}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/player/seek", `nope`).Code)

	assert.Equal(t, http.StatusOK, env.do("POST", "/player/repeat", `{"enabled": true, "loop_on_previous": true}`).Code)
	assert.True(t, env.controller.Repeat())
	assert.True(t, env.controller.Snapshot().LoopOnPrevious)

	rec := env.do("POST", "/player/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"played": false}`, rec.Body.String())
}

func TestPlaylistRoutes(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusConflict, env.do("POST", "/playlists", `{"name": "mix"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/playlists", `{"description": "no name"}`).Code)

	rec := env.do("POST", "/playlists", `{"name": "two", "functions": ["party"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"active": "two"}`, rec.Body.String())

	rec = env.do("POST", "/playlists/mix/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mix", env.app.ActivePlaylist())
	assert.Equal(t, http.StatusNotFound, env.do("POST", "/playlists/zzz/activate", "").Code)

	rec = env.do("DELETE", "/playlists/two", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do("DELETE", "/playlists/mix", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot delete the last playlist")

	rec = env.do("GET", "/alerts", "")
	var alerts []app.Alert
	decode(t, rec, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, "You should have at least one playlist. Please create a new one before deleting this one.", alerts[0].Message)

	assert.Equal(t, http.StatusOK, env.do("DELETE", "/alerts/"+alerts[0].ID, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do("DELETE", "/alerts/"+alerts[0].ID, "").Code)
}

func TestPlaylistTrackRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.do("GET", "/search?query=one", "")
	env.do("POST", "/playlist/tracks", `{"track_id": "t1"}`)

	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/playlist/tracks/abc/move", `{"step": 1}`).Code)

	rec := env.do("POST", "/playlist/tracks/0/move", `{"step": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var moved struct {
		Moved bool `json:"moved"`
	}
	decode(t, rec, &moved)
	assert.False(t, moved.Moved)

	assert.Equal(t, http.StatusNotFound, env.do("POST", "/playlist/tracks", `{"track_id": "missing"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do("POST", "/tracks/missing/play", "").Code)

	rec = env.do("DELETE", "/playlist/tracks/-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.controller.Len())
}

func TestImportExportAndInfo(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("POST", "/import", `{"mix": {"name": "mix", "tracks": []}, "new": {"name": "new", "tracks": []}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported": ["new"]}`, rec.Body.String())
	assert.Len(t, env.app.Alerts(), 1)

	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/import", `{`).Code)

	rec = env.do("GET", "/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "playlists.json")
	var exported models.Collection
	decode(t, rec, &exported)
	assert.Equal(t, []string{"mix", "new"}, exported.Names())

	rec = env.do("GET", "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.ServerInfo
	decode(t, rec, &info)
	assert.Equal(t, 15, info.TotalTracks)

	assert.Equal(t, http.StatusOK, env.do("GET", "/metrics", "").Code)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	waitFor := func(event string) {
		t.Helper()
		for lines.Scan() {
			if strings.TrimSpace(lines.Text()) == "event:"+event {
				return
			}
		}
		t.Fatalf("stream ended before %s", event)
	}

	waitFor("state")
	require.NoError(t, env.app.CreatePlaylist(context.Background(), "streamed", "", nil))
	waitFor("app.active")
}
