// Package handlers is the local HTTP control surface of the daemon. Any UI
// drives the player and the playlists through it and follows state changes
// on the /events stream.
package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"billy/api"
	"billy/app"
	"billy/controller"
	"billy/helpers"
	"billy/metrics"
	"billy/player"
	"billy/sentry"
	"billy/sentryhelper"
)

// Transport is the part of the player adapter the routes drive directly.
type Transport interface {
	Pause()
	Stop()
	Seek(seconds float64)
	SetVolume(level int)
	Listen(name player.EventType, handler func(player.Event)) func()
}

type Manager struct {
	App        *app.App
	Player     Transport
	Controller *controller.Controller
	logger     *log.Entry
}

func NewManager(application *app.App, transport Transport, playlist *controller.Controller) *Manager {
	return &Manager{
		App:        application,
		Player:     transport,
		Controller: playlist,
		logger:     log.WithFields(log.Fields{"module": "handlers"}),
	}
}

// Router builds the gin engine with every route registered.
func (m *Manager) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), sentry.GetSentryGin(), m.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/state", m.handleState)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/events", m.handleEvents)

	p := router.Group("/player")
	p.POST("/play", func(c *gin.Context) { m.Controller.Resume(); ok(c) })
	p.POST("/pause", func(c *gin.Context) { m.Player.Pause(); ok(c) })
	p.POST("/stop", func(c *gin.Context) { m.Player.Stop(); ok(c) })
	p.POST("/next", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"played": m.Controller.Next()}) })
	p.POST("/previous", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"played": m.Controller.Previous()}) })
	p.POST("/seek", m.handleSeek)
	p.POST("/volume", m.handleVolume)
	p.POST("/repeat", m.handleRepeat)

	router.GET("/playlists", m.handleListPlaylists)
	router.POST("/playlists", m.handleCreatePlaylist)
	router.DELETE("/playlists/:name", m.handleDeletePlaylist)
	router.POST("/playlists/:name/activate", m.handleActivatePlaylist)

	router.POST("/playlist/tracks", m.handleAddTrack)
	router.DELETE("/playlist/tracks/:index", m.handleRemoveTrack)
	router.POST("/playlist/tracks/:index/play", m.handlePlayIndex)
	router.POST("/playlist/tracks/:index/move", m.handleMoveTrack)

	router.GET("/search", m.handleSearch)
	router.GET("/recommend", m.handleRecommend)
	router.POST("/tracks/:id/play", m.handlePlayTrack)

	router.POST("/import", m.handleImport)
	router.GET("/export", m.handleExport)
	router.GET("/info", m.handleInfo)
	router.GET("/waveform", m.handleWaveform)
	router.GET("/alerts", func(c *gin.Context) { c.JSON(http.StatusOK, m.App.Alerts()) })
	router.DELETE("/alerts/:id", m.handleDismissAlert)

	return router
}

func (m *Manager) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// respondError maps application errors onto status codes. Anything
// unexpected is reported to sentry.
func (m *Manager) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	var apiErr *api.APIError
	switch {
	case errors.Is(err, app.ErrPlaylistNotFound), errors.Is(err, app.ErrUnknownTrack):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrPlaylistExists), errors.Is(err, app.ErrLastPlaylist), errors.Is(err, app.ErrNoActivePlaylist):
		status = http.StatusConflict
	case errors.Is(err, app.ErrInvalidName), errors.Is(err, app.ErrUnreadable):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
		message = api.AlertMessage(err)
	default:
		m.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		sentryhelper.CaptureException(c.Request.Context(), err)
	}
	c.JSON(status, gin.H{"error": message})
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return 0, false
	}
	return index, true
}

func offsetQuery(c *gin.Context) int {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

type stateResponse struct {
	app.Status
	PositionText string `json:"position_text"`
	DurationText string `json:"duration_text"`
}

func (m *Manager) handleState(c *gin.Context) {
	status := m.App.Status()
	c.JSON(http.StatusOK, stateResponse{
		Status:       status,
		PositionText: helpers.FormatTime(status.Player.Position),
		DurationText: helpers.FormatTime(status.Player.Duration),
	})
}

type seekRequest struct {
	Position *float64 `json:"position" binding:"required"`
}

func (m *Manager) handleSeek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.Player.Seek(*req.Position)
	ok(c)
}

type volumeRequest struct {
	Level *int `json:"level" binding:"required"`
}

func (m *Manager) handleVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.Player.SetVolume(*req.Level)
	ok(c)
}

type repeatRequest struct {
	Enabled        *bool `json:"enabled" binding:"required"`
	LoopOnPrevious *bool `json:"loop_on_previous"`
}

func (m *Manager) handleRepeat(c *gin.Context) {
	var req repeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.Controller.SetRepeat(*req.Enabled)
	if req.LoopOnPrevious != nil {
		m.Controller.SetLoopOnPrevious(*req.LoopOnPrevious)
	}
	ok(c)
}

func (m *Manager) handleListPlaylists(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":    m.App.ActivePlaylist(),
		"playlists": m.App.Playlists(),
	})
}

type createPlaylistRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Functions   []string `json:"functions"`
}

func (m *Manager) handleCreatePlaylist(c *gin.Context) {
	var req createPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := m.App.CreatePlaylist(c.Request.Context(), req.Name, req.Description, req.Functions); err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"active": m.App.ActivePlaylist()})
}

func (m *Manager) handleDeletePlaylist(c *gin.Context) {
	if err := m.App.DeletePlaylist(c.Request.Context(), c.Param("name")); err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": m.App.ActivePlaylist()})
}

func (m *Manager) handleActivatePlaylist(c *gin.Context) {
	if err := m.App.ChangePlaylist(c.Request.Context(), c.Param("name")); err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": m.App.ActivePlaylist()})
}

type addTrackRequest struct {
	TrackID string `json:"track_id" binding:"required"`
}

func (m *Manager) handleAddTrack(c *gin.Context) {
	var req addTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := m.App.AddTrack(c.Request.Context(), req.TrackID); err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m.Controller.Snapshot())
}

func (m *Manager) handleRemoveTrack(c *gin.Context) {
	index, valid := indexParam(c)
	if !valid {
		return
	}
	m.Controller.Remove(index)
	c.JSON(http.StatusOK, m.Controller.Snapshot())
}

func (m *Manager) handlePlayIndex(c *gin.Context) {
	index, valid := indexParam(c)
	if !valid {
		return
	}
	if err := m.Controller.Play(index); err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m.Controller.Snapshot())
}

type moveRequest struct {
	Step int `json:"step" binding:"required"`
}

func (m *Manager) handleMoveTrack(c *gin.Context) {
	index, valid := indexParam(c)
	if !valid {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	moved := m.Controller.Reposition(index, req.Step)
	c.JSON(http.StatusOK, gin.H{"moved": moved, "playlist": m.Controller.Snapshot()})
}

func (m *Manager) handleSearch(c *gin.Context) {
	page, err := m.App.Search(c.Request.Context(), c.Query("query"), offsetQuery(c))
	if err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (m *Manager) handleRecommend(c *gin.Context) {
	page, err := m.App.Recommend(c.Request.Context(), offsetQuery(c))
	if err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (m *Manager) handlePlayTrack(c *gin.Context) {
	if err := m.App.PlayTrack(c.Request.Context(), c.Param("id")); err != nil {
		m.respondError(c, err)
		return
	}
	ok(c)
}

func (m *Manager) handleImport(c *gin.Context) {
	added, err := m.App.ImportJSON(c.Request.Context(), c.Request.Body)
	if err != nil {
		m.respondError(c, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"imported": added})
}

func (m *Manager) handleExport(c *gin.Context) {
	var buf bytes.Buffer
	if err := m.App.ExportJSON(&buf); err != nil {
		m.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="playlists.json"`)
	c.Data(http.StatusOK, "application/json;charset=utf-8", buf.Bytes())
}

func (m *Manager) handleInfo(c *gin.Context) {
	info, err := m.App.Info(c.Request.Context())
	if err != nil {
		m.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (m *Manager) handleWaveform(c *gin.Context) {
	trackID, waveform := m.App.Waveform()
	if trackID == "" || waveform == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no waveform for the current track"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"track_id": trackID, "waveform": waveform})
}

func (m *Manager) handleDismissAlert(c *gin.Context) {
	if !m.App.DismissAlert(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown alert"})
		return
	}
	ok(c)
}
