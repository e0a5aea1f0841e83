package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"billy/app"
	"billy/controller"
	"billy/player"
)

const (
	sseBuffer    = 64
	sseKeepAlive = 15 * time.Second
)

type sseMessage struct {
	event string
	data  any
}

// handleEvents streams player, playlist and application events. A client
// that cannot keep up loses events rather than stalling the publishers.
func (m *Manager) handleEvents(c *gin.Context) {
	messages := make(chan sseMessage, sseBuffer)
	send := func(event string, data any) {
		select {
		case messages <- sseMessage{event: event, data: data}:
		default:
			m.logger.WithField("event", event).Debug("dropping event for slow client")
		}
	}

	unlisten := []func(){
		m.Player.Listen("", func(e player.Event) { send("player."+string(e.Type), e) }),
		m.Controller.Listen("", func(e controller.Event) { send("playlist."+string(e.Type), e) }),
		m.App.Listen("", func(e app.Event) { send("app."+string(e.Type), e) }),
	}
	defer func() {
		for _, f := range unlisten {
			f()
		}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)
	c.SSEvent("state", m.App.Status())
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg := <-messages:
			c.SSEvent(msg.event, msg.data)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
