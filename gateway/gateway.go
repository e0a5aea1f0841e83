// Package gateway keeps the local playlist collection in sync with the Billy
// server and owns the session token.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"billy/api"
	"billy/database"
	"billy/helpers"
	"billy/models"
)

// ErrSessionNotFound means an explicitly requested token is unknown to the
// server. It is fatal to the current run.
var ErrSessionNotFound = errors.New("Failed to find Billy session")

// Remote is the subset of the server API the gateway talks to.
type Remote interface {
	NewSession(ctx context.Context) (string, error)
	GetPlaylists(ctx context.Context, token string) (models.Collection, error)
	PostPlaylists(ctx context.Context, token string, playlists map[string]models.WirePlaylist) error
}

// SessionStore persists the token between runs, keyed by cookie name.
type SessionStore interface {
	GetSession(name string) (string, bool, error)
	SaveSession(name, token string, expires time.Time) error
}

type Gateway struct {
	remote     Remote
	store      SessionStore
	cookieName string
	override   string
	logger     *log.Entry
	// OnError receives failures of background persists.
	OnError func(error)

	mutex   sync.Mutex
	token   string
	pending map[string]models.WirePlaylist
	posting bool
	wg      sync.WaitGroup
}

func New(remote Remote, store SessionStore, cookieName, override string) *Gateway {
	return &Gateway{
		remote:     remote,
		store:      store,
		cookieName: cookieName,
		override:   helpers.TrimToken(strings.TrimSpace(override)),
		logger:     log.WithFields(log.Fields{"module": "gateway"}),
	}
}

func (g *Gateway) Token() string {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.token
}

func (g *Gateway) setToken(token string) {
	g.mutex.Lock()
	g.token = token
	g.mutex.Unlock()
}

// BootstrapSession picks the token for this run: the override, else the
// stored cookie, else a fresh session from the server.
func (g *Gateway) BootstrapSession(ctx context.Context) (string, error) {
	if g.override != "" {
		g.setToken(g.override)
		return g.override, nil
	}

	if g.store != nil {
		token, ok, err := g.store.GetSession(g.cookieName)
		if err != nil {
			g.logger.WithError(err).Warn("Failed to read stored session")
		} else if ok && helpers.TrimToken(token) != "" {
			token = helpers.TrimToken(token)
			g.setToken(token)
			return token, nil
		}
	}

	return g.newSession(ctx)
}

func (g *Gateway) newSession(ctx context.Context) (string, error) {
	token, err := g.remote.NewSession(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	token = helpers.TrimToken(token)
	g.setToken(token)

	if g.store != nil {
		if err := g.store.SaveSession(g.cookieName, token, time.Now().Add(database.SessionLifetime)); err != nil {
			g.logger.WithError(err).Warn("Failed to persist session")
		}
	}
	g.logger.Info("Created new Billy session")
	return token, nil
}

// FetchPlaylists loads the collection stored for token. Without an override
// any failure falls back to a new session with an empty collection.
func (g *Gateway) FetchPlaylists(ctx context.Context, token string) (models.Collection, error) {
	if token != "" {
		collection, err := g.remote.GetPlaylists(ctx, token)
		if err == nil {
			return collection, nil
		}
		if errors.Is(err, api.ErrNotFound) && g.override != "" {
			return nil, ErrSessionNotFound
		}
		g.logger.WithError(err).Warn("Failed to fetch playlists, creating a new session")
	}

	if _, err := g.newSession(ctx); err != nil {
		return nil, err
	}
	return models.Collection{}, nil
}

// PersistPlaylists posts the collection in the background. Calls made while
// a post is in flight coalesce so the latest collection is the one stored.
func (g *Gateway) PersistPlaylists(ctx context.Context, token string, collection models.Collection) {
	wire := collection.ToWire()

	g.mutex.Lock()
	g.pending = wire
	if g.posting {
		g.mutex.Unlock()
		return
	}
	g.posting = true
	g.wg.Add(1)
	g.mutex.Unlock()

	go g.drain(context.WithoutCancel(ctx), token)
}

func (g *Gateway) drain(ctx context.Context, token string) {
	defer g.wg.Done()
	for {
		g.mutex.Lock()
		wire := g.pending
		g.pending = nil
		if wire == nil {
			g.posting = false
			g.mutex.Unlock()
			return
		}
		g.mutex.Unlock()

		if err := g.remote.PostPlaylists(ctx, token, wire); err != nil {
			g.logger.WithError(err).Error("Failed to persist playlists")
			sentry.CaptureException(err)
			if g.OnError != nil {
				g.OnError(err)
			}
		}
	}
}

// Wait blocks until background persists have finished.
func (g *Gateway) Wait() {
	g.wg.Wait()
}

// MergeIncoming copies playlists whose names are not in local yet. It
// returns the names added and, when anything collided, the message to show.
func MergeIncoming(local, incoming models.Collection) ([]string, string) {
	var added, skipped []string
	for _, name := range incoming.Names() {
		p := incoming[name]
		if p == nil {
			continue
		}
		if _, exists := local[name]; exists {
			skipped = append(skipped, name)
			continue
		}
		c := p.Clone()
		if c.Name == "" {
			c.Name = name
		}
		local[name] = c
		added = append(added, name)
	}

	if len(skipped) == 0 {
		return added, ""
	}
	return added, "You already have playlist(s) with the following name(s): " + strings.Join(skipped, ", ") +
		". Since playlist names have to be unique, these will not be imported."
}
