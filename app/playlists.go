package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"billy/controller"
	"billy/gateway"
	"billy/metrics"
	"billy/models"
)

// ActivePlaylist returns the name of the playlist the controller holds.
func (a *App) ActivePlaylist() string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.active
}

// Playlists returns a copy of the collection with the active playlist's
// current order written back.
func (a *App) Playlists() models.Collection {
	tracks := a.controller.Tracks()

	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.writeBackLocked(tracks)
	return a.playlists.Clone()
}

func (a *App) writeBackLocked(tracks []models.Track) {
	if p, ok := a.playlists[a.active]; ok {
		p.Tracks = tracks
	}
}

func (a *App) onPlaylistChanged(controller.Event) {
	a.persist()
}

// persist writes the controller order back and posts the collection.
func (a *App) persist() {
	tracks := a.controller.Tracks()

	a.mutex.Lock()
	a.writeBackLocked(tracks)
	collection := a.playlists.Clone()
	metrics.Playlists.Set(float64(len(collection)))
	a.mutex.Unlock()

	a.gateway.PersistPlaylists(a.ctx, a.gateway.Token(), collection)
	a.publish(Event{Type: EventPlaylists})
}

func (a *App) CreatePlaylist(ctx context.Context, name, description string, functions []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}

	a.mutex.Lock()
	if _, exists := a.playlists[name]; exists {
		a.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrPlaylistExists, name)
	}
	a.playlists[name] = &models.Playlist{
		Name:        name,
		Description: description,
		Functions:   append([]string(nil), functions...),
		Tracks:      []models.Track{},
	}
	a.mutex.Unlock()

	a.logger.WithField("playlist", name).Info("Created playlist")
	if err := a.ChangePlaylist(ctx, name); err != nil {
		return err
	}
	a.persist()
	return nil
}

// DeletePlaylist removes name. The last remaining playlist cannot be
// deleted. When the active playlist goes its neighbour becomes active.
func (a *App) DeletePlaylist(ctx context.Context, name string) error {
	a.mutex.Lock()
	if _, ok := a.playlists[name]; !ok {
		a.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, name)
	}
	if len(a.playlists) < 2 {
		a.mutex.Unlock()
		a.alert(AlertWarning, lastPlaylistMessage)
		return ErrLastPlaylist
	}

	names := a.playlists.Names()
	idx := slices.Index(names, name)
	neighbour := ""
	if idx+1 < len(names) {
		neighbour = names[idx+1]
	} else {
		neighbour = names[idx-1]
	}

	wasActive := a.active == name
	delete(a.playlists, name)
	if wasActive {
		a.active = ""
	}
	a.mutex.Unlock()

	a.logger.WithField("playlist", name).Info("Deleted playlist")
	if wasActive {
		if err := a.ChangePlaylist(ctx, neighbour); err != nil {
			return err
		}
	}
	a.persist()
	return nil
}

// ChangePlaylist stores the controller order into the old active playlist,
// hands the new one to the controller and refreshes recommendations.
func (a *App) ChangePlaylist(ctx context.Context, name string) error {
	a.mutex.Lock()
	_, ok := a.playlists[name]
	same := a.active == name
	a.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, name)
	}
	if same {
		return nil
	}

	old := a.controller.Tracks()

	a.mutex.Lock()
	a.writeBackLocked(old)
	a.active = name
	tracks := append([]models.Track{}, a.playlists[name].Tracks...)
	a.mutex.Unlock()

	a.controller.SetPlaylist(tracks)
	a.logger.WithFields(log.Fields{"playlist": name, "tracks": len(tracks)}).Info("Active playlist changed")
	a.publish(Event{Type: EventActive, Playlist: name})

	if _, err := a.Recommend(ctx, 0); err != nil {
		a.logger.WithError(err).Debug("Recommendation refresh failed")
	}
	return nil
}

// ImportJSON merges a `{name: {name, description, tracks}}` document into
// the collection. Names that already exist are skipped and reported in one
// alert. Tracks given by id only are resolved through the catalog.
func (a *App) ImportJSON(ctx context.Context, r io.Reader) ([]string, error) {
	incoming := models.Collection{}
	if err := json.NewDecoder(r).Decode(&incoming); err != nil {
		a.alert(AlertError, unreadableMessage)
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	for name, p := range incoming {
		if p == nil {
			delete(incoming, name)
			continue
		}
		a.resolveTracks(ctx, p)
	}

	tracks := a.controller.Tracks()

	a.mutex.Lock()
	a.writeBackLocked(tracks)
	added, message := gateway.MergeIncoming(a.playlists, incoming)
	activate := ""
	if a.active == "" && len(added) > 0 {
		activate = added[0]
	}
	a.mutex.Unlock()

	if message != "" {
		a.alert(AlertInfo, message)
	}
	if len(added) == 0 {
		return added, nil
	}

	a.logger.WithField("playlists", added).Info("Imported playlists")
	if activate != "" {
		if err := a.ChangePlaylist(ctx, activate); err != nil {
			return added, err
		}
	}
	a.persist()
	return added, nil
}

func (a *App) resolveTracks(ctx context.Context, p *models.Playlist) {
	for i, track := range p.Tracks {
		if track.Resolved() || track.ID == "" {
			continue
		}
		page, err := a.catalog.GetTracks(ctx, "", track.ID, 0)
		if err != nil || len(page.Results) == 0 {
			a.logger.WithField("track", track.ID).Debug("Could not resolve imported track")
			continue
		}
		p.Tracks[i] = page.Results[0]
	}
}

// ExportJSON writes the collection as an importable document.
func (a *App) ExportJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(a.Playlists())
}
