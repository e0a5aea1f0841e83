package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"billy/api"
	"billy/controller"
	"billy/models"
)

const (
	TabSearch         = "search"
	TabRecommendation = "recommendation"
)

type resultPage struct {
	query string
	page  models.TracksPage
}

// Search queries the catalog and caches the page under the search tab.
func (a *App) Search(ctx context.Context, query string, offset int) (*models.TracksPage, error) {
	page, err := a.catalog.GetTracks(ctx, query, "", offset)
	if err != nil {
		a.alert(AlertError, api.AlertMessage(err))
		return nil, err
	}
	a.cacheResults(TabSearch, query, page)
	return page, nil
}

// Recommend fetches recommendations for the active playlist.
func (a *App) Recommend(ctx context.Context, offset int) (*models.TracksPage, error) {
	name := a.ActivePlaylist()
	if name == "" {
		return nil, ErrNoActivePlaylist
	}

	page, err := a.catalog.GetRecommendation(ctx, a.gateway.Token(), name, offset)
	if err != nil {
		a.alert(AlertError, api.AlertMessage(err))
		return nil, err
	}
	a.cacheResults(TabRecommendation, "", page)
	return page, nil
}

func (a *App) cacheResults(tab, query string, page *models.TracksPage) {
	for i := range page.Results {
		page.Results[i].MusicInfo.Tags = normalizeTags(page.Results[i].MusicInfo.Tags)
	}

	a.mutex.Lock()
	a.results[tab] = resultPage{query: query, page: *page}
	a.mutex.Unlock()

	a.publish(Event{Type: EventResults, Tab: tab, Page: page})
}

func normalizeTags(tags models.Tags) models.Tags {
	if tags.Genres == nil {
		tags.Genres = []string{}
	}
	if tags.Instruments == nil {
		tags.Instruments = []string{}
	}
	if tags.VarTags == nil {
		tags.VarTags = []string{}
	}
	return tags
}

// Results returns the cached page of tab.
func (a *App) Results(tab string) (models.TracksPage, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	r, ok := a.results[tab]
	return r.page, ok
}

// lookup finds a cached result, preferring the search tab.
func (a *App) lookup(trackID string) (models.Track, string, string, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, tab := range []string{TabSearch, TabRecommendation} {
		r, ok := a.results[tab]
		if !ok {
			continue
		}
		for _, track := range r.page.Results {
			if track.ID == trackID {
				return track, tab, r.query, true
			}
		}
	}
	return models.Track{}, "", "", false
}

// AddTrack appends a cached result to the active playlist. A result that is
// playing detached becomes the playlist's current track.
func (a *App) AddTrack(ctx context.Context, trackID string) error {
	track, tab, query, ok := a.lookup(trackID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}
	playlist := a.ActivePlaylist()
	if playlist == "" {
		return ErrNoActivePlaylist
	}

	playing, loaded := a.player.Current()
	detached := loaded && playing.ID == trackID && a.controller.Current() == controller.None

	a.controller.Add(track)
	if detached {
		a.controller.Adopt(a.controller.Len() - 1)
	}

	entry := models.Clicklog{
		ID:           uuid.NewString(),
		TrackID:      trackID,
		PlaylistName: playlist,
		Tab:          tab,
		Query:        query,
	}
	token := a.gateway.Token()
	a.goBackground(func(ctx context.Context) {
		if err := a.catalog.PostClicklog(ctx, token, entry); err != nil {
			a.logger.WithError(err).WithFields(log.Fields{"track": trackID}).Debug("Clicklog failed")
		}
	})
	return nil
}

// PlayTrack plays a cached result outside of the playlist.
func (a *App) PlayTrack(ctx context.Context, trackID string) error {
	track, _, _, ok := a.lookup(trackID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, trackID)
	}
	a.controller.Detach()
	return a.player.LoadAndPlay(track)
}
