package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Link scheme prefixes that select a playback back-end.
const (
	YoutubePrefix    = "youtube:"
	SoundcloudPrefix = "soundcloud:"
)

type Tags struct {
	Genres      []string `json:"genres"`
	Instruments []string `json:"instruments"`
	VarTags     []string `json:"vartags"`
}

type MusicInfo struct {
	Tags Tags `json:"tags"`
}

// Track is a catalog entry. It is referenced by value inside playlists and
// never mutated after it has been fetched.
type Track struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist,omitempty"`
	Link      string    `json:"link"`
	Image     string    `json:"image,omitempty"`
	MusicInfo MusicInfo `json:"musicinfo"`
}

// UnmarshalJSON accepts either a full track object or a bare track id, since
// playlist documents store ids while the server resolves them to objects.
func (t *Track) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*t = Track{ID: id}
		return nil
	}

	type plain Track
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Track(p)
	t.MusicInfo.Tags.normalize()
	return nil
}

// Resolved reports whether the track carries a playable link, as opposed to
// an id-only reference read from an exported document.
func (t Track) Resolved() bool {
	return t.Link != ""
}

func (t Track) IsYoutube() bool {
	return strings.HasPrefix(t.Link, YoutubePrefix)
}

func (t Track) IsSoundcloud() bool {
	return strings.HasPrefix(t.Link, SoundcloudPrefix)
}

// MediaID returns the link with its back-end scheme prefix removed.
func (t Track) MediaID() string {
	switch {
	case t.IsYoutube():
		return strings.TrimPrefix(t.Link, YoutubePrefix)
	case t.IsSoundcloud():
		return strings.TrimPrefix(t.Link, SoundcloudPrefix)
	}
	return t.Link
}

func (tags *Tags) normalize() {
	if tags.Genres == nil {
		tags.Genres = []string{}
	}
	if tags.Instruments == nil {
		tags.Instruments = []string{}
	}
	if tags.VarTags == nil {
		tags.VarTags = []string{}
	}
}

type Playlist struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Functions   []string `json:"functions,omitempty"`
	Type        string   `json:"type,omitempty"`
	Tracks      []Track  `json:"tracks"`
}

// Clone returns a copy whose track slice can be mutated independently.
func (p *Playlist) Clone() *Playlist {
	c := *p
	c.Tracks = append([]Track(nil), p.Tracks...)
	c.Functions = append([]string(nil), p.Functions...)
	return &c
}

// TrackIDs returns the ids of the playlist's tracks in order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

// Collection maps a unique playlist name to its playlist.
type Collection map[string]*Playlist

// Names returns the playlist names in sorted order.
func (c Collection) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for name, p := range c {
		out[name] = p.Clone()
	}
	return out
}

// WirePlaylist is the persisted form of a playlist: tracks by id only.
type WirePlaylist struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Functions   []string `json:"functions,omitempty"`
	Type        string   `json:"type,omitempty"`
	Tracks      []string `json:"tracks"`
}

// ToWire converts the collection into the `{name: {..., tracks: [id...]}}`
// document the server and the export file use.
func (c Collection) ToWire() map[string]WirePlaylist {
	out := make(map[string]WirePlaylist, len(c))
	for name, p := range c {
		out[name] = WirePlaylist{
			Name:        p.Name,
			Description: p.Description,
			Functions:   p.Functions,
			Type:        p.Type,
			Tracks:      p.TrackIDs(),
		}
	}
	return out
}

// TracksPage is the paged response of /tracks and /recommend.
type TracksPage struct {
	Offset   int     `json:"offset"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
	Results  []Track `json:"results"`
}

type ServerInfo struct {
	NumTracks   map[string]int `json:"num_tracks"`
	Status      string         `json:"status"`
	TotalTracks int            `json:"total_tracks"`
}

// Sum fills TotalTracks from the per-source counts.
func (i *ServerInfo) Sum() {
	i.TotalTracks = 0
	for _, n := range i.NumTracks {
		i.TotalTracks += n
	}
}

type Waveform struct {
	Waveform json.RawMessage `json:"waveform"`
}

type Session struct {
	Token string `json:"token"`
}

// Clicklog is the telemetry record posted when a result is added to a
// playlist.
type Clicklog struct {
	ID           string `json:"id,omitempty"`
	TrackID      string `json:"track_id"`
	PlaylistName string `json:"playlist_name"`
	Tab          string `json:"tab"`
	Query        string `json:"query"`
}
