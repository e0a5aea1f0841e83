// Package api is a client for the remote Billy server: sessions, playlist
// storage, catalog search, recommendations and telemetry.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"billy/helpers"
	"billy/metrics"
	"billy/models"
)

const (
	sessionPath   = "/session"
	playlistsPath = "/playlists?token={0}&search={1}"
	tracksPath    = "/tracks?query={0}&id={1}&offset={2}"
	recommendPath = "/recommend?token={0}&name={1}&offset={2}"
	clicklogPath  = "/clicklog"
	waveformPath  = "/waveform?id={0}"
	infoPath      = "/info"
)

// ErrNotFound matches any APIError with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response. Message carries the server's "error"
// field when the body had one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "Got error from server (" + e.Message + ")"
	}
	return fmt.Sprintf("billy server returned status %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// AlertMessage turns a client error into the message shown to the user.
func AlertMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Error()
	}
	return "Failed to contact Billy server"
}

type Client struct {
	base       string
	httpClient *http.Client
	logger     *log.Entry
}

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithFields(log.Fields{"module": "api"}),
	}
}

func (c *Client) Base() string {
	return c.base
}

func (c *Client) NewSession(ctx context.Context) (string, error) {
	var session models.Session
	if err := c.get(ctx, sessionPath, &session); err != nil {
		return "", err
	}
	if session.Token == "" {
		return "", errors.New("server returned an empty session token")
	}
	return helpers.TrimToken(session.Token), nil
}

// GetPlaylists returns the collection stored for token. Tracks come back as
// full objects.
func (c *Client) GetPlaylists(ctx context.Context, token string) (models.Collection, error) {
	collection := models.Collection{}
	path := helpers.FormatString(playlistsPath, url.QueryEscape(token), "")
	if err := c.get(ctx, path, &collection); err != nil {
		return nil, err
	}
	for name, p := range collection {
		if p == nil {
			delete(collection, name)
			continue
		}
		if p.Name == "" {
			p.Name = name
		}
	}
	return collection, nil
}

func (c *Client) PostPlaylists(ctx context.Context, token string, playlists map[string]models.WirePlaylist) error {
	path := helpers.FormatString(playlistsPath, url.QueryEscape(token), "")
	return c.post(ctx, path, playlists, nil)
}

// GetTracks searches the catalog. A non-empty id looks up a single track.
func (c *Client) GetTracks(ctx context.Context, query, id string, offset int) (*models.TracksPage, error) {
	var page models.TracksPage
	path := helpers.FormatString(tracksPath, url.QueryEscape(query), url.QueryEscape(id), strconv.Itoa(offset))
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	normalizePage(&page)
	return &page, nil
}

func (c *Client) GetRecommendation(ctx context.Context, token, name string, offset int) (*models.TracksPage, error) {
	var page models.TracksPage
	path := helpers.FormatString(recommendPath, url.QueryEscape(token), url.QueryEscape(name), strconv.Itoa(offset))
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	normalizePage(&page)
	return &page, nil
}

func (c *Client) PostClicklog(ctx context.Context, token string, entry models.Clicklog) error {
	path := helpers.ReplaceParameter(clicklogPath, "token", url.QueryEscape(token))
	return c.post(ctx, path, entry, nil)
}

func (c *Client) GetWaveform(ctx context.Context, trackID string) (*models.Waveform, error) {
	var waveform models.Waveform
	if err := c.get(ctx, helpers.FormatString(waveformPath, url.QueryEscape(trackID)), &waveform); err != nil {
		return nil, err
	}
	return &waveform, nil
}

// GetInfo returns the server status with TotalTracks summed.
func (c *Client) GetInfo(ctx context.Context) (*models.ServerInfo, error) {
	var info models.ServerInfo
	if err := c.get(ctx, infoPath, &info); err != nil {
		return nil, err
	}
	info.Sum()
	return &info, nil
}

func normalizePage(page *models.TracksPage) {
	if page.Results == nil {
		page.Results = []models.Track{}
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, data, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	span := sentry.StartSpan(ctx, "billy.request")
	span.Description = method + " " + path
	defer span.Finish()

	logger := c.logger.WithFields(log.Fields{"method": method, "path": path})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(span.Context(), method, c.base+path, reader)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(method, metrics.StatusLabel(0)).Inc()
		span.Status = sentry.SpanStatusUnavailable
		logger.WithError(err).Warn("Request failed")
		return fmt.Errorf("failed to contact billy server: %w", err)
	}
	defer resp.Body.Close()
	metrics.RemoteRequests.WithLabelValues(method, metrics.StatusLabel(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); readErr == nil {
			if json.Unmarshal(data, &payload) == nil {
				apiErr.Message = payload.Error
			}
		}
		span.Status = sentry.HTTPtoSpanStatus(resp.StatusCode)
		logger.WithFields(log.Fields{"status": resp.StatusCode, "message": apiErr.Message}).Warn("Server returned an error")
		return apiErr
	}

	span.Status = sentry.SpanStatusOK
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
