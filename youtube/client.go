package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"billy/audio"
)

var ErrVideoNotFound = errors.New("no video found")

type Video struct {
	ID       string
	Title    string
	Duration time.Duration
}

// WatchURL is the page yt-dlp resolves for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// ParseVideoID extracts the id from a watch or youtu.be URL.
func ParseVideoID(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	switch parsedURL.Host {
	case "www.youtube.com", "youtube.com", "music.youtube.com":
		return parsedURL.Query().Get("v")
	case "youtu.be":
		return strings.Trim(parsedURL.Path, "/")
	}
	return ""
}

// Client looks up video metadata through the YouTube Data API.
type Client struct {
	service *ytapi.Service
	logger  *log.Entry
}

func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube client: %w", err)
	}
	return &Client{
		service: service,
		logger:  log.WithFields(log.Fields{"module": "youtube"}),
	}, nil
}

func (c *Client) GetVideoByID(ctx context.Context, videoID string) (Video, error) {
	span := sentry.StartSpan(ctx, "youtube.videos")
	span.Description = "Look up video details"
	span.SetTag("video_id", videoID)
	defer span.Finish()

	response, err := c.service.Videos.List([]string{"snippet", "contentDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		c.logger.Errorf("error querying YouTube: %v", err)
		span.Status = sentry.SpanStatusInternalError
		return Video{}, fmt.Errorf("error querying YouTube: %w", err)
	}

	if len(response.Items) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return Video{}, ErrVideoNotFound
	}

	item := response.Items[0]
	video := Video{ID: videoID}
	if item.Snippet != nil {
		video.Title = html.UnescapeString(item.Snippet.Title)
	}
	if item.ContentDetails != nil {
		video.Duration = parseDuration(item.ContentDetails.Duration)
	}
	c.logger.Tracef("video found: %v", video.Title)
	span.Status = sentry.SpanStatusOK
	return video, nil
}

// Source fills in the duration of a job from the Data API before handing it
// to next, so that ffprobe does not have to open the stream twice.
func (c *Client) Source(next audio.Source) audio.Source {
	return &metadataSource{client: c, next: next}
}

type metadataSource struct {
	client *Client
	next   audio.Source
}

func (s *metadataSource) Load(ctx context.Context, job audio.LoadJob) (*audio.LoadResult, error) {
	if job.Duration <= 0 {
		video, err := s.client.GetVideoByID(ctx, job.MediaID)
		if err != nil {
			s.client.logger.WithError(err).WithField("video_id", job.MediaID).Warn("no metadata for video")
		} else {
			job.Duration = video.Duration
			if job.Title == "" {
				job.Title = video.Title
			}
		}
	}
	return s.next.Load(ctx, job)
}

// parseDuration reads ISO 8601 durations of the form PT#H#M#S.
func parseDuration(duration string) time.Duration {
	duration = strings.TrimPrefix(duration, "P")
	if idx := strings.Index(duration, "T"); idx != -1 {
		duration = duration[idx+1:]
	}

	var total time.Duration
	for _, unit := range []struct {
		suffix string
		scale  time.Duration
	}{{"H", time.Hour}, {"M", time.Minute}, {"S", time.Second}} {
		idx := strings.Index(duration, unit.suffix)
		if idx == -1 {
			continue
		}
		value, err := strconv.ParseFloat(duration[:idx], 64)
		if err == nil {
			total += time.Duration(value * float64(unit.scale))
		}
		duration = duration[idx+1:]
	}
	return total
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
