package helpers

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// YtDlpPath is the binary used to resolve page URLs into direct stream URLs.
var YtDlpPath = "yt-dlp"

// ResolveStreamURL asks yt-dlp for the best audio stream behind pageURL.
// It tries three times before giving up.
func ResolveStreamURL(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	logger := log.WithFields(log.Fields{"module": "helpers", "function": "ResolveStreamURL", "url": pageURL})

	span := sentry.StartSpan(ctx, "ytdlp.resolve")
	span.Description = "Resolve stream URL via yt-dlp"
	span.SetTag("url", pageURL)
	defer span.Finish()

	var output []byte
	var err error
	for i := range 3 {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		cmd := exec.CommandContext(attemptCtx, YtDlpPath,
			"-f", "bestaudio",
			"--no-playlist",
			"--socket-timeout", "10",
			"--extractor-retries", "1",
			"--no-audio-multistreams",
			"-g",
			"--no-warnings",
			pageURL)
		output, err = cmd.CombinedOutput()
		cancel()
		if err == nil {
			break
		}

		logger.WithFields(log.Fields{
			"attempt": i + 1,
			"error":   err,
			"output":  string(output),
		}).Error("yt-dlp command failed")

		if ctx.Err() != nil {
			span.Status = sentry.SpanStatusCanceled
			return "", ctx.Err()
		}
		if i == 2 {
			span.Status = sentry.SpanStatusInternalError
			err = fmt.Errorf("yt-dlp error after 3 attempts: %w, output: %s", err, string(output))
			sentry.CaptureException(err)
			return "", err
		}
	}

	// yt-dlp may print several URLs (one per format); the first is the audio.
	streamURL := strings.TrimSpace(strings.SplitN(strings.TrimSpace(string(output)), "\n", 2)[0])
	if streamURL == "" {
		span.Status = sentry.SpanStatusNotFound
		return "", fmt.Errorf("yt-dlp returned no stream for %s", pageURL)
	}

	span.Status = sentry.SpanStatusOK
	return streamURL, nil
}
