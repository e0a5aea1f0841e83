package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

type Loader struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	logger      *log.Entry
}

type LoadJob struct {
	URL     string
	MediaID string
	Title   string
	// Offset starts decoding part way into the stream.
	Offset time.Duration
	// Duration skips the ffprobe call when the length is already known.
	Duration time.Duration
}

// LoadResult is a running ffmpeg process whose stdout carries PCM frames.
type LoadResult struct {
	ffmpegOut  io.Reader
	cmd        *exec.Cmd
	closeOnce  sync.Once
	MediaID    string
	Title      string
	Offset     time.Duration
	Duration   time.Duration
	Generation int64
}

func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     timeout,
		logger: log.WithFields(log.Fields{
			"module": "audio-loader",
		}),
	}
}

// NewLoadResult wraps an already decoded PCM stream, mainly for tests.
func NewLoadResult(pcm io.Reader, mediaID string) *LoadResult {
	return &LoadResult{ffmpegOut: pcm, MediaID: mediaID}
}

// Close stops ffmpeg and reaps it. Safe to call more than once.
func (r *LoadResult) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if closer, ok := r.ffmpegOut.(io.Closer); ok {
			err = closer.Close()
		}
		if r.cmd != nil && r.cmd.Process != nil {
			r.cmd.Process.Kill()
			r.cmd.Wait()
		}
	})
	return err
}

func ffmpegArgs(job LoadJob) []string {
	args := []string{"-loglevel", "error"}
	if job.Offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(job.Offset.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", job.URL,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-af", "aresample=48000",
		"pipe:1")
}

// Load starts decoding job and returns once the first audio bytes are
// available. ffmpeg keeps streaming into the result until it is closed.
func (l *Loader) Load(ctx context.Context, job LoadJob) (*LoadResult, error) {
	logger := l.logger.WithFields(log.Fields{"media_id": job.MediaID, "offset": job.Offset})
	logger.Debug("starting load")

	span := sentry.StartSpan(ctx, "audio.load")
	span.Description = "Start ffmpeg decode"
	span.SetTag("media_id", job.MediaID)
	defer span.Finish()

	duration := job.Duration
	if duration <= 0 {
		probed, err := l.Probe(ctx, job.URL)
		if err != nil {
			logger.WithError(err).Warn("could not probe duration")
		}
		duration = probed
	}

	ffmpeg := exec.Command(l.FFmpegPath, ffmpegArgs(job)...)
	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		span.Status = sentry.SpanStatusInternalError
		sentry.CaptureException(err)
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	reader := bufio.NewReaderSize(stdout, FrameBytes*50)
	ready := make(chan error, 1)
	go func() {
		_, err := reader.Peek(1)
		ready <- err
	}()

	kill := func() {
		ffmpeg.Process.Kill()
		ffmpeg.Wait()
	}

	select {
	case <-ctx.Done():
		logger.Debug("load canceled")
		span.Status = sentry.SpanStatusCanceled
		kill()
		return nil, ctx.Err()
	case err := <-ready:
		if err != nil {
			kill()
			if errors.Is(err, io.EOF) {
				err = errors.New("ffmpeg produced no audio")
			}
			logger.WithError(err).Error("error loading")
			span.Status = sentry.SpanStatusInternalError
			sentry.CaptureException(err)
			return nil, err
		}
	case <-time.After(l.Timeout):
		kill()
		err := fmt.Errorf("ffmpeg timed out after %v", l.Timeout)
		logger.Error(err)
		span.Status = sentry.SpanStatusDeadlineExceeded
		return nil, err
	}

	logger.Trace("loaded")
	span.Status = sentry.SpanStatusOK
	return &LoadResult{
		ffmpegOut: reader,
		cmd:       ffmpeg,
		MediaID:   job.MediaID,
		Title:     job.Title,
		Offset:    job.Offset,
		Duration:  duration,
	}, nil
}

// Probe asks ffprobe for the container duration of url.
func (l *Loader) Probe(ctx context.Context, url string) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, l.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		url).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeDuration(string(output))
}

func parseProbeDuration(output string) (time.Duration, error) {
	value := strings.TrimSpace(output)
	if value == "" || value == "N/A" {
		return 0, errors.New("duration not available")
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", value, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
