package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Player pushes the frames of one LoadResult at a time into a sink, at real
// time pace, applying volume on the way.
type Player struct {
	Notifications chan PlaybackNotification
	sinks         SinkFactory
	logger        *log.Entry
	paused        atomic.Bool
	stopping      atomic.Bool
	playing       atomic.Bool
	volume        atomic.Int32
	frames        atomic.Int64
	offset        atomic.Int64
	generation    atomic.Int64
	frameInterval time.Duration
	mutex         sync.Mutex
}

func NewPlayer(sinks SinkFactory, notifications chan PlaybackNotification) *Player {
	if notifications == nil {
		notifications = make(chan PlaybackNotification, 100)
	}
	player := &Player{
		Notifications: notifications,
		sinks:         sinks,
		logger: log.WithFields(log.Fields{
			"module": "player",
		}),
		frameInterval: FrameDuration,
	}
	player.volume.Store(100)
	return player
}

func (p *Player) notify(n PlaybackNotification) {
	select {
	case p.Notifications <- n:
	default:
		p.logger.WithField("event", n.Event).Warn("notification channel full, dropping")
	}
}

// Play blocks until data is exhausted, ctx is canceled or Stop is called.
// Only one run plays at a time; a second call waits for the first.
func (p *Player) Play(ctx context.Context, data *LoadResult) error {
	p.mutex.Lock()
	defer func() {
		p.playing.Store(false)
		p.mutex.Unlock()
	}()
	defer data.Close()

	base := PlaybackNotification{MediaID: data.MediaID, Generation: data.Generation}
	withEvent := func(event PlaybackNotificationType, err error) PlaybackNotification {
		n := base
		n.Event = event
		n.Error = err
		return n
	}

	sink, err := p.sinks()
	if err != nil {
		sentry.CaptureException(err)
		p.notify(withEvent(PlaybackError, err))
		return err
	}
	defer sink.Close()

	p.generation.Store(data.Generation)
	p.offset.Store(int64(data.Offset))
	p.frames.Store(0)
	p.paused.Store(false)
	p.stopping.Store(false)
	p.playing.Store(true)

	ticker := time.NewTicker(p.frameInterval)
	defer ticker.Stop()

	frame := make([]byte, FrameBytes)
	firstPacket := true

	for {
		select {
		case <-ctx.Done():
			p.logger.Trace("playback stopped by context")
			p.notify(withEvent(PlaybackStopped, nil))
			return nil
		case <-ticker.C:
		}

		if p.stopping.Load() {
			p.logger.Debug("playback stopped")
			p.notify(withEvent(PlaybackStopped, nil))
			return nil
		}
		if p.paused.Load() {
			continue
		}

		var attempts int
		for {
			// ffmpeg pipes return short reads, only whole frames are written.
			_, err = io.ReadFull(data.ffmpegOut, frame)
			if err == nil {
				break
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				p.logger.Trace("reached end of audio stream")
				p.notify(withEvent(PlaybackCompleted, nil))
				return nil
			}
			attempts++
			p.logger.Warnf("error reading from stream (attempt %d/3): %v", attempts, err)
			if attempts == 3 {
				sentry.CaptureException(err)
				p.notify(withEvent(PlaybackError, err))
				return err
			}
		}

		if firstPacket {
			p.notify(withEvent(PlaybackStarted, nil))
			firstPacket = false
		}

		applyVolume(frame, int(p.volume.Load()))

		if _, err := sink.Write(frame); err != nil {
			err = fmt.Errorf("writing to sink: %w", err)
			p.logger.Warn(err)
			sentry.CaptureException(err)
			p.notify(withEvent(PlaybackError, err))
			return err
		}
		p.frames.Add(1)
	}
}

func applyVolume(frame []byte, volume int) {
	if volume == 100 {
		return
	}
	for i := 0; i+1 < len(frame); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) * float64(volume) / 100.0
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		binary.LittleEndian.PutUint16(frame[i:], uint16(int16(sample)))
	}
}

func (p *Player) Pause() {
	if !p.playing.Load() || p.paused.Swap(true) {
		return
	}
	p.logger.Info("pausing playback")
	p.notify(PlaybackNotification{Event: PlaybackPaused, Generation: p.generation.Load()})
}

func (p *Player) Resume() {
	if !p.playing.Load() || !p.paused.Swap(false) {
		return
	}
	p.logger.Info("resuming playback")
	p.notify(PlaybackNotification{Event: PlaybackResumed, Generation: p.generation.Load()})
}

// Stop asks the running Play to return. It never takes the play lock.
func (p *Player) Stop() {
	p.logger.Info("stopping playback")
	p.stopping.Store(true)
}

func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}

func (p *Player) IsPaused() bool {
	return p.paused.Load()
}

// GetPosition is the stream time of the last frame written, including the
// offset the run started at.
func (p *Player) GetPosition() time.Duration {
	if !p.playing.Load() {
		return 0
	}
	return time.Duration(p.offset.Load()) + time.Duration(p.frames.Load())*FrameDuration
}

// SetVolume takes a percentage, clamped to 0..100.
func (p *Player) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.volume.Store(int32(volume))
}

func (p *Player) GetVolume() int {
	return int(p.volume.Load())
}
