package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func newTestPlayer(out *bytes.Buffer) *Player {
	p := NewPlayer(WriterSink(out), nil)
	p.frameInterval = time.Millisecond
	return p
}

func drain(t *testing.T, ch chan PlaybackNotification, want ...PlaybackNotificationType) {
	t.Helper()
	for _, event := range want {
		select {
		case n := <-ch:
			if n.Event != event {
				t.Fatalf("got notification %q, want %q", n.Event, event)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

// TestPlayerIsPlayingInitial verifies a fresh Player reports not playing.
func TestPlayerIsPlayingInitial(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})
	if p.IsPlaying() {
		t.Error("expected IsPlaying()=false on a fresh Player")
	}
	if p.IsPaused() {
		t.Error("expected IsPaused()=false on a fresh Player")
	}
}

// TestPlayerGetPositionNotPlaying verifies GetPosition returns 0 when idle.
func TestPlayerGetPositionNotPlaying(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})
	p.frames.Store(10)
	if got := p.GetPosition(); got != 0 {
		t.Errorf("GetPosition() = %v, want 0 when not playing", got)
	}
}

func TestPlayerPlaysWholeStream(t *testing.T) {
	var out bytes.Buffer
	p := newTestPlayer(&out)

	data := NewLoadResult(bytes.NewReader(make([]byte, FrameBytes*3+10)), "abc")
	if err := p.Play(context.Background(), data); err != nil {
		t.Fatalf("Play: %v", err)
	}

	drain(t, p.Notifications, PlaybackStarted, PlaybackCompleted)
	if out.Len() != FrameBytes*3 {
		t.Errorf("sink got %d bytes, want %d", out.Len(), FrameBytes*3)
	}
	if p.IsPlaying() {
		t.Error("expected IsPlaying()=false after completion")
	}
}

func TestPlayerStopsOnContextCancel(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- p.Play(ctx, NewLoadResult(zeroReader{}, "abc"))
	}()
	drain(t, p.Notifications, PlaybackStarted)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Play: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
	drain(t, p.Notifications, PlaybackStopped)
}

func TestPlayerPauseResume(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})
	go p.Play(context.Background(), NewLoadResult(zeroReader{}, "abc"))
	drain(t, p.Notifications, PlaybackStarted)

	p.Pause()
	p.Pause()
	if !p.IsPaused() {
		t.Error("expected IsPaused()=true after Pause")
	}
	p.Resume()
	drain(t, p.Notifications, PlaybackPaused, PlaybackResumed)

	p.Stop()
	drain(t, p.Notifications, PlaybackStopped)
}

func TestPlayerPositionIncludesOffset(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})
	data := NewLoadResult(zeroReader{}, "abc")
	data.Offset = 30 * time.Second
	go p.Play(context.Background(), data)
	drain(t, p.Notifications, PlaybackStarted)

	if got := p.GetPosition(); got < 30*time.Second {
		t.Errorf("GetPosition() = %v, want at least the 30s offset", got)
	}
	p.Stop()
	drain(t, p.Notifications, PlaybackStopped)
}

// TestPlayerStopIsLockfree verifies Stop() completes while Play() holds the
// play mutex.
func TestPlayerStopIsLockfree(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})

	p.mutex.Lock()
	defer p.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop() blocked while mutex was held")
	}

	if !p.stopping.Load() {
		t.Error("stopping flag not set after Stop()")
	}
}

// TestPlayerVolumeConcurrent is a race-detector test for the volume setter.
func TestPlayerVolumeConcurrent(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				p.SetVolume(i)
			} else {
				_ = p.GetVolume()
			}
		}(i)
	}
	wg.Wait()
}

func TestPlayerSetVolumeClamps(t *testing.T) {
	p := newTestPlayer(&bytes.Buffer{})
	p.SetVolume(150)
	if got := p.GetVolume(); got != 100 {
		t.Errorf("GetVolume() = %d, want 100", got)
	}
	p.SetVolume(-5)
	if got := p.GetVolume(); got != 0 {
		t.Errorf("GetVolume() = %d, want 0", got)
	}
}

func TestApplyVolume(t *testing.T) {
	frame := make([]byte, 4)
	binary.LittleEndian.PutUint16(frame[0:], uint16(int16(1000)))
	right := int16(-1000)
	binary.LittleEndian.PutUint16(frame[2:], uint16(right))

	applyVolume(frame, 50)

	if got := int16(binary.LittleEndian.Uint16(frame[0:])); got != 500 {
		t.Errorf("left sample = %d, want 500", got)
	}
	if got := int16(binary.LittleEndian.Uint16(frame[2:])); got != -500 {
		t.Errorf("right sample = %d, want -500", got)
	}
}
