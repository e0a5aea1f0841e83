package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// SinkFactory opens the output for one playback run.
type SinkFactory func() (io.WriteCloser, error)

type ffplaySink struct {
	stdin io.WriteCloser
	cmd   *exec.Cmd
}

func (s *ffplaySink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Close ends the input and lets ffplay drain what it has buffered.
func (s *ffplaySink) Close() error {
	err := s.stdin.Close()
	go s.cmd.Wait()
	return err
}

// FFPlaySink plays PCM frames on the local sound device through ffplay.
func FFPlaySink(path string) SinkFactory {
	if path == "" {
		path = "ffplay"
	}
	return func() (io.WriteCloser, error) {
		cmd := exec.Command(path,
			"-nodisp",
			"-autoexit",
			"-loglevel", "error",
			"-f", "s16le",
			"-ar", strconv.Itoa(SampleRate),
			"-ac", strconv.Itoa(Channels),
			"-i", "pipe:0")
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("ffplay stdin: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("starting ffplay: %w", err)
		}
		log.WithFields(log.Fields{"module": "audio-sink", "pid": cmd.Process.Pid}).Debug("ffplay started")
		return &ffplaySink{stdin: stdin, cmd: cmd}, nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// DiscardSink paces playback without producing sound. Used on hosts without
// an audio device.
func DiscardSink() SinkFactory {
	return func() (io.WriteCloser, error) {
		return nopWriteCloser{io.Discard}, nil
	}
}

// WriterSink sends every run to w, mainly for tests.
func WriterSink(w io.Writer) SinkFactory {
	return func() (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	}
}
