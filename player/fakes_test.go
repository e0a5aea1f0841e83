package player

import (
	"fmt"
	"sync"
)

// callLog records widget calls across fakes so ordering can be asserted.
type callLog struct {
	mutex sync.Mutex
	calls []string
}

func (l *callLog) record(format string, args ...any) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = nil
}

func (l *callLog) list() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeYouTube struct {
	log      *callLog
	handlers YouTubeHandlers
	mutex    sync.Mutex
	state    int
	time     float64
	duration float64
}

func newFakeYouTube(log *callLog) *fakeYouTube {
	return &fakeYouTube{log: log, state: YouTubeUnstarted}
}

func (f *fakeYouTube) Bind(h YouTubeHandlers)    { f.handlers = h }
func (f *fakeYouTube) CueVideoByID(id string)    { f.log.record("yt.cue %s", id) }
func (f *fakeYouTube) PlayVideo()                { f.log.record("yt.play") }
func (f *fakeYouTube) PauseVideo()               { f.log.record("yt.pause") }
func (f *fakeYouTube) StopVideo()                { f.log.record("yt.stop") }
func (f *fakeYouTube) ClearVideo()               { f.log.record("yt.clear") }
func (f *fakeYouTube) SeekTo(seconds float64)    { f.log.record("yt.seek %.1f", seconds) }
func (f *fakeYouTube) SetVolume(level int)       { f.log.record("yt.volume %d", level) }
func (f *fakeYouTube) ready()                    { f.handlers.OnReady() }

func (f *fakeYouTube) GetCurrentTime() float64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.time
}

func (f *fakeYouTube) GetDuration() float64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.duration
}

func (f *fakeYouTube) GetPlayerState() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.state
}

func (f *fakeYouTube) setState(state int) {
	f.mutex.Lock()
	f.state = state
	f.mutex.Unlock()
	f.handlers.OnStateChange(state)
}

type fakeSoundCloud struct {
	log      *callLog
	handlers SoundCloudHandlers
	deferred func()
	async    bool
}

func (f *fakeSoundCloud) Bind(h SoundCloudHandlers) { f.handlers = h }
func (f *fakeSoundCloud) Load(url string, onLoaded func()) {
	f.log.record("sc.load %s", url)
	if f.async {
		f.deferred = onLoaded
		return
	}
	onLoaded()
}
func (f *fakeSoundCloud) Play()                   { f.log.record("sc.play") }
func (f *fakeSoundCloud) Pause()                  { f.log.record("sc.pause") }
func (f *fakeSoundCloud) SeekTo(ms float64)       { f.log.record("sc.seek %.0f", ms) }
func (f *fakeSoundCloud) SetVolume(ratio float64) { f.log.record("sc.volume %.2f", ratio) }
func (f *fakeSoundCloud) ready()                  { f.handlers.OnReady() }

type fakeMedia struct {
	log      *callLog
	handlers MediaHandlers
	status   MediaStatus
}

func (f *fakeMedia) Bind(h MediaHandlers) { f.handlers = h }
func (f *fakeMedia) SetMedia(url string) {
	f.log.record("media.set %s", url)
	f.status = MediaStatus{Src: url, Paused: true}
}
func (f *fakeMedia) Play()                   { f.log.record("media.play") }
func (f *fakeMedia) PlayAt(seconds float64)  { f.log.record("media.playat %.1f", seconds) }
func (f *fakeMedia) Pause()                  { f.log.record("media.pause") }
func (f *fakeMedia) Stop()                   { f.log.record("media.stop") }
func (f *fakeMedia) ClearMedia()             { f.log.record("media.clear"); f.status = MediaStatus{} }
func (f *fakeMedia) SetVolume(ratio float64) { f.log.record("media.volume %.2f", ratio) }
func (f *fakeMedia) Status() MediaStatus     { return f.status }
func (f *fakeMedia) ready()                  { f.handlers.OnReady() }

// eventRecorder collects adapter events.
type eventRecorder struct {
	mutex  sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(e Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []EventType {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	types := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *eventRecorder) reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = nil
}

type rig struct {
	log      *callLog
	yt       *fakeYouTube
	sc       *fakeSoundCloud
	media    *fakeMedia
	youtube  *YouTube
	adapter  *Adapter
	recorder *eventRecorder
}

// newRig builds an adapter over the three fakes, all reported ready, with the
// call log cleared.
func newRig() *rig {
	log := &callLog{}
	r := &rig{
		log:      log,
		yt:       newFakeYouTube(log),
		sc:       &fakeSoundCloud{log: log},
		media:    &fakeMedia{log: log},
		recorder: &eventRecorder{},
	}
	r.youtube = NewYouTube(r.yt)
	r.adapter = NewAdapter(80, NewLocalAudio(r.media), r.youtube, NewSoundCloud(r.sc))
	r.adapter.Listen("", r.recorder.handle)
	r.yt.ready()
	r.sc.ready()
	r.media.ready()
	r.log.reset()
	r.recorder.reset()
	return r
}
