package av

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/av/audio"
	"github.com/opd-ai/panosphere/av/video"
	"github.com/opd-ai/panosphere/timing"
	"github.com/stretchr/testify/require"
)

// fakeTime only moves when advanced.
type fakeTime = timing.Manual

func newFakeTime() *fakeTime {
	return timing.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// eventLog records resource events in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// index returns the position of event, or -1.
func (l *eventLog) index(event string) int {
	for i, e := range l.snapshot() {
		if e == event {
			return i
		}
	}
	return -1
}

func (l *eventLog) with(prefix string) []string {
	var out []string
	for _, e := range l.snapshot() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

type recordingScope struct {
	id  string
	log *eventLog
}

func (r *recordingScope) StartAccessing() bool {
	r.log.add("scope.start:%s", r.id)
	return true
}

func (r *recordingScope) StopAccessing() {
	r.log.add("scope.stop:%s", r.id)
}

type fakeSource struct {
	log     *eventLog
	missing map[string]bool
}

func (f *fakeSource) FetchImage(ctx context.Context, id string, opts asset.FetchOptions) (*asset.ImageData, error) {
	return nil, fmt.Errorf("%w: %s", asset.ErrUnsupportedKind, id)
}

func (f *fakeSource) FetchVideo(ctx context.Context, id string, opts asset.FetchOptions) (*asset.VideoFile, error) {
	if f.missing[id] {
		return nil, fmt.Errorf("%w: %s", asset.ErrAssetUnavailable, id)
	}
	return &asset.VideoFile{Path: "/videos/" + id, Scope: &recordingScope{id: id, log: f.log}}, nil
}

// fakeDecoder wraps a pattern decoder with failure injection.
type fakeDecoder struct {
	*video.PatternDecoder
	id  string
	log *eventLog

	unknownDuration bool
	seekErr         error
	seekGate        chan struct{}

	mu        sync.Mutex
	reads     int
	failAfter int
}

func (d *fakeDecoder) Duration() time.Duration {
	if d.unknownDuration {
		return 0
	}
	return d.PatternDecoder.Duration()
}

func (d *fakeDecoder) ReadFrame(ctx context.Context) (*video.Frame, error) {
	d.mu.Lock()
	d.reads++
	fail := d.failAfter > 0 && d.reads > d.failAfter
	d.mu.Unlock()
	if fail {
		return nil, errors.New("corrupt bitstream")
	}
	return d.PatternDecoder.ReadFrame(ctx)
}

func (d *fakeDecoder) Seek(ctx context.Context, pos time.Duration) error {
	if d.seekGate != nil {
		select {
		case <-d.seekGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.log.add("decoder.seek:%s:%v", d.id, pos)
	if d.seekErr != nil {
		return d.seekErr
	}
	return d.PatternDecoder.Seek(ctx, pos)
}

func (d *fakeDecoder) Close() error {
	d.log.add("decoder.close:%s", d.id)
	return d.PatternDecoder.Close()
}

// audioHardware admits one active output at a time.
type audioHardware struct {
	mu    sync.Mutex
	owner string
}

type recordingOutput struct {
	id  string
	hw  *audioHardware
	log *eventLog

	mu      sync.Mutex
	playing bool
	muted   bool
}

func (o *recordingOutput) Activate() error {
	o.hw.mu.Lock()
	defer o.hw.mu.Unlock()
	if o.hw.owner != "" {
		return fmt.Errorf("%w: held by %s", audio.ErrOutputActive, o.hw.owner)
	}
	o.hw.owner = o.id
	o.log.add("audio.activate:%s", o.id)
	return nil
}

func (o *recordingOutput) SetPlaying(playing bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = playing
}

func (o *recordingOutput) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

func (o *recordingOutput) Deactivate() error {
	o.hw.mu.Lock()
	defer o.hw.mu.Unlock()
	if o.hw.owner == o.id {
		o.hw.owner = ""
	}
	o.log.add("audio.deactivate:%s", o.id)
	return nil
}

func (o *recordingOutput) state() (playing, muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing, o.muted
}

// recordingTicks logs Stop calls of a manual tick source.
type recordingTicks struct {
	*ManualTickSource
	name string
	log  *eventLog
}

func (r *recordingTicks) Stop() {
	r.log.add("ticks.stop:%s", r.name)
	r.ManualTickSource.Stop()
}

type harness struct {
	t      *testing.T
	tp     *fakeTime
	log    *eventLog
	source *fakeSource
	hw     *audioHardware
	mgr    *Manager

	mu        sync.Mutex
	current   string
	durations map[string]time.Duration
	decoders  map[string]*fakeDecoder
	outputs   map[string]*recordingOutput
	ticks     map[string]*ManualTickSource
	states    []string
	configure func(*fakeDecoder)
}

func newHarness(t *testing.T, cfg SessionConfig) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		tp:        newFakeTime(),
		log:       &eventLog{},
		hw:        &audioHardware{},
		durations: make(map[string]time.Duration),
		decoders:  make(map[string]*fakeDecoder),
		outputs:   make(map[string]*recordingOutput),
		ticks:     make(map[string]*ManualTickSource),
	}
	h.source = &fakeSource{log: h.log, missing: make(map[string]bool)}

	mgr, err := NewManager(h.source, h.openDecoder, cfg,
		WithTimeProvider(h.tp),
		WithTickSourceFactory(h.newTicks),
		WithAudioFactory(h.newOutput),
	)
	require.NoError(t, err)
	mgr.SetStateCallback(func(id string, state SessionState) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.states = append(h.states, state.String())
	})
	h.mgr = mgr
	t.Cleanup(func() { mgr.Close() })
	return h
}

func (h *harness) openDecoder(ctx context.Context, handle asset.Handle, file *asset.VideoFile) (Decoder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	duration, ok := h.durations[handle.ID()]
	if !ok {
		return nil, fmt.Errorf("no media for %s", handle.ID())
	}
	unknown := duration == 0
	if unknown {
		duration = time.Second
	}
	pattern, err := video.NewPatternDecoder(16, 16, 30, duration)
	if err != nil {
		return nil, err
	}
	dec := &fakeDecoder{PatternDecoder: pattern, id: handle.ID(), log: h.log, unknownDuration: unknown}
	if h.configure != nil {
		h.configure(dec)
	}
	h.current = handle.ID()
	h.decoders[handle.ID()] = dec
	return dec, nil
}

func (h *harness) newOutput(dec Decoder) (audio.Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := &recordingOutput{id: h.current, hw: h.hw, log: h.log}
	h.outputs[h.current] = out
	return out, nil
}

func (h *harness) newTicks(kind TickKind, interval time.Duration) TickSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	name := kind.String() + ":" + h.current
	src := NewManualTickSource()
	h.ticks[name] = src
	return &recordingTicks{ManualTickSource: src, name: name, log: h.log}
}

func (h *harness) load(id string, duration time.Duration) *Session {
	h.t.Helper()
	h.mu.Lock()
	h.durations[id] = duration
	h.mu.Unlock()

	handle, err := asset.NewHandle(id, asset.KindVideo, 16, 16)
	require.NoError(h.t, err)
	s, err := h.mgr.Replace(context.Background(), handle)
	require.NoError(h.t, err)
	return s
}

func (h *harness) tick(kind TickKind, id string) bool {
	h.mu.Lock()
	src := h.ticks[kind.String()+":"+id]
	h.mu.Unlock()
	require.NotNil(h.t, src)
	return src.Fire(h.tp.Now())
}

func (h *harness) decoder(id string) *fakeDecoder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decoders[id]
}

func (h *harness) output(id string) *recordingOutput {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outputs[id]
}

func (h *harness) stateHistory() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.states...)
}

// awaitSeek returns a channel receiving the error of the next completed seek.
func awaitSeek(s *Session) <-chan error {
	done := make(chan error, 4)
	s.Seeker().SetCompletionCallback(func(target float64, err error) {
		done <- err
	})
	return done
}

func waitSeek(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("seek did not complete")
		return nil
	}
}
