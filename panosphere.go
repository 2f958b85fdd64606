package panosphere

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/av"
	"github.com/opd-ai/panosphere/av/video"
	"github.com/opd-ai/panosphere/config"
	"github.com/opd-ai/panosphere/share"
	"github.com/opd-ai/panosphere/view"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Image is a loaded panorama photo. The renderer decodes Data itself.
type Image struct {
	Handle asset.Handle
	Data   []byte
	Format asset.Format
	// Detected is false when the format could not be identified and Format
	// is the JPEG fallback.
	Detected bool
}

// Viewer is the core of a panorama viewer. It turns gestures into a view
// transform, plays at most one video at a time, and stages media for sharing.
// It draws nothing: the renderer polls CurrentViewTransform, CurrentFOV, and
// CurrentVideoFrame once per display frame.
type Viewer struct {
	cfg    *config.Config
	source asset.Source

	orientation *view.OrientationController
	zoom        *view.ZoomController
	manager     *av.Manager
	stager      *share.Stager

	mu             sync.Mutex
	current        asset.Handle
	image          *Image
	closed         bool
	onSeekComplete func(target float64, err error)
}

type options struct {
	timeProvider av.TimeProvider
	ticks        av.TickSourceFactory
	audio        av.AudioFactory
	registry     prometheus.Registerer
}

// Option configures a Viewer.
type Option func(*options)

// WithTimeProvider sets the time source for playback clocks and share expiry.
func WithTimeProvider(tp av.TimeProvider) Option {
	return func(o *options) { o.timeProvider = tp }
}

// WithTickSourceFactory replaces the interval tick sources of video sessions.
func WithTickSourceFactory(f av.TickSourceFactory) Option {
	return func(o *options) { o.ticks = f }
}

// WithAudioFactory sets how audio outputs are created for video sessions.
func WithAudioFactory(f av.AudioFactory) Option {
	return func(o *options) { o.audio = f }
}

// WithRegisterer registers playback and share metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// New creates a viewer reading media from source and decoding videos with
// decoders. A nil cfg selects config.Default().
func New(cfg *config.Config, source asset.Source, decoders av.DecoderFactory, opts ...Option) (*Viewer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "New",
			"error":    err.Error(),
		}).Error("Configuration validation failed")
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeProvider == nil {
		o.timeProvider = av.DefaultTimeProvider{}
	}

	managerOpts := []av.Option{
		av.WithTimeProvider(o.timeProvider),
		av.WithTickSourceFactory(o.ticks),
		av.WithAudioFactory(o.audio),
		av.WithMetrics(av.NewMetrics(o.registry)),
	}
	manager, err := av.NewManager(source, decoders, cfg.SessionConfig(), managerOpts...)
	if err != nil {
		return nil, err
	}

	shareOpts := cfg.ShareOptions()
	shareOpts.TimeProvider = o.timeProvider
	shareOpts.Metrics = share.NewMetrics(o.registry)
	stager, err := share.NewStager(source, shareOpts)
	if err != nil {
		manager.Close()
		return nil, err
	}

	v := &Viewer{
		cfg:         cfg,
		source:      source,
		orientation: view.NewOrientationController(cfg.OrientationConfig()),
		zoom:        view.NewZoomController(cfg.ZoomConfig()),
		manager:     manager,
		stager:      stager,
	}

	logrus.WithFields(logrus.Fields{
		"function":  "New",
		"share_dir": stager.Dir(),
	}).Info("Viewer created")
	return v, nil
}

// Load presents handle. The previous medium is released first: an active
// video session is torn down completely before anything new is acquired.
// Orientation resets; the field of view carries over.
func (v *Viewer) Load(ctx context.Context, handle asset.Handle) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewerClosed
	}

	logrus.WithFields(logrus.Fields{
		"function": "Viewer.Load",
		"asset":    handle.String(),
	}).Info("Loading asset")

	v.orientation.Reset()
	v.current = asset.Handle{}
	v.image = nil

	switch handle.Kind() {
	case asset.KindVideo:
		s, err := v.manager.Replace(ctx, handle)
		if err != nil {
			return err
		}
		if v.onSeekComplete != nil {
			s.Seeker().SetCompletionCallback(v.onSeekComplete)
		}
	case asset.KindImage:
		if err := v.manager.Release(); err != nil && !errors.Is(err, av.ErrNoActiveSession) {
			logrus.WithFields(logrus.Fields{
				"function": "Viewer.Load",
				"error":    err.Error(),
			}).Warn("Previous session released with errors")
		}
		img, err := v.fetchImage(ctx, handle)
		if err != nil {
			return err
		}
		v.image = img
	default:
		return fmt.Errorf("%w: %s", asset.ErrUnsupportedKind, handle.Kind())
	}

	v.current = handle
	return nil
}

func (v *Viewer) fetchImage(ctx context.Context, handle asset.Handle) (*Image, error) {
	data, err := v.source.FetchImage(ctx, handle.ID(), asset.FetchOptions{
		NetworkAllowed: v.cfg.Playback.NetworkAllowed,
	})
	if err != nil {
		if !errors.Is(err, asset.ErrAssetUnavailable) {
			err = fmt.Errorf("%w: %s: %w", asset.ErrAssetUnavailable, handle.ID(), err)
		}
		logrus.WithFields(logrus.Fields{
			"function": "Viewer.fetchImage",
			"asset":    handle.String(),
			"error":    err.Error(),
		}).Error("Failed to fetch image")
		return nil, err
	}

	format, detected := asset.DetectFormat(data.Data, data.FormatHint)
	return &Image{Handle: handle, Data: data.Data, Format: format, Detected: detected}, nil
}

// Current returns the loaded asset, or the zero handle.
func (v *Viewer) Current() asset.Handle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// CurrentImage returns the loaded photo, or nil when a video or nothing is
// loaded.
func (v *Viewer) CurrentImage() *Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.image
}

// DragBegin starts a look-around gesture.
func (v *Viewer) DragBegin() { v.orientation.Begin() }

// DragUpdate applies a drag delta in platform-normalized units.
func (v *Viewer) DragUpdate(dx, dy float64) view.Orientation {
	return v.orientation.Update(dx, dy)
}

// DragEnd finishes the look-around gesture.
func (v *Viewer) DragEnd() { v.orientation.End() }

// PinchBegin starts a zoom gesture.
func (v *Viewer) PinchBegin() { v.zoom.Begin() }

// PinchUpdate applies the cumulative pinch scale and returns the new FOV.
func (v *Viewer) PinchUpdate(scale float64) float64 {
	return v.zoom.Update(scale)
}

// PinchEnd finishes the zoom gesture.
func (v *Viewer) PinchEnd() { v.zoom.End() }

// CurrentViewTransform returns the view matrix for the current orientation.
func (v *Viewer) CurrentViewTransform() view.Mat4 {
	return v.orientation.ViewTransform()
}

// CurrentOrientation returns the camera yaw and pitch.
func (v *Viewer) CurrentOrientation() view.Orientation {
	return v.orientation.Orientation()
}

// CurrentFOV returns the vertical field of view in degrees.
func (v *Viewer) CurrentFOV() float64 {
	return v.zoom.FOV()
}

// CurrentProjection returns the projection matrix for a viewport aspect ratio.
func (v *Viewer) CurrentProjection(aspect float64) view.Mat4 {
	return v.zoom.Projection(aspect)
}

// CurrentVideoFrame returns the frame to draw at host time, or nil when no
// video is playing or no frame has been decoded yet.
func (v *Viewer) CurrentVideoFrame(host time.Time) *video.Frame {
	s := v.manager.Active()
	if s == nil {
		return nil
	}
	return s.CurrentFrame(host)
}

func (v *Viewer) session() (*av.Session, error) {
	s := v.manager.Active()
	if s == nil {
		return nil, av.ErrNoActiveSession
	}
	return s, nil
}

// PlaybackState returns the state of the active video.
func (v *Viewer) PlaybackState() (av.PlaybackState, error) {
	s, err := v.session()
	if err != nil {
		return av.PlaybackState{}, err
	}
	return s.State(), nil
}

// Play starts or resumes the active video.
func (v *Viewer) Play() error {
	s, err := v.session()
	if err != nil {
		return err
	}
	return s.Play()
}

// Pause pauses the active video.
func (v *Viewer) Pause() error {
	s, err := v.session()
	if err != nil {
		return err
	}
	return s.Pause()
}

// Stop ends playback of the active video without looping.
func (v *Viewer) Stop() error {
	s, err := v.session()
	if err != nil {
		return err
	}
	return s.Stop()
}

// SetMuted mutes or unmutes the active video.
func (v *Viewer) SetMuted(muted bool) error {
	s, err := v.session()
	if err != nil {
		return err
	}
	s.SetMuted(muted)
	return nil
}

// BeginScrub starts a scrub of the progress control. It reports false when
// no video is active or a seek is in flight.
func (v *Viewer) BeginScrub() bool {
	s := v.manager.Active()
	return s != nil && s.Seeker().BeginScrub()
}

// UpdateScrub moves the scrub preview position.
func (v *Viewer) UpdateScrub(progress float64) bool {
	s := v.manager.Active()
	return s != nil && s.Seeker().UpdateScrub(progress)
}

// EndScrub finishes the scrub by seeking to target.
func (v *Viewer) EndScrub(target float64) bool {
	s := v.manager.Active()
	return s != nil && s.Seeker().EndScrub(target)
}

// Seek jumps to target, a fraction of the duration. It reports false when
// the seek was not issued.
func (v *Viewer) Seek(target float64) bool {
	s := v.manager.Active()
	return s != nil && s.Seeker().Seek(target)
}

// OnProgress registers fn to receive progress reports of video sessions.
func (v *Viewer) OnProgress(fn func(sessionID string, progress float64)) {
	v.manager.SetProgressCallback(fn)
}

// OnStateChange registers fn to receive video session state changes.
func (v *Viewer) OnStateChange(fn func(sessionID string, state av.SessionState)) {
	v.manager.SetStateCallback(fn)
}

// OnSeekComplete registers fn to run when a seek of the active or any later
// video session completes.
func (v *Viewer) OnSeekComplete(fn func(target float64, err error)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSeekComplete = fn
	if s := v.manager.Active(); s != nil {
		s.Seeker().SetCompletionCallback(fn)
	}
}

// Share stages handle for the share sheet in the background and calls
// onReady with the staged copy or the error. The host must pass the copy to
// ReleaseShare once the share sheet is dismissed.
func (v *Viewer) Share(ctx context.Context, handle asset.Handle, onReady func(*share.StagedAsset, error)) {
	v.stager.Stage(ctx, handle, onReady)
}

// ShareBatch stages handles in the background. Failed items are reported in
// the batch without aborting the others.
func (v *Viewer) ShareBatch(ctx context.Context, handles []asset.Handle, onReady func(*share.Batch, error)) {
	v.stager.StageBatch(ctx, handles, onReady)
}

// ReleaseShare deletes a staged copy.
func (v *Viewer) ReleaseShare(staged *share.StagedAsset) error {
	return v.stager.Release(staged)
}

// Manager returns the playback manager.
func (v *Viewer) Manager() *av.Manager { return v.manager }

// Stager returns the share stager.
func (v *Viewer) Stager() *share.Stager { return v.stager }

// Close tears down playback and deletes every staged copy. It is safe to
// call more than once.
func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.current = asset.Handle{}
	v.image = nil
	v.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Viewer.Close",
	}).Info("Closing viewer")

	return errors.Join(v.manager.Close(), v.stager.Close())
}
