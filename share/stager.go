package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/timing"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultGraceTimeout is how long a staged copy outlives an unanswered
	// share before it is deleted.
	DefaultGraceTimeout = 5 * time.Minute
	// DefaultConcurrency bounds parallel copies in a batch.
	DefaultConcurrency = 4
	// DefaultDirName is the staging directory created under the OS temp dir.
	DefaultDirName = "panosphere-share"
)

// TimeProvider abstracts time operations, including the grace timers, for
// deterministic testing.
type TimeProvider = timing.Provider

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider = timing.System

// Options configures a Stager.
type Options struct {
	// Dir is the staging root. It is created if missing.
	Dir string
	// GraceTimeout deletes copies the host never released.
	GraceTimeout time.Duration
	// Concurrency bounds parallel copies in a batch.
	Concurrency int
	// NetworkAllowed permits fetching remote-backed assets.
	NetworkAllowed bool
	// TimeProvider defaults to DefaultTimeProvider.
	TimeProvider TimeProvider
	// Metrics defaults to unregistered collectors.
	Metrics *Metrics
}

// DefaultOptions returns options staging under the OS temp directory.
func DefaultOptions() Options {
	return Options{
		Dir:          filepath.Join(os.TempDir(), DefaultDirName),
		GraceTimeout: DefaultGraceTimeout,
		Concurrency:  DefaultConcurrency,
	}
}

// Stager produces staged copies of assets and tracks every one of them until
// it is deleted.
type Stager struct {
	source         asset.Source
	dir            string
	grace          time.Duration
	concurrency    int
	networkAllowed bool
	timeProvider   TimeProvider
	metrics        *Metrics

	mu     sync.Mutex
	live   map[string]*StagedAsset
	closed bool
	wg     sync.WaitGroup
}

// NewStager creates the staging directory and removes stale copies left
// there by an earlier process.
func NewStager(source asset.Source, opts Options) (*Stager, error) {
	if source == nil {
		return nil, errors.New("asset source cannot be nil")
	}
	defaults := DefaultOptions()
	if opts.Dir == "" {
		opts.Dir = defaults.Dir
	}
	if opts.GraceTimeout <= 0 {
		opts.GraceTimeout = defaults.GraceTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = DefaultTimeProvider{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	if err := os.MkdirAll(opts.Dir, dirMode); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewStager",
			"dir":      opts.Dir,
			"error":    err.Error(),
		}).Error("Failed to create staging directory")
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	s := &Stager{
		source:         source,
		dir:            opts.Dir,
		grace:          opts.GraceTimeout,
		concurrency:    opts.Concurrency,
		networkAllowed: opts.NetworkAllowed,
		timeProvider:   opts.TimeProvider,
		metrics:        opts.Metrics,
		live:           make(map[string]*StagedAsset),
	}
	s.sweep()

	logrus.WithFields(logrus.Fields{
		"function":      "NewStager",
		"dir":           s.dir,
		"grace_timeout": s.grace,
		"concurrency":   s.concurrency,
	}).Info("Share stager ready")
	return s, nil
}

// Dir returns the staging root.
func (s *Stager) Dir() string { return s.dir }

// sweep removes staging directories older than the grace timeout.
func (s *Stager) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stager.sweep",
			"error":    err.Error(),
		}).Warn("Orphan sweep failed")
		return
	}

	cutoff := s.timeProvider.Now().Add(-s.grace)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stager.sweep",
				"path":     path,
				"error":    err.Error(),
			}).Warn("Failed to remove orphaned staging entry")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.metrics.OrphansSwept.Add(float64(removed))
		logrus.WithFields(logrus.Fields{
			"function": "Stager.sweep",
			"removed":  removed,
		}).Info("Removed orphaned staging entries")
	}
}

// Stage copies handle in the background and calls onReady exactly once with
// the staged copy or the error.
func (s *Stager) Stage(ctx context.Context, handle asset.Handle, onReady func(*StagedAsset, error)) {
	if !s.begin() {
		go onReady(nil, ErrStagerClosed)
		return
	}
	go func() {
		defer s.wg.Done()
		staged, err := s.StageSync(ctx, handle)
		onReady(staged, err)
	}()
}

// StageSync copies handle and returns the staged copy. Cancelling ctx before
// the copy starts prevents it; a copy already under way runs to completion
// and is then deleted.
func (s *Stager) StageSync(ctx context.Context, handle asset.Handle) (*StagedAsset, error) {
	if !s.begin() {
		return nil, ErrStagerClosed
	}
	defer s.wg.Done()

	start := s.timeProvider.Now()
	staged, err := s.stage(ctx, handle)
	if err != nil {
		s.metrics.Failures.Inc()
		logrus.WithFields(logrus.Fields{
			"function": "Stager.StageSync",
			"asset":    handle.String(),
			"error":    err.Error(),
		}).Error("Failed to stage asset")
		return nil, fmt.Errorf("%w: %s: %w", ErrStagingFailed, handle.ID(), err)
	}
	s.metrics.StageSeconds.Observe(s.timeProvider.Since(start).Seconds())

	if err := ctx.Err(); err != nil {
		s.discard(staged, ReasonAbandoned)
		return nil, fmt.Errorf("%w: %s: abandoned: %w", ErrStagingFailed, handle.ID(), err)
	}
	if err := s.track(staged); err != nil {
		return nil, err
	}
	return staged, nil
}

// begin registers an operation unless the stager is closed.
func (s *Stager) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Stager) stage(ctx context.Context, handle asset.Handle) (*StagedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := asset.FetchOptions{NetworkAllowed: s.networkAllowed}

	var staged *StagedAsset
	switch handle.Kind() {
	case asset.KindImage:
		data, err := s.source.FetchImage(ctx, handle.ID(), opts)
		if err != nil {
			return nil, err
		}
		payload, format, err := imagePayload(data)
		if err != nil {
			return nil, err
		}
		name := data.Name
		if name == "" {
			name = filepath.Base(handle.ID())
			name = name[:len(name)-len(filepath.Ext(name))]
		}
		staged, err = writeStaged(s.dir, stagedName(name+format.Extension), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		staged.ContentType = format.ContentType

	case asset.KindVideo:
		file, err := s.source.FetchVideo(ctx, handle.ID(), opts)
		if err != nil {
			return nil, err
		}
		staged, err = s.copyVideo(handle, file)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %s", asset.ErrUnsupportedKind, handle.Kind())
	}

	staged.Source = handle
	staged.StagedAt = s.timeProvider.Now()
	s.metrics.Staged.WithLabelValues(handle.Kind().String()).Inc()
	s.metrics.Bytes.Add(float64(staged.Size))
	return staged, nil
}

// copyVideo copies a video file, holding scoped access to it for the whole
// copy.
func (s *Stager) copyVideo(handle asset.Handle, file *asset.VideoFile) (*StagedAsset, error) {
	guard, err := asset.Acquire(file.Scope, handle.ID())
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	src, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", asset.ErrAssetUnavailable, err)
	}
	defer src.Close()

	ext := filepath.Ext(file.Path)
	if ext == "" {
		ext = ".mp4"
	}
	base := filepath.Base(file.Path)
	name := stagedName(base[:len(base)-len(filepath.Ext(base))] + ext)

	staged, err := writeStaged(s.dir, name, src)
	if err != nil {
		return nil, err
	}
	staged.ContentType = videoContentType(ext)
	return staged, nil
}

// track makes staged live and arms its grace timer.
func (s *Stager) track(staged *StagedAsset) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.discard(staged, ReasonClosed)
		return ErrStagerClosed
	}
	s.live[staged.AccessToken] = staged
	staged.timer = s.timeProvider.AfterFunc(s.grace, func() {
		if err := s.release(staged, ReasonExpired); err == nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stager.expire",
				"path":     staged.Path,
			}).Warn("Staged copy expired before release")
		}
	})
	live := len(s.live)
	s.mu.Unlock()

	s.metrics.Live.Set(float64(live))
	logrus.WithFields(logrus.Fields{
		"function":     "Stager.track",
		"asset":        staged.Source.String(),
		"path":         staged.Path,
		"content_type": staged.ContentType,
		"size":         staged.Size,
	}).Info("Asset staged")
	return nil
}

// Release deletes a staged copy. The host calls it once the share finishes,
// whether it was accepted or cancelled. Later calls return
// ErrAlreadyReleased.
func (s *Stager) Release(staged *StagedAsset) error {
	if staged == nil {
		return errors.New("staged asset cannot be nil")
	}
	return s.release(staged, ReasonReleased)
}

func (s *Stager) release(staged *StagedAsset, reason string) error {
	first := false
	staged.once.Do(func() { first = true })
	if !first {
		return ErrAlreadyReleased
	}
	staged.released.Store(true)

	s.mu.Lock()
	delete(s.live, staged.AccessToken)
	timer := staged.timer
	live := len(s.live)
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	err := os.RemoveAll(staged.dir)

	s.metrics.Released.WithLabelValues(reason).Inc()
	s.metrics.Live.Set(float64(live))

	fields := logrus.Fields{
		"function": "Stager.release",
		"path":     staged.Path,
		"reason":   reason,
	}
	if err != nil {
		fields["error"] = err.Error()
		logrus.WithFields(fields).Warn("Failed to delete staged copy")
		return fmt.Errorf("failed to delete staged copy: %w", err)
	}
	logrus.WithFields(fields).Info("Staged copy released")
	return nil
}

// discard deletes a copy that never became live.
func (s *Stager) discard(staged *StagedAsset, reason string) {
	if err := s.release(staged, reason); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stager.discard",
			"path":     staged.Path,
			"error":    err.Error(),
		}).Warn("Failed to discard staged copy")
	}
}

// Lookup returns the live staged copy with the given access token.
func (s *Stager) Lookup(token string) (*StagedAsset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, ok := s.live[token]
	return staged, ok
}

// Live returns the staged copies awaiting release, oldest first.
func (s *Stager) Live() []*StagedAsset {
	s.mu.Lock()
	live := make([]*StagedAsset, 0, len(s.live))
	for _, staged := range s.live {
		live = append(live, staged)
	}
	s.mu.Unlock()

	sort.Slice(live, func(i, j int) bool {
		if live[i].StagedAt.Equal(live[j].StagedAt) {
			return live[i].Path < live[j].Path
		}
		return live[i].StagedAt.Before(live[j].StagedAt)
	})
	return live
}

// Close stops accepting requests, waits for copies in progress, and deletes
// every live copy. Callbacks passed to Stage or StageBatch must not call it.
func (s *Stager) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()

	var errs []error
	for _, staged := range s.Live() {
		if err := s.release(staged, ReasonClosed); err != nil && !errors.Is(err, ErrAlreadyReleased) {
			errs = append(errs, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stager.Close",
		"dir":      s.dir,
	}).Info("Share stager closed")
	return errors.Join(errs...)
}
