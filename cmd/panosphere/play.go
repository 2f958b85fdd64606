package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/panosphere"
	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/av"
	"github.com/opd-ai/panosphere/av/video"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <media-dir> <video-id>",
	Short: "Play a video through the playback pipeline with a synthetic decoder",
	Long: `Play loads a video asset from a media directory and plays it with a
test-pattern decoder in place of a real codec. Scoped access, the frame
streamer, progress reporting, seeking, and teardown all run for real.

Playback loops unless --no-loop is given. Interrupt to stop.`,
	Args: cobra.ExactArgs(2),
	RunE: runPlay,
}

var (
	playLength  time.Duration
	playFPS     int
	playWidth   uint16
	playHeight  uint16
	playSeek    float64
	playMute    bool
	playNoLoop  bool
	playRunFor  time.Duration
	playMetrics string
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().DurationVar(&playLength, "length", 10*time.Second, "Synthetic media duration")
	playCmd.Flags().IntVar(&playFPS, "fps", 30, "Synthetic frame rate")
	playCmd.Flags().Uint16Var(&playWidth, "width", 1024, "Synthetic frame width")
	playCmd.Flags().Uint16Var(&playHeight, "height", 512, "Synthetic frame height")
	playCmd.Flags().Float64Var(&playSeek, "seek", -1, "Seek to this fraction of the duration after starting")
	playCmd.Flags().BoolVar(&playMute, "mute", false, "Start muted")
	playCmd.Flags().BoolVar(&playNoLoop, "no-loop", false, "Stop at the end of the media")
	playCmd.Flags().DurationVar(&playRunFor, "for", 0, "Stop after this long (0 runs until interrupted or ended)")
	playCmd.Flags().StringVar(&playMetrics, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := asset.NewDirSource(args[0])
	if err != nil {
		return err
	}
	handle, err := source.Handle(args[1])
	if err != nil {
		return err
	}
	if handle.Kind() != asset.KindVideo {
		return fmt.Errorf("%w: %s is not a video", asset.ErrUnsupportedKind, handle.ID())
	}

	if playNoLoop {
		cfg.Playback.Loop = false
	}
	reg := newRegistry()
	addr := cfg.Metrics.Addr
	if playMetrics != "" {
		addr = playMetrics
	}
	if addr != "" {
		srv, err := startMetricsServer(addr, reg)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Stop()
	}

	decoders := func(ctx context.Context, h asset.Handle, file *asset.VideoFile) (av.Decoder, error) {
		return video.NewPatternDecoder(playWidth, playHeight, playFPS, playLength)
	}
	viewer, err := panosphere.New(cfg, source, decoders, panosphere.WithRegisterer(reg))
	if err != nil {
		return err
	}
	defer viewer.Close()

	out := cmd.OutOrStdout()
	ended := make(chan struct{}, 1)
	viewer.OnProgress(func(_ string, progress float64) {
		fmt.Fprintf(out, "progress %5.1f%%\n", progress*100)
	})
	viewer.OnStateChange(func(id string, state av.SessionState) {
		fmt.Fprintf(out, "session %s %s\n", id, state)
		if state == av.StateEnded {
			select {
			case ended <- struct{}{}:
			default:
			}
		}
	})
	viewer.OnSeekComplete(func(target float64, err error) {
		if err != nil {
			fmt.Fprintf(out, "seek to %.2f failed: %v\n", target, err)
			return
		}
		fmt.Fprintf(out, "seek to %.2f done\n", target)
	})

	if err := viewer.Load(ctx, handle); err != nil {
		return err
	}
	if err := viewer.SetMuted(playMute); err != nil {
		return err
	}
	if err := viewer.Play(); err != nil {
		return err
	}
	if playSeek >= 0 && !viewer.Seek(playSeek) {
		fmt.Fprintln(out, "seek not issued")
	}

	var timeout <-chan time.Time
	if playRunFor > 0 {
		timer := time.NewTimer(playRunFor)
		defer timer.Stop()
		timeout = timer.C
	}

	seen := renderLoop(ctx, viewer, cfg.Playback.TickRate, ended, timeout)

	if s := viewer.Manager().Active(); s != nil {
		stats := s.FrameStats()
		fmt.Fprintf(out, "frames: rendered %d, presented %d, dropped %d, position %s\n",
			seen, stats.Presented, stats.Dropped, s.Position().Round(time.Millisecond))
	}
	return nil
}

// renderLoop polls the viewer once per display frame as a renderer would
// and counts distinct frames until playback ends or the loop is stopped.
func renderLoop(ctx context.Context, viewer *panosphere.Viewer, rate int, ended <-chan struct{}, timeout <-chan time.Time) int {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	var last *video.Frame
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return seen
		case <-ended:
			return seen
		case <-timeout:
			return seen
		case now := <-ticker.C:
			viewer.CurrentViewTransform()
			if f := viewer.CurrentVideoFrame(now); f != nil && f != last {
				last = f
				seen++
			}
		}
	}
}
