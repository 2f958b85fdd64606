package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/panosphere"
	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/av"
	"github.com/opd-ai/panosphere/share"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <media-dir> [asset-id...]",
	Short: "Stage assets for sharing and release them after a hold",
	Long: `Share stages the given assets, or every asset in the media directory,
as one batch, prints the staged copies, holds them the way an open share
sheet would, and then releases them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShare,
}

var (
	shareHold    time.Duration
	shareNetwork bool
)

func init() {
	rootCmd.AddCommand(shareCmd)

	shareCmd.Flags().DurationVar(&shareHold, "hold", 10*time.Second, "How long to keep the staged copies")
	shareCmd.Flags().BoolVar(&shareNetwork, "network", false, "Allow fetching remote-backed assets")
}

var errNoPlayback = errors.New("playback is not available in share mode")

func runShare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := asset.NewDirSource(args[0])
	if err != nil {
		return err
	}
	var handles []asset.Handle
	if len(args) > 1 {
		for _, id := range args[1:] {
			h, err := source.Handle(id)
			if err != nil {
				return err
			}
			handles = append(handles, h)
		}
	} else if handles, err = source.Handles(); err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("no assets in %s", source.Root())
	}

	if shareNetwork {
		cfg.Share.NetworkAllowed = true
	}
	noPlayback := func(context.Context, asset.Handle, *asset.VideoFile) (av.Decoder, error) {
		return nil, errNoPlayback
	}
	viewer, err := panosphere.New(cfg, source, noPlayback)
	if err != nil {
		return err
	}
	defer viewer.Close()

	type result struct {
		batch *share.Batch
		err   error
	}
	ready := make(chan result, 1)
	viewer.ShareBatch(ctx, handles, func(b *share.Batch, err error) {
		ready <- result{b, err}
	})
	r := <-ready
	if r.err != nil {
		return r.err
	}

	out := cmd.OutOrStdout()
	for _, item := range r.batch.Items {
		fmt.Fprintf(out, "%s\t%s\t%d bytes\tblake2b %s\t%s\n",
			item.Path, item.ContentType, item.Size, hex.EncodeToString(item.Checksum)[:16], item.Source.ID())
	}
	for _, failure := range r.batch.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", failure)
	}

	select {
	case <-ctx.Done():
	case <-time.After(shareHold):
	}

	for _, item := range r.batch.Items {
		if err := viewer.ReleaseShare(item); err != nil && !errors.Is(err, share.ErrAlreadyReleased) {
			fmt.Fprintf(cmd.ErrOrStderr(), "release %s: %v\n", item.Path, err)
		}
	}
	fmt.Fprintf(out, "released %d staged copies\n", len(r.batch.Items))
	return nil
}
