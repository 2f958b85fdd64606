// Command panosphere drives the panorama viewer core from the terminal:
// synthetic video playback, share staging, and configuration inspection.
package main

import (
	"fmt"
	"os"

	"github.com/opd-ai/panosphere/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "panosphere",
	Short:         "360° panorama viewer core",
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `panosphere exercises the viewer core without a renderer.

It plays synthetic panorama video with the real playback pipeline, stages
media for sharing the way a share sheet would, and prints the effective
configuration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath == "" {
			cfg = config.Default()
		} else if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		return cfg.Log.Apply(logrus.StandardLogger())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "panosphere:", err)
		os.Exit(1)
	}
}
