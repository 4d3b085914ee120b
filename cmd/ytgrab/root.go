package main

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"ytgrab/backend"
)

// app is built once flags are parsed
var app *backend.App

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.PersistentFlags().StringP("config", "C", "", "Path to the INI config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("out", "o", "", "Download directory")
	rootCmd.PersistentFlags().String("yt-dlp", "", "Path to the yt-dlp binary")
	rootCmd.PersistentFlags().String("ffmpeg", "", "Path to the ffmpeg binary")
}

// rootCmd is the entry point for the ytgrab CLI.
var rootCmd = &cobra.Command{
	Use:           "ytgrab",
	Short:         "Resolve and download videos, playlists and channels",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		if path := lo.Must(flags.GetString("config")); path != "" {
			if err := os.Setenv("YTGRAB_CONFIG", path); err != nil {
				return err
			}
		}
		config, err := backend.LoadConfigWithEnv()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		if level := lo.Must(flags.GetString("log-level")); level != "" {
			config.LogLevel = level
		}
		if out := lo.Must(flags.GetString("out")); out != "" {
			if err := backend.ValidateOutputDirectory(out); err != nil {
				return err
			}
			config.DownloadDir = out
		}
		if path := lo.Must(flags.GetString("yt-dlp")); path != "" {
			config.YTDLPPath = path
		}
		if path := lo.Must(flags.GetString("ffmpeg")); path != "" {
			config.FFmpegPath = path
		}

		logger := backend.InitLoggerTo(os.Stderr, config.LogLevel, config.LogFormat)
		app = backend.NewApp(cmd.Context(), config, logger)
		return nil
	},
}
