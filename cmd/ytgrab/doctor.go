package main

import (
	"errors"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that yt-dlp and ffmpeg can be executed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses := app.Status.Check(cmd.Context())

		names := lo.Keys(statuses)
		sort.Strings(names)

		down := 0
		for _, name := range names {
			status := statuses[name]
			if status.Status == "up" {
				cmd.Printf("%-8s ok    %s\n", name, status.Version)
				continue
			}
			down++
			cmd.Printf("%-8s down  %s\n", name, status.Error)
		}

		cmd.Printf("download dir: %s\n", app.Config.OutputDirectory())
		if down > 0 {
			return errors.New("missing dependencies")
		}
		return nil
	},
}
