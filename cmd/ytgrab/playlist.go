package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(playlistCmd)
	playlistCmd.Flags().IntP("limit", "l", 0, "Maximum number of entries (0 = config default)")
}

var playlistCmd = &cobra.Command{
	Use:   "playlist URL",
	Short: "List the entries of a playlist or channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := lo.Must(cmd.Flags().GetInt("limit"))
		if limit <= 0 {
			limit = app.Config.PlaylistLimit
		}

		playlist, err := app.Playlists.Resolve(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		cmd.Printf("%s (%d entries)\n\n", playlist.Title, playlist.Count)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for i, entry := range playlist.Entries {
			duration := "-"
			if entry.Duration > 0 {
				duration = time.Duration(entry.Duration * float64(time.Second)).Round(time.Second).String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, entry.Title, duration)
		}
		return w.Flush()
	},
}
