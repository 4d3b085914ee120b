package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ytgrab/backend"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info URL",
	Short: "Show a video's metadata and available qualities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := app.Analyzer.FetchVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		cmd.Printf("Title:    %s\n", item.Title)
		if item.Uploader != "" {
			cmd.Printf("Channel:  %s\n", item.Uploader)
		}
		if item.Duration > 0 {
			cmd.Printf("Duration: %s\n", time.Duration(item.Duration*float64(time.Second)).Round(time.Second))
		}
		cmd.Println()

		printQualities(cmd, backend.BuildQualityTable(item))
		return nil
	},
}

func printQualities(cmd *cobra.Command, table []backend.QualityOption) {
	if len(table) == 0 {
		cmd.Println("No video qualities available")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUALITY\tFORMAT\tEXT\tFPS\tAUDIO\tSIZE\tCODECS")
	for _, q := range table {
		size := "-"
		if q.Filesize > 0 {
			size = humanize.IBytes(uint64(q.Filesize))
		}
		audio := "no"
		if q.HasAudio {
			audio = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%s\t%s\n", q.Label, q.FormatID, q.Ext, q.FPS, audio, size, codecs(q))
	}
	w.Flush()
}

func codecs(q backend.QualityOption) string {
	if q.ACodec == "" {
		return q.VCodec
	}
	return q.VCodec + "+" + q.ACodec
}
