package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"ytgrab/backend"
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.Flags().BoolP("audio", "a", false, "Download audio only")
	queueCmd.Flags().StringP("format", "f", "", "Output container")
	queueCmd.Flags().IntP("height", "H", 0, "Maximum video height, 0 = best")
}

var queueCmd = &cobra.Command{
	Use:   "queue URL...",
	Short: "Queue several URLs and download them one after another",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		req := backend.QueueRequest{
			Container: lo.Must(flags.GetString("format")),
			MaxHeight: lo.Must(flags.GetInt("height")),
		}
		if lo.Must(flags.GetBool("audio")) {
			req.Mode = backend.ModeAudio
		}

		queue := app.Queue
		events, unsubscribe := queue.Subscribe()
		defer unsubscribe()
		printed := make(chan struct{})

		for _, url := range args {
			req.URL = url
			if _, err := queue.Add(req); err != nil {
				return fmt.Errorf("%s: %w", url, err)
			}
		}

		go func() {
			defer close(printed)
			for event := range events {
				if event.Type != "updated" || event.Entry == nil {
					continue
				}
				switch event.State {
				case backend.StateReady, backend.StateAnalyzeFailed, backend.StateDone, backend.StateFailed:
					cmd.Printf("%-14s %s  %s\n", event.State, event.Entry.Title, event.Entry.Message)
				}
			}
		}()

		queue.StartProcessing()
		waitErr := queue.WaitIdle(cmd.Context())
		queue.StopProcessing()
		unsubscribe()
		<-printed
		if waitErr != nil {
			return waitErr
		}

		stats := queue.Stats()
		failed := stats.ByState[backend.StateFailed] + stats.ByState[backend.StateAnalyzeFailed]
		cmd.Printf("Queue finished. %d/%d successful.\n", stats.ByState[backend.StateDone], stats.Total)
		if failed > 0 {
			return fmt.Errorf("%d entries failed", failed)
		}
		return nil
	},
}
