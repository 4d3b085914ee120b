package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"ytgrab/backend"
)

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolP("audio", "a", false, "Download audio only")
	getCmd.Flags().StringP("format", "f", "", "Output container (mp4, mkv, mp3, m4a, wav)")
	getCmd.Flags().IntP("height", "H", 0, "Maximum video height, 0 = best")
	getCmd.Flags().IntP("limit", "l", 0, "Maximum playlist entries (0 = config default)")
	getCmd.Flags().StringP("items", "i", "", "Playlist entries to download, 1-based (e.g. 1,3,5-7)")
}

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Download a video, playlist or channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		ctx := cmd.Context()

		mode := app.Config.DefaultMode
		if lo.Must(flags.GetBool("audio")) {
			mode = backend.ModeAudio
		}
		container := lo.Must(flags.GetString("format"))
		if container == "" {
			container = app.Config.ContainerFor(mode)
		}
		if err := backend.ValidateContainer(mode, container); err != nil {
			return err
		}
		height := lo.Must(flags.GetInt("height"))
		if height == 0 {
			height = app.Config.MaxHeight
		}
		limit := lo.Must(flags.GetInt("limit"))
		if limit <= 0 {
			limit = app.Config.PlaylistLimit
		}
		selected, err := parseItems(lo.Must(flags.GetString("items")))
		if err != nil {
			return err
		}

		analysis, err := app.Analyzer.Analyze(ctx, args[0], limit)
		if err != nil {
			return err
		}

		progress := newProgressPrinter(cmd.ErrOrStderr())
		dest := app.Config.OutputDirectory()

		if analysis.IsPlaylist() {
			batch := app.Downloader.DownloadPlaylist(ctx, backend.PlaylistJob{
				Playlist:  analysis.Playlist,
				Selected:  selected,
				Mode:      mode,
				Container: container,
				Quality:   capHeight(height),
				DestDir:   dest,
				Progress:  progress.Update,
				OnItem: func(index, total int, title string) {
					progress.Done()
					cmd.Printf("[%d/%d] Downloading: %s\n", index, total, title)
				},
			})
			progress.Done()
			cmd.Println(batch.Message)
			if batch.Attempted > 0 && batch.Succeeded == 0 {
				return errors.New("no playlist entry could be downloaded")
			}
			return nil
		}

		item := analysis.Item
		var outcome backend.Outcome
		if mode == backend.ModeAudio {
			outcome = app.Downloader.DownloadAudio(ctx, backend.AudioRequest{
				URL: args[0], Container: container, Title: item.Title, DestDir: dest,
				Channel: item.Uploader, ChannelID: item.UploaderID, Progress: progress.Update,
			})
		} else {
			quality := backend.PickQuality(analysis.Qualities, height)
			if quality == nil {
				quality = capHeight(height)
			}
			outcome = app.Downloader.DownloadVideo(ctx, backend.VideoRequest{
				URL: args[0], Quality: quality, Container: container, Title: item.Title, DestDir: dest,
				Channel: item.Uploader, ChannelID: item.UploaderID, Progress: progress.Update,
			})
		}
		progress.Done()

		if !outcome.Success {
			return errors.New(outcome.Message)
		}
		cmd.Println(outcome.Message)
		if outcome.Path != "" {
			cmd.Println(outcome.Path)
		}
		return nil
	},
}

func capHeight(height int) *backend.QualityOption {
	if height <= 0 {
		return nil
	}
	return &backend.QualityOption{Label: fmt.Sprintf("%dp", height), Height: height}
}

// parseItems turns "1,3,5-7" into 0-based indices
func parseItems(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var indices []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		from, to, isRange := strings.Cut(part, "-")

		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid item %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(to))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid range %q", part)
			}
		}
		for i := start; i <= end; i++ {
			indices = append(indices, i-1)
		}
	}
	return lo.Uniq(indices), nil
}
