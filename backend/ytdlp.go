package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/wader/goutubedl"
)

// YTDLP is the yt-dlp backed Resolver.
// Single-item metadata goes through goutubedl, everything else execs the binary directly.
type YTDLP struct {
	// Path to the yt-dlp binary, empty = goutubedl.Path
	Path string
	// FFmpegLocation is forwarded to yt-dlp when set
	FFmpegLocation string
	Logger         *slog.Logger
}

// NewYTDLP creates a resolver for the given binary path
func NewYTDLP(path, ffmpegLocation string, logger *slog.Logger) *YTDLP {
	if path != "" {
		goutubedl.Path = path
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{Path: path, FFmpegLocation: ffmpegLocation, Logger: logger}
}

func (y *YTDLP) binary() string {
	if y.Path != "" {
		return y.Path
	}
	return goutubedl.Path
}

// Version returns the yt-dlp version string
func (y *YTDLP) Version(ctx context.Context) (string, error) {
	v, err := goutubedl.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("yt-dlp not available: %w", err)
	}
	return strings.TrimSpace(v), nil
}

// Extract fetches the info dictionary for url
func (y *YTDLP) Extract(ctx context.Context, url string, opts ResolveOptions) (*RawInfo, error) {
	if opts.FFmpegLocation == "" {
		opts.FFmpegLocation = y.FFmpegLocation
	}
	if y.isSingle(opts) {
		return y.extractSingle(ctx, url)
	}

	args := append([]string{"-J"}, opts.Args()...)
	args = append(args, "--", url)

	cmd := exec.CommandContext(ctx, y.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, runErr := cmd.Output()
	if runErr != nil && (!opts.IgnoreErrors || len(bytes.TrimSpace(output)) == 0) {
		return nil, fmt.Errorf("yt-dlp extraction failed: %w: %s", runErr, lastLine(stderr.String()))
	}
	if runErr != nil {
		// --ignore-errors still exits non-zero when some entries failed
		y.Logger.Debug("yt-dlp reported partial failure", "url", url, "err", runErr)
	}

	var info RawInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return &info, nil
}

// isSingle is the plain single-video lookup goutubedl handles natively
func (y *YTDLP) isSingle(opts ResolveOptions) bool {
	return opts.NoPlaylist && !opts.Unprocessed && opts.PlaylistEnd == 0 &&
		(opts.Flat == FlatDefault || opts.Flat == FlatNone)
}

func (y *YTDLP) extractSingle(ctx context.Context, url string) (*RawInfo, error) {
	result, err := goutubedl.New(ctx, url, goutubedl.Options{
		Type: goutubedl.TypeSingle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}

	var info RawInfo
	if len(result.RawJSON) > 0 {
		if err := json.Unmarshal(result.RawJSON, &info); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		return &info, nil
	}

	duration := result.Info.Duration
	info = RawInfo{
		Type:       "video",
		ID:         result.Info.ID,
		Title:      result.Info.Title,
		WebpageURL: result.Info.WebpageURL,
		Duration:   &duration,
		Uploader:   result.Info.Uploader,
		Channel:    result.Info.Channel,
		Thumbnail:  result.Info.Thumbnail,
	}
	return &info, nil
}

// Download runs a transfer, streaming progress ticks to progress when non-nil
func (y *YTDLP) Download(ctx context.Context, url string, opts ResolveOptions, progress ProgressFunc) error {
	if opts.FFmpegLocation == "" {
		opts.FFmpegLocation = y.FFmpegLocation
	}

	args := opts.Args()
	args = append(args, "--newline", "--progress", "--progress-template", progressTemplate, "--", url)

	cmd := exec.CommandContext(ctx, y.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open yt-dlp output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	y.Logger.Debug("yt-dlp download started", "url", url, "format", opts.Format)
	readProgress(stdout, progress)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("yt-dlp download failed: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func readProgress(r io.Reader, progress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		if u, ok := ParseProgressLine(scanner.Text()); ok {
			progress(u)
		}
	}
	// drain anything the scanner refused so the child never blocks on a full pipe
	io.Copy(io.Discard, r)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
