package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Toolchain is the external media processor used for merges
type Toolchain interface {
	// Version fails when the binary is missing or not executable
	Version(ctx context.Context) error
	Run(ctx context.Context, args ...string) error
}

// MuxError carries the failed ffmpeg invocation
type MuxError struct {
	Command string
	Args    []string
	Stderr  string
	Err     error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nstderr: %s", e.Err, e.Stderr)
}

func (e *MuxError) Unwrap() error { return e.Err }

// FFmpeg runs the ffmpeg binary
type FFmpeg struct {
	Path string
}

// NewFFmpeg returns an FFmpeg toolchain. An empty path is resolved with GetFFmpegPath.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = GetFFmpegPath()
	}
	return &FFmpeg{Path: path}
}

// Version runs "ffmpeg -version"
func (f *FFmpeg) Version(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.Path, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("FFmpeg not found or not executable: %w", err)
	}
	return nil
}

// VersionString returns the first line of "ffmpeg -version"
func (f *FFmpeg) VersionString(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, f.Path, "-version")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", err
	}

	lines := strings.Split(stdout.String(), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

// Run executes ffmpeg with args. Output is not parsed.
func (f *FFmpeg) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &MuxError{
			Command: f.Path,
			Args:    args,
			Stderr:  lastLine(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

// =============================================================================
// Merge
// =============================================================================

// MergeEngine muxes a video-only and an audio-only stream into one file
type MergeEngine struct {
	toolchain Toolchain
	fs        afero.Fs
	logger    *slog.Logger
}

// NewMergeEngine creates a merge engine. fs is used only to check the output.
func NewMergeEngine(toolchain Toolchain, fs afero.Fs, logger *slog.Logger) *MergeEngine {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeEngine{toolchain: toolchain, fs: fs, logger: logger}
}

// mergeStages are tried in order; the first to produce output wins
var mergeStages = []struct {
	name  string
	codec []string
}{
	{name: "reencode-audio", codec: []string{"-c:v", "copy", "-c:a", "aac"}},
	{name: "stream-copy", codec: []string{"-c", "copy"}},
}

// MergeArgs builds the ffmpeg arguments for one stage
func MergeArgs(videoPath, audioPath, outputPath string, codec ...string) []string {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
	}
	args = append(args, codec...)
	return append(args, outputPath)
}

// Merge succeeds when a stage exits cleanly and outputPath exists afterwards.
// Returns ErrMergeFailed when every stage failed.
func (m *MergeEngine) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if err := m.fs.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %v", ErrMergeFailed, err)
	}

	var errs []error
	for _, stage := range mergeStages {
		err := m.toolchain.Run(ctx, MergeArgs(videoPath, audioPath, outputPath, stage.codec...)...)
		if err == nil {
			if exists, _ := afero.Exists(m.fs, outputPath); exists {
				return nil
			}
			err = fmt.Errorf("output not found: %s", outputPath)
		}
		m.logger.Debug("merge stage failed", "stage", stage.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", stage.name, err))
	}
	return fmt.Errorf("%w: %w", ErrMergeFailed, errors.Join(errs...))
}

// =============================================================================
// Binary discovery
// =============================================================================

// GetFFmpegPath returns the bundled ffmpeg, then one on PATH, then plain "ffmpeg"
func GetFFmpegPath() string {
	bundledPaths := []string{
		filepath.Join(getAppDataDir(), "bin", "ffmpeg"),
		filepath.Join(getAppDataDir(), "bin", "ffmpeg.exe"),
	}

	for _, p := range bundledPaths {
		if fileExists(p) {
			return p
		}
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path
	}

	return "ffmpeg"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func getAppDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".ytgrab")
}
