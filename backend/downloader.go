package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// DefaultMinViableSize rejects empty or placeholder outputs
	DefaultMinViableSize = 1024

	defaultDownloadDir  = "downloads"
	audioQualityTarget  = "320K"
	defaultVideoFormat  = "mp4"
	defaultAudioFormat  = "mp3"
	tempVideoPrefix     = "temp_video_"
	tempAudioPrefix     = "temp_audio_"
	outputTemplateExt   = ".%(ext)s"
	messageAlreadyExist = "File already exists, skipping..."
)

var (
	// directProbeExts follow the requested container when probing a direct download
	directProbeExts = []string{"mp4", "webm", "mkv"}
	// streamExts locate separately fetched streams
	streamExts = []string{"mp4", "webm", "mkv", "m4a", "mp3", "wav"}
	// alternateAudioExts are accepted when the requested audio container is missing
	alternateAudioExts = []string{"mp3", "m4a", "wav", "flac"}
)

// VideoRequest is a single video acquisition
type VideoRequest struct {
	URL       string
	Quality   *QualityOption // nil = best available
	Container string         // mp4, mkv
	Title     string
	DestDir   string
	Channel   string
	ChannelID string
	Progress  ProgressFunc
}

// AudioRequest is a single audio-only acquisition
type AudioRequest struct {
	URL       string
	Container string // mp3, m4a, wav
	Title     string
	DestDir   string
	Channel   string
	ChannelID string
	Progress  ProgressFunc
}

// PlaylistJob downloads a subset of a resolved playlist into its own folder
type PlaylistJob struct {
	Playlist  *PlaylistResult
	Selected  []int // 0-based entry indices, empty = all
	Mode      MediaMode
	Container string
	Quality   *QualityOption
	DestDir   string
	Progress  ProgressFunc
	// OnItem is called before each entry starts, index is 1-based
	OnItem func(index, total int, title string)
}

// Downloader executes acquisitions. It owns each job's cache directory.
type Downloader struct {
	resolver  Resolver
	toolchain Toolchain
	merger    *MergeEngine
	fs        afero.Fs
	logger    *slog.Logger

	MinViableSize int64
}

// NewDownloader creates a downloader. A nil fs uses the OS filesystem.
func NewDownloader(resolver Resolver, toolchain Toolchain, fs afero.Fs, logger *slog.Logger) *Downloader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		resolver:      resolver,
		toolchain:     toolchain,
		merger:        NewMergeEngine(toolchain, fs, logger),
		fs:            fs,
		logger:        logger,
		MinViableSize: DefaultMinViableSize,
	}
}

// =============================================================================
// Video
// =============================================================================

// DownloadVideo tries a direct combined-stream download first and falls back
// to fetching separate streams and merging them
func (d *Downloader) DownloadVideo(ctx context.Context, req VideoRequest) Outcome {
	container := strings.ToLower(req.Container)
	if container == "" {
		container = defaultVideoFormat
	}
	destDir := destinationDir(req.DestDir)

	name := FinalFileName(req.Title, req.Channel, req.ChannelID)
	finalPath := filepath.Join(destDir, name+"."+container)
	log := d.logger.With("url", req.URL, "file", finalPath)

	if exists, _ := afero.Exists(d.fs, finalPath); exists {
		return Outcome{Success: true, Message: messageAlreadyExist, Path: finalPath, Err: ErrAlreadyExists}
	}

	cacheDir, err := d.createCacheDir(destDir)
	if err != nil {
		return Outcome{Message: fmt.Sprintf("Download error: %v", err), Err: err}
	}
	defer d.removeCacheDir(cacheDir)

	if err := ctx.Err(); err != nil {
		return cancelledOutcome(err)
	}

	found, err := d.tryDirect(ctx, req, container, name, cacheDir)
	if err == nil {
		if err := d.move(found, finalPath); err != nil {
			return Outcome{Message: fmt.Sprintf("Download error: %v", err), Err: err}
		}
		log.Info("downloaded", "mode", "direct")
		return Outcome{Success: true, Message: "Downloaded successfully (direct)", Path: finalPath}
	}
	log.Debug("direct download failed, falling back to merge", "err", err)

	if err := d.toolchain.Version(context.WithoutCancel(ctx)); err != nil {
		log.Warn("toolchain unavailable", "err", err)
		return Outcome{Message: "FFmpeg required for video+audio merge!", Err: ErrMissingToolchain}
	}

	merged, err := d.downloadAndMerge(ctx, req, container, name, cacheDir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrMergeFailed) {
			return cancelledOutcome(ctxErr)
		}
		log.Warn("download/merge failed", "err", err)
		return Outcome{Message: "Download/Merge failed", Err: ErrMergeFailed}
	}
	if err := d.move(merged, finalPath); err != nil {
		return Outcome{Message: fmt.Sprintf("Download error: %v", err), Err: err}
	}

	log.Info("downloaded", "mode", "merge")
	return Outcome{Success: true, Message: "Downloaded and merged successfully", Path: finalPath}
}

// tryDirect returns the path of a viable combined-stream file in the cache
func (d *Downloader) tryDirect(ctx context.Context, req VideoRequest, container, name, cacheDir string) (string, error) {
	opts := ResolveOptions{
		Quiet:          true,
		NoPlaylist:     true,
		Format:         directFormatSelector(req.Quality),
		OutputTemplate: filepath.Join(cacheDir, name) + outputTemplateExt,
	}
	if container != defaultVideoFormat {
		opts.Transform = Transform{Kind: TransformConvert, Codec: container}
	}

	if err := d.resolver.Download(context.WithoutCancel(ctx), req.URL, opts, req.Progress); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDirectDownloadFailed, err)
	}

	exts := append([]string{container}, directProbeExts...)
	for _, ext := range exts {
		candidate := filepath.Join(cacheDir, name+"."+ext)
		if d.viable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no viable output in cache", ErrDirectDownloadFailed)
}

// downloadAndMerge fetches video-only and audio-only streams and merges them inside the cache
func (d *Downloader) downloadAndMerge(ctx context.Context, req VideoRequest, container, name, cacheDir string) (string, error) {
	videoBase := filepath.Join(cacheDir, tempVideoPrefix+name)
	audioBase := filepath.Join(cacheDir, tempAudioPrefix+name)

	streams := []struct {
		base   string
		format string
	}{
		{videoBase, videoFormatSelector(req.Quality)},
		{audioBase, "bestaudio/best"},
	}
	for _, s := range streams {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		opts := ResolveOptions{
			Quiet:          true,
			NoPlaylist:     true,
			Format:         s.format,
			OutputTemplate: s.base + outputTemplateExt,
		}
		if err := d.resolver.Download(context.WithoutCancel(ctx), req.URL, opts, req.Progress); err != nil {
			return "", fmt.Errorf("stream download failed: %w", err)
		}
	}

	videoFile := d.findStream(videoBase)
	audioFile := d.findStream(audioBase)
	if videoFile == "" || audioFile == "" {
		return "", fmt.Errorf("%w: stream file missing (video=%q audio=%q)", ErrMergeFailed, videoFile, audioFile)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	output := filepath.Join(cacheDir, name+"."+container)
	if err := d.merger.Merge(context.WithoutCancel(ctx), videoFile, audioFile, output); err != nil {
		return "", err
	}

	d.fs.Remove(videoFile)
	d.fs.Remove(audioFile)
	return output, nil
}

func (d *Downloader) findStream(base string) string {
	for _, ext := range streamExts {
		candidate := base + "." + ext
		if exists, _ := afero.Exists(d.fs, candidate); exists {
			return candidate
		}
	}
	return ""
}

// directFormatSelector asks for a combined stream at or below the chosen height
func directFormatSelector(q *QualityOption) string {
	if q == nil || q.Height <= 0 {
		return "best[acodec!=none]/best"
	}
	return fmt.Sprintf("best[height<=%d][acodec!=none]/best[height<=%d]/best", q.Height, q.Height)
}

// videoFormatSelector asks for a video-only stream
func videoFormatSelector(q *QualityOption) string {
	if q == nil || q.Height <= 0 {
		return "bestvideo"
	}
	return fmt.Sprintf("bestvideo[height<=%d]/bestvideo", q.Height)
}

// =============================================================================
// Audio
// =============================================================================

// DownloadAudio fetches the best audio stream and transcodes it to the requested codec
func (d *Downloader) DownloadAudio(ctx context.Context, req AudioRequest) Outcome {
	container := strings.ToLower(req.Container)
	if container == "" {
		container = defaultAudioFormat
	}
	destDir := destinationDir(req.DestDir)

	name := FinalFileName(req.Title, req.Channel, req.ChannelID)
	finalPath := filepath.Join(destDir, name+"."+container)
	log := d.logger.With("url", req.URL, "file", finalPath)

	if exists, _ := afero.Exists(d.fs, finalPath); exists {
		return Outcome{Success: true, Message: messageAlreadyExist, Path: finalPath, Err: ErrAlreadyExists}
	}

	cacheDir, err := d.createCacheDir(destDir)
	if err != nil {
		return Outcome{Message: fmt.Sprintf("Audio download error: %v", err), Err: err}
	}
	defer d.removeCacheDir(cacheDir)

	if err := ctx.Err(); err != nil {
		return cancelledOutcome(err)
	}

	opts := ResolveOptions{
		Quiet:          true,
		NoPlaylist:     true,
		Format:         "bestaudio/best",
		OutputTemplate: filepath.Join(cacheDir, name) + outputTemplateExt,
		Transform:      Transform{Kind: TransformExtractAudio, Codec: container, Quality: audioQualityTarget},
	}
	if err := d.resolver.Download(context.WithoutCancel(ctx), req.URL, opts, req.Progress); err != nil {
		log.Warn("audio download failed", "err", err)
		return Outcome{Message: fmt.Sprintf("Audio download error: %v", err), Err: err}
	}

	expected := filepath.Join(cacheDir, name+"."+container)
	if d.viable(expected) {
		if err := d.move(expected, finalPath); err != nil {
			return Outcome{Message: fmt.Sprintf("Audio download error: %v", err), Err: err}
		}
		log.Info("audio downloaded")
		return Outcome{Success: true, Message: "Audio downloaded successfully", Path: finalPath}
	}

	for _, ext := range alternateAudioExts {
		alt := filepath.Join(cacheDir, name+"."+ext)
		if exists, _ := afero.Exists(d.fs, alt); !exists {
			continue
		}
		if err := d.move(alt, finalPath); err != nil {
			return Outcome{Message: fmt.Sprintf("Audio download error: %v", err), Err: err}
		}
		log.Info("audio downloaded", "source_ext", ext)
		return Outcome{Success: true, Message: "Audio downloaded successfully (converted)", Path: finalPath}
	}

	return Outcome{Message: "Audio download failed"}
}

// =============================================================================
// Playlist
// =============================================================================

// DownloadPlaylist downloads the selected entries one at a time into
// <dest>/<playlist title>. Entry failures never abort the batch.
func (d *Downloader) DownloadPlaylist(ctx context.Context, job PlaylistJob) BatchOutcome {
	if job.Playlist == nil {
		return BatchOutcome{Message: "Playlist finished. 0/0 successful."}
	}

	type target struct {
		item MediaItem
		url  string
	}
	var targets []target
	add := func(item MediaItem) {
		if u := ItemURL(item); u != "" {
			targets = append(targets, target{item: item, url: u})
		}
	}
	if len(job.Selected) > 0 {
		for _, idx := range job.Selected {
			if idx >= 0 && idx < len(job.Playlist.Entries) {
				add(job.Playlist.Entries[idx])
			}
		}
	} else {
		for _, item := range job.Playlist.Entries {
			add(item)
		}
	}

	folder := filepath.Join(destinationDir(job.DestDir), PlaylistFolderName(job.Playlist.Title))
	total := len(targets)
	succeeded := 0

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		title := t.item.Title
		if title == "" {
			title = fmt.Sprintf("Video_%d", i+1)
		}
		if job.OnItem != nil {
			job.OnItem(i+1, total, title)
		}

		var outcome Outcome
		if job.Mode == ModeAudio {
			outcome = d.DownloadAudio(ctx, AudioRequest{
				URL: t.url, Container: job.Container, Title: title, DestDir: folder,
				Channel: t.item.Uploader, ChannelID: t.item.UploaderID, Progress: job.Progress,
			})
		} else {
			outcome = d.DownloadVideo(ctx, VideoRequest{
				URL: t.url, Quality: job.Quality, Container: job.Container, Title: title, DestDir: folder,
				Channel: t.item.Uploader, ChannelID: t.item.UploaderID, Progress: job.Progress,
			})
		}

		if outcome.Success {
			succeeded++
		} else {
			d.logger.Warn("playlist entry failed", "url", t.url, "index", i+1, "err", outcome.Message)
		}
	}

	return BatchOutcome{
		Succeeded: succeeded,
		Attempted: total,
		Message:   fmt.Sprintf("Playlist finished. %d/%d successful.", succeeded, total),
	}
}

// =============================================================================
// Filesystem helpers
// =============================================================================

func destinationDir(dir string) string {
	if dir == "" {
		return defaultDownloadDir
	}
	return dir
}

// CacheRoot is where per-job cache directories live for a destination
func CacheRoot(destDir string) string {
	return filepath.Join(destDir, CacheDirName)
}

func (d *Downloader) createCacheDir(destDir string) (string, error) {
	dir := filepath.Join(CacheRoot(destDir), uuid.New().String())
	if err := d.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	return dir, nil
}

// removeCacheDir is best effort and touches only this job's directory
func (d *Downloader) removeCacheDir(dir string) {
	if err := d.fs.RemoveAll(dir); err != nil {
		d.logger.Debug("cache cleanup failed", "dir", dir, "err", err)
	}
}

func (d *Downloader) viable(path string) bool {
	info, err := d.fs.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() > d.MinViableSize
}

// move renames src to dst, copying when a rename is not possible
func (d *Downloader) move(src, dst string) error {
	if err := d.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := d.fs.Rename(src, dst); err == nil {
		return nil
	}

	in, err := d.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := d.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		d.fs.Remove(dst)
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return d.fs.Remove(src)
}

func cancelledOutcome(err error) Outcome {
	return Outcome{Message: "Download cancelled", Err: err}
}
