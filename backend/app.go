package backend

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"
)

// App wires the resolver, toolchain and queue from a Config
type App struct {
	Config     *Config
	Logger     *slog.Logger
	YTDLP      *YTDLP
	FFmpeg     *FFmpeg
	Classifier *Classifier
	Playlists  *PlaylistResolver
	Analyzer   *Analyzer
	Downloader *Downloader
	History    *History
	Queue      *Queue
	Status     *StatusChecker
}

// NewApp builds every component. The queue is created but not started.
func NewApp(ctx context.Context, config *Config, logger *slog.Logger) *App {
	if config == nil {
		config = GetDefaultConfig()
	}
	if logger == nil {
		logger = Logger
	}

	ytdlp := NewYTDLP(config.YTDLPPath, config.FFmpegPath, logger.With("component", "yt-dlp"))
	ffmpeg := NewFFmpeg(config.FFmpegPath)

	classifier := NewClassifier(ytdlp, config.ProbeTimeout, logger.With("component", "classifier"))
	playlists := NewPlaylistResolver(ytdlp, logger.With("component", "playlist"))
	analyzer := NewAnalyzer(ytdlp, classifier, playlists, logger.With("component", "analyzer"))
	downloader := NewDownloader(ytdlp, ffmpeg, afero.NewOsFs(), logger.With("component", "downloader"))

	history := NewHistory()
	queue := NewQueue(ctx, analyzer, downloader)
	queue.SetConfig(config)
	queue.SetHistory(history)
	queue.SetLogger(logger.With("component", "queue"))

	return &App{
		Config:     config,
		Logger:     logger,
		YTDLP:      ytdlp,
		FFmpeg:     ffmpeg,
		Classifier: classifier,
		Playlists:  playlists,
		Analyzer:   analyzer,
		Downloader: downloader,
		History:    history,
		Queue:      queue,
		Status:     NewToolStatusChecker(ytdlp, ffmpeg),
	}
}
