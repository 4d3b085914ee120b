package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Analysis is the resolved view of a URL
type Analysis struct {
	Kind      URLKind         `json:"kind"`
	Item      *MediaItem      `json:"item,omitempty"`
	Qualities []QualityOption `json:"qualities,omitempty"`
	Playlist  *PlaylistResult `json:"playlist,omitempty"`
}

// IsPlaylist reports whether the analysis produced a playlist
func (a *Analysis) IsPlaylist() bool { return a.Playlist != nil }

// Title is the display title of whatever was resolved
func (a *Analysis) Title() string {
	switch {
	case a.Playlist != nil:
		return a.Playlist.Title
	case a.Item != nil:
		return a.Item.Title
	}
	return ""
}

// Analyzer routes a URL to the playlist resolver or a single-video lookup
type Analyzer struct {
	classifier *Classifier
	playlists  *PlaylistResolver
	resolver   Resolver
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(resolver Resolver, classifier *Classifier, playlists *PlaylistResolver, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{classifier: classifier, playlists: playlists, resolver: resolver, logger: logger}
}

// Analyze classifies url then resolves it. Unknown URLs are tried as videos.
func (a *Analyzer) Analyze(ctx context.Context, url string, limit int) (*Analysis, error) {
	kind := a.classifier.Classify(ctx, url)
	a.logger.Debug("analyzing", "url", url, "kind", kind)

	switch kind {
	case KindPlaylist, KindChannel:
		playlist, err := a.playlists.Resolve(ctx, url, limit)
		if err != nil {
			return nil, fmt.Errorf("could not analyze playlist: %w", err)
		}
		return &Analysis{Kind: kind, Playlist: playlist}, nil
	}

	item, err := a.FetchVideo(ctx, url)
	if err != nil {
		if kind == KindUnknown {
			return nil, fmt.Errorf("unsupported URL or analysis failed: %w", errors.Join(ErrClassificationIndeterminate, err))
		}
		return nil, fmt.Errorf("could not analyze video: %w", err)
	}
	return &Analysis{Kind: KindVideo, Item: item, Qualities: BuildQualityTable(item)}, nil
}

// FetchVideo resolves a single video with its formats
func (a *Analyzer) FetchVideo(ctx context.Context, url string) (*MediaItem, error) {
	info, err := a.resolver.Extract(ctx, url, ResolveOptions{Quiet: true, NoPlaylist: true})
	if err != nil {
		return nil, err
	}
	if info == nil || (info.ID == "" && info.Title == "") {
		return nil, fmt.Errorf("no metadata returned for %s", url)
	}
	item := mediaItemFromRaw(info)
	if item.URL == "" {
		item.URL = url
	}
	return &item, nil
}
