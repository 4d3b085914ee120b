package backend

import (
	"context"
	"strconv"
)

// Resolver turns a URL into metadata and performs transfers.
// YTDLP is the production implementation.
type Resolver interface {
	Extract(ctx context.Context, url string, opts ResolveOptions) (*RawInfo, error)
	Download(ctx context.Context, url string, opts ResolveOptions, progress ProgressFunc) error
}

// FlatMode controls how deeply playlist entries are resolved
type FlatMode int

const (
	FlatDefault FlatMode = iota // resolver default
	FlatNone                    // resolve every entry
	FlatShallow                 // flatten entries of the top-level playlist only
	FlatAll                     // flatten everything, rendered like FlatShallow on the command line
)

func (m FlatMode) String() string {
	switch m {
	case FlatNone:
		return "none"
	case FlatShallow:
		return "in_playlist"
	case FlatAll:
		return "all"
	default:
		return "default"
	}
}

// TransformKind selects a post-download conversion
type TransformKind int

const (
	TransformNone TransformKind = iota
	TransformConvert
	TransformExtractAudio
)

// Transform describes a post-download conversion done by the resolver
type Transform struct {
	Kind    TransformKind
	Codec   string // target container or audio codec
	Quality string // audio quality, e.g. "320K"
}

// ResolveOptions is the full set of knobs the orchestrator passes to the resolver
type ResolveOptions struct {
	Quiet          bool
	Format         string
	OutputTemplate string
	Flat           FlatMode
	Unprocessed    bool // cheap type probe, entries are not resolved
	IgnoreErrors   bool
	PlaylistEnd    int // 0 = uncapped
	SkipDownload   bool
	NoPlaylist     bool
	Transform      Transform
	FFmpegLocation string
}

// Args renders the options as yt-dlp command line flags
func (o ResolveOptions) Args() []string {
	var args []string
	if o.Quiet {
		args = append(args, "--quiet", "--no-warnings")
	}
	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}
	if o.OutputTemplate != "" {
		args = append(args, "-o", o.OutputTemplate)
	}

	// yt-dlp has no switch for flattening nested playlists
	flat := o.Flat == FlatShallow || o.Flat == FlatAll || o.Unprocessed
	switch {
	case flat:
		args = append(args, "--flat-playlist")
	case o.Flat == FlatNone:
		args = append(args, "--no-flat-playlist")
	}

	if o.IgnoreErrors {
		args = append(args, "--ignore-errors")
	}

	end := o.PlaylistEnd
	if o.Unprocessed {
		end = 1
	}
	if end > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(end))
	}

	if o.SkipDownload {
		args = append(args, "--skip-download")
	}
	if o.NoPlaylist {
		args = append(args, "--no-playlist")
	}

	switch o.Transform.Kind {
	case TransformConvert:
		args = append(args, "--recode-video", o.Transform.Codec)
	case TransformExtractAudio:
		args = append(args, "-x", "--audio-format", o.Transform.Codec)
		if o.Transform.Quality != "" {
			args = append(args, "--audio-quality", o.Transform.Quality)
		}
	}

	if o.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", o.FFmpegLocation)
	}
	return args
}

// RawInfo is the subset of the resolver's info dictionary that ytgrab reads.
// Entries is nil when the field was absent and non-nil (possibly empty) when present.
type RawInfo struct {
	Type          string      `json:"_type"`
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	URL           string      `json:"url"`
	WebpageURL    string      `json:"webpage_url"`
	Duration      *float64    `json:"duration"`
	Uploader      string      `json:"uploader"`
	UploaderID    string      `json:"uploader_id"`
	Channel       string      `json:"channel"`
	ChannelID     string      `json:"channel_id"`
	Thumbnail     string      `json:"thumbnail"`
	PlaylistCount int         `json:"playlist_count"`
	Formats       []RawFormat `json:"formats"`
	Entries       []*RawInfo  `json:"entries"`
}

// HasEntries reports whether the entries field was present at all
func (r *RawInfo) HasEntries() bool { return r.Entries != nil }

// RawFormat is one element of the resolver's formats list
type RawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Height         *int     `json:"height"`
	FPS            *float64 `json:"fps"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *int64   `json:"filesize_approx"`
}
