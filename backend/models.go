package backend

import (
	"strings"
	"time"
)

// Core domain types shared by the resolver, downloader and queue

// MediaItem is a single resolved video. It is never mutated after resolution.
type MediaItem struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	URL        string        `json:"url"`
	Uploader   string        `json:"uploader,omitempty"`
	UploaderID string        `json:"uploaderId,omitempty"`
	Duration   float64       `json:"duration,omitempty"` // seconds, 0 = unknown
	Thumbnail  string        `json:"thumbnail,omitempty"`
	Formats    []FormatEntry `json:"formats,omitempty"`
}

// FormatEntry is one encoding offered for a MediaItem.
// Empty codec strings mean the stream is absent.
type FormatEntry struct {
	FormatID string  `json:"formatId"`
	Ext      string  `json:"ext"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec,omitempty"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Filesize int64   `json:"filesize,omitempty"` // 0 = unknown
}

// HasVideo reports whether the format carries a video stream
func (f FormatEntry) HasVideo() bool { return f.VCodec != "" }

// HasAudio reports whether the format carries an audio stream
func (f FormatEntry) HasAudio() bool { return f.ACodec != "" }

// QualityOption is one row of the quality table, one per distinct height.
type QualityOption struct {
	Label    string  `json:"label"` // "1080p"
	Height   int     `json:"height"`
	FormatID string  `json:"formatId"`
	Ext      string  `json:"ext"`
	HasAudio bool    `json:"hasAudio"`
	FPS      float64 `json:"fps,omitempty"`
	Filesize int64   `json:"filesize,omitempty"`
	VCodec   string  `json:"vcodec,omitempty"`
	ACodec   string  `json:"acodec,omitempty"`
}

// PlaylistResult is built fresh on every resolution and never cached.
type PlaylistResult struct {
	ID       string      `json:"id,omitempty"`
	Title    string      `json:"title"`
	Uploader string      `json:"uploader,omitempty"`
	Entries  []MediaItem `json:"entries"`
	Count    int         `json:"count"`
}

// MediaMode selects between a video and an audio-only acquisition
type MediaMode string

const (
	ModeVideo MediaMode = "video"
	ModeAudio MediaMode = "audio"
)

// Supported output containers
var (
	VideoContainers = []string{"mp4", "mkv"}
	AudioContainers = []string{"mp3", "m4a", "wav"}
)

// Outcome is the verdict of a single acquisition. Err is one of the
// sentinels in errors.go (or nil) and only classifies the message.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
	Err     error  `json:"-"`
}

// BatchOutcome is the tally of a playlist acquisition
type BatchOutcome struct {
	Succeeded int    `json:"succeeded"`
	Attempted int    `json:"attempted"`
	Message   string `json:"message"`
}

// DownloadJob describes one tracked acquisition
type DownloadJob struct {
	ID        string          `json:"id"`
	Mode      MediaMode       `json:"mode"`
	Container string          `json:"container"`
	Quality   *QualityOption  `json:"quality,omitempty"`
	Item      *MediaItem      `json:"item,omitempty"`
	Playlist  *PlaylistResult `json:"playlist,omitempty"`
	Selected  []int           `json:"selected,omitempty"`
	DestDir   string          `json:"destDir"`
	Outcome   Outcome         `json:"outcome"`
	StartedAt time.Time       `json:"startedAt"`
}

// mediaItemFromRaw converts resolver output into the domain type
func mediaItemFromRaw(raw *RawInfo) MediaItem {
	item := MediaItem{
		ID:         raw.ID,
		Title:      raw.Title,
		URL:        raw.WebpageURL,
		Uploader:   raw.Uploader,
		UploaderID: raw.UploaderID,
		Thumbnail:  raw.Thumbnail,
	}
	if item.URL == "" {
		item.URL = raw.URL
	}
	if item.Uploader == "" {
		item.Uploader = raw.Channel
	}
	if raw.Duration != nil {
		item.Duration = *raw.Duration
	}
	for _, f := range raw.Formats {
		item.Formats = append(item.Formats, formatEntryFromRaw(f))
	}
	return item
}

func formatEntryFromRaw(f RawFormat) FormatEntry {
	entry := FormatEntry{
		FormatID: f.FormatID,
		Ext:      f.Ext,
		VCodec:   normalizeCodec(f.VCodec),
		ACodec:   normalizeCodec(f.ACodec),
	}
	if f.Height != nil {
		entry.Height = *f.Height
	}
	if f.FPS != nil {
		entry.FPS = *f.FPS
	}
	switch {
	case f.Filesize != nil:
		entry.Filesize = *f.Filesize
	case f.FilesizeApprox != nil:
		entry.Filesize = *f.FilesizeApprox
	}
	return entry
}

func normalizeCodec(codec string) string {
	if strings.EqualFold(codec, "none") {
		return ""
	}
	return codec
}
