package backend

import (
	"fmt"
	"regexp"
	"strings"
)

// File naming for downloaded media

const (
	// MaxFileNameLength is counted in runes
	MaxFileNameLength = 200

	// fallbackFileName is used when sanitizing leaves nothing
	fallbackFileName = "video"

	// CacheDirName is the per-destination scratch directory
	CacheDirName = ".ytd-cache"
)

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	controlChars     = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
)

// SanitizeFileName strips characters invalid on Windows/Linux/macOS,
// control characters and leading/trailing dots and spaces, then
// truncates to MaxFileNameLength runes. The result may be empty.
func SanitizeFileName(name string) string {
	sanitized := invalidFileChars.ReplaceAllString(name, "")
	sanitized = controlChars.ReplaceAllString(sanitized, "")
	sanitized = strings.Trim(sanitized, ". ")

	if runes := []rune(sanitized); len(runes) > MaxFileNameLength {
		sanitized = string(runes[:MaxFileNameLength])
	}
	return sanitized
}

// FinalFileName builds the base name (no extension) for a download.
// The channel suffix is only added when both channel and channelID are known.
// channelID is used verbatim, so a handle keeps its own "@" after the suffix's.
func FinalFileName(title, channel, channelID string) string {
	name := title
	if channel != "" && channelID != "" {
		name = fmt.Sprintf("%s - [%s - @%s]", title, channel, channelID)
	}

	sanitized := SanitizeFileName(name)
	if sanitized == "" {
		sanitized = fallbackFileName
	}
	return sanitized
}

// PlaylistFolderName is the sub-folder a playlist is downloaded into
func PlaylistFolderName(title string) string {
	folder := SanitizeFileName(title)
	if folder == "" {
		folder = "Playlist"
	}
	return folder
}
