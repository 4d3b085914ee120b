package backend

import "errors"

var (
	// ErrClassificationIndeterminate is reported when the type probe fails.
	// Callers treat the URL as a video on a best-effort basis.
	ErrClassificationIndeterminate = errors.New("url type could not be determined")

	// ErrPlaylistNotFound means every extraction strategy and the generic fallback came back empty
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrMissingToolchain fails a job that needs a merge when ffmpeg is not usable
	ErrMissingToolchain = errors.New("ffmpeg required for video+audio merge")

	// ErrDirectDownloadFailed triggers the merge fallback; it never fails a job by itself
	ErrDirectDownloadFailed = errors.New("direct download failed")

	// ErrMergeFailed means both merge stages failed
	ErrMergeFailed = errors.New("download/merge failed")

	// ErrEntryNotFound is returned by queue operations on an unknown entry id
	ErrEntryNotFound = errors.New("item not found")

	// ErrInvalidPosition rejects a move outside the queue
	ErrInvalidPosition = errors.New("invalid index")

	// ErrAlreadyExists marks the idempotent success path
	ErrAlreadyExists = errors.New("file already exists")
)
