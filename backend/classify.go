package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

// URLKind is the coarse shape of a media URL
type URLKind string

const (
	KindVideo    URLKind = "video"
	KindPlaylist URLKind = "playlist"
	KindChannel  URLKind = "channel"
	KindUnknown  URLKind = "unknown"
)

// Substring rules, checked in this order
var (
	playlistMarkers = []string{"playlist", "list="}
	videoMarkers    = []string{"watch?v=", "youtu.be/", "/watch/"}
	channelMarkers  = []string{"channel/", "/c/", "/@"}
)

// DefaultProbeTimeout bounds the classification probe
const DefaultProbeTimeout = 20 * time.Second

// Classifier labels URLs, falling back to one resolver probe
type Classifier struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClassifier creates a classifier. timeout <= 0 uses DefaultProbeTimeout.
func NewClassifier(resolver Resolver, timeout time.Duration, logger *slog.Logger) *Classifier {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{resolver: resolver, timeout: timeout, logger: logger}
}

// MatchKind applies the substring rules only. ok is false when no rule matched.
func MatchKind(url string) (URLKind, bool) {
	lower := strings.ToLower(url)
	switch {
	case containsAny(lower, playlistMarkers):
		return KindPlaylist, true
	case containsAny(lower, videoMarkers):
		return KindVideo, true
	case containsAny(lower, channelMarkers):
		return KindChannel, true
	}
	return KindUnknown, false
}

// Classify never fails: a failed probe yields KindUnknown
func (c *Classifier) Classify(ctx context.Context, url string) URLKind {
	if kind, ok := MatchKind(url); ok {
		return kind
	}

	kind, err := c.probe(ctx, url)
	if err != nil {
		c.logger.Debug("classification probe failed", "url", url, "err", err)
		return KindUnknown
	}
	return kind
}

func (c *Classifier) probe(ctx context.Context, url string) (URLKind, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.resolver.Extract(ctx, url, ResolveOptions{
		Quiet:       true,
		Flat:        FlatAll,
		Unprocessed: true,
	})
	if err != nil {
		return KindUnknown, fmt.Errorf("%w: %v", ErrClassificationIndeterminate, err)
	}
	if info == nil {
		return KindUnknown, fmt.Errorf("%w: empty probe result", ErrClassificationIndeterminate)
	}

	switch {
	case info.Type == "playlist":
		return KindPlaylist, nil
	case info.Type == "video" || !info.HasEntries():
		return KindVideo, nil
	}
	return KindUnknown, fmt.Errorf("%w: unexpected type %q", ErrClassificationIndeterminate, info.Type)
}

func containsAny(s string, subs []string) bool {
	return lo.ContainsBy(subs, func(sub string) bool {
		return strings.Contains(s, sub)
	})
}
