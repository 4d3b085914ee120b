package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Playlist and channel resolution

const (
	// ChannelEntryCap bounds the channel-specific extraction
	ChannelEntryCap = 100
	// FallbackEntryCap bounds the generic last-resort extraction
	FallbackEntryCap = 50

	radioListPrefix   = "RD"
	channelIDPrefix   = "UC"
	uploadsListPrefix = "UU"
)

var (
	listIDRegex = regexp.MustCompile(`[&?]list=([^&#]+)`)

	placeholderTitles = []string{"[Private video]", "[Deleted video]", "Private video", "Deleted video"}

	errNoValidEntries = errors.New("no valid entries")
)

// extractionStrategy is one step of the resolution cascade
type extractionStrategy struct {
	Name         string
	Flat         FlatMode
	SkipDownload bool
}

// playlistStrategies are tried in order until one yields a valid entry
var playlistStrategies = []extractionStrategy{
	{Name: "full", Flat: FlatAll},
	{Name: "shallow", Flat: FlatShallow},
	{Name: "unflattened", Flat: FlatNone, SkipDownload: true},
	{Name: "alternate", Flat: FlatDefault},
}

func (s extractionStrategy) options(limit int) ResolveOptions {
	return ResolveOptions{
		Quiet:        true,
		Flat:         s.Flat,
		IgnoreErrors: true,
		PlaylistEnd:  limit,
		SkipDownload: s.SkipDownload,
	}
}

// PlaylistResolver turns playlist, channel and mix URLs into validated entries
type PlaylistResolver struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewPlaylistResolver creates a playlist resolver
func NewPlaylistResolver(resolver Resolver, logger *slog.Logger) *PlaylistResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaylistResolver{resolver: resolver, logger: logger}
}

// Preprocess canonicalizes a URL before extraction.
// Watch URLs carrying a list become bare playlist URLs unless the list is a
// radio mix. Channel URLs are rewritten to the channel's uploads playlist when
// the probe succeeds; any failure leaves the URL unchanged.
func (p *PlaylistResolver) Preprocess(ctx context.Context, rawURL string) string {
	if strings.Contains(rawURL, "&list=") && strings.Contains(rawURL, "watch?v=") {
		if m := listIDRegex.FindStringSubmatch(rawURL); m != nil {
			listID := m[1]
			if strings.HasPrefix(listID, radioListPrefix) {
				return rawURL
			}
			return playlistURL(listID)
		}
	}

	if strings.Contains(rawURL, "/channel/") || strings.Contains(rawURL, "/@") || strings.Contains(rawURL, "/c/") {
		return p.channelToUploads(ctx, rawURL)
	}
	return rawURL
}

func (p *PlaylistResolver) channelToUploads(ctx context.Context, rawURL string) string {
	info, err := p.resolver.Extract(ctx, rawURL, ResolveOptions{Quiet: true, Unprocessed: true})
	if err != nil {
		p.logger.Debug("channel probe failed", "url", rawURL, "err", err)
		return rawURL
	}
	if info == nil || !strings.HasPrefix(info.ChannelID, channelIDPrefix) {
		return rawURL
	}
	return playlistURL(uploadsListPrefix + strings.TrimPrefix(info.ChannelID, channelIDPrefix))
}

func playlistURL(listID string) string {
	return fmt.Sprintf("https://www.youtube.com/playlist?list=%s", listID)
}

// Resolve runs the strategy cascade and the generic fallback.
// limit <= 0 means uncapped. Returns ErrPlaylistNotFound when nothing usable was found.
func (p *PlaylistResolver) Resolve(ctx context.Context, rawURL string, limit int) (*PlaylistResult, error) {
	if limit < 0 {
		limit = 0
	}
	target := p.Preprocess(ctx, rawURL)

	memo := newExtractionMemo(p.resolver)
	run := &PlaylistResolver{resolver: memo, logger: p.logger}

	for _, strategy := range playlistStrategies {
		if memo.Seen(target, strategy.options(limit)) {
			p.logger.Debug("playlist strategy repeats an earlier command, skipping", "url", target, "strategy", strategy.Name)
			continue
		}
		result, err := run.attempt(ctx, strategy, target, limit)
		if err == nil {
			p.logger.Debug("playlist resolved", "url", target, "strategy", strategy.Name, "entries", result.Count)
			return result, nil
		}
		p.logger.Debug("playlist strategy failed", "url", target, "strategy", strategy.Name, "err", err)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrPlaylistNotFound, ctx.Err())
		}
	}

	result, err := run.fallback(ctx, target)
	if err != nil {
		p.logger.Warn("playlist extraction exhausted", "url", target, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, rawURL)
	}
	return result, nil
}

// extractionMemo remembers the extractions of a single Resolve call keyed by
// the rendered command line, so strategies that map to the same yt-dlp
// invocation run it once. Not safe for concurrent use.
type extractionMemo struct {
	Resolver
	results map[string]memoResult
}

type memoResult struct {
	info *RawInfo
	err  error
}

func newExtractionMemo(r Resolver) *extractionMemo {
	return &extractionMemo{Resolver: r, results: make(map[string]memoResult)}
}

func extractionKey(url string, opts ResolveOptions) string {
	return url + " " + strings.Join(opts.Args(), " ")
}

// Seen reports whether the same command was already run
func (m *extractionMemo) Seen(url string, opts ResolveOptions) bool {
	_, ok := m.results[extractionKey(url, opts)]
	return ok
}

func (m *extractionMemo) Extract(ctx context.Context, url string, opts ResolveOptions) (*RawInfo, error) {
	key := extractionKey(url, opts)
	if r, ok := m.results[key]; ok {
		return r.info, r.err
	}
	info, err := m.Resolver.Extract(ctx, url, opts)
	m.results[key] = memoResult{info: info, err: err}
	return info, err
}

// attempt runs one strategy
func (p *PlaylistResolver) attempt(ctx context.Context, strategy extractionStrategy, target string, limit int) (*PlaylistResult, error) {
	opts := strategy.options(limit)
	info, err := p.resolver.Extract(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, errNoValidEntries
	}

	if info.HasEntries() {
		if entries := validEntries(info.Entries); len(entries) > 0 {
			return newPlaylistResult(info, entries, "Playlist"), nil
		}
	} else if info.Type == "video" || info.Title != "" {
		return singleItemResult("Single Video", info), nil
	}

	if isChannelContext(target) {
		return p.channel(ctx, target, opts)
	}
	return nil, errNoValidEntries
}

// channel retries a strategy with the channel cap
func (p *PlaylistResolver) channel(ctx context.Context, target string, opts ResolveOptions) (*PlaylistResult, error) {
	opts.PlaylistEnd = ChannelEntryCap
	info, err := p.resolver.Extract(ctx, target, opts)
	if err != nil {
		return nil, fmt.Errorf("channel extraction: %w", err)
	}
	if info == nil || !info.HasEntries() {
		return nil, errNoValidEntries
	}
	entries := validEntries(info.Entries)
	if len(entries) == 0 {
		return nil, errNoValidEntries
	}
	return newPlaylistResult(info, entries, "Channel Videos"), nil
}

// fallback is the last resort. Entries are not validated beyond being present.
func (p *PlaylistResolver) fallback(ctx context.Context, target string) (*PlaylistResult, error) {
	info, err := p.resolver.Extract(ctx, target, ResolveOptions{
		Quiet:        true,
		Flat:         FlatAll,
		IgnoreErrors: true,
		PlaylistEnd:  FallbackEntryCap,
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, errNoValidEntries
	}

	if info.HasEntries() {
		entries := lo.Filter(info.Entries, func(e *RawInfo, _ int) bool { return e != nil })
		if len(entries) == 0 {
			return nil, errNoValidEntries
		}
		return newPlaylistResult(info, entries, "Playlist"), nil
	}
	if info.ID == "" && info.Title == "" {
		return nil, errNoValidEntries
	}
	return singleItemResult("Single Item", info), nil
}

// IsValidEntry rejects placeholders for private or deleted items and
// entries whose duration is reported as exactly zero.
func IsValidEntry(entry *RawInfo) bool {
	if entry == nil || entry.ID == "" || entry.Title == "" {
		return false
	}
	if lo.Contains(placeholderTitles, entry.Title) {
		return false
	}
	if entry.Duration != nil && *entry.Duration == 0 {
		return false
	}
	return true
}

func validEntries(entries []*RawInfo) []*RawInfo {
	return lo.Filter(entries, func(e *RawInfo, _ int) bool { return IsValidEntry(e) })
}

func isChannelContext(target string) bool {
	return strings.Contains(strings.ToLower(target), "channel") || strings.Contains(target, "/@")
}

func newPlaylistResult(info *RawInfo, entries []*RawInfo, defaultTitle string) *PlaylistResult {
	title := info.Title
	if title == "" {
		title = defaultTitle
	}
	uploader := info.Uploader
	if uploader == "" {
		uploader = info.Channel
	}
	items := lo.Map(entries, func(e *RawInfo, _ int) MediaItem { return mediaItemFromRaw(e) })
	return &PlaylistResult{
		ID:       info.ID,
		Title:    title,
		Uploader: uploader,
		Entries:  items,
		Count:    len(items),
	}
}

func singleItemResult(prefix string, info *RawInfo) *PlaylistResult {
	title := info.Title
	if title == "" {
		title = "Unknown"
	}
	item := mediaItemFromRaw(info)
	return &PlaylistResult{
		ID:       info.ID,
		Title:    fmt.Sprintf("%s: %s", prefix, title),
		Uploader: item.Uploader,
		Entries:  []MediaItem{item},
		Count:    1,
	}
}

// ItemURL returns a downloadable URL for an entry, or "" when none can be built
func ItemURL(item MediaItem) string {
	if item.URL != "" && isYouTubeHost(item.URL) {
		return item.URL
	}
	if item.ID != "" {
		return fmt.Sprintf("https://www.youtube.com/watch?v=%s", item.ID)
	}
	return ""
}

func isYouTubeHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") ||
		host == "youtu.be"
}
