package backend

import (
	"context"
	"sync"
	"time"
)

// ToolStatus reports whether an external tool can be executed.
type ToolStatus struct {
	Status    string    `json:"status"` // "up", "down"
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// VersionProbe returns the version string of a tool
type VersionProbe func(ctx context.Context) (string, error)

// toolStatusCache caches probe results per tool.
type toolStatusCache struct {
	mu      sync.RWMutex
	entries map[string]ToolStatus
	ttl     time.Duration
}

func newToolStatusCache(ttl time.Duration) *toolStatusCache {
	return &toolStatusCache{entries: make(map[string]ToolStatus), ttl: ttl}
}

// StatusChecker probes yt-dlp and ffmpeg, caching results for five minutes
// so the status endpoint does not fork processes on every request.
type StatusChecker struct {
	probes map[string]VersionProbe
	cache  *toolStatusCache
}

// NewStatusChecker creates a checker for the given probes
func NewStatusChecker(probes map[string]VersionProbe) *StatusChecker {
	return &StatusChecker{probes: probes, cache: newToolStatusCache(5 * time.Minute)}
}

// NewToolStatusChecker wires the yt-dlp and ffmpeg version probes
func NewToolStatusChecker(ytdlp *YTDLP, ffmpeg *FFmpeg) *StatusChecker {
	return NewStatusChecker(map[string]VersionProbe{
		"yt-dlp": ytdlp.Version,
		"ffmpeg": ffmpeg.VersionString,
	})
}

// Check returns the status of every tool, probing stale entries concurrently.
func (s *StatusChecker) Check(ctx context.Context) map[string]ToolStatus {
	result := make(map[string]ToolStatus)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, probe := range s.probes {
		s.cache.mu.RLock()
		cached, ok := s.cache.entries[name]
		s.cache.mu.RUnlock()

		if ok && time.Since(cached.CheckedAt) < s.cache.ttl {
			result[name] = cached
			continue
		}

		wg.Add(1)
		go func(toolName string, probe VersionProbe) {
			defer wg.Done()

			status := probeTool(ctx, probe)

			s.cache.mu.Lock()
			s.cache.entries[toolName] = status
			s.cache.mu.Unlock()

			mu.Lock()
			result[toolName] = status
			mu.Unlock()
		}(name, probe)
	}

	wg.Wait()
	return result
}

// Invalidate drops cached results
func (s *StatusChecker) Invalidate() {
	s.cache.mu.Lock()
	s.cache.entries = make(map[string]ToolStatus)
	s.cache.mu.Unlock()
}

func probeTool(ctx context.Context, probe VersionProbe) ToolStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	version, err := probe(ctx)
	if err != nil {
		return ToolStatus{Status: "down", Error: err.Error(), CheckedAt: time.Now()}
	}
	return ToolStatus{Status: "up", Version: version, CheckedAt: time.Now()}
}
