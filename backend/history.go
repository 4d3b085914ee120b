package backend

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// History status values
const (
	HistoryComplete = "complete"
	HistoryError    = "error"
)

// HistoryEntry represents a completed or failed download
type HistoryEntry struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Uploader    string    `json:"uploader,omitempty"`
	Mode        MediaMode `json:"mode"`
	Container   string    `json:"container"`
	Quality     string    `json:"quality,omitempty"`
	OutputPath  string    `json:"outputPath,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
	Message     string    `json:"message,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
	Status      string    `json:"status"` // complete, error
}

// History keeps finished jobs in memory, newest first. Nothing is persisted.
type History struct {
	entries []HistoryEntry
	mu      sync.RWMutex
}

// NewHistory creates an empty History
func NewHistory() *History {
	return &History{entries: []HistoryEntry{}}
}

// Add adds a new entry to history
func (h *History) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now()
	}

	// Prepend to keep newest first
	h.entries = append([]HistoryEntry{entry}, h.entries...)
}

// AddFromQueueEntry records a finished queue entry
func (h *History) AddFromQueueEntry(entry *QueueEntry) {
	status := HistoryComplete
	if entry.State != StateDone {
		status = HistoryError
	}

	record := HistoryEntry{
		URL:        entry.URL,
		Title:      entry.Title,
		Mode:       entry.Mode,
		Container:  entry.Container,
		OutputPath: entry.OutputPath,
		Message:    entry.Message,
		Status:     status,
	}
	if entry.Media != nil {
		record.Uploader = entry.Media.Uploader
		record.Thumbnail = entry.Media.Thumbnail
		record.Duration = entry.Media.Duration
	}
	if entry.Job != nil && entry.Job.Quality != nil {
		record.Quality = entry.Job.Quality.Label
	}

	h.Add(record)
}

// GetAll returns all history entries
func (h *History) GetAll() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]HistoryEntry, len(h.entries))
	copy(result, h.entries)
	return result
}

// Search searches history by title or uploader
func (h *History) Search(query string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	query = strings.ToLower(query)
	return lo.Filter(h.entries, func(entry HistoryEntry, _ int) bool {
		return strings.Contains(strings.ToLower(entry.Title), query) ||
			strings.Contains(strings.ToLower(entry.Uploader), query)
	})
}

// FilterByStatus returns entries filtered by status
func (h *History) FilterByStatus(status string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.Filter(h.entries, func(entry HistoryEntry, _ int) bool {
		return entry.Status == status
	})
}

// GetByID returns a single entry by ID
func (h *History) GetByID(id string) *HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := lo.Find(h.entries, func(entry HistoryEntry) bool { return entry.ID == id })
	if !ok {
		return nil
	}
	return &entry
}

// Clear removes all history entries
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = []HistoryEntry{}
}

// GetStats returns statistics about the history
func (h *History) GetStats() HistoryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HistoryStats{ModeCounts: make(map[MediaMode]int)}

	for _, entry := range h.entries {
		stats.Total++
		switch entry.Status {
		case HistoryComplete:
			stats.Completed++
		case HistoryError:
			stats.Failed++
		}
		if entry.Mode != "" {
			stats.ModeCounts[entry.Mode]++
		}
	}

	return stats
}

// HistoryStats contains aggregated history statistics
type HistoryStats struct {
	Total      int               `json:"total"`
	Completed  int               `json:"completed"`
	Failed     int               `json:"failed"`
	ModeCounts map[MediaMode]int `json:"modeCounts"`
}

// GetRecent returns the most recent N entries
func (h *History) GetRecent(limit int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit < 0 || limit >= len(h.entries) {
		limit = len(h.entries)
	}
	result := make([]HistoryEntry, limit)
	copy(result, h.entries[:limit])
	return result
}
