package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Download queue management

type EntryState string

const (
	StateWaiting       EntryState = "waiting"
	StateAnalyzing     EntryState = "analyzing"
	StateReady         EntryState = "ready"
	StateAnalyzeFailed EntryState = "analyze_failed"
	StateDownloading   EntryState = "downloading"
	StateDone          EntryState = "done"
	StateFailed        EntryState = "failed"
)

// Reorderable reports whether an entry in this state may still be moved
func (s EntryState) Reorderable() bool {
	switch s {
	case StateWaiting, StateAnalyzing, StateReady, StateAnalyzeFailed:
		return true
	}
	return false
}

// Finished reports whether the state is terminal
func (s EntryState) Finished() bool {
	return s == StateDone || s == StateFailed || s == StateAnalyzeFailed
}

// QueueEntry is a single URL tracked by the queue
type QueueEntry struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	State     EntryState      `json:"state"`
	Kind      URLKind         `json:"kind,omitempty"`
	Media     *MediaItem      `json:"media,omitempty"`
	Playlist  *PlaylistResult `json:"playlist,omitempty"`
	Progress  int             `json:"progress"` // 0-100
	Stage     string          `json:"stage"`    // Human-readable current stage
	Message   string          `json:"message,omitempty"`
	Mode      MediaMode       `json:"mode"`
	Container string          `json:"container"`
	MaxHeight int             `json:"maxHeight,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Selected  []int           `json:"selected,omitempty"`
	DestDir   string          `json:"destDir"`

	OutputPath  string       `json:"outputPath,omitempty"`
	Job         *DownloadJob `json:"job,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	StartedAt   time.Time    `json:"startedAt,omitempty"`
	CompletedAt time.Time    `json:"completedAt,omitempty"`
}

// Analyzed reports whether metadata is cached on the entry
func (e *QueueEntry) Analyzed() bool {
	return e.Media != nil || e.Playlist != nil
}

func (e *QueueEntry) applyAnalysis(analysis *Analysis) {
	e.Kind = analysis.Kind
	e.Media = analysis.Item
	e.Playlist = analysis.Playlist
	if title := analysis.Title(); title != "" {
		e.Title = title
	}
}

// QueueRequest is the input for adding a URL to the queue
type QueueRequest struct {
	URL       string    `json:"url"`
	Mode      MediaMode `json:"mode,omitempty"`
	Container string    `json:"container,omitempty"`
	MaxHeight int       `json:"maxHeight,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Selected  []int     `json:"selected,omitempty"`
	DestDir   string    `json:"destDir,omitempty"`
}

// QueueEvent is emitted to subscribers on every change
type QueueEvent struct {
	Type     string      `json:"type"` // "added", "updated", "progress", "removed", "moved"
	EntryID  string      `json:"entryId"`
	Entry    *QueueEntry `json:"entry,omitempty"`
	Progress int         `json:"progress,omitempty"`
	State    EntryState  `json:"state,omitempty"`
	Stage    string      `json:"stage,omitempty"`
	Position int         `json:"position,omitempty"` // "moved" only
}

// QueueStats counts entries per state
type QueueStats struct {
	Total   int                `json:"total"`
	ByState map[EntryState]int `json:"byState"`
}

// MediaAnalyzer resolves a queued URL into metadata
type MediaAnalyzer interface {
	Analyze(ctx context.Context, url string, limit int) (*Analysis, error)
}

// MediaDownloader executes a queued acquisition
type MediaDownloader interface {
	DownloadVideo(ctx context.Context, req VideoRequest) Outcome
	DownloadAudio(ctx context.Context, req AudioRequest) Outcome
	DownloadPlaylist(ctx context.Context, job PlaylistJob) BatchOutcome
}

const subscriberBuffer = 64

// Queue holds pending URLs and runs one analysis worker and one download
// worker. Each worker handles a single entry at a time.
type Queue struct {
	entries []QueueEntry
	backlog []string // entry IDs awaiting analysis, arrival order
	mutex   sync.RWMutex

	analyzer   MediaAnalyzer
	downloader MediaDownloader
	config     *Config
	history    *History
	logger     *slog.Logger

	analyzeWake  chan struct{}
	downloadWake chan struct{}

	subMu   sync.Mutex
	subs    map[int]chan QueueEvent
	nextSub int

	ctx          context.Context
	stop         context.CancelFunc
	done         chan struct{}
	processing   bool
	processMutex sync.Mutex
}

// NewQueue creates a new download queue
func NewQueue(ctx context.Context, analyzer MediaAnalyzer, downloader MediaDownloader) *Queue {
	return &Queue{
		entries:      make([]QueueEntry, 0),
		analyzer:     analyzer,
		downloader:   downloader,
		config:       GetDefaultConfig(),
		logger:       slog.Default(),
		analyzeWake:  make(chan struct{}, 1),
		downloadWake: make(chan struct{}, 1),
		subs:         make(map[int]chan QueueEvent),
		ctx:          ctx,
	}
}

// SetConfig sets the defaults applied to new entries
func (q *Queue) SetConfig(config *Config) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if config != nil {
		q.config = config
	}
}

// SetHistory sets the history manager for recording finished entries
func (q *Queue) SetHistory(h *History) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.history = h
}

// SetLogger sets the queue logger
func (q *Queue) SetLogger(logger *slog.Logger) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if logger != nil {
		q.logger = logger
	}
}

// Subscribe returns a stream of queue events and a function to stop it.
// Slow subscribers miss events rather than block the queue.
func (q *Queue) Subscribe() (<-chan QueueEvent, func()) {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	id := q.nextSub
	q.nextSub++
	ch := make(chan QueueEvent, subscriberBuffer)
	q.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.subMu.Lock()
			delete(q.subs, id)
			q.subMu.Unlock()
			close(ch)
		})
	}
}

// emit fans an event out to subscribers
func (q *Queue) emit(event QueueEvent) {
	q.subMu.Lock()
	defer q.subMu.Unlock()

	for _, ch := range q.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Add validates a request and appends it to the queue in Waiting state
func (q *Queue) Add(req QueueRequest) (string, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := ValidateMediaURL(req.URL); err != nil {
		return "", err
	}

	q.mutex.Lock()
	config := q.config
	if req.Mode == "" {
		req.Mode = config.DefaultMode
	}
	if err := ValidateMode(req.Mode); err != nil {
		q.mutex.Unlock()
		return "", err
	}
	if req.Container == "" {
		req.Container = config.ContainerFor(req.Mode)
	}
	if err := ValidateContainer(req.Mode, req.Container); err != nil {
		q.mutex.Unlock()
		return "", err
	}
	if req.MaxHeight == 0 {
		req.MaxHeight = config.MaxHeight
	}
	if req.Limit == 0 {
		req.Limit = config.PlaylistLimit
	}
	if req.DestDir == "" {
		req.DestDir = config.OutputDirectory()
	}

	entry := QueueEntry{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Title:     req.URL,
		State:     StateWaiting,
		Stage:     "Waiting...",
		Mode:      req.Mode,
		Container: req.Container,
		MaxHeight: req.MaxHeight,
		Limit:     req.Limit,
		Selected:  req.Selected,
		DestDir:   req.DestDir,
		CreatedAt: time.Now(),
	}
	q.entries = append(q.entries, entry)
	q.backlog = append(q.backlog, entry.ID)
	q.mutex.Unlock()

	q.emit(QueueEvent{Type: "added", EntryID: entry.ID, Entry: &entry, State: entry.State})
	wake(q.analyzeWake)
	wake(q.downloadWake)
	return entry.ID, nil
}

// GetQueue returns a copy of all entries in visible order
func (q *Queue) GetQueue() []QueueEntry {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	result := make([]QueueEntry, len(q.entries))
	copy(result, q.entries)
	return result
}

// GetEntry returns a copy of a specific entry, nil when absent
func (q *Queue) GetEntry(id string) *QueueEntry {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if i := q.indexOf(id); i >= 0 {
		entry := q.entries[i]
		return &entry
	}
	return nil
}

// indexOf must be called with the mutex held
func (q *Queue) indexOf(id string) int {
	_, i, ok := lo.FindIndexOf(q.entries, func(e QueueEntry) bool { return e.ID == id })
	if !ok {
		return -1
	}
	return i
}

// updateEntry applies updater and emits an event of the given type.
// Returns false when the entry no longer exists.
func (q *Queue) updateEntry(id, eventType string, updater func(*QueueEntry)) bool {
	q.mutex.Lock()
	i := q.indexOf(id)
	if i < 0 {
		q.mutex.Unlock()
		return false
	}
	updater(&q.entries[i])
	updated := q.entries[i]
	q.mutex.Unlock()

	q.emit(QueueEvent{
		Type:     eventType,
		EntryID:  id,
		Entry:    &updated,
		Progress: updated.Progress,
		State:    updated.State,
		Stage:    updated.Stage,
	})
	return true
}

// Remove evicts an entry from the visible queue and the analysis backlog.
// An in-flight download keeps running and its result is dropped.
func (q *Queue) Remove(id string) error {
	q.mutex.Lock()
	i := q.indexOf(id)
	if i < 0 {
		q.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	q.backlog = lo.Without(q.backlog, id)
	q.mutex.Unlock()

	q.emit(QueueEvent{Type: "removed", EntryID: id})
	return nil
}

// Move moves an entry to a new position. Entries that have started
// downloading or finished are left in place.
func (q *Queue) Move(id string, newIndex int) error {
	q.mutex.Lock()

	currentIndex := q.indexOf(id)
	if currentIndex == -1 {
		q.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if newIndex < 0 || newIndex >= len(q.entries) {
		q.mutex.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidPosition, newIndex)
	}

	entry := q.entries[currentIndex]
	if !entry.State.Reorderable() || currentIndex == newIndex {
		q.mutex.Unlock()
		return nil
	}

	q.entries = append(q.entries[:currentIndex], q.entries[currentIndex+1:]...)
	q.entries = append(q.entries[:newIndex], append([]QueueEntry{entry}, q.entries[newIndex:]...)...)
	q.mutex.Unlock()

	q.emit(QueueEvent{Type: "moved", EntryID: id, Entry: &entry, State: entry.State, Position: newIndex})
	return nil
}

// MoveUp moves an entry one position towards the head
func (q *Queue) MoveUp(id string) error {
	return q.shift(id, -1)
}

// MoveDown moves an entry one position towards the tail
func (q *Queue) MoveDown(id string) error {
	return q.shift(id, 1)
}

func (q *Queue) shift(id string, delta int) error {
	q.mutex.RLock()
	i := q.indexOf(id)
	n := len(q.entries)
	q.mutex.RUnlock()

	if i < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	target := i + delta
	if target < 0 || target >= n {
		return nil
	}
	return q.Move(id, target)
}

// ClearFinished removes done and failed entries
func (q *Queue) ClearFinished() int {
	q.mutex.Lock()
	removed := lo.Filter(q.entries, func(e QueueEntry, _ int) bool { return e.State.Finished() })
	q.entries = lo.Reject(q.entries, func(e QueueEntry, _ int) bool { return e.State.Finished() })
	q.mutex.Unlock()

	for _, e := range removed {
		q.emit(QueueEvent{Type: "removed", EntryID: e.ID})
	}
	return len(removed)
}

// RetryFailed puts failed entries back in line. Entries with cached
// metadata go straight to Ready, the rest are analyzed again.
func (q *Queue) RetryFailed() int {
	q.mutex.Lock()

	var retried []QueueEntry
	for i := range q.entries {
		entry := &q.entries[i]
		if entry.State != StateFailed && entry.State != StateAnalyzeFailed {
			continue
		}
		if entry.Analyzed() {
			entry.State = StateReady
		} else {
			entry.State = StateWaiting
			q.backlog = append(q.backlog, entry.ID)
		}
		entry.Progress = 0
		entry.Message = ""
		entry.OutputPath = ""
		entry.Job = nil
		entry.Stage = "Waiting... (retry)"
		entry.CompletedAt = time.Time{}
		retried = append(retried, *entry)
	}
	q.mutex.Unlock()

	for i := range retried {
		q.emit(QueueEvent{Type: "updated", EntryID: retried[i].ID, Entry: &retried[i], State: retried[i].State})
	}
	if len(retried) > 0 {
		wake(q.analyzeWake)
		wake(q.downloadWake)
	}
	return len(retried)
}

// Stats counts entries per state
func (q *Queue) Stats() QueueStats {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	stats := QueueStats{Total: len(q.entries), ByState: make(map[EntryState]int)}
	for _, e := range q.entries {
		stats.ByState[e.State]++
	}
	return stats
}

// Idle reports whether no entry is waiting for or undergoing work
func (q *Queue) Idle() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return !lo.ContainsBy(q.entries, func(e QueueEntry) bool { return !e.State.Finished() })
}

// WaitIdle blocks until the queue is idle or ctx is done
func (q *Queue) WaitIdle(ctx context.Context) error {
	events, unsubscribe := q.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if q.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-events:
		case <-ticker.C:
		}
	}
}
