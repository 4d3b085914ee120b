package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Queue Processing (Workers)
// =============================================================================

// StartProcessing starts both workers in the background
func (q *Queue) StartProcessing() {
	q.processMutex.Lock()
	if q.processing {
		q.processMutex.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(q.ctx)
	done := make(chan struct{})
	q.processing = true
	q.stop = cancel
	q.done = done
	q.processMutex.Unlock()

	go func() {
		defer close(done)
		if err := q.Run(ctx); err != nil {
			q.log().Error("queue stopped", "err", err)
		}
	}()
}

// StopProcessing stops the workers and waits for them to return.
// An in-flight download runs to completion first.
func (q *Queue) StopProcessing() {
	q.processMutex.Lock()
	if !q.processing {
		q.processMutex.Unlock()
		return
	}
	cancel, done := q.stop, q.done
	q.processMutex.Unlock()

	cancel()
	<-done

	q.processMutex.Lock()
	q.processing = false
	q.processMutex.Unlock()
}

// Run runs the analysis worker and the download worker until ctx is done
func (q *Queue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return q.analysisWorker(ctx) })
	g.Go(func() error { return q.downloadWorker(ctx) })
	return g.Wait()
}

func (q *Queue) log() *slog.Logger {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.logger
}

// -----------------------------------------------------------------------------
// Analysis worker
// -----------------------------------------------------------------------------

// analysisWorker drains the backlog in arrival order, one entry at a time
func (q *Queue) analysisWorker(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		claim, ok := q.claimAnalysis()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.analyzeWake:
			}
			continue
		}

		q.analyze(ctx, claim)
		wake(q.downloadWake)
	}
}

// claimAnalysis pops the backlog until it finds a Waiting entry without
// cached metadata and marks it Analyzing
func (q *Queue) claimAnalysis() (QueueEntry, bool) {
	q.mutex.Lock()

	for len(q.backlog) > 0 {
		id := q.backlog[0]
		q.backlog = q.backlog[1:]

		i := q.indexOf(id)
		if i < 0 {
			continue
		}
		entry := &q.entries[i]
		if entry.State != StateWaiting || entry.Analyzed() {
			continue
		}
		entry.State = StateAnalyzing
		entry.Stage = "Analyzing..."
		claimed := *entry
		q.mutex.Unlock()

		q.emit(QueueEvent{Type: "updated", EntryID: id, Entry: &claimed, State: claimed.State, Stage: claimed.Stage})
		return claimed, true
	}

	q.mutex.Unlock()
	return QueueEntry{}, false
}

func (q *Queue) analyze(ctx context.Context, claim QueueEntry) {
	analysis, err := q.analyzer.Analyze(ctx, claim.URL, claim.Limit)

	if err != nil && ctx.Err() != nil {
		// Shutdown interrupted the lookup, leave the entry for the next run
		q.updateEntry(claim.ID, "updated", func(e *QueueEntry) {
			if e.State == StateAnalyzing {
				e.State = StateWaiting
				e.Stage = "Waiting..."
				q.backlog = append([]string{e.ID}, q.backlog...)
			}
		})
		return
	}

	q.updateEntry(claim.ID, "updated", func(e *QueueEntry) {
		if e.State != StateAnalyzing {
			return
		}
		if err != nil {
			e.State = StateAnalyzeFailed
			e.Stage = "Analysis failed"
			e.Message = err.Error()
			return
		}
		e.applyAnalysis(analysis)
		e.State = StateReady
		e.Stage = "Ready"
	})

	if err != nil {
		q.log().Warn("analysis failed", "url", claim.URL, "err", err)
	} else {
		q.log().Debug("analysis complete", "url", claim.URL, "kind", analysis.Kind, "title", analysis.Title())
	}
}

// -----------------------------------------------------------------------------
// Download worker
// -----------------------------------------------------------------------------

// downloadWorker runs one acquisition at a time, picking the first Ready or
// Waiting entry in visible order
func (q *Queue) downloadWorker(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		claim, ok := q.claimDownload()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.downloadWake:
			}
			continue
		}

		q.process(ctx, claim)
	}
}

func (q *Queue) claimDownload() (QueueEntry, bool) {
	q.mutex.Lock()

	for i := range q.entries {
		entry := &q.entries[i]
		if entry.State != StateReady && entry.State != StateWaiting {
			continue
		}
		entry.State = StateDownloading
		entry.Stage = "Starting..."
		entry.Progress = 0
		entry.StartedAt = time.Now()
		claimed := *entry
		q.mutex.Unlock()

		q.emit(QueueEvent{Type: "updated", EntryID: claimed.ID, Entry: &claimed, State: claimed.State, Stage: claimed.Stage})
		return claimed, true
	}

	q.mutex.Unlock()
	return QueueEntry{}, false
}

// process runs the full acquisition for a claimed entry
func (q *Queue) process(ctx context.Context, entry QueueEntry) {
	id := entry.ID
	logger := q.log().With("id", id, "url", entry.URL)

	if !entry.Analyzed() {
		q.setStage(id, "Analyzing...")
		analysis, err := q.analyzer.Analyze(ctx, entry.URL, entry.Limit)
		if err != nil {
			logger.Warn("analysis failed", "err", err)
			q.finish(id, StateFailed, &DownloadJob{
				ID:      uuid.New().String(),
				Mode:    entry.Mode,
				Outcome: Outcome{Message: fmt.Sprintf("Analysis failed: %v", err)},
			})
			return
		}
		entry.applyAnalysis(analysis)
		q.updateEntry(id, "updated", func(e *QueueEntry) { e.applyAnalysis(analysis) })
	}

	job := &DownloadJob{
		ID:        uuid.New().String(),
		Mode:      entry.Mode,
		Container: entry.Container,
		Item:      entry.Media,
		Playlist:  entry.Playlist,
		Selected:  entry.Selected,
		DestDir:   entry.DestDir,
		StartedAt: time.Now(),
	}
	progress := func(u ProgressUpdate) { q.reportProgress(id, u) }

	switch {
	case entry.Playlist != nil:
		job.Quality = heightCap(entry.MaxHeight)
		batch := q.downloader.DownloadPlaylist(ctx, PlaylistJob{
			Playlist:  entry.Playlist,
			Selected:  entry.Selected,
			Mode:      entry.Mode,
			Container: entry.Container,
			Quality:   job.Quality,
			DestDir:   entry.DestDir,
			Progress:  progress,
			OnItem: func(index, total int, title string) {
				q.setStage(id, fmt.Sprintf("[%d/%d] Downloading: %s", index, total, title))
			},
		})
		job.Outcome = Outcome{Success: true, Message: batch.Message}

	case entry.Mode == ModeAudio:
		job.Outcome = q.downloader.DownloadAudio(ctx, AudioRequest{
			URL:       entry.URL,
			Container: entry.Container,
			Title:     entry.Media.Title,
			DestDir:   entry.DestDir,
			Channel:   entry.Media.Uploader,
			ChannelID: entry.Media.UploaderID,
			Progress:  progress,
		})

	default:
		job.Quality = PickQuality(BuildQualityTable(entry.Media), entry.MaxHeight)
		if job.Quality == nil {
			job.Quality = heightCap(entry.MaxHeight)
		}
		job.Outcome = q.downloader.DownloadVideo(ctx, VideoRequest{
			URL:       entry.URL,
			Quality:   job.Quality,
			Container: entry.Container,
			Title:     entry.Media.Title,
			DestDir:   entry.DestDir,
			Channel:   entry.Media.Uploader,
			ChannelID: entry.Media.UploaderID,
			Progress:  progress,
		})
	}

	state := StateDone
	if !job.Outcome.Success {
		state = StateFailed
		logger.Warn("download failed", "message", job.Outcome.Message)
	} else {
		logger.Info("download finished", "message", job.Outcome.Message, "path", job.Outcome.Path)
	}
	q.finish(id, state, job)
}

// finish records the terminal state. Results for removed entries are dropped.
func (q *Queue) finish(id string, state EntryState, job *DownloadJob) {
	q.mutex.Lock()
	i := q.indexOf(id)
	if i < 0 {
		q.mutex.Unlock()
		q.log().Info("entry removed during download, dropping result", "id", id)
		return
	}
	entry := &q.entries[i]
	entry.State = state
	entry.Job = job
	entry.Message = job.Outcome.Message
	entry.OutputPath = job.Outcome.Path
	entry.Stage = job.Outcome.Message
	entry.CompletedAt = time.Now()
	if state == StateDone {
		entry.Progress = 100
	}
	finished := *entry
	history := q.history
	q.mutex.Unlock()

	if history != nil {
		history.AddFromQueueEntry(&finished)
	}
	q.emit(QueueEvent{Type: "updated", EntryID: id, Entry: &finished, Progress: finished.Progress, State: state, Stage: finished.Stage})
}

func (q *Queue) setStage(id, stage string) {
	q.updateEntry(id, "updated", func(e *QueueEntry) { e.Stage = stage })
}

// reportProgress keeps the last tick on the entry. Missing percentages
// leave the previous value in place.
func (q *Queue) reportProgress(id string, u ProgressUpdate) {
	q.updateEntry(id, "progress", func(e *QueueEntry) {
		if u.Percent >= 0 {
			e.Progress = u.PercentInt()
		}
		e.Stage = u.String()
	})
}

// heightCap turns a bare height limit into a quality choice
func heightCap(maxHeight int) *QualityOption {
	if maxHeight <= 0 {
		return nil
	}
	return &QualityOption{Label: fmt.Sprintf("%dp", maxHeight), Height: maxHeight}
}
