package backend

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Test doubles for the resolver and the toolchain

type resolverCall struct {
	Method string // "extract" or "download"
	URL    string
	Opts   ResolveOptions
}

type fakeResolver struct {
	mu       sync.Mutex
	calls    []resolverCall
	extract  func(url string, opts ResolveOptions) (*RawInfo, error)
	download func(url string, opts ResolveOptions, progress ProgressFunc) error
}

func (f *fakeResolver) Extract(ctx context.Context, url string, opts ResolveOptions) (*RawInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, resolverCall{Method: "extract", URL: url, Opts: opts})
	fn := f.extract
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("extract not configured")
	}
	return fn(url, opts)
}

func (f *fakeResolver) Download(ctx context.Context, url string, opts ResolveOptions, progress ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, resolverCall{Method: "download", URL: url, Opts: opts})
	fn := f.download
	f.mu.Unlock()

	if fn == nil {
		return errors.New("download not configured")
	}
	return fn(url, opts, progress)
}

func (f *fakeResolver) Calls() []resolverCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]resolverCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeResolver) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeToolchain struct {
	mu           sync.Mutex
	versionErr   error
	versionCalls int
	runs         [][]string
	run          func(args []string) error
}

func (f *fakeToolchain) Version(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	return f.versionErr
}

func (f *fakeToolchain) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.runs = append(f.runs, args)
	fn := f.run
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(args)
}

func (f *fakeToolchain) Runs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.runs))
	copy(out, f.runs)
	return out
}

func (f *fakeToolchain) VersionCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versionCalls
}

// writeTemplate writes size bytes where the resolver would put a file
// rendered from an output template with the given extension
func writeTemplate(fs afero.Fs, tmpl, ext string, size int) error {
	path := strings.ReplaceAll(tmpl, "%(ext)s", ext)
	return afero.WriteFile(fs, path, make([]byte, size), 0644)
}

// writeMergeOutput makes a fake ffmpeg run produce its output path
func writeMergeOutput(fs afero.Fs) func(args []string) error {
	return func(args []string) error {
		return afero.WriteFile(fs, args[len(args)-1], []byte("merged"), 0644)
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func containsArg(args []string, want ...string) bool {
	for i := 0; i+len(want) <= len(args); i++ {
		match := true
		for j := range want {
			if args[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Test doubles for the queue collaborators

type fakeAnalyzer struct {
	mu      sync.Mutex
	urls    []string
	analyze func(url string) (*Analysis, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, url string, limit int) (*Analysis, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	fn := f.analyze
	f.mu.Unlock()

	if fn == nil {
		return &Analysis{Kind: KindVideo, Item: &MediaItem{ID: url, Title: "Title of " + url, URL: url}}, nil
	}
	return fn(url)
}

func (f *fakeAnalyzer) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type fakeDownloader struct {
	mu       sync.Mutex
	videos   []VideoRequest
	audios   []AudioRequest
	lists    []PlaylistJob
	outcome  func(url string) Outcome
	playlist func(job PlaylistJob) BatchOutcome
}

func (f *fakeDownloader) result(url string) Outcome {
	if f.outcome == nil {
		return Outcome{Success: true, Message: "Downloaded successfully (direct)", Path: "/downloads/" + url}
	}
	return f.outcome(url)
}

func (f *fakeDownloader) DownloadVideo(ctx context.Context, req VideoRequest) Outcome {
	f.mu.Lock()
	f.videos = append(f.videos, req)
	f.mu.Unlock()
	if req.Progress != nil {
		req.Progress(ProgressUpdate{Status: "downloading", Downloaded: 50, Total: 100, Speed: -1, ETA: -1, Percent: 50})
	}
	return f.result(req.URL)
}

func (f *fakeDownloader) DownloadAudio(ctx context.Context, req AudioRequest) Outcome {
	f.mu.Lock()
	f.audios = append(f.audios, req)
	f.mu.Unlock()
	return f.result(req.URL)
}

func (f *fakeDownloader) DownloadPlaylist(ctx context.Context, job PlaylistJob) BatchOutcome {
	f.mu.Lock()
	f.lists = append(f.lists, job)
	fn := f.playlist
	f.mu.Unlock()
	if fn != nil {
		return fn(job)
	}
	return BatchOutcome{Message: "Playlist finished. 0/0 successful."}
}

func (f *fakeDownloader) Videos() []VideoRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]VideoRequest(nil), f.videos...)
}
