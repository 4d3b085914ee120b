package backend

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const testDest = "/downloads"

func newTestDownloader(fs afero.Fs, r *fakeResolver, tc *fakeToolchain) *Downloader {
	return NewDownloader(r, tc, fs, nil)
}

func assertCacheEmpty(t *testing.T, fs afero.Fs, dest string) {
	t.Helper()
	entries, err := afero.ReadDir(fs, CacheRoot(dest))
	if err != nil {
		return
	}
	if len(entries) != 0 {
		t.Errorf("Expected cache root to be empty, found %d entries", len(entries))
	}
}

func TestDownloadVideo_AlreadyExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{}
	tc := &fakeToolchain{}
	d := newTestDownloader(fs, r, tc)

	final := filepath.Join(testDest, "Clip.mp4")
	if err := afero.WriteFile(fs, final, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	outcome := d.DownloadVideo(context.Background(), VideoRequest{URL: "u", Title: "Clip", DestDir: testDest})

	if !outcome.Success || outcome.Message != "File already exists, skipping..." {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
	if !errors.Is(outcome.Err, ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists marker, got %v", outcome.Err)
	}
	if r.CallCount() != 0 || len(tc.Runs()) != 0 || tc.VersionCalls() != 0 {
		t.Error("Expected no resolver or toolchain calls")
	}
}

func TestDownloadVideo_Idempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		return writeTemplate(fs, opts.OutputTemplate, "mp4", 4096)
	}}
	d := newTestDownloader(fs, r, &fakeToolchain{})
	req := VideoRequest{URL: "https://youtu.be/abc", Title: "Clip", DestDir: testDest, Channel: "Chan", ChannelID: "chan"}

	first := d.DownloadVideo(context.Background(), req)
	if !first.Success {
		t.Fatalf("First download failed: %+v", first)
	}
	calls := r.CallCount()

	second := d.DownloadVideo(context.Background(), req)
	if !second.Success {
		t.Fatalf("Second download failed: %+v", second)
	}
	if r.CallCount() != calls {
		t.Errorf("Second call should not reach the resolver (calls %d -> %d)", calls, r.CallCount())
	}
	if second.Path != filepath.Join(testDest, "Clip - [Chan - @chan].mp4") {
		t.Errorf("Unexpected path %s", second.Path)
	}
}

func TestDownloadVideo_Direct(t *testing.T) {
	tests := []struct {
		name        string
		container   string
		quality     *QualityOption
		producedExt string
		wantFormat  string
		wantConvert bool
	}{
		{"mp4 best", "mp4", nil, "mp4", "best[acodec!=none]/best", false},
		{"mp4 capped", "mp4", &QualityOption{Height: 720}, "mp4", "best[height<=720][acodec!=none]/best[height<=720]/best", false},
		{"mkv converted", "mkv", nil, "mkv", "best[acodec!=none]/best", true},
		{"mkv served as webm", "mkv", nil, "webm", "best[acodec!=none]/best", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
				return writeTemplate(fs, opts.OutputTemplate, tt.producedExt, 2048)
			}}
			tc := &fakeToolchain{}
			d := newTestDownloader(fs, r, tc)

			outcome := d.DownloadVideo(context.Background(), VideoRequest{
				URL: "u", Title: "Clip", Container: tt.container, Quality: tt.quality, DestDir: testDest,
			})

			if !outcome.Success || outcome.Message != "Downloaded successfully (direct)" {
				t.Fatalf("Unexpected outcome: %+v", outcome)
			}
			want := filepath.Join(testDest, "Clip."+tt.container)
			if ok, _ := afero.Exists(fs, want); !ok {
				t.Errorf("Expected final file %s", want)
			}

			calls := r.Calls()
			if len(calls) != 1 {
				t.Fatalf("Expected 1 resolver call, got %d", len(calls))
			}
			opts := calls[0].Opts
			if opts.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", opts.Format, tt.wantFormat)
			}
			if got := opts.Transform.Kind == TransformConvert; got != tt.wantConvert {
				t.Errorf("Convert transform = %v, want %v", got, tt.wantConvert)
			}
			if !strings.HasPrefix(opts.OutputTemplate, CacheRoot(testDest)) {
				t.Errorf("Output template %s is outside the cache", opts.OutputTemplate)
			}
			if tc.VersionCalls() != 0 {
				t.Error("Toolchain should not be checked after a direct success")
			}
			assertCacheEmpty(t, fs, testDest)
		})
	}
}

func TestDownloadVideo_MissingToolchain(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		// too small to be viable
		return writeTemplate(fs, opts.OutputTemplate, "mp4", 100)
	}}
	tc := &fakeToolchain{versionErr: errors.New("not found")}
	d := newTestDownloader(fs, r, tc)

	outcome := d.DownloadVideo(context.Background(), VideoRequest{URL: "u", Title: "Clip", DestDir: testDest})

	if outcome.Success || outcome.Message != "FFmpeg required for video+audio merge!" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
	if !errors.Is(outcome.Err, ErrMissingToolchain) {
		t.Errorf("Expected ErrMissingToolchain, got %v", outcome.Err)
	}
	if r.CallCount() != 1 {
		t.Errorf("Expected only the direct attempt, got %d calls", r.CallCount())
	}
	if len(tc.Runs()) != 0 {
		t.Error("Merge must not run without a toolchain")
	}
	assertCacheEmpty(t, fs, testDest)
}

func TestDownloadVideo_MergeFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		switch {
		case strings.HasPrefix(opts.Format, "best["):
			return errors.New("requested format is not available")
		case strings.HasPrefix(opts.Format, "bestvideo"):
			return writeTemplate(fs, opts.OutputTemplate, "webm", 5000)
		default:
			return writeTemplate(fs, opts.OutputTemplate, "m4a", 5000)
		}
	}}
	tc := &fakeToolchain{run: writeMergeOutput(fs)}
	d := newTestDownloader(fs, r, tc)

	outcome := d.DownloadVideo(context.Background(), VideoRequest{
		URL: "u", Title: "Clip", Quality: &QualityOption{Height: 1080}, DestDir: testDest,
	})

	if !outcome.Success || outcome.Message != "Downloaded and merged successfully" {
		t.Fatalf("Unexpected outcome: %+v", outcome)
	}

	calls := r.Calls()
	wantFormats := []string{
		"best[height<=1080][acodec!=none]/best[height<=1080]/best",
		"bestvideo[height<=1080]/bestvideo",
		"bestaudio/best",
	}
	if len(calls) != len(wantFormats) {
		t.Fatalf("Expected %d resolver calls, got %d", len(wantFormats), len(calls))
	}
	for i, f := range wantFormats {
		if calls[i].Opts.Format != f {
			t.Errorf("call %d format = %q, want %q", i, calls[i].Opts.Format, f)
		}
	}
	if !strings.Contains(calls[1].Opts.OutputTemplate, "temp_video_Clip") ||
		!strings.Contains(calls[2].Opts.OutputTemplate, "temp_audio_Clip") {
		t.Errorf("Unexpected stream templates: %s, %s", calls[1].Opts.OutputTemplate, calls[2].Opts.OutputTemplate)
	}

	runs := tc.Runs()
	if len(runs) != 1 {
		t.Fatalf("Expected 1 merge run, got %d", len(runs))
	}
	if !strings.HasSuffix(runs[0][2], "temp_video_Clip.webm") || !strings.HasSuffix(runs[0][4], "temp_audio_Clip.m4a") {
		t.Errorf("Merge inputs not located: %v", runs[0])
	}

	if ok, _ := afero.Exists(fs, filepath.Join(testDest, "Clip.mp4")); !ok {
		t.Error("Expected merged file at destination")
	}
	assertCacheEmpty(t, fs, testDest)
}

func TestDownloadVideo_MergeFailed(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		if strings.HasPrefix(opts.Format, "best[") {
			return errors.New("boom")
		}
		ext := "mp4"
		if opts.Format == "bestaudio/best" {
			ext = "m4a"
		}
		return writeTemplate(fs, opts.OutputTemplate, ext, 5000)
	}}
	tc := &fakeToolchain{run: func(args []string) error { return errors.New("exit status 1") }}
	d := newTestDownloader(fs, r, tc)

	outcome := d.DownloadVideo(context.Background(), VideoRequest{URL: "u", Title: "Clip", DestDir: testDest})

	if outcome.Success || outcome.Message != "Download/Merge failed" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
	if !errors.Is(outcome.Err, ErrMergeFailed) {
		t.Errorf("Expected ErrMergeFailed, got %v", outcome.Err)
	}
	if len(tc.Runs()) != 2 {
		t.Errorf("Expected both merge stages, got %d runs", len(tc.Runs()))
	}
	assertCacheEmpty(t, fs, testDest)
}

func TestDownloadVideo_MissingStream(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		if opts.Format == "bestaudio/best" {
			return writeTemplate(fs, opts.OutputTemplate, "m4a", 5000)
		}
		return nil
	}}
	tc := &fakeToolchain{run: writeMergeOutput(fs)}
	d := newTestDownloader(fs, r, tc)

	outcome := d.DownloadVideo(context.Background(), VideoRequest{URL: "u", Title: "Clip", DestDir: testDest})

	if outcome.Success {
		t.Errorf("Expected failure, got %+v", outcome)
	}
	if len(tc.Runs()) != 0 {
		t.Error("Merge must not run when a stream is missing")
	}
}

func TestDownloadVideo_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{}
	d := newTestDownloader(fs, r, &fakeToolchain{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := d.DownloadVideo(ctx, VideoRequest{URL: "u", Title: "Clip", DestDir: testDest})
	if outcome.Success {
		t.Error("Expected cancelled download to fail")
	}
	if r.CallCount() != 0 {
		t.Error("Cancelled download should not reach the resolver")
	}
	assertCacheEmpty(t, fs, testDest)
}

func TestDownloadAudio(t *testing.T) {
	tests := []struct {
		name        string
		container   string
		download    func(fs afero.Fs) func(url string, opts ResolveOptions, progress ProgressFunc) error
		wantSuccess bool
		wantMessage string
	}{
		{
			name:      "exact container",
			container: "mp3",
			download: func(fs afero.Fs) func(string, ResolveOptions, ProgressFunc) error {
				return func(_ string, opts ResolveOptions, _ ProgressFunc) error {
					return writeTemplate(fs, opts.OutputTemplate, "mp3", 4096)
				}
			},
			wantSuccess: true,
			wantMessage: "Audio downloaded successfully",
		},
		{
			name:      "alternate container",
			container: "wav",
			download: func(fs afero.Fs) func(string, ResolveOptions, ProgressFunc) error {
				return func(_ string, opts ResolveOptions, _ ProgressFunc) error {
					return writeTemplate(fs, opts.OutputTemplate, "m4a", 10)
				}
			},
			wantSuccess: true,
			wantMessage: "Audio downloaded successfully (converted)",
		},
		{
			name:      "nothing produced",
			container: "mp3",
			download: func(fs afero.Fs) func(string, ResolveOptions, ProgressFunc) error {
				return func(string, ResolveOptions, ProgressFunc) error { return nil }
			},
			wantMessage: "Audio download failed",
		},
		{
			name:      "resolver error",
			container: "mp3",
			download: func(fs afero.Fs) func(string, ResolveOptions, ProgressFunc) error {
				return func(string, ResolveOptions, ProgressFunc) error { return errors.New("HTTP Error 403") }
			},
			wantMessage: "Audio download error: HTTP Error 403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			r := &fakeResolver{download: tt.download(fs)}
			d := newTestDownloader(fs, r, &fakeToolchain{})

			outcome := d.DownloadAudio(context.Background(), AudioRequest{
				URL: "u", Title: "Song", Container: tt.container, DestDir: testDest,
			})

			if outcome.Success != tt.wantSuccess || outcome.Message != tt.wantMessage {
				t.Errorf("Outcome = %+v, want success=%v message=%q", outcome, tt.wantSuccess, tt.wantMessage)
			}
			if tt.wantSuccess {
				if ok, _ := afero.Exists(fs, filepath.Join(testDest, "Song."+tt.container)); !ok {
					t.Error("Expected final audio file")
				}
			}

			opts := r.Calls()[0].Opts
			if opts.Transform.Kind != TransformExtractAudio || opts.Transform.Codec != tt.container || opts.Transform.Quality != "320K" {
				t.Errorf("Unexpected transform %+v", opts.Transform)
			}
			assertCacheEmpty(t, fs, testDest)
		})
	}
}

func TestDownloadPlaylist(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		if strings.HasSuffix(url, "bad") {
			return errors.New("unavailable")
		}
		return writeTemplate(fs, opts.OutputTemplate, "mp3", 4096)
	}}
	d := newTestDownloader(fs, r, &fakeToolchain{})

	playlist := &PlaylistResult{
		Title: "Mix: 2024",
		Entries: []MediaItem{
			{ID: "a", Title: "First", Uploader: "Chan", UploaderID: "@chan"},
			{ID: "bad", Title: "Second"},
			{Title: "No id, no url"},
			{ID: "c", Title: "Third", URL: "https://www.youtube.com/watch?v=c"},
		},
	}

	var started []string
	batch := d.DownloadPlaylist(context.Background(), PlaylistJob{
		Playlist:  playlist,
		Mode:      ModeAudio,
		Container: "mp3",
		DestDir:   testDest,
		OnItem:    func(index, total int, title string) { started = append(started, title) },
	})

	if batch.Succeeded != 2 || batch.Attempted != 3 {
		t.Errorf("Expected 2/3, got %d/%d", batch.Succeeded, batch.Attempted)
	}
	if batch.Message != "Playlist finished. 2/3 successful." {
		t.Errorf("Unexpected message %q", batch.Message)
	}
	if len(started) != 3 {
		t.Errorf("Expected 3 started entries, got %v", started)
	}

	folder := filepath.Join(testDest, "Mix 2024")
	if ok, _ := afero.Exists(fs, filepath.Join(folder, "First - [Chan - @@chan].mp3")); !ok {
		t.Error("Expected first entry with channel suffix")
	}
	if ok, _ := afero.Exists(fs, filepath.Join(folder, "Third.mp3")); !ok {
		t.Error("Expected third entry")
	}
}

func TestDownloadPlaylist_Selected(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeResolver{download: func(url string, opts ResolveOptions, progress ProgressFunc) error {
		return writeTemplate(fs, opts.OutputTemplate, "mp4", 4096)
	}}
	d := newTestDownloader(fs, r, &fakeToolchain{})

	playlist := &PlaylistResult{Title: "P", Entries: []MediaItem{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}}}
	batch := d.DownloadPlaylist(context.Background(), PlaylistJob{
		Playlist: playlist, Selected: []int{2, 7, 0}, Mode: ModeVideo, DestDir: testDest,
	})

	if batch.Attempted != 2 || batch.Succeeded != 2 {
		t.Errorf("Expected 2/2, got %d/%d", batch.Succeeded, batch.Attempted)
	}
	calls := r.Calls()
	if len(calls) != 2 || calls[0].URL != "https://www.youtube.com/watch?v=c" || calls[1].URL != "https://www.youtube.com/watch?v=a" {
		t.Errorf("Unexpected call order: %+v", calls)
	}
}
