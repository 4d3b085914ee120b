package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbeTool_Up(t *testing.T) {
	status := probeTool(context.Background(), func(ctx context.Context) (string, error) {
		return "2025.01.01", nil
	})
	if status.Status != "up" || status.Version != "2025.01.01" {
		t.Errorf("Unexpected status %+v", status)
	}
	if status.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
}

func TestProbeTool_Down(t *testing.T) {
	status := probeTool(context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("executable file not found")
	})
	if status.Status != "down" || status.Error == "" {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestStatusChecker_CacheHit(t *testing.T) {
	var calls atomic.Int32
	checker := NewStatusChecker(map[string]VersionProbe{
		"yt-dlp": func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "2025.01.01", nil
		},
		"ffmpeg": func(ctx context.Context) (string, error) {
			return "", errors.New("missing")
		},
	})

	first := checker.Check(context.Background())
	second := checker.Check(context.Background())

	if calls.Load() != 1 {
		t.Errorf("Expected cached second check, probe ran %d times", calls.Load())
	}
	if first["yt-dlp"].Status != "up" || second["ffmpeg"].Status != "down" {
		t.Errorf("Unexpected results %+v / %+v", first, second)
	}

	checker.Invalidate()
	checker.Check(context.Background())
	if calls.Load() != 2 {
		t.Errorf("Invalidate should force a new probe, got %d", calls.Load())
	}
}

func TestStatusChecker_Expired(t *testing.T) {
	var calls atomic.Int32
	checker := NewStatusChecker(map[string]VersionProbe{
		"yt-dlp": func(ctx context.Context) (string, error) {
			calls.Add(1)
			return "v", nil
		},
	})
	checker.cache.entries["yt-dlp"] = ToolStatus{Status: "down", CheckedAt: time.Now().Add(-time.Hour)}

	if got := checker.Check(context.Background())["yt-dlp"]; got.Status != "up" {
		t.Errorf("Stale entry should be refreshed, got %+v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected one probe, got %d", calls.Load())
	}
}
