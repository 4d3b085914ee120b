package backend

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMatchKind(t *testing.T) {
	tests := []struct {
		url    string
		want   URLKind
		wantOK bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", KindPlaylist, true},
		{"https://www.youtube.com/watch?v=abc&list=PL123", KindPlaylist, true},
		{"https://www.youtube.com/watch?v=abc", KindVideo, true},
		{"https://YOUTU.BE/abc", KindVideo, true},
		{"https://vimeo.com/watch/123", KindVideo, true},
		{"https://www.youtube.com/channel/UC123", KindChannel, true},
		{"https://www.youtube.com/c/custom", KindChannel, true},
		{"https://www.youtube.com/@handle", KindChannel, true},
		{"https://example.com/media/42", KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := MatchKind(tt.url)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchKind(%q) = (%s, %v), want (%s, %v)", tt.url, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClassify_PatternSkipsProbe(t *testing.T) {
	r := &fakeResolver{}
	c := NewClassifier(r, time.Second, nil)

	if kind := c.Classify(context.Background(), "https://youtu.be/abc"); kind != KindVideo {
		t.Errorf("Expected video, got %s", kind)
	}
	if r.CallCount() != 0 {
		t.Error("Pattern match should not probe the resolver")
	}
}

func TestClassify_Probe(t *testing.T) {
	tests := []struct {
		name string
		info *RawInfo
		err  error
		want URLKind
	}{
		{"playlist type", &RawInfo{Type: "playlist", Entries: []*RawInfo{}}, nil, KindPlaylist},
		{"video type", &RawInfo{Type: "video"}, nil, KindVideo},
		{"no entries", &RawInfo{Type: "url"}, nil, KindVideo},
		{"entries without playlist type", &RawInfo{Type: "multi_video", Entries: []*RawInfo{}}, nil, KindUnknown},
		{"probe error", nil, errors.New("Unsupported URL"), KindUnknown},
		{"nil info", nil, nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeResolver{extract: func(url string, opts ResolveOptions) (*RawInfo, error) {
				return tt.info, tt.err
			}}
			c := NewClassifier(r, time.Second, nil)

			if got := c.Classify(context.Background(), "https://example.com/media/42"); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}

			calls := r.Calls()
			if len(calls) != 1 {
				t.Fatalf("Expected one probe, got %d", len(calls))
			}
			if opts := calls[0].Opts; !opts.Unprocessed || !opts.Quiet || opts.Flat != FlatAll {
				t.Errorf("Unexpected probe options %+v", opts)
			}
		})
	}
}
