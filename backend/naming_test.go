package backend

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Normal Name", "Normal Name"},
		{"My Video: Part 1/2?", "My Video Part 12"},
		{"With\\Backslash", "WithBackslash"},
		{"With<Brackets>", "WithBrackets"},
		{"With|Pipe", "WithPipe"},
		{"With*Star", "WithStar"},
		{"With\"Quotes\"", "WithQuotes"},
		{"Tab\tand\x7fdel", "Tabanddel"},
		{"C1\u0085control", "C1control"},
		{"...dots...", "dots"},
		{"  padded  ", "padded"},
		{"Keeps  inner   spaces", "Keeps  inner   spaces"},
		{"", ""},
		{"???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := SanitizeFileName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeFileName_LongName(t *testing.T) {
	long := strings.Repeat("é", 300)
	result := SanitizeFileName(long)
	if n := utf8.RuneCountInString(result); n != MaxFileNameLength {
		t.Errorf("Expected %d runes, got %d", MaxFileNameLength, n)
	}
	if !utf8.ValidString(result) {
		t.Error("Truncation produced invalid UTF-8")
	}
}

func TestFinalFileName(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		channel   string
		channelID string
		expected  string
	}{
		{"title only", "Clip", "", "", "Clip"},
		{"channel without id", "Clip", "Chan", "", "Clip"},
		{"id without channel", "Clip", "", "chan", "Clip"},
		{"full suffix", "Clip", "Chan", "chan", "Clip - [Chan - @chan]"},
		{"handle kept verbatim", "Clip", "Chan", "@chan", "Clip - [Chan - @@chan]"},
		{"suffix is sanitized", "A/B", "C:D", "e", "AB - [CD - @e]"},
		{"empty falls back", "???", "", "", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FinalFileName(tt.title, tt.channel, tt.channelID)
			if result != tt.expected {
				t.Errorf("FinalFileName(%q, %q, %q) = %q, want %q",
					tt.title, tt.channel, tt.channelID, result, tt.expected)
			}
		})
	}
}

func TestPlaylistFolderName(t *testing.T) {
	if got := PlaylistFolderName("Best of: 2024"); got != "Best of 2024" {
		t.Errorf("Expected 'Best of 2024', got %q", got)
	}
	if got := PlaylistFolderName("..."); got != "Playlist" {
		t.Errorf("Expected fallback 'Playlist', got %q", got)
	}
}
