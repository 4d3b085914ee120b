package backend

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// maxURLLength bounds URLs handed to yt-dlp.
const maxURLLength = 2048

// systemPaths are directories that must never be used as output.
var systemPaths = []string{"/etc", "/root", "/proc", "/sys", "/bin", "/sbin", "/usr/bin", "/dev", "/boot"}

// ValidateMediaURL checks that a URL is something yt-dlp can be pointed at.
// It must use http or https, carry a host, and be ≤2048 chars.
func ValidateMediaURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("URL is empty")
	}
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d characters", maxURLLength)
	}

	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use http or https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("URL has no host")
	}

	return nil
}

// ValidateOutputDirectory rejects paths that overlap with system directories.
func ValidateOutputDirectory(path string) error {
	if path == "" {
		return nil // empty means "use default"
	}

	for _, sys := range systemPaths {
		if path == sys || strings.HasPrefix(path, sys+"/") {
			return fmt.Errorf("output directory cannot be a system path (%s)", sys)
		}
	}

	return nil
}

// ValidateMode accepts "video" and "audio"
func ValidateMode(mode MediaMode) error {
	if mode != ModeVideo && mode != ModeAudio {
		return fmt.Errorf("unknown mode %q: must be video or audio", mode)
	}
	return nil
}

// ValidateContainer checks that container is offered for mode.
// Values are case-sensitive; only lowercase names are accepted.
func ValidateContainer(mode MediaMode, container string) error {
	allowed := VideoContainers
	if mode == ModeAudio {
		allowed = AudioContainers
	}
	if !lo.Contains(allowed, container) {
		return fmt.Errorf("unsupported %s format %q: must be one of %s", mode, container, strings.Join(allowed, ", "))
	}
	return nil
}
