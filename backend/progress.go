package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Progress reporting for resolver transfers.
// Every field is optional on a given tick; unknown values are negative.

// ProgressUpdate is one progress tick from the resolver
type ProgressUpdate struct {
	Status     string  `json:"status"` // "downloading", "finished", ...
	Downloaded int64   `json:"downloaded"`
	Total      int64   `json:"total"`   // -1 = unknown
	Speed      float64 `json:"speed"`   // bytes/s, -1 = unknown
	ETA        int     `json:"eta"`     // seconds, -1 = unknown
	Percent    float64 `json:"percent"` // -1 = unknown
}

// ProgressFunc receives progress ticks. It must not block.
type ProgressFunc func(ProgressUpdate)

const progressPrefix = "ytgrab-progress"

// progressTemplate is passed to yt-dlp's --progress-template. Missing values render as "NA".
const progressTemplate = "download:" + progressPrefix +
	" %(progress.status)s" +
	" %(progress.downloaded_bytes)s" +
	" %(progress.total_bytes)s" +
	" %(progress.total_bytes_estimate)s" +
	" %(progress.speed)s" +
	" %(progress.eta)s"

// ParseProgressLine parses a line printed with progressTemplate.
// ok is false for any other output line.
func ParseProgressLine(line string) (ProgressUpdate, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 7 || fields[0] != progressPrefix {
		return ProgressUpdate{}, false
	}

	u := ProgressUpdate{
		Status:     fields[1],
		Downloaded: int64(parseNumber(fields[2], 0)),
		Total:      -1,
		Speed:      parseNumber(fields[5], -1),
		ETA:        int(parseNumber(fields[6], -1)),
		Percent:    -1,
	}
	if total := parseNumber(fields[3], -1); total > 0 {
		u.Total = int64(total)
	} else if estimate := parseNumber(fields[4], -1); estimate > 0 {
		u.Total = int64(estimate)
	}
	if u.Total > 0 {
		u.Percent = float64(u.Downloaded) / float64(u.Total) * 100
		if u.Percent > 100 {
			u.Percent = 100
		}
	}
	return u, true
}

func parseNumber(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

// Finished reports whether the transfer part of the job is over
func (u ProgressUpdate) Finished() bool { return u.Status == "finished" }

// PercentInt clamps the percentage to 0..100 for queue display
func (u ProgressUpdate) PercentInt() int {
	if u.Percent < 0 {
		return 0
	}
	return int(u.Percent)
}

// String renders the tick as "<percent>% of <total> at <speed> ETA <eta>"
func (u ProgressUpdate) String() string {
	if u.Finished() {
		return "Processing completed. Finalizing..."
	}

	percent, total, speed, eta := "N/A", "N/A", "N/A", "N/A"
	if u.Percent >= 0 {
		percent = fmt.Sprintf("%.1f", u.Percent)
	}
	if u.Total > 0 {
		total = humanize.IBytes(uint64(u.Total))
	}
	if u.Speed >= 0 {
		speed = humanize.IBytes(uint64(u.Speed)) + "/s"
	}
	if u.ETA >= 0 {
		eta = fmt.Sprintf("%02d:%02d", u.ETA/60, u.ETA%60)
	}
	return fmt.Sprintf("%s%% of %s at %s ETA %s", percent, total, speed, eta)
}
