package backend

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// MinQualityHeight drops thumbnails and storyboard tracks from the table
const MinQualityHeight = 144

// BuildQualityTable turns an item's formats into one option per height,
// sorted from highest to lowest. When two formats share a height the one
// carrying audio wins; otherwise the first seen is kept.
func BuildQualityTable(item *MediaItem) []QualityOption {
	if item == nil {
		return nil
	}

	candidates := lo.Filter(item.Formats, func(f FormatEntry, _ int) bool {
		return f.HasVideo() && f.Height >= MinQualityHeight
	})

	byHeight := make(map[int]QualityOption, len(candidates))
	for _, f := range candidates {
		existing, seen := byHeight[f.Height]
		if seen && !(f.HasAudio() && !existing.HasAudio) {
			continue
		}
		byHeight[f.Height] = QualityOption{
			Label:    fmt.Sprintf("%dp", f.Height),
			Height:   f.Height,
			FormatID: f.FormatID,
			Ext:      f.Ext,
			HasAudio: f.HasAudio(),
			FPS:      f.FPS,
			Filesize: f.Filesize,
			VCodec:   f.VCodec,
			ACodec:   f.ACodec,
		}
	}

	table := lo.Values(byHeight)
	sort.Slice(table, func(i, j int) bool {
		return table[i].Height > table[j].Height
	})
	return table
}

// PickQuality returns the best option not taller than maxHeight.
// maxHeight <= 0 means the best available. nil when nothing fits.
func PickQuality(table []QualityOption, maxHeight int) *QualityOption {
	for i := range table {
		if maxHeight <= 0 || table[i].Height <= maxHeight {
			q := table[i]
			return &q
		}
	}
	return nil
}
