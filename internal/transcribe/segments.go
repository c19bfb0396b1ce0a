package transcribe

import (
	"sort"
	"strings"

	"echopod/internal/asr"
	"echopod/internal/store"
)

// cleanSegments converts recognizer output into the canonical transcript
// sequence: sorted by start time, non-overlapping, non-empty. When two
// segments overlap, the earlier segment's end is trimmed down to the later
// segment's start; segments emptied by trimming are dropped.
func cleanSegments(podcastID string, raw []asr.Segment) []store.Segment {
	sorted := make([]asr.Segment, 0, len(raw))
	for _, seg := range raw {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		if seg.EndSeconds <= seg.StartSeconds || seg.StartSeconds < 0 {
			continue
		}
		sorted = append(sorted, seg)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartSeconds == sorted[j].StartSeconds {
			return sorted[i].EndSeconds < sorted[j].EndSeconds
		}
		return sorted[i].StartSeconds < sorted[j].StartSeconds
	})

	cleaned := make([]store.Segment, 0, len(sorted))
	for _, seg := range sorted {
		for len(cleaned) > 0 {
			last := len(cleaned) - 1
			if seg.StartSeconds >= cleaned[last].EndSeconds {
				break
			}
			cleaned[last].EndSeconds = seg.StartSeconds
			if cleaned[last].EndSeconds > cleaned[last].StartSeconds {
				break
			}
			// Fully covered by the incoming segment.
			cleaned = cleaned[:last]
		}
		cleaned = append(cleaned, store.Segment{
			PodcastID:    podcastID,
			StartSeconds: seg.StartSeconds,
			EndSeconds:   seg.EndSeconds,
			Text:         strings.TrimSpace(seg.Text),
			Confidence:   seg.Confidence,
		})
	}
	for i := range cleaned {
		cleaned[i].Seq = i
	}
	return cleaned
}
