package index

import (
	"strings"

	"echopod/internal/store"
)

// Window is a contiguous run of segments treated as one retrieval document.
type Window struct {
	SegmentSeqs  []int
	StartSeconds float64
	EndSeconds   float64
	Text         string
}

// buildWindows groups ordered segments into documents no longer than
// windowSeconds. Each window carries the last overlap segments of its
// predecessor so answers spanning a boundary remain findable.
func buildWindows(segments []store.Segment, windowSeconds int, overlap int) []Window {
	if len(segments) == 0 {
		return nil
	}
	if windowSeconds <= 0 {
		windowSeconds = 45
	}
	if overlap < 0 {
		overlap = 0
	}

	var windows []Window
	var current []store.Segment
	for _, seg := range segments {
		if len(current) > 0 && seg.EndSeconds-current[0].StartSeconds > float64(windowSeconds) {
			windows = append(windows, makeWindow(current))
			carry := overlap
			if carry > len(current)-1 {
				carry = len(current) - 1
			}
			current = append([]store.Segment{}, current[len(current)-carry:]...)
		}
		current = append(current, seg)
	}
	if len(current) > 0 {
		windows = append(windows, makeWindow(current))
	}
	return windows
}

func makeWindow(segments []store.Segment) Window {
	seqs := make([]int, len(segments))
	texts := make([]string, len(segments))
	for i, seg := range segments {
		seqs[i] = seg.Seq
		texts[i] = seg.Text
	}
	return Window{
		SegmentSeqs:  seqs,
		StartSeconds: segments[0].StartSeconds,
		EndSeconds:   segments[len(segments)-1].EndSeconds,
		Text:         strings.Join(texts, " "),
	}
}
