package text

import (
	"strings"
)

// DefaultWindowSize and DefaultOverlap are tuned so a window fits comfortably
// in a single extraction prompt while the overlap preserves context across
// boundaries.
const (
	DefaultWindowSize = 8000
	DefaultOverlap    = 500

	// tailFraction is the portion of the window tail in which we look for a
	// sentence or newline boundary before falling back to a hard cut.
	tailFraction = 0.3
)

// SplitWindows splits raw text into overlapping windows of at most size
// characters. It prefers to break at the nearest sentence terminator or
// newline within the final 30% of the window, so extraction prompts rarely
// see a mid-sentence split. Each window starts overlap characters before the
// previous window's end.
//
// Input no longer than size is returned as a single window, untouched.
func SplitWindows(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	// The empty string is still "input no longer than size": one window.
	if len(text) <= size {
		return []string{text}
	}

	var windows []string
	pos := 0
	for pos < len(text) {
		end := pos + size
		if end >= len(text) {
			windows = append(windows, text[pos:])
			break
		}

		if cut := boundaryIn(text, pos+int(float64(size)*(1-tailFraction)), end); cut > pos {
			end = cut
		}

		windows = append(windows, text[pos:end])

		next := end - overlap
		if next <= pos {
			// Window too small for the overlap; move forward without one
			// rather than looping forever.
			next = end
		}
		pos = next
	}

	return windows
}

// boundaryIn returns the index just past the last sentence terminator or
// newline in text[lo:hi], or -1 when the range holds no break point.
func boundaryIn(text string, lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	if hi > len(text) {
		hi = len(text)
	}
	if lo >= hi {
		return -1
	}

	window := text[lo:hi]

	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		return lo + i + 1
	}

	best := -1
	for _, term := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(window, term); i >= 0 {
			// Cut after the terminator punctuation, keeping the space in the
			// next window's overlap region.
			if cut := i + 1; cut > best {
				best = cut
			}
		}
	}
	if best >= 0 {
		return lo + best
	}

	// Terminator at the very end of the range (no trailing space visible).
	last := window[len(window)-1]
	if last == '.' || last == '!' || last == '?' {
		return hi
	}

	return -1
}
