package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWindows_ShortInput(t *testing.T) {
	t.Run("shorter than window", func(t *testing.T) {
		input := "A short paragraph that fits in one window."
		windows := SplitWindows(input, 100, 20)
		require.Len(t, windows, 1)
		assert.Equal(t, input, windows[0])
	})

	t.Run("exactly window size", func(t *testing.T) {
		input := strings.Repeat("x", 100)
		windows := SplitWindows(input, 100, 20)
		require.Len(t, windows, 1)
		assert.Equal(t, input, windows[0])
	})

	t.Run("empty input is one empty window", func(t *testing.T) {
		assert.Equal(t, []string{""}, SplitWindows("", 100, 20))
	})
}

func TestSplitWindows_Reconstruction(t *testing.T) {
	// Sentences of varying length so break points land at different offsets.
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog number ")
		b.WriteString(strings.Repeat("x", i%17))
		b.WriteString(". ")
	}
	input := b.String()

	const size, overlap = 500, 80
	windows := SplitWindows(input, size, overlap)
	require.Greater(t, len(windows), 1)

	var rebuilt strings.Builder
	rebuilt.WriteString(windows[0])
	for _, w := range windows[1:] {
		require.Greater(t, len(w), overlap)
		rebuilt.WriteString(w[overlap:])
	}
	assert.Equal(t, input, rebuilt.String())
}

func TestSplitWindows_BreaksAtSentenceBoundary(t *testing.T) {
	// A break point exists inside the tail 30% of the first window, so the
	// cut must not land mid-sentence.
	first := strings.Repeat("a", 80) + ". "
	second := strings.Repeat("b", 200)
	input := first + second

	windows := SplitWindows(input, 100, 10)
	require.Greater(t, len(windows), 1)
	assert.True(t, strings.HasSuffix(windows[0], "."),
		"first window should end at the sentence terminator, got %q", windows[0])
}

func TestSplitWindows_PrefersNewline(t *testing.T) {
	input := strings.Repeat("a", 85) + "\n" + strings.Repeat("b", 300)
	windows := SplitWindows(input, 100, 10)
	require.Greater(t, len(windows), 1)
	assert.True(t, strings.HasSuffix(windows[0], "\n"))
}

func TestSplitWindows_HardCutWithoutBoundary(t *testing.T) {
	input := strings.Repeat("a", 350)
	windows := SplitWindows(input, 100, 10)
	require.Greater(t, len(windows), 1)
	for _, w := range windows {
		assert.LessOrEqual(t, len(w), 100)
	}
}

func TestSplitWindows_WindowSizeRespected(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Sentence number with some padding to make it realistic. ")
	}
	for _, w := range SplitWindows(b.String(), 200, 40) {
		assert.LessOrEqual(t, len(w), 200)
	}
}
