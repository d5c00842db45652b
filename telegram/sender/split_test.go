package sender

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	segs := SplitText("hello", MaxMessageLength)
	require.Equal(t, []string{"hello"}, segs)
}

func TestSplitTextPrefersNewline(t *testing.T) {
	first := strings.Repeat("a", 3000)
	second := strings.Repeat("b", 2000)
	text := first + "\n" + second

	segs := SplitText(text, MaxMessageLength)
	require.Len(t, segs, 2)
	require.Equal(t, first, segs[0])
	require.Equal(t, second, segs[1])
}

func TestSplitTextFallsBackToSpace(t *testing.T) {
	first := strings.Repeat("a", 4000)
	second := strings.Repeat("b", 1000)
	text := first + " " + second

	segs := SplitText(text, MaxMessageLength)
	require.Len(t, segs, 2)
	require.Equal(t, first, segs[0])
	require.Equal(t, second, segs[1])
}

func TestSplitTextHardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 5000)

	segs := SplitText(text, MaxMessageLength)
	require.Len(t, segs, 2)
	require.Equal(t, MaxMessageLength, len([]rune(segs[0])))
	require.Equal(t, 5000-MaxMessageLength, len([]rune(segs[1])))
	// a hard cut must not lose characters
	require.Equal(t, text, segs[0]+segs[1])
}

func TestSplitTextEverySegmentWithinLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 900; i++ {
		b.WriteString("line with some words in it\n")
	}
	for _, seg := range SplitText(b.String(), MaxMessageLength) {
		require.LessOrEqual(t, len([]rune(seg)), MaxMessageLength)
		require.NotEmpty(t, seg)
	}
}

func TestSplitTextCustomLimit(t *testing.T) {
	segs := SplitText("one two three", 5)
	for _, seg := range segs {
		require.LessOrEqual(t, len([]rune(seg)), 5)
	}
	require.Equal(t, "one two three", strings.Join(segs, " "))
}
