package service

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText_Empty(t *testing.T) {
	cfg := DefaultChunkConfig()

	assert.Nil(t, SplitText("", cfg))
	assert.Nil(t, SplitText("   \n\t  ", cfg))
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	cfg := DefaultChunkConfig()
	text := "A short page about onboarding new engineers."

	chunks := SplitText(text, cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitText_Deterministic(t *testing.T) {
	cfg := DefaultChunkConfig()
	text := buildParagraphs(40)

	first := SplitText(text, cfg)
	second := SplitText(text, cfg)

	assert.Equal(t, first, second)
}

func TestSplitText_RespectsMaxRunes(t *testing.T) {
	cfg := DefaultChunkConfig()
	text := buildParagraphs(60)

	chunks := SplitText(text, cfg)

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), cfg.MaxRunes, "chunk %d exceeds max", i)
	}
}

func TestSplitText_PrefersParagraphBoundaries(t *testing.T) {
	cfg := ChunkConfig{MaxRunes: 120, Overlap: 20}
	para := strings.Repeat("alpha beta gamma delta. ", 4)
	text := para + "\n\n" + para + "\n\n" + para

	chunks := SplitText(text, cfg)

	require.Greater(t, len(chunks), 1)
	// Every chunk should be a contiguous slice of the source text.
	for _, c := range chunks {
		assert.Contains(t, text, c)
	}
}

func TestSplitText_OverlapPreservesContent(t *testing.T) {
	cfg := ChunkConfig{MaxRunes: 100, Overlap: 40}
	text := strings.TrimSpace(buildSentences(20))

	chunks := SplitText(text, cfg)
	require.Greater(t, len(chunks), 1)

	// Reconstruct the source by stripping each chunk's overlap with the
	// accumulated prefix. Nothing outside the designed overlap may be lost.
	rebuilt := chunks[0]
	for _, c := range chunks[1:] {
		k := overlapLen(rebuilt, c)
		rebuilt += c[k:]
	}
	assert.Equal(t, text, rebuilt)
}

func TestSplitText_NoBoundariesFallsBackToRunes(t *testing.T) {
	cfg := ChunkConfig{MaxRunes: 50, Overlap: 10}
	text := strings.Repeat("x", 130)

	chunks := SplitText(text, cfg)

	require.Len(t, chunks, 4)
	for _, c := range chunks[:3] {
		assert.Equal(t, 50, utf8.RuneCountInString(c))
	}
	// windows advance by MaxRunes-Overlap = 40
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[3]))
}

func TestSplitText_UnicodeSafe(t *testing.T) {
	cfg := ChunkConfig{MaxRunes: 40, Overlap: 8}
	text := strings.Repeat("日本語のテキストを分割するテスト。", 20)

	chunks := SplitText(text, cfg)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), cfg.MaxRunes)
	}
}

// overlapLen returns the length in bytes of the longest suffix of acc that
// is a prefix of next.
func overlapLen(acc, next string) int {
	max := len(next)
	if len(acc) < max {
		max = len(acc)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(acc, next[:k]) {
			return k
		}
	}
	return 0
}

// buildSentences produces non-repeating sentences so overlap detection in
// tests cannot match spuriously.
func buildSentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Step %d uses tier %d. ", i+1, i%5)
	}
	return b.String()
}

func buildParagraphs(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("Release notes describe the rollout process for service deployments. ")
		b.WriteString("Each step lists an owner, a rollback plan, and the verification command.")
		b.WriteString("\n\n")
	}
	return b.String()
}
