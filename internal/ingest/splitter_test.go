package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRespectsChunkSize(t *testing.T) {
	texts := []string{
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100),
		strings.Repeat("word ", 500),
		strings.Repeat("x", 2500),
		"short",
	}

	for _, text := range texts {
		s := NewSplitter(200, 50, "")
		for i, chunk := range s.Split(text) {
			assert.LessOrEqual(t, runeLen(chunk), 200, "chunk %d", i)
		}
	}
}

func TestSplitPreservesAllWords(t *testing.T) {
	words := make([]string, 80)
	for i := range words {
		words[i] = strings.Repeat(string(rune('a'+i%26)), 4)
	}
	text := strings.Join(words, " ")

	s := NewSplitter(60, 10, "")
	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, "")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
	assert.Contains(t, chunks[0], words[0])
	assert.Contains(t, chunks[len(chunks)-1], words[len(words)-1])
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("first paragraph sentence. ", 6)
	para2 := strings.Repeat("second paragraph sentence. ", 6)
	text := para1 + "\n\n" + para2

	s := NewSplitter(200, 0, "")
	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "first paragraph")
	assert.Contains(t, chunks[1], "second paragraph")
	assert.NotContains(t, chunks[0], "second paragraph")
}

func TestSplitMarkdownBreaksAtHeadings(t *testing.T) {
	section1 := "# Title\n\n" + strings.Repeat("intro text. ", 10)
	section2 := "\n## Usage\n\n" + strings.Repeat("usage text. ", 10)
	text := section1 + section2

	s := NewSplitter(200, 0, ".md")
	chunks := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)

	var usageChunk string
	for _, c := range chunks {
		if strings.Contains(c, "## Usage") {
			usageChunk = c
		}
	}
	require.NotEmpty(t, usageChunk, "heading should start a chunk")
	assert.True(t, strings.HasPrefix(usageChunk, "\n## Usage"))
}

func TestSplitDropsWhitespaceOnlyChunks(t *testing.T) {
	s := NewSplitter(10, 0, "")
	for _, chunk := range s.Split("some words\n\n   \n\nmore words") {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s := NewSplitter(100, 20, "")
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\t  "))
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = strings.Repeat(string(rune('a'+i%26)), 5)
	}
	text := strings.Join(words, " ")

	s := NewSplitter(100, 30, "")
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		// The start of each chunk repeats the tail of the previous one.
		head := cur
		if runeLen(head) > 10 {
			head = string([]rune(cur)[:10])
		}
		assert.Contains(t, prev, strings.TrimSpace(head),
			"chunk %d should overlap with its predecessor", i)
	}
}

func TestSeparatorsForExtension(t *testing.T) {
	assert.Equal(t, markdownSeparators, SeparatorsForExtension(".md"))
	assert.Equal(t, markdownSeparators, SeparatorsForExtension(".MD"))
	assert.Equal(t, rstSeparators, SeparatorsForExtension(".rst"))
	assert.Equal(t, defaultSeparators, SeparatorsForExtension(".txt"))
	assert.Equal(t, defaultSeparators, SeparatorsForExtension(""))
}

func TestResplitOversize(t *testing.T) {
	t.Run("oversize chunk cut into bounded windows", func(t *testing.T) {
		oversize := strings.Repeat("x", 1234)
		out, err := ResplitOversize([]string{oversize}, 500)
		require.NoError(t, err)
		require.Len(t, out, 3)

		assert.Equal(t, 500, runeLen(out[0]))
		assert.Equal(t, 500, runeLen(out[1]))
		assert.Equal(t, 234, runeLen(out[2]))
		assert.Equal(t, oversize, strings.Join(out, ""))
	})

	t.Run("chunks within limit pass through untouched", func(t *testing.T) {
		in := []string{"alpha", strings.Repeat("y", 500)}
		out, err := ResplitOversize(in, 500)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("whitespace-only windows dropped", func(t *testing.T) {
		chunk := strings.Repeat("a", 500) + strings.Repeat(" ", 500) + strings.Repeat("b", 500)
		out, err := ResplitOversize([]string{chunk}, 500)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, strings.Repeat("a", 500), out[0])
		assert.Equal(t, strings.Repeat("b", 500), out[1])
	})

	t.Run("multibyte runes never cut mid-character", func(t *testing.T) {
		chunk := strings.Repeat("世", 601)
		out, err := ResplitOversize([]string{chunk}, 500)
		require.NoError(t, err)
		require.Len(t, out, 2)
		for _, piece := range out {
			assert.True(t, utf8.ValidString(piece))
			assert.LessOrEqual(t, runeLen(piece), 500)
		}
		assert.Equal(t, chunk, strings.Join(out, ""))
	})

	t.Run("order preserved across mixed input", func(t *testing.T) {
		in := []string{"first", strings.Repeat("m", 1100), "last"}
		out, err := ResplitOversize(in, 500)
		require.NoError(t, err)
		require.Len(t, out, 5)
		assert.Equal(t, "first", out[0])
		assert.Equal(t, "last", out[4])
		assert.Equal(t, strings.Repeat("m", 1100), strings.Join(out[1:4], ""))
	})

	t.Run("invalid limit rejected", func(t *testing.T) {
		_, err := ResplitOversize([]string{"x"}, 0)
		assert.Error(t, err)
	})
}

func TestSplitThenResplitBoundsEverything(t *testing.T) {
	// A pathological document: prose mixed with an unbreakable blob.
	text := strings.Repeat("normal prose sentence here. ", 30) +
		strings.Repeat("A", 3000) +
		"\n\n" + strings.Repeat("closing words. ", 20)

	s := NewSplitter(500, 50, "")
	chunks, err := ResplitOversize(s.Split(text), 500)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 500, "chunk %d", i)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
	assert.Contains(t, strings.Join(chunks, ""), strings.Repeat("A", 3000))
}
