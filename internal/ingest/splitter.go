// Package ingest implements the ingestion pipeline: documents are
// split into chunks bounded by the embedder's input limit, embedded,
// and indexed into the vector store.
package ingest

import (
	"strings"
)

// Separator sets per document language. Ordered from strongest to
// weakest structural boundary; the splitter walks the list until one
// produces pieces small enough.
var (
	markdownSeparators = []string{
		"\n## ", "\n### ", "\n#### ", "\n##### ",
		"\n```", "\n\n", "\n", " ", "",
	}
	rstSeparators = []string{
		"\n==", "\n--", "\n~~", "\n\n", "\n", " ", "",
	}
	defaultSeparators = []string{"\n\n", "\n", " ", ""}
)

// SeparatorsForExtension picks the separator set for a file extension
// ("" or unknown extensions get the default set).
func SeparatorsForExtension(ext string) []string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return markdownSeparators
	case ".rst":
		return rstSeparators
	default:
		return defaultSeparators
	}
}

// Splitter splits text into overlapping chunks of at most ChunkSize
// characters, preferring to break at structural boundaries.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	separators []string
}

// NewSplitter creates a Splitter. ext selects the separator set by
// document file extension. Sizes are counted in runes, matching how
// embedding input limits are usually stated.
func NewSplitter(chunkSize, overlap int, ext string) *Splitter {
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		separators: SeparatorsForExtension(ext),
	}
}

// Split splits text into chunks. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	pieces := s.splitRecursive(text, s.separators)
	chunks := s.merge(pieces)

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// splitRecursive breaks text into pieces no longer than ChunkSize,
// trying separators in order. The final "" separator falls back to
// fixed-size rune windows, so the recursion always terminates.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if runeLen(text) <= s.ChunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return splitFixed(text, s.ChunkSize)
	}

	var pieces []string
	for _, part := range splitKeepingSeparator(text, sep) {
		if runeLen(part) <= s.ChunkSize {
			if part != "" {
				pieces = append(pieces, part)
			}
			continue
		}
		pieces = append(pieces, s.splitRecursive(part, rest)...)
	}
	return pieces
}

// merge greedily packs pieces into chunks up to ChunkSize, carrying
// trailing pieces of up to Overlap runes into the next chunk so
// context survives the boundary.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		curLen  int
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, ""))

		// Retain the tail as overlap for the next chunk.
		var (
			tail    []string
			tailLen int
		)
		for i := len(current) - 1; i >= 0; i-- {
			l := runeLen(current[i])
			if tailLen+l > s.Overlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += l
		}
		current = tail
		curLen = tailLen
	}

	for _, p := range pieces {
		l := runeLen(p)
		if curLen+l > s.ChunkSize && curLen > 0 {
			flush()
			// The overlap tail plus the new piece may still not fit.
			for curLen+l > s.ChunkSize && len(current) > 0 {
				curLen -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		curLen += l
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// pickSeparator returns the first separator present in text plus the
// separators after it, falling back to the last entry ("").
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeepingSeparator splits text by sep, keeping the separator
// attached to the start of the following part so no characters are
// lost.
func splitKeepingSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitFixed splits text into consecutive windows of at most size
// runes.
func splitFixed(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
