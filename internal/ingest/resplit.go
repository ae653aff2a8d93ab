package ingest

import (
	"fmt"
	"strings"
)

// ResplitOversize enforces the embedder input limit as a hard bound.
// Structural splitting keeps most chunks under maxChars, but a single
// unbreakable run (minified text, a long table row, a base64 blob) can
// still exceed it. Such chunks are cut into consecutive fixed-size
// windows of maxChars runes. Nothing is truncated: the windows cover
// the chunk completely and stay in order. Whitespace-only windows are
// dropped since they embed to noise.
//
// Chunks already within the limit pass through unchanged.
func ResplitOversize(chunks []string, maxChars int) ([]string, error) {
	if maxChars < 1 {
		return nil, fmt.Errorf("maxChars must be positive, got %d", maxChars)
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if runeLen(chunk) <= maxChars {
			out = append(out, chunk)
			continue
		}

		pieces := splitFixed(chunk, maxChars)
		if err := verifyResplit(chunk, pieces, maxChars); err != nil {
			return nil, fmt.Errorf("resplit of %d-char chunk: %w", runeLen(chunk), err)
		}

		for _, p := range pieces {
			if strings.TrimSpace(p) != "" {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// verifyResplit checks that the fixed-size windows losslessly cover
// the original chunk: each within the limit, concatenation identical,
// order preserved.
func verifyResplit(original string, pieces []string, maxChars int) error {
	var sb strings.Builder
	sb.Grow(len(original))
	for i, p := range pieces {
		if runeLen(p) > maxChars {
			return fmt.Errorf("piece %d has %d chars, limit %d", i, runeLen(p), maxChars)
		}
		sb.WriteString(p)
	}
	if sb.String() != original {
		return fmt.Errorf("pieces do not reassemble into the original chunk")
	}
	return nil
}
