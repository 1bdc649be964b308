// Package segmenter splits document text into ordered, addressable units.
// Segmentation is a pure function of its input: identical text always
// yields identical unit boundaries and ordering, which the audit record's
// reproducibility depends on.
package segmenter

import (
	"strings"
)

// minUnitLength filters out trivially short lines so detector calls are
// not wasted on noise.
const minUnitLength = 3

// Line is one analyzable line produced by line-mode segmentation.
// Number is the 1-based position in the original document, preserved even
// when empty lines are skipped.
type Line struct {
	Number   int
	Content  string
	Original string
}

// Lines splits text on newlines, trims each line, and drops empty or
// trivially short lines. Deterministic, no hidden state.
func Lines(text string) []Line {
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	out := make([]Line, 0, len(raw))
	for i, l := range raw {
		stripped := strings.TrimSpace(l)
		if len(stripped) > minUnitLength {
			out = append(out, Line{Number: i + 1, Content: stripped, Original: l})
		}
	}
	return out
}

// Chunk is one sliding-window segment with enough offset metadata to
// reconstruct a human-readable location.
type Chunk struct {
	Text       string
	Index      int
	TokenCount int
	Start      int
	End        int
}

// ChunkOptions control chunk-mode segmentation. Zero values fall back to
// the defaults used at upload time.
type ChunkOptions struct {
	Size    int // target characters per chunk
	Overlap int // character overlap between consecutive chunks
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.Size <= 0 {
		o.Size = DefaultChunkSize
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		o.Overlap = DefaultChunkOverlap
		if o.Overlap >= o.Size {
			o.Overlap = o.Size / 10
		}
	}
	return o
}

// Chunks splits text into overlapping character windows, breaking on a
// sentence boundary when one falls in the last 100 characters of the
// window and the window is already past half its target size. Whitespace
// only windows are skipped but never shift later offsets.
func Chunks(text string, opts ChunkOptions) []Chunk {
	opts = opts.withDefaults()

	var chunks []Chunk
	start := 0
	n := len(text)
	for start < n {
		end := start + opts.Size
		if end > n {
			end = n
		}
		if end < n && end-start > opts.Size/2 {
			searchStart := end - 100
			if searchStart < start {
				searchStart = start
			}
			if b := sentenceBoundary(text, searchStart, end); b > start {
				end = b
			}
		}

		part := text[start:end]
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, Chunk{
				Text:       part,
				Index:      len(chunks),
				TokenCount: len(strings.Fields(part)),
				Start:      start,
				End:        end,
			})
		}

		if end >= n {
			break
		}
		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// sentenceBoundary returns the position just after the last sentence
// ending punctuation followed by whitespace within [start, end), or end
// when there is none.
func sentenceBoundary(text string, start, end int) int {
	last := -1
	for i := start; i < end-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			c := text[i+1]
			if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
				last = i + 2
			}
		}
	}
	if last > start {
		return last
	}
	return end
}
