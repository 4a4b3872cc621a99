package rag

import (
	"strings"
	"unicode"
)

// ChunkSpan is one passage produced by the chunker. Offset and Length are in
// runes relative to the original document text, overlap included, so the
// original can always be reconstructed from the spans.
type ChunkSpan struct {
	Ordinal int
	Offset  int
	Length  int
	Overlap int
	Text    string
}

// Chunker splits document text into overlapping bounded-size passages. A cut
// prefers the coarsest boundary available inside the size window: paragraph
// break, then line break, then word boundary, then a raw rune cut. A single
// run without any whitespace longer than the chunk size is emitted whole
// rather than split mid-word; runs that would fit a chunk on their own are
// raw-cut so the size bound holds.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into spans. Empty or whitespace-only input yields zero
// spans and no error; the caller decides how to surface that. Identical input
// always yields an identical sequence.
func (c *Chunker) Chunk(text string) []ChunkSpan {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var spans []ChunkSpan

	pos := 0     // start of this chunk's new content
	prevLen := 0 // total length of the previous chunk
	for pos < len(runes) {
		ovl := 0
		if len(spans) > 0 {
			ovl = c.overlap
			if ovl > prevLen {
				ovl = prevLen
			}
		}
		budget := c.size - ovl
		if budget <= 0 {
			budget = 1
		}

		var cut int
		if len(runes)-pos <= budget {
			cut = len(runes)
		} else {
			cut = findCut(runes, pos, pos+budget, c.size)
		}

		start := pos - ovl
		spans = append(spans, ChunkSpan{
			Ordinal: len(spans),
			Offset:  start,
			Length:  cut - start,
			Overlap: ovl,
			Text:    string(runes[start:cut]),
		})
		prevLen = cut - start
		pos = cut
	}
	return spans
}

// findCut picks the cut position for the window runes[from:to), to < len(runes).
func findCut(runes []rune, from, to, size int) int {
	window := runes[from:to]

	// Paragraph break: cut after the last blank line in the window.
	if idx := lastParagraphBreak(window); idx >= 0 {
		return from + idx
	}
	// Line break.
	if idx := lastIndexRune(window, '\n'); idx >= 0 {
		return from + idx + 1
	}
	// Word boundary: any whitespace.
	if idx := lastSpace(window); idx >= 0 {
		return from + idx + 1
	}
	// No boundary at all: the window is inside one whitespace-free run. Only a
	// run that could not fit a chunk on its own may exceed the target size;
	// it is emitted whole rather than split mid-word. Anything shorter gets a
	// raw cut at the window edge.
	end := to
	for end < len(runes) && !unicode.IsSpace(runes[end]) {
		end++
	}
	start := from
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	if end-start > size {
		return end
	}
	return to
}

// lastParagraphBreak returns the position just past the last "\n\n" in window,
// or -1 if there is none usable.
func lastParagraphBreak(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '\n' && window[i+1] == '\n' {
			return i + 2
		}
	}
	return -1
}

func lastIndexRune(window []rune, r rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == r {
			return i
		}
	}
	return -1
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}
