package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(spans []ChunkSpan) string {
	var sb strings.Builder
	for _, span := range spans {
		runes := []rune(span.Text)
		sb.WriteString(string(runes[span.Overlap:]))
	}
	return sb.String()
}

func TestChunkerRoundTrip(t *testing.T) {
	texts := []string{
		"short text",
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 100),
		"para one\n\npara two\n\npara three\n\n" + strings.Repeat("line content here\n", 50),
		strings.Repeat("a", 2000),
		"word " + strings.Repeat("x", 900) + " tail",
	}
	c := NewChunker(200, 40)
	for _, text := range texts {
		spans := c.Chunk(text)
		require.NotEmpty(t, spans)
		assert.Equal(t, text, reconstruct(spans))
	}
}

func TestChunkerSizeBound(t *testing.T) {
	c := NewChunker(120, 24)
	text := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 40)
	for _, span := range c.Chunk(text) {
		assert.LessOrEqual(t, len([]rune(span.Text)), 120)
	}
}

func TestChunkerSizeBoundWithFittingLongWord(t *testing.T) {
	// A whitespace-free run longer than the remaining window but shorter than
	// the chunk size must not push a chunk over the bound; only a run that
	// cannot fit any chunk may exceed it.
	c := NewChunker(100, 10)
	text := strings.Repeat("a", 89) + " " + strings.Repeat("b", 95)

	spans := c.Chunk(text)
	require.Greater(t, len(spans), 1)
	for _, span := range spans {
		assert.LessOrEqual(t, len([]rune(span.Text)), 100, "ordinal %d", span.Ordinal)
	}
	assert.Equal(t, text, reconstruct(spans))
}

func TestChunkerIndivisibleUnitEmittedWhole(t *testing.T) {
	longWord := strings.Repeat("x", 500)
	c := NewChunker(100, 10)
	spans := c.Chunk("intro " + longWord + " outro")

	found := false
	for _, span := range spans {
		if strings.Contains(span.Text, longWord) {
			found = true
		}
	}
	assert.True(t, found, "long indivisible word must not be split")
}

func TestChunkerPrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("alpha beta gamma delta. ", 4)
	text := para + "\n\n" + para + "\n\n" + para
	c := NewChunker(150, 0)

	spans := c.Chunk(text)
	require.Greater(t, len(spans), 1)
	// A window holding a paragraph break must cut there, not mid-sentence.
	assert.True(t, strings.HasSuffix(spans[0].Text, "\n\n"))
}

func TestChunkerOverlapWindow(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("one two three four five six seven eight nine ten ", 30)

	spans := c.Chunk(text)
	require.Greater(t, len(spans), 2)
	for i := 1; i < len(spans); i++ {
		prev := []rune(spans[i-1].Text)
		cur := []rune(spans[i].Text)
		require.Equal(t, 20, spans[i].Overlap)
		assert.Equal(t, string(prev[len(prev)-20:]), string(cur[:20]))
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(100, 10)
	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  \n"))
}

func TestChunkerDeterministic(t *testing.T) {
	c := NewChunker(90, 15)
	text := strings.Repeat("deterministic splitting matters for stable ids. ", 25)
	first := c.Chunk(text)
	second := c.Chunk(text)
	assert.Equal(t, first, second)
}
