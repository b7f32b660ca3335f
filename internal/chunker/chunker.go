// Package chunker splits raw text into overlapping segments sized for
// embedding. Splitting prefers paragraph boundaries and falls back to
// sentence boundaries for oversized chunks, so a chunk almost always ends on
// a semantic unit.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultTargetSize is the target chunk length in characters.
	DefaultTargetSize = 500
	// DefaultOverlap is the character span shared between adjacent chunks.
	DefaultOverlap = 50
)

// longChunkFactor bounds emitted chunks: anything over
// targetSize*longChunkFactor is re-split at sentence boundaries.
const longChunkFactor = 1.5

var (
	multiNewline     = regexp.MustCompile(`\n{3,}`)
	sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)
)

// Chunk splits text into overlapping chunks of roughly targetSize
// characters. Output is deterministic for fixed inputs. Empty or
// whitespace-only input yields no chunks.
func Chunk(text string, targetSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = multiNewline.ReplaceAllString(text, "\n\n")

	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current string

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// The +2 accounts for the paragraph separator that would join them.
		if len(current)+len(para)+2 > targetSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))

			if overlap > 0 && len(current) > overlap {
				current = overlapTail(current, overlap) + " " + para
			} else {
				current = para
			}
		} else {
			if current != "" {
				current += "\n\n" + para
			} else {
				current = para
			}
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	// A single paragraph can exceed the target on its own; re-split those at
	// sentence boundaries.
	limit := int(float64(targetSize) * longChunkFactor)
	var final []string
	for _, c := range chunks {
		if len(c) > limit {
			final = append(final, splitLongChunk(c, targetSize, overlap)...)
		} else {
			final = append(final, c)
		}
	}

	return final
}

// overlapTail returns the trailing overlap characters of text, trimmed to
// start at the first sentence boundary inside that span when one exists.
func overlapTail(text string, overlap int) string {
	if len(text) <= overlap {
		return text
	}

	region := text[len(text)-overlap:]

	if loc := sentenceBoundary.FindStringIndex(region); loc != nil {
		// loc[0] is the end-of-sentence punctuation; the next sentence
		// starts after the following whitespace.
		return strings.TrimSpace(region[loc[0]+1:])
	}

	return strings.TrimSpace(region)
}

// splitLongChunk re-splits an oversized chunk at sentence boundaries using
// the same greedy accumulation with overlap.
func splitLongChunk(text string, targetSize, overlap int) []string {
	sentences := splitSentences(text)

	var chunks []string
	var current string

	for _, sentence := range sentences {
		if len(current)+len(sentence)+1 > targetSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			if overlap > 0 {
				current = overlapTail(current, overlap) + " " + sentence
			} else {
				current = sentence
			}
		} else {
			if current != "" {
				current += " " + sentence
			} else {
				current = sentence
			}
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

// splitSentences splits text after end-of-sentence punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// Split after the punctuation character, dropping the whitespace run.
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
