// Package text provides text normalization and sentence-aware segmentation
// for the chunked synthesis pipeline.
//
// Long input text is split into chunks small enough for one remote synthesis
// call each. Splitting happens at sentence boundaries wherever possible so no
// chunk begins or ends mid-sentence; only a single sentence longer than the
// chunk size is passed through oversized rather than broken mid-word.
package text

import (
	"regexp"
	"strings"
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

const whitespaceRegexPattern = `\s+`

var whitespacePattern = regexp.MustCompile(whitespaceRegexPattern)

// quoteDashReplacer maps typographic quotes and dashes to their ASCII
// equivalents so the remote synthesizer sees stable punctuation.
var quoteDashReplacer = strings.NewReplacer(
	emDash, "-",
	enDash, "-",
	figureDash, "-",
	ellipsisChar, ellipsis,
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// Normalize collapses runs of whitespace into single spaces, trims the
// result, and converts typographic quotes and dashes to ASCII. Applying it
// before Segment keeps chunk boundaries stable across differently formatted
// copies of the same text.
func Normalize(input string) string {
	normalized := whitespacePattern.ReplaceAllString(input, " ")
	normalized = quoteDashReplacer.Replace(normalized)

	return strings.TrimSpace(normalized)
}

// Segment splits input into ordered chunks of at most maxChunkSize
// characters, breaking only at sentence boundaries. When a single sentence
// alone exceeds maxChunkSize it becomes its own oversized chunk; it is never
// split mid-word. Empty or whitespace-only input yields no chunks.
//
// The trimmed concatenation of the returned chunks reproduces the trimmed
// input with no content lost or duplicated.
func Segment(input string, maxChunkSize int) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	if maxChunkSize <= 0 || len(trimmed) <= maxChunkSize {
		return []string{trimmed}
	}

	sentences := splitSentences(trimmed)

	var (
		chunks      []string
		accumulator strings.Builder
	)

	flush := func() {
		chunk := strings.TrimSpace(accumulator.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		accumulator.Reset()
	}

	for _, sentence := range sentences {
		// +1 accounts for the joining space between sentences.
		projected := accumulator.Len() + len(sentence)
		if accumulator.Len() > 0 {
			projected++
		}

		if projected > maxChunkSize && accumulator.Len() > 0 {
			flush()
		}

		if accumulator.Len() > 0 {
			accumulator.WriteString(" ")
		}

		accumulator.WriteString(sentence)
	}

	flush()

	return chunks
}

// splitSentences breaks text into sentences at terminal punctuation. Trailing
// text without terminal punctuation forms a final sentence of its own.
func splitSentences(input string) []string {
	var sentences []string

	remaining := input

	for remaining != "" {
		boundary := findSentenceBoundary(remaining)
		if boundary < 0 {
			sentence := strings.TrimSpace(remaining)
			if sentence != "" {
				sentences = append(sentences, sentence)
			}

			break
		}

		sentence := strings.TrimSpace(remaining[:boundary+1])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		remaining = remaining[boundary+1:]
	}

	return sentences
}

// findSentenceBoundary returns the index of the first '.', '!' or '?' that is
// either at the end of s or immediately followed by whitespace. Returns -1
// when no boundary exists. Requiring trailing whitespace keeps abbreviations
// like "Dr." mid-sentence and decimals like "3.14" intact.
func findSentenceBoundary(s string) int {
	for i := range len(s) {
		switch s[i] {
		case '.', '!', '?':
		default:
			continue
		}

		if i == len(s)-1 || s[i+1] == ' ' || s[i+1] == '\t' || s[i+1] == '\n' {
			return i
		}
	}

	return -1
}
