package partybot

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Line is one logical output line with entity offsets local to Text.
//
// Text must not contain a trailing newline; the splitter inserts separators.
type Line struct {
	// Text is the rendered line body.
	Text string
	// Entities decorates Text with rune-offset formatting ranges.
	Entities []TextEntity
}

// Chunk is one transport-sized message assembled from whole lines.
type Chunk struct {
	// Text is the joined chunk body.
	Text string
	// Entities carries line entities re-based onto chunk offsets.
	Entities []TextEntity
}

// SplitLines packs lines into chunks of at most limit runes, never breaking a
// line across chunks. Entity offsets are shifted to chunk coordinates. The
// concatenation of chunk texts, split on newlines, equals the input lines in
// original order.
//
// A single line longer than the limit returns ErrLineTooLong: that is a
// programming or data error upstream, not something to truncate silently.
func SplitLines(lines []Line, limit int) ([]Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("split lines: non-positive limit %d", limit)
	}

	chunks := make([]Chunk, 0, 1)
	var builder strings.Builder
	var entities []TextEntity
	chunkRunes := 0

	flush := func() {
		if chunkRunes == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:     builder.String(),
			Entities: entities,
		})
		builder.Reset()
		entities = nil
		chunkRunes = 0
	}

	for index, line := range lines {
		lineRunes := utf8.RuneCountInString(line.Text)
		if lineRunes > limit {
			return nil, fmt.Errorf("split lines: line %d is %d runes: %w", index, lineRunes, ErrLineTooLong)
		}

		// One separator rune joins this line to a non-empty chunk.
		needed := lineRunes
		if chunkRunes > 0 {
			needed++
		}
		if chunkRunes+needed > limit {
			flush()
		}

		offset := chunkRunes
		if chunkRunes > 0 {
			builder.WriteByte('\n')
			offset++
		}
		builder.WriteString(line.Text)
		chunkRunes = offset + lineRunes

		for _, entity := range line.Entities {
			shifted := entity
			shifted.Offset += offset
			entities = append(entities, shifted)
		}
	}
	flush()

	return chunks, nil
}

// PlainLines converts bare strings into entity-free lines.
func PlainLines(texts []string) []Line {
	lines := make([]Line, 0, len(texts))
	for _, text := range texts {
		lines = append(lines, Line{Text: text})
	}

	return lines
}
