// Package chunk splits generated story text into delivery units: runs of
// sentences for interleaved text+illustration delivery, and halves for
// narration of long stories.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// SentencesPerChunk is the target chunk size.
const SentencesPerChunk = 10

// Chunk is a contiguous run of sentences from the story.
type Chunk struct {
	Text      string
	Sentences int
}

// SplitSentences splits text at sentence-ending punctuation (. ! ?), keeping
// the punctuation and any trailing quote or paren with the sentence. Text
// after the last terminator counts as a final sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	i := 0
	for i < len(text) {
		j := strings.IndexAny(text[i:], ".!?")
		if j < 0 {
			break
		}
		i += j + 1
		// Trailing quotes and closing parens belong to the sentence.
		for i < len(text) && (text[i] == '"' || text[i] == ')' || text[i] == '\'' || text[i] == '»') {
			i++
		}
		s := strings.TrimSpace(text[start:i])
		if s != "" {
			sentences = append(sentences, s)
		}
		for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n') {
			i++
		}
		start = i
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Split groups the text's sentences into chunks of at most perChunk sentences.
// A story of N sentences yields ceil(N/perChunk) chunks; empty text yields none.
func Split(text string, perChunk int) []Chunk {
	if perChunk <= 0 {
		perChunk = SentencesPerChunk
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (len(sentences)+perChunk-1)/perChunk)
	for start := 0; start < len(sentences); start += perChunk {
		end := start + perChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		group := sentences[start:end]
		chunks = append(chunks, Chunk{
			Text:      strings.Join(group, " "),
			Sentences: len(group),
		})
	}
	return chunks
}

// Tail returns the last n sentences of text joined together. Used to build
// illustration prompts that carry the chunk's narrative context.
func Tail(text string, n int) string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if n > len(sentences) {
		n = len(sentences)
	}
	return strings.Join(sentences[len(sentences)-n:], " ")
}

// Bisect splits text into two halves at the sentence boundary nearest the
// midpoint, falling back to a word boundary, then to the raw midpoint
// (snapped to a rune boundary). Both halves are trimmed.
func Bisect(text string) (string, string) {
	mid := len(text) / 2

	split := strings.LastIndex(text[:mid], ".")
	if split == -1 {
		split = strings.LastIndex(text[:mid], " ")
	}
	if split == -1 {
		split = mid
		for split > 0 && !utf8.RuneStart(text[split]) {
			split--
		}
		return strings.TrimSpace(text[:split]), strings.TrimSpace(text[split:])
	}

	return strings.TrimSpace(text[:split+1]), strings.TrimSpace(text[split+1:])
}
