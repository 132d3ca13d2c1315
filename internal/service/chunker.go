package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	paragraphSplitRe   = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundaryRe = regexp.MustCompile(`([.!?]+)\s+`)
)

// ChunkText splits text into chunks of at most maxChars runes, preferring
// paragraph boundaries and falling back to sentence boundaries for paragraphs
// that are too large on their own. A single sentence longer than maxChars is
// kept whole rather than cut mid-word. All length accounting is in runes so
// multibyte text does not get shortchanged.
func ChunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	current := ""

	for _, para := range paragraphSplitRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if utf8.RuneCountInString(para) > maxChars {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			for _, sentence := range splitSentences(para) {
				// +1 accounts for the joining space.
				if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence)+1 > maxChars {
					chunks = append(chunks, current)
					current = sentence
				} else if current == "" {
					current = sentence
				} else {
					current = current + " " + sentence
				}
			}
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			continue
		}

		// +2 accounts for the joining blank line.
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(para)+2 > maxChars {
			chunks = append(chunks, current)
			current = para
		} else if current == "" {
			current = para
		} else {
			current = current + "\n\n" + para
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	filtered := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// splitSentences splits a paragraph at runs of terminal punctuation followed
// by whitespace. The punctuation stays attached to the sentence it ends.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, m := range sentenceBoundaryRe.FindAllStringSubmatchIndex(text, -1) {
		// m[3] is the end of the punctuation run, m[1] the end of the
		// trailing whitespace.
		if s := strings.TrimSpace(text[start:m[3]]); s != "" {
			sentences = append(sentences, s)
		}
		start = m[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
