package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// transcript lines carry large embedded payloads, so the default scanner
// token limit is far too small.
const maxTranscriptLineBytes = 10 * 1024 * 1024

// minMessageRunes filters out acknowledgements and tool chatter that carry no
// retrievable signal.
const minMessageRunes = 20

type transcriptEnvelope struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Message *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type transcriptPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractTranscript reads a JSONL conversation log and flattens it into plain
// text suitable for chunking. Each line is either a wrapped message
// ({"type":"message","message":{...}}) or a bare {"role","content"} object;
// content itself is a string or a list of typed parts. Only user and
// assistant messages longer than minMessageRunes survive. Lines that fail to
// parse are skipped rather than failing the whole transcript.
func ExtractTranscript(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLineBytes)

	var messages []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var envelope transcriptEnvelope
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			continue
		}

		role := envelope.Role
		content := envelope.Content
		if envelope.Message != nil {
			role = envelope.Message.Role
			content = envelope.Message.Content
		}

		if role != "user" && role != "assistant" {
			continue
		}

		text := strings.TrimSpace(decodeTranscriptContent(content))
		if utf8.RuneCountInString(text) <= minMessageRunes {
			continue
		}

		messages = append(messages, fmt.Sprintf("[%s] %s", role, text))
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to scan transcript: %w", err)
	}

	return strings.Join(messages, "\n\n"), nil
}

// decodeTranscriptContent handles the two content encodings: a plain string,
// or an array of parts whose text entries get joined with a space.
func decodeTranscriptContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []transcriptPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var texts []string
	for _, part := range parts {
		if part.Type == "text" && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}
