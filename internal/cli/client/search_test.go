package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		max      int
		expected string
	}{
		{"short content unchanged", "hello world", 120, "hello world"},
		{"newlines flattened", "first line\nsecond line", 120, "first line second line"},
		{"extra whitespace collapsed", "spaced   out\t\ttext", 120, "spaced out text"},
		{"long content truncated", strings.Repeat("a", 130), 120, strings.Repeat("a", 117) + "..."},
		{"exact length unchanged", strings.Repeat("b", 120), 120, strings.Repeat("b", 120)},
		{"multibyte runes counted once", strings.Repeat("ü", 130), 120, strings.Repeat("ü", 117) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, previewContent(tt.content, tt.max))
		})
	}
}
