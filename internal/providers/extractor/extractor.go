package extractor

import (
	"context"
	"io"
	"strings"
)

// Provider turns an uploaded document into its ordered list of questions.
// An empty result is a valid outcome; callers decide what it means.
type Provider interface {
	ExtractQuestions(ctx context.Context, doc io.ReaderAt, size int64) ([]string, error)
}

const minQuestionLen = 10

// FilterQuestions keeps the lines of text that read as complete questions:
// trimmed, ending in '?', and longer than minQuestionLen characters.
func FilterQuestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "?") && len([]rune(line)) > minQuestionLen {
			out = append(out, line)
		}
	}
	return out
}
