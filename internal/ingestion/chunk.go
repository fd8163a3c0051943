package ingestion

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	// MinChunkChars is the length a chunk must exceed to be stored.
	MinChunkChars = 50
)

var (
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
	horizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	extraNewlines   = regexp.MustCompile(`\n{3,}`)
	anyWhitespace   = regexp.MustCompile(`\s+`)
)

// ChunkText splits text into overlapping chunks of at most size runes.
// Paragraphs are packed together; text without paragraph breaks and
// paragraphs longer than size are cut with a sentence-aware sliding window.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	text = NormalizeText(text)
	if text == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) <= 1 {
		return slidingWindow(text, size, overlap)
	}

	var (
		chunks  []string
		current []rune
		fresh   bool
	)
	flush := func() {
		if fresh {
			if chunk := strings.TrimSpace(string(current)); len([]rune(chunk)) > MinChunkChars {
				chunks = append(chunks, chunk)
			}
		}
		current = overlapTail(current, overlap)
		fresh = false
	}

	for _, para := range paragraphs {
		pr := []rune(para)
		if len(pr) > size {
			flush()
			chunks = append(chunks, slidingWindow(para, size, overlap)...)
			current = nil
			continue
		}
		if len(current) > 0 && len(current)+2+len(pr) > size {
			flush()
			if len(current)+2+len(pr) > size {
				current = nil
			}
		}
		if len(current) > 0 {
			current = append(current, '\n', '\n')
		}
		current = append(current, pr...)
		fresh = true
	}
	flush()
	return chunks
}

// slidingWindow walks the text in windows of size runes, ending each window
// at the last sentence terminator in its second half when there is one.
func slidingWindow(text string, size, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	var chunks []string

	start := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		if end < n {
			if brk := lastSentenceBreak(runes[start:end]); brk >= 0 && start+brk > start+size/2 {
				end = start + brk + 1
			}
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); len([]rune(chunk)) > MinChunkChars {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
		if start >= n-overlap {
			break
		}
	}
	return chunks
}

func lastSentenceBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '?', '!':
			return i
		}
	}
	return -1
}

// overlapTail returns up to overlap trailing runes of chunk, starting on a
// word boundary.
func overlapTail(chunk []rune, overlap int) []rune {
	if overlap <= 0 || len(chunk) == 0 {
		return nil
	}
	if len(chunk) <= overlap {
		return append([]rune(nil), chunk...)
	}
	tail := chunk[len(chunk)-overlap:]
	for i, r := range tail {
		if unicode.IsSpace(r) {
			tail = tail[i+1:]
			break
		}
	}
	return append([]rune(nil), []rune(strings.TrimSpace(string(tail)))...)
}

func splitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeText unifies line endings, squeezes horizontal whitespace and
// keeps at most one blank line between paragraphs.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// PrintableText keeps printable ASCII plus newlines and tabs, collapses
// whitespace and reports the fraction of input bytes that were printable.
func PrintableText(data []byte) (string, float64) {
	if len(data) == 0 {
		return "", 0
	}
	var b strings.Builder
	printable := 0
	for _, c := range data {
		if (c >= 0x20 && c <= 0x7e) || c == '\n' || c == '\r' || c == '\t' {
			printable++
			b.WriteByte(c)
		}
	}
	text := strings.TrimSpace(anyWhitespace.ReplaceAllString(b.String(), " "))
	return text, float64(printable) / float64(len(data))
}
