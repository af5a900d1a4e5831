package notify

import "unicode/utf8"

// MaxMessageLength is the transport's cap on a single text message.
const MaxMessageLength = 4096

// ChunkText splits text into pieces of at most max bytes, preferring to cut
// at a line break and never inside a UTF-8 sequence. Concatenating the chunks
// reproduces the input exactly.
func ChunkText(text string, max int) []string {
	if max <= 0 {
		max = MaxMessageLength
	}
	if text == "" {
		return nil
	}

	var chunks []string
	for len(text) > max {
		cut := max
		if idx := lastNewline(text[:cut]); idx >= 0 {
			cut = idx + 1
		} else {
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func lastNewline(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
