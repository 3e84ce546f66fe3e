package utils

import "strings"

// SplitText splits a long string into chunks of approximately 'chunkSize'
// characters with 'overlap' characters carried across boundaries so no
// sentence is lost at a cut point. Counting is rune-based so multi-byte
// text never gets split mid-character. Whitespace-only input yields no
// chunks.
func SplitText(text string, chunkSize int, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunk := string(runes[i:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end == totalLen {
			break
		}
	}

	return chunks
}
