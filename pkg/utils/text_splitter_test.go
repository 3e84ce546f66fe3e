package utils

import (
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		chunkSize  int
		overlap    int
		wantChunks int
	}{
		{
			name:       "short text stays whole",
			text:       "short",
			chunkSize:  100,
			overlap:    10,
			wantChunks: 1,
		},
		{
			name:       "whitespace only yields nothing",
			text:       "   \n\t  ",
			chunkSize:  100,
			overlap:    10,
			wantChunks: 0,
		},
		{
			name:       "zero chunk size keeps text whole",
			text:       strings.Repeat("a", 50),
			chunkSize:  0,
			overlap:    0,
			wantChunks: 1,
		},
		{
			name:       "splits with overlap",
			text:       strings.Repeat("a", 25),
			chunkSize:  10,
			overlap:    2,
			wantChunks: 3, // steps of 8: 0, 8, 16
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.chunkSize, tt.overlap)
			if len(got) != tt.wantChunks {
				t.Fatalf("chunks = %d, want %d (%q)", len(got), tt.wantChunks, got)
			}
		})
	}
}

func TestSplitTextOverlapCarriesContent(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := SplitText(text, 10, 4)

	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-4:]
		if !strings.HasPrefix(chunks[i], prevTail) {
			t.Errorf("chunk %d does not start with previous tail: %q vs %q", i, chunks[i], prevTail)
		}
	}
}

func TestSplitTextRuneSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 20)
	chunks := SplitText(text, 30, 5)

	for i, chunk := range chunks {
		if strings.ContainsRune(chunk, '�') {
			t.Errorf("chunk %d contains a replacement rune: %q", i, chunk)
		}
	}
}

func TestSplitTextOverlapLargerThanChunk(t *testing.T) {
	text := strings.Repeat("a", 30)
	chunks := SplitText(text, 10, 10)

	// Degenerate overlap falls back to non-overlapping steps instead of
	// looping forever.
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
}
