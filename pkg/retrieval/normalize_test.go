package retrieval

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		vector    []float32
		dimension int
		wantLen   int
		want      []float32
	}{
		{
			name:      "exact dimension untouched",
			vector:    []float32{1, 2, 3},
			dimension: 3,
			wantLen:   3,
			want:      []float32{1, 2, 3},
		},
		{
			name:      "longer vector truncated",
			vector:    []float32{1, 2, 3, 4, 5},
			dimension: 3,
			wantLen:   3,
			want:      []float32{1, 2, 3},
		},
		{
			name:      "shorter vector zero padded",
			vector:    []float32{1, 2},
			dimension: 4,
			wantLen:   4,
			want:      []float32{1, 2, 0, 0},
		},
		{
			name:      "empty input padded",
			vector:    nil,
			dimension: 3,
			wantLen:   3,
			want:      []float32{0, 0, 0},
		},
		{
			name:      "zero dimension yields empty",
			vector:    []float32{1, 2},
			dimension: 0,
			wantLen:   0,
			want:      []float32{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.vector, tt.dimension)

			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
