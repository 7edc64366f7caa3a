package builder

import "testing"

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{2400, 1600, 1200, 1920, 1200, 800},
		{1000, 4000, 1200, 1920, 480, 1920},
		{800, 600, 1200, 1920, 800, 600},
	}
	for _, tc := range tests {
		w, h := fitWithin(tc.w, tc.h, tc.maxW, tc.maxH)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("fitWithin(%d,%d) = %dx%d, want %dx%d", tc.w, tc.h, w, h, tc.wantW, tc.wantH)
		}
	}
}
