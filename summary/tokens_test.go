package summary

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want func(got int) bool
	}{
		{
			name: "empty text",
			text: "",
			want: func(got int) bool { return got == 0 },
		},
		{
			name: "short word",
			text: "hi",
			want: func(got int) bool { return got >= 1 && got <= 2 },
		},
		{
			name: "plain sentence uses word heuristic",
			// 10 words x 1.3 = 13 beats 49 chars / 4 = 12.25.
			text: "the quick brown fox jumps over the lazy dog today",
			want: func(got int) bool { return got == 13 },
		},
		{
			name: "long unbroken text uses char heuristic",
			text: strings.Repeat("a", 400),
			want: func(got int) bool { return got == 100 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokens(tt.text)
			if !tt.want(got) {
				t.Errorf("EstimateTokens(%q) = %d", tt.text, got)
			}
		})
	}
}

func TestEstimateTokensStructuralPenalties(t *testing.T) {
	plain := strings.Repeat("word ", 40)
	braced := plain + "{}"
	fenced := plain + "```"

	base := EstimateTokens(plain)
	if got := EstimateTokens(braced); got <= base {
		t.Errorf("braces should raise the estimate: plain=%d braced=%d", base, got)
	}
	if got := EstimateTokens(fenced); got <= base {
		t.Errorf("code fences should raise the estimate: plain=%d fenced=%d", base, got)
	}

	both := plain + "{} ```"
	if got := EstimateTokens(both); got <= EstimateTokens(braced) {
		t.Errorf("penalties should stack: braced=%d both=%d", EstimateTokens(braced), got)
	}
}

func TestEstimateTokensMonotone(t *testing.T) {
	text := "a conversation about dragons and castles"
	longer := text + " " + text

	if EstimateTokens(longer) < EstimateTokens(text) {
		t.Errorf("longer text estimated lower: %d < %d",
			EstimateTokens(longer), EstimateTokens(text))
	}

	if EstimateTokens("anything") < 0 {
		t.Error("estimate must be non-negative")
	}
}
