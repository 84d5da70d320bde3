package rec

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNew_Defaults(t *testing.T) {
	r := New("solo leveling", 0)
	if r.Query() != "solo leveling" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", r.TopK(), DefaultTopK)
	}
}

func TestNew_TopKClamping(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, DefaultTopK},
		{0, DefaultTopK},
		{1, 1},
		{25, 25},
		{MaxTopK, MaxTopK},
		{MaxTopK + 1, MaxTopK},
		{100000, MaxTopK},
	}
	for _, tt := range tests {
		if got := New("q", tt.in).TopK(); got != tt.want {
			t.Errorf("New(q, %d).TopK() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNew_QueryTruncation(t *testing.T) {
	long := strings.Repeat("x", MaxQueryLength+100)
	r := New(long, 10)
	if len(r.Query()) != MaxQueryLength {
		t.Errorf("len(Query()) = %d, want %d", len(r.Query()), MaxQueryLength)
	}
}

func TestNew_QueryTruncationKeepsRuneBoundary(t *testing.T) {
	// Three-byte Hangul runes never divide 4096 evenly, so a byte-index cut
	// would land mid-rune.
	long := strings.Repeat("가", MaxQueryLength/3+100)
	r := New(long, 10)
	if len(r.Query()) > MaxQueryLength {
		t.Errorf("len(Query()) = %d, want <= %d", len(r.Query()), MaxQueryLength)
	}
	if !utf8.ValidString(r.Query()) {
		t.Error("truncated query is not valid UTF-8")
	}
	if len(r.Query()) != MaxQueryLength-MaxQueryLength%3 {
		t.Errorf("len(Query()) = %d, want %d", len(r.Query()), MaxQueryLength-MaxQueryLength%3)
	}
}

func TestNew_EmptyQueryAllowed(t *testing.T) {
	r := New("", 10)
	if r.Query() != "" {
		t.Errorf("Query() = %q, want empty", r.Query())
	}
	if r.TopK() != 10 {
		t.Errorf("TopK() = %d, want 10", r.TopK())
	}
}
