package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here."
	got := Split(text, 30, 0)
	want := []string{"First paragraph here.\n\n", "Second paragraph here."}
	if len(got) != len(want) {
		t.Fatalf("expected %d parts, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplit_PrefersSentenceOverWord(t *testing.T) {
	text := "Leave is granted yearly. Unused days lapse at year end"
	got := Split(text, 40, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 parts, got %d: %q", len(got), got)
	}
	if got[0] != "Leave is granted yearly. " {
		t.Errorf("expected cut after sentence, got %q", got[0])
	}
}

func TestSplit_HardCutWithoutBreakpoints(t *testing.T) {
	got := Split(strings.Repeat("x", 25), 10, 3)
	wantLens := []int{10, 10, 10, 4}
	if len(got) != len(wantLens) {
		t.Fatalf("expected %d parts, got %d: %q", len(wantLens), len(got), got)
	}
	for i, n := range wantLens {
		if len(got[i]) != n {
			t.Errorf("part %d: expected length %d, got %d", i, n, len(got[i]))
		}
	}
}

func TestSplit_ShortTextUnchanged(t *testing.T) {
	got := Split("Short.", 100, 10)
	if len(got) != 1 || got[0] != "Short." {
		t.Errorf("expected text unchanged, got %q", got)
	}
	if Split("", 10, 2) != nil {
		t.Error("expected nil for empty text")
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	text := strings.Repeat("é", 35)
	for i, p := range Split(text, 10, 2) {
		if n := utf8.RuneCountInString(p); n > 10 {
			t.Errorf("part %d: %d runes exceeds 10", i, n)
		}
		if !utf8.ValidString(p) {
			t.Errorf("part %d: invalid utf-8", i)
		}
	}
}

func TestSplit_OverlapAndBounds(t *testing.T) {
	text := normalizeSpace(strings.Repeat("Notice must be given in writing to the manager.\n", 30))
	tests := []struct {
		maxLength, overlap int
	}{
		{60, 0},
		{60, 10},
		{100, 40},
		{25, 24},
	}
	for _, tt := range tests {
		parts := Split(text, tt.maxLength, tt.overlap)
		var rebuilt strings.Builder
		for i, p := range parts {
			r := []rune(p)
			if len(r) > tt.maxLength {
				t.Errorf("%d/%d part %d: length %d", tt.maxLength, tt.overlap, i, len(r))
			}
			if i == 0 {
				rebuilt.WriteString(p)
				continue
			}
			prev := []rune(parts[i-1])
			if string(prev[len(prev)-tt.overlap:]) != string(r[:tt.overlap]) {
				t.Errorf("%d/%d part %d: overlap mismatch", tt.maxLength, tt.overlap, i)
			}
			rebuilt.WriteString(string(r[tt.overlap:]))
		}
		if rebuilt.String() != text {
			t.Errorf("%d/%d: reconstruction differs from input", tt.maxLength, tt.overlap)
		}
	}
}

func TestNormalizeSpace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b\t c  ", "a b c"},
		{"line one   \n   line two", "line one\nline two"},
		{"para\n\n\n\n\nnext", "para\n\nnext"},
		{"crlf\r\nline", "crlf\nline"},
		{"\n\n  \n", ""},
	}
	for _, tt := range tests {
		if got := normalizeSpace(tt.in); got != tt.want {
			t.Errorf("normalizeSpace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
