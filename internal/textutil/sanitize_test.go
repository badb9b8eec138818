package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"linkhaul/internal/textutil"
)

func TestFolderName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Season 1", "Season 1"},
		{"unsafe characters", `Show: "Part" 1/2 <HD>|?*`, `Show_ _Part_ 1_2 _HD____`},
		{"backslash", `a\b`, "a_b"},
		{"edge periods and spaces", "  ..My.Release..  ", "My.Release"},
		{"empty", "", textutil.DefaultFolderName},
		{"only periods", " . . ", textutil.DefaultFolderName},
		{"control characters", "tab\there", "tab_here"},
		{"nfc normalization", "Cafe\u0301", "Caf\u00e9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.FolderName(tc.input); got != tc.want {
				t.Fatalf("FolderName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestFolderNameCapsLength(t *testing.T) {
	long := strings.Repeat("ä", 250)
	got := textutil.FolderName(long)
	if n := utf8.RuneCountInString(got); n != textutil.MaxFolderNameLength {
		t.Fatalf("expected %d runes, got %d", textutil.MaxFolderNameLength, n)
	}

	trailing := strings.Repeat("a", 199) + " b"
	if got := textutil.FolderName(trailing); got != strings.Repeat("a", 199) {
		t.Fatalf("expected trailing space trimmed after cap, got %q", got)
	}
}
