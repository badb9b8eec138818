package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultFolderName is used when a name sanitizes to nothing.
const DefaultFolderName = "container"

// MaxFolderNameLength caps folder names in runes.
const MaxFolderNameLength = 200

// folderNameReplacer replaces path-unsafe characters with underscores.
var folderNameReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"/", "_",
	"\\", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// FolderName derives a filesystem-safe directory name from a display name.
// Unsafe characters become underscores, edge whitespace and periods are
// trimmed, and the result is capped at MaxFolderNameLength runes.
func FolderName(name string) string {
	name = norm.NFC.String(name)
	name = folderNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	name = trimEdges(name)
	if utf8.RuneCountInString(name) > MaxFolderNameLength {
		name = trimEdges(string([]rune(name)[:MaxFolderNameLength]))
	}
	if name == "" {
		return DefaultFolderName
	}
	return name
}

func trimEdges(value string) string {
	return strings.Trim(value, " .\t")
}
