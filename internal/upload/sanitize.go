// Package upload holds the intake rules applied to every uploaded file before anything is written:
// filename sanitization, storage naming and validation against an allow-list policy.
package upload

import (
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxBaseLength bounds the sanitized base name; the UUID prefix keeps keys unique regardless.
const maxBaseLength = 100

// SanitizeFilename turns an arbitrary client filename into a path-segment-safe ASCII name.
// Diacritics are folded (é -> e), directories are dropped, and every rune outside
// [A-Za-z0-9_-] becomes '_'. The extension keeps its dot and goes through the same rule.
func SanitizeFilename(original string) string {
	name := path.Base(strings.ReplaceAll(original, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		name = ""
	}

	// Transformers are stateful, so a fresh chain per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}

	ext := path.Ext(name)
	base := replaceUnsafe(strings.TrimSuffix(name, ext))
	if ext != "" {
		ext = "." + replaceUnsafe(strings.TrimPrefix(ext, "."))
	}
	if base == "" {
		base = "file"
	}
	if len(base) > maxBaseLength {
		base = base[:maxBaseLength]
	}
	return base + ext
}

// StorageName returns a collision-resistant stored filename: "<uuid>-<sanitized name>".
func StorageName(original string) string {
	return uuid.NewString() + "-" + SanitizeFilename(original)
}

// Ext returns the lower-cased extension of a client filename, including the dot.
func Ext(filename string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
}

func replaceUnsafe(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
