package match

import (
	"encoding/base64"
	"strings"
)

// applyEncodingModifiers expands a single pattern into one or more
// candidate strings representing alternate on-the-wire encodings Sigma
// rule authors rely on to catch obfuscated command lines. The
// candidates are always OR'd against the field value, regardless of the
// `all` modifier, since they are alternate representations of the same
// intended literal rather than independent required terms.
func applyEncodingModifiers(pattern string, mods ModifierSet) []string {
	candidates := []string{pattern}

	if mods.Has(ModBase64) {
		candidates = []string{base64.StdEncoding.EncodeToString([]byte(pattern))}
	} else if mods.Has(ModBase64Offset) {
		candidates = base64OffsetVariants(pattern)
	}

	if mods.Has(ModWide) || mods.Has(ModUTF16) {
		out := make([]string, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, utf16leInterleave(c))
		}
		candidates = out
	}

	if mods.Has(ModWindash) {
		out := make([]string, 0, len(candidates)*2)
		for _, c := range candidates {
			out = append(out, windashVariants(c)...)
		}
		candidates = out
	}

	return candidates
}

// base64OffsetVariants reproduces the standard "three alignments" trick:
// a substring's base64 encoding differs depending on where it falls
// within a larger encoded buffer (byte offset mod 3), so the engine
// offers all three so the rule matches regardless of alignment. The
// leading/trailing partial-group characters specific to each offset are
// trimmed, leaving a pure substring safe for a contains match.
func base64OffsetVariants(pattern string) []string {
	variants := make([]string, 0, 3)
	pad := []string{"", "A", "AA"}
	for _, p := range pad {
		encoded := base64.StdEncoding.EncodeToString([]byte(p + pattern))
		trimmed := encoded
		if len(p) > 0 {
			// Drop the leading characters influenced by the padding
			// bytes so only the stable middle section remains.
			drop := (len(p)*8 + 5) / 6
			if drop < len(trimmed) {
				trimmed = trimmed[drop:]
			}
		}
		trimmed = strings.TrimRight(trimmed, "=")
		if (len(p)+len(pattern))%3 != 0 && len(trimmed) > 0 {
			// The last character of a partial group also carries
			// bits of whatever byte follows the substring.
			trimmed = trimmed[:len(trimmed)-1]
		}
		if trimmed != "" {
			variants = append(variants, trimmed)
		}
	}
	return variants
}

// utf16leInterleave renders s as it would appear if encoded UTF-16LE and
// then read back byte-for-byte as Latin-1: every rune is followed by a
// NUL byte. This lets a contains/equality predicate match fields that
// carry UTF-16-encoded text (Windows event fields commonly do).
func utf16leInterleave(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		b.WriteByte(0)
	}
	return b.String()
}

// windashVariants returns alternate forms of a command-line pattern with
// POSIX/Windows switch dashes swapped, so a rule written with `-flag`
// also catches `/flag` and vice versa.
func windashVariants(s string) []string {
	variants := []string{s}
	if strings.Contains(s, "-") {
		variants = append(variants, strings.ReplaceAll(s, "-", "/"))
	}
	if strings.Contains(s, "/") {
		variants = append(variants, strings.ReplaceAll(s, "/", "-"))
	}
	return variants
}
