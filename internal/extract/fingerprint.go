package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// contentLines collects the page's visible text as normalized lines:
// whitespace-collapsed, lowercased, short fragments dropped, duplicates
// removed, document order preserved. These lines are both the fingerprint
// input and the unit of "newly appeared content" in change alerts.
func contentLines(pg *page) []string {
	seen := make(map[string]struct{})
	var lines []string

	for _, doc := range pg.docs() {
		body := doc.Find("body")
		text := body.Text()
		if body.Length() == 0 {
			text = doc.Text()
		}
		for _, raw := range strings.Split(text, "\n") {
			line := strings.ToLower(cleanText(raw))
			if utf8.RuneCountInString(line) < 3 {
				continue
			}
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			lines = append(lines, line)
		}
	}
	return lines
}

// Fingerprint hashes normalized content lines into a stable hex digest.
// Equal line sets always produce equal fingerprints.
func Fingerprint(lines []string) string {
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NewFragments returns the lines present in new but absent from old,
// preserving new's order. Used to enrich change alerts with what actually
// appeared.
func NewFragments(old, new []string) []string {
	prev := make(map[string]struct{}, len(old))
	for _, line := range old {
		prev[line] = struct{}{}
	}

	var added []string
	for _, line := range new {
		if _, ok := prev[line]; !ok {
			added = append(added, line)
		}
	}
	return added
}
