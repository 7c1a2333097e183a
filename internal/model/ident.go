package model

import (
	"crypto/md5"
	"encoding/base64"
	"sort"
	"strings"
)

const maxIdentifierBytes = 63

// MakeID joins parts with underscores into an identifier of at most 63
// bytes. Longer results are shortened by truncating parts and appending a
// short hash of the full name.
func MakeID(parts ...string) string {
	naive := strings.Join(parts, "_")
	if len(naive) <= maxIdentifierBytes {
		return naive
	}

	hash := shortHash(naive)

	type part struct {
		idx  int
		text string
	}
	ps := make([]part, len(parts))
	for i, p := range parts {
		ps[i] = part{idx: i, text: p}
	}

	for _, maxlen := range []int{15, 12, 9} {
		sort.SliceStable(ps, func(i, j int) bool {
			if len(ps[i].text) != len(ps[j].text) {
				return len(ps[i].text) > len(ps[j].text)
			}
			return ps[i].idx > ps[j].idx
		})
		for i := range ps {
			if len(ps[i].text) > maxlen {
				ps[i].text = truncateID(ps[i].text, maxlen)
			}
			ordered := append([]part(nil), ps...)
			sort.Slice(ordered, func(a, b int) bool { return ordered[a].idx < ordered[b].idx })
			texts := make([]string, 0, len(ordered)+1)
			for _, p := range ordered {
				texts = append(texts, p.text)
			}
			candidate := strings.Join(append(texts, hash), "_")
			if len(candidate) < maxIdentifierBytes {
				return candidate
			}
		}
	}

	runes := []rune(naive)
	suffix := (len(runes) + 2) / 3
	result := truncateID(naive, len(runes)/3) + string(runes[len(runes)-suffix:]) + "_" + hash
	if len(result) <= maxIdentifierBytes {
		return result
	}
	return truncateID(naive, 55) + hash
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return base64.URLEncoding.EncodeToString(sum[:])[:5]
}

// truncateID chops whole characters until s fits in maxlen-2 bytes, then
// marks the cut with ".."
func truncateID(s string, maxlen int) string {
	runes := []rune(s)
	start := len(runes) - maxlen
	if start < 1 {
		start = 1
	}
	for i := start; i < len(runes)-1; i++ {
		result := strings.TrimRight(string(runes[:len(runes)-i]), " \t\r\n")
		if len(result) <= maxlen-2 {
			return result + ".."
		}
	}
	return s
}

// SQLIdentifier quotes s as an SQL identifier
func SQLIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func joinIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = SQLIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
