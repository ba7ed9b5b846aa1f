// Package codec defines the canonical pair key and the composite source
// id format shared by the discovery extractors. Both are stable storage
// formats; changing them invalidates existing rows.
package codec

import "strings"

// Delimiter separates the group key from the sub key in a composite
// source id, e.g. "event123:alice@example.com".
const Delimiter = ":"

const escapeChar = '\\'

// Pair is an unordered person pair in canonical form: A sorts before B.
type Pair struct {
	A string
	B string
}

// NewPair canonicalizes two person ids into a Pair. (x, y) and (y, x)
// produce the same Pair.
func NewPair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// IsSelf reports whether both endpoints are the same person. Self pairs
// never become edges.
func (p Pair) IsSelf() bool {
	return p.A == p.B
}

// Key returns a map key unique per unordered pair.
func (p Pair) Key() string {
	return p.A + Delimiter + p.B
}

// EncodeSourceID joins a group key and a sub key into a composite source
// id. The delimiter and the escape character are escaped inside the
// group key so the boundary stays unambiguous; the sub key is stored raw
// since decoding splits at the first unescaped delimiter only.
func EncodeSourceID(group, sub string) string {
	var b strings.Builder
	b.Grow(len(group) + len(sub) + 1)
	for i := 0; i < len(group); i++ {
		c := group[i]
		if c == escapeChar || c == Delimiter[0] {
			b.WriteByte(escapeChar)
		}
		b.WriteByte(c)
	}
	b.WriteString(Delimiter)
	b.WriteString(sub)
	return b.String()
}

// DecodeSourceID splits a composite source id at the first unescaped
// delimiter and unescapes the group key. Ids without a delimiter decode
// as (id, ""); ids written before escaping existed decode as long as
// their group key had no delimiter, which was already a precondition of
// the old format.
func DecodeSourceID(id string) (group, sub string) {
	var g strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c == escapeChar && i+1 < len(id) {
			i++
			g.WriteByte(id[i])
			continue
		}
		if c == Delimiter[0] {
			return g.String(), id[i+1:]
		}
		g.WriteByte(c)
	}
	return g.String(), ""
}

// GroupKey returns just the group portion of a composite source id.
func GroupKey(id string) string {
	group, _ := DecodeSourceID(id)
	return group
}
