package lockstore

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ConstraintKV is the canonicalisable (lval, rval) pair the fingerprint
// digests over. Fingerprint itself drops mtime/atime/ctime entries (see
// excludedLvals), per §4.7.
type ConstraintKV struct {
	Lval string
	Rval string
}

// excludedLvals names the attributes that change naturally between runs
// and must never affect the fingerprint (§4.7, testable property 5).
var excludedLvals = map[string]bool{
	"mtime": true,
	"atime": true,
	"ctime": true,
}

// FingerprintInput is everything the digest is computed over.
type FingerprintInput struct {
	Subtype     string
	Promiser    string
	Promisee    string
	HasPromisee bool
	Constraints []ConstraintKV
}

// Fingerprint computes the canonicalising digest described in §4.7: the
// subtype, promiser, promisee (if present), and every non-excluded
// constraint sorted by lval. Reordering constraints, renaming equivalent
// whitespace (callers are expected to have already normalised whitespace
// in Rval before calling), or altering mtime/atime/ctime never changes the
// result; altering any other lval does.
func Fingerprint(in FingerprintInput) string {
	filtered := make([]ConstraintKV, 0, len(in.Constraints))
	for _, c := range in.Constraints {
		if excludedLvals[c.Lval] {
			continue
		}
		filtered = append(filtered, c)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Lval < filtered[j].Lval })

	var sb strings.Builder
	sb.WriteString(in.Subtype)
	sb.WriteByte(0)
	sb.WriteString(in.Promiser)
	sb.WriteByte(0)
	if in.HasPromisee {
		sb.WriteString(in.Promisee)
	}
	sb.WriteByte(0)
	for _, c := range filtered {
		sb.WriteString(c.Lval)
		sb.WriteByte('=')
		sb.WriteString(c.Rval)
		sb.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
