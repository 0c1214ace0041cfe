package regbloom

import (
	"crypto/sha1" //nolint:gosec // not used for security, only for bit dispersion
	"encoding/hex"
	"strings"
)

// Digester produces the wide digest used for bit derivation and the
// printable canonical encoding used to normalize raw identifiers into
// storage keys.
type Digester interface {
	// WideDigest returns a fixed-width digest of data
	WideDigest(data []byte) []byte
	// CanonicalEncode returns a deterministic printable encoding of the digest of data
	CanonicalEncode(data []byte) string
}

type sha1Digester struct{}

// NewSHA1Digester returns the default Digester: a 160-bit SHA-1 digest
// with lowercase hex as the canonical encoding.
func NewSHA1Digester() Digester {
	return sha1Digester{}
}

func (sha1Digester) WideDigest(data []byte) []byte {
	sum := sha1.Sum(data) //nolint:gosec
	return sum[:]
}

func (sha1Digester) CanonicalEncode(data []byte) string {
	sum := sha1.Sum(data) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

var _ Digester = sha1Digester{}

// canonicalKey normalizes a raw identifier (anything with an "@") into
// its canonical digest encoding; keys without one are stored as supplied.
func canonicalKey(digester Digester, key string) string {
	if strings.Contains(key, "@") {
		return digester.CanonicalEncode([]byte(key))
	}
	return key
}
