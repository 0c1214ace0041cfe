package regbloom

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// bitmask derives the fingerprint of key: a vector of bitsCount bits with
// one bit set per salt. The offset for a salt is the XOR fold of the
// big-endian 32-bit words of digest(key||salt), modulo bitsCount. Two
// salts may land on the same offset; the overlap is ordinary
// Bloom-filter collision, not an error.
func bitmask(digester Digester, key string, salts []string, bitsCount uint) (*bitset.BitSet, error) {
	if len(salts) == 0 {
		return nil, errors.Wrap(ErrConfiguration, "active salts are not set")
	}
	if bitsCount == 0 {
		return nil, errors.Wrap(ErrConfiguration, "filter length is not set")
	}

	mask := bitset.New(bitsCount)
	for _, salt := range salts {
		mask.Set(bitOffset(digester, key, salt, bitsCount))
	}
	return mask, nil
}

func bitOffset(digester Digester, key, salt string, bitsCount uint) uint {
	digest := digester.WideDigest([]byte(key + salt))
	var folded uint32
	for i := 0; i+4 <= len(digest); i += 4 {
		folded ^= binary.BigEndian.Uint32(digest[i:])
	}
	return uint(folded) % bitsCount
}
