package regbloom

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// Snapshot captures everything needed to reproduce membership checks away
// from the filter that built it: the bit length, the active salts in
// build order and the raw bit vector.
type Snapshot struct {
	FilterLength uint
	Salts        []string
	Bits         *bitset.BitSet
}

// Snapshot captures the current built state, triggering a build first if
// the filter is stale. The returned value shares nothing with the filter.
func (f *Filter) Snapshot() (Snapshot, error) {
	if f.dirty || f.bits == nil {
		if buildErr := f.Build(); buildErr != nil {
			return Snapshot{}, buildErr
		}
	}
	return Snapshot{
		FilterLength: f.filterLength,
		Salts:        append([]string(nil), f.activeSalts...),
		Bits:         f.bits.Clone(),
	}, nil
}

// MarshalBinary encodes the snapshot as filter length, salt list and the
// bit vector's own binary form.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.BigEndian, uint64(s.FilterLength)); err != nil {
		return nil, errors.Wrap(err, "snapshot length encoding failed")
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(s.Salts))); err != nil {
		return nil, errors.Wrap(err, "snapshot salts count encoding failed")
	}
	for _, salt := range s.Salts {
		if err := binary.Write(buf, binary.BigEndian, uint32(len(salt))); err != nil {
			return nil, errors.Wrap(err, "snapshot salt length encoding failed")
		}
		buf.WriteString(salt)
	}
	if _, err := s.Bits.WriteTo(buf); err != nil {
		return nil, errors.Wrap(err, "snapshot bit vector encoding failed")
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a snapshot produced by MarshalBinary.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	buf := bytes.NewReader(data)
	var length uint64
	if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
		return errors.Wrap(err, "snapshot length decoding failed")
	}
	var saltsCount uint32
	if err := binary.Read(buf, binary.BigEndian, &saltsCount); err != nil {
		return errors.Wrap(err, "snapshot salts count decoding failed")
	}
	salts := make([]string, saltsCount)
	for i := range salts {
		var saltLen uint32
		if err := binary.Read(buf, binary.BigEndian, &saltLen); err != nil {
			return errors.Wrap(err, "snapshot salt length decoding failed")
		}
		salt := make([]byte, saltLen)
		if _, err := io.ReadFull(buf, salt); err != nil {
			return errors.Wrap(err, "snapshot salt decoding failed")
		}
		salts[i] = string(salt)
	}
	bits := &bitset.BitSet{}
	if _, err := bits.ReadFrom(buf); err != nil {
		return errors.Wrap(err, "snapshot bit vector decoding failed")
	}
	s.FilterLength = uint(length)
	s.Salts = salts
	s.Bits = bits
	return nil
}

// StaticChecker answers membership queries from a snapshot alone, with no
// stored contents and no rebuilds. It is what a remote consumer runs
// after transporting a snapshot out of the building process.
type StaticChecker struct {
	digester Digester
	snapshot Snapshot
}

func NewStaticChecker(snapshot Snapshot) *StaticChecker {
	return NewStaticCheckerWithDigester(NewSHA1Digester(), snapshot)
}

func NewStaticCheckerWithDigester(digester Digester, snapshot Snapshot) *StaticChecker {
	return &StaticChecker{
		digester: digester,
		snapshot: snapshot,
	}
}

func (c *StaticChecker) CheckAll(keys ...string) ([]bool, error) {
	results := make([]bool, len(keys))
	for i, key := range keys {
		mask, maskErr := bitmask(
			c.digester,
			canonicalKey(c.digester, key),
			c.snapshot.Salts,
			c.snapshot.FilterLength,
		)
		if maskErr != nil {
			return nil, maskErr
		}
		results[i] = c.snapshot.Bits.IsSuperSet(mask)
	}
	return results, nil
}

func (c *StaticChecker) CheckOne(key string) (bool, error) {
	results, err := c.CheckAll(key)
	if err != nil {
		return false, err
	}
	return results[0], nil
}

func (c *StaticChecker) OnBits() uint {
	return c.snapshot.Bits.Count()
}
