// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package bigmap implements a packed map from small keys to fixed size
// multi-word values, laid out directly in storage without hashing.
//
// For a map with k key bits and v value bits, the low 1+k+v bits of the
// location are replaced by flag|key|offset. The slot with flag 0 and
// offset 0 carries the presence bit (bit 0). Value word i is kept in the
// slot with flag 1 and offset i.
package bigmap

import (
	"math/bits"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/layout"
)

var (
	ErrKeyRange       = errors.New("key out of range")
	ErrValueSize      = errors.New("value size mismatch")
	ErrKernelLocation = errors.New("location in kernel space")
	ErrLayout         = errors.New("invalid map layout")
)

// Codec converts values to and from their word encoding.
type Codec[V any] interface {
	EncodeWords(v V) []cap9.Bytes32
	DecodeWords(words []cap9.Bytes32) (V, error)
}

// Words is the identity codec for raw word slices.
type Words struct{}

func (Words) EncodeWords(v []cap9.Bytes32) []cap9.Bytes32 { return v }

func (Words) DecodeWords(words []cap9.Bytes32) ([]cap9.Bytes32, error) { return words, nil }

// BigMap is a packed map over a storage.
type BigMap[V any] struct {
	storage   host.Storage
	codec     Codec[V]
	keyBits   uint8
	valueBits uint8
	valueSize uint32
	location  cap9.Bytes32
	base      *uint256.Int
}

// New creates a map with keys of keyBits bits (1 to 8) and values of valueSize words.
func New[V any](storage host.Storage, keyBits uint8, valueSize uint32, location cap9.Bytes32, codec Codec[V]) (*BigMap[V], error) {
	if keyBits < 1 || keyBits > 8 {
		return nil, errors.WithMessagef(ErrLayout, "key bits %d not in [1,8]", keyBits)
	}
	if valueSize < 1 {
		return nil, errors.WithMessage(ErrLayout, "value size must be positive")
	}
	// exact ceil(log2(valueSize)); at most 32 for any uint32
	valueBits := bits.Len32(valueSize - 1)
	if valueBits >= 255 {
		return nil, errors.WithMessagef(ErrLayout, "value bits %d overflow", valueBits)
	}
	if 1+int(keyBits)+valueBits > 256 {
		return nil, errors.WithMessage(ErrLayout, "layout exceeds word size")
	}
	if layout.IsKernelSlot(location) {
		return nil, ErrKernelLocation
	}

	total := uint(1 + int(keyBits) + valueBits)
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), total)
	mask.SubUint64(mask, 1)
	base := location.Uint256()
	base.And(base, mask.Not(mask))

	return &BigMap[V]{
		storage:   storage,
		codec:     codec,
		keyBits:   keyBits,
		valueBits: uint8(valueBits),
		valueSize: valueSize,
		location:  location,
		base:      base,
	}, nil
}

// NamedLocation derives a map location from a name. The result never lies in kernel space.
func NamedLocation(name string) cap9.Bytes32 {
	loc := cap9.Blake2b([]byte(name))
	loc[0] = 0
	return loc
}

// KeyBits returns the key width in bits.
func (m *BigMap[V]) KeyBits() uint8 { return m.keyBits }

// ValueBits returns the number of bits addressing the words of a value.
func (m *BigMap[V]) ValueBits() uint8 { return m.valueBits }

// ValueSize returns the number of words per value.
func (m *BigMap[V]) ValueSize() uint32 { return m.valueSize }

// Location returns the location the map was created with.
func (m *BigMap[V]) Location() cap9.Bytes32 { return m.location }

func (m *BigMap[V]) slot(key uint8, flag uint64, offset uint64) cap9.Bytes32 {
	v := new(uint256.Int).Set(m.base)
	f := uint256.NewInt(flag)
	v.Or(v, f.Lsh(f, uint(m.keyBits)+uint(m.valueBits)))
	k := uint256.NewInt(uint64(key))
	v.Or(v, k.Lsh(k, uint(m.valueBits)))
	v.Or(v, uint256.NewInt(offset))
	return cap9.Uint256ToBytes32(v)
}

func (m *BigMap[V]) checkKey(key uint8) error {
	if m.keyBits < 8 && key >= 1<<m.keyBits {
		return errors.WithMessagef(ErrKeyRange, "key %d with %d bits", key, m.keyBits)
	}
	return nil
}

// PresenceSlot returns the slot holding the presence bit of key.
func (m *BigMap[V]) PresenceSlot(key uint8) cap9.Bytes32 {
	return m.slot(key, 0, 0)
}

// ValueSlot returns the slot holding word i of the value of key.
func (m *BigMap[V]) ValueSlot(key uint8, i uint32) cap9.Bytes32 {
	return m.slot(key, 1, uint64(i))
}

// Present reports whether a value was inserted for key.
func (m *BigMap[V]) Present(key uint8) (bool, error) {
	if err := m.checkKey(key); err != nil {
		return false, err
	}
	w, err := m.storage.Read(m.PresenceSlot(key))
	if err != nil {
		return false, err
	}
	return w[31]&1 != 0, nil
}

// Get returns the value of key. The second return value is false if key is absent.
func (m *BigMap[V]) Get(key uint8) (V, bool, error) {
	var zero V
	present, err := m.Present(key)
	if err != nil || !present {
		return zero, false, err
	}
	words := make([]cap9.Bytes32, m.valueSize)
	for i := range words {
		if words[i], err = m.storage.Read(m.ValueSlot(key, uint32(i))); err != nil {
			return zero, false, err
		}
	}
	v, err := m.codec.DecodeWords(words)
	if err != nil {
		return zero, false, errors.Wrap(err, "bigmap: decode value")
	}
	return v, true, nil
}

// Insert sets the value of key, overwriting any previous value.
func (m *BigMap[V]) Insert(key uint8, value V) error {
	if err := m.checkKey(key); err != nil {
		return err
	}
	words := m.codec.EncodeWords(value)
	if uint64(len(words)) != uint64(m.valueSize) {
		return errors.WithMessagef(ErrValueSize, "got %d words, want %d", len(words), m.valueSize)
	}

	presence := m.PresenceSlot(key)
	w, err := m.storage.Read(presence)
	if err != nil {
		return err
	}
	w[31] |= 1
	if err := m.storage.Write(presence, w); err != nil {
		return err
	}
	for i, word := range words {
		if err := m.storage.Write(m.ValueSlot(key, uint32(i)), word); err != nil {
			return err
		}
	}
	return nil
}
