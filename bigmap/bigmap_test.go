// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bigmap

import (
	"bytes"
	"errors"
	"math"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/host"
)

var testLocation = cap9.BytesToBytes32(bytes.Repeat([]byte{0xaa}, 32))

type group struct {
	Owner   cap9.Bytes32
	Members [4]cap9.Bytes32
}

type groupCodec struct{}

func (groupCodec) EncodeWords(g group) []cap9.Bytes32 {
	return append([]cap9.Bytes32{g.Owner}, g.Members[:]...)
}

func (groupCodec) DecodeWords(words []cap9.Bytes32) (group, error) {
	if len(words) != 5 {
		return group{}, errors.New("bad group")
	}
	var g group
	g.Owner = words[0]
	copy(g.Members[:], words[1:])
	return g, nil
}

func newStorage(t *testing.T) *host.State {
	s, err := host.NewMem(cap9.Address{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewBigMap(t *testing.T) {
	m, err := New[group](newStorage(t), 8, 5, testLocation, groupCodec{})
	require.NoError(t, err)

	assert.Equal(t, uint8(8), m.KeyBits())
	assert.Equal(t, uint32(5), m.ValueSize())
	assert.Equal(t, uint8(3), m.ValueBits())
	assert.Equal(t, testLocation, m.Location())
}

func TestValueBits(t *testing.T) {
	s := newStorage(t)
	for size, want := range map[uint32]uint8{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1 << 20: 20} {
		m, err := New[[]cap9.Bytes32](s, 1, size, testLocation, Words{})
		require.NoError(t, err)
		assert.Equal(t, want, m.ValueBits(), "size %d", size)
	}

	m, err := New[[]cap9.Bytes32](s, 8, math.MaxUint32, testLocation, Words{})
	require.NoError(t, err)
	assert.Equal(t, uint8(32), m.ValueBits())
	assert.Less(t, bits.Len32(math.MaxUint32), 255)
}

func TestNewInvalid(t *testing.T) {
	s := newStorage(t)
	_, err := New[[]cap9.Bytes32](s, 0, 1, testLocation, Words{})
	assert.True(t, errors.Is(err, ErrLayout))
	_, err = New[[]cap9.Bytes32](s, 9, 1, testLocation, Words{})
	assert.True(t, errors.Is(err, ErrLayout))
	assert.Contains(t, err.Error(), "key bits 9")
	_, err = New[[]cap9.Bytes32](s, 8, 0, testLocation, Words{})
	assert.True(t, errors.Is(err, ErrLayout))

	var kernel cap9.Bytes32
	copy(kernel[:], []byte{0xff, 0xff, 0xff, 0xff})
	_, err = New[[]cap9.Bytes32](s, 8, 1, kernel, Words{})
	assert.True(t, errors.Is(err, ErrKernelLocation))
}

func TestInsertGet(t *testing.T) {
	m, err := New[group](newStorage(t), 8, 5, testLocation, groupCodec{})
	require.NoError(t, err)

	_, ok, err := m.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)

	v := group{Owner: cap9.BytesToBytes32(bytes.Repeat([]byte{0xdd}, 32))}
	v.Members[3] = cap9.BytesToBytes32(bytes.Repeat([]byte{0xee}, 32))
	require.NoError(t, m.Insert(1, v))

	got, ok, err := m.Get(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, got)

	_, ok, err = m.Get(2)
	require.NoError(t, err)
	assert.False(t, ok)

	present, err := m.Present(1)
	require.NoError(t, err)
	assert.True(t, present)

	// idempotent reads
	for range 3 {
		again, ok, err := m.Get(1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, v, again)
	}
}

func TestZeroValueIsPresent(t *testing.T) {
	m, err := New[[]cap9.Bytes32](newStorage(t), 4, 1, testLocation, Words{})
	require.NoError(t, err)

	require.NoError(t, m.Insert(3, []cap9.Bytes32{{}}))
	v, ok, err := m.Get(3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []cap9.Bytes32{{}}, v)
}

func TestKeyAndValueChecks(t *testing.T) {
	m, err := New[[]cap9.Bytes32](newStorage(t), 4, 2, testLocation, Words{})
	require.NoError(t, err)

	err = m.Insert(16, make([]cap9.Bytes32, 2))
	assert.True(t, errors.Is(err, ErrKeyRange))
	_, err = m.Present(16)
	assert.True(t, errors.Is(err, ErrKeyRange))

	err = m.Insert(1, make([]cap9.Bytes32, 3))
	assert.True(t, errors.Is(err, ErrValueSize))
	present, err := m.Present(1)
	require.NoError(t, err)
	assert.False(t, present, "rejected insert must not mark presence")
}

func TestSlotLayout(t *testing.T) {
	m, err := New[group](newStorage(t), 8, 5, testLocation, groupCodec{})
	require.NoError(t, err)

	// 12 low bits: flag(1) key(8) offset(3)
	p := m.PresenceSlot(0x12)
	assert.Equal(t, byte(0x00|0x12>>5), p[30]&0x0f)
	assert.Equal(t, byte(0x12<<3), p[31])
	assert.Equal(t, testLocation[:30], p[:30])
	assert.Equal(t, byte(0xa0), p[30]&0xf0)

	v := m.ValueSlot(0x12, 4)
	assert.Equal(t, byte(0x08|0x12>>5), v[30]&0x0f)
	assert.Equal(t, byte(0x12<<3|4), v[31])

	seen := map[cap9.Bytes32]bool{}
	for k := range 256 {
		for i := range uint32(5) {
			s := m.ValueSlot(uint8(k), i)
			assert.False(t, seen[s])
			seen[s] = true
		}
		assert.False(t, seen[m.PresenceSlot(uint8(k))])
		seen[m.PresenceSlot(uint8(k))] = true
	}
}

func TestNamedLocation(t *testing.T) {
	loc := NamedLocation("groups")
	assert.Equal(t, loc, NamedLocation("groups"))
	assert.NotEqual(t, loc, NamedLocation("users"))
	assert.Equal(t, byte(0), loc[0])
}
