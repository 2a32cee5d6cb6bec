// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vechain/cap9/cap9"
)

func TestPrefixes(t *testing.T) {
	assert.Equal(t,
		cap9.MustParseBytes32("0xffffffff00000000000000000000000000000000000000000000000000000000"),
		Prefix(NamespaceHeap))
	assert.Equal(t,
		cap9.MustParseBytes32("0xffffffff04000000000000000000000000000000000000000000000000000000"),
		EntrySlot())
	assert.Equal(t, Prefix(NamespaceList), ListLengthSlot())
}

func TestHeapSlots(t *testing.T) {
	key := cap9.MustProcedureKey("init")

	addr := AddressSlot(key)
	assert.Equal(t,
		cap9.MustParseBytes32("0xffffffff00"+"696e6974"+"0000000000000000000000000000000000000000"+"000000"),
		addr)

	idx := IndexSlot(key)
	assert.Equal(t, addr[:31], idx[:31], "index slot keeps the key bytes")
	assert.Equal(t, byte(1), idx[31])

	w := CapWordSlot(key, 3, 7)
	assert.Equal(t, []byte{1, 3, 7}, w[29:])
}

func TestListSlot(t *testing.T) {
	slot := ListSlot(0x0102)
	assert.Equal(t,
		cap9.MustParseBytes32("0xffffffff01"+"000000000000000000000000000000000000000000000102"+"000000"),
		slot)

	last := ListSlot(MaxProcIndex)
	assert.Equal(t, last[5:29], []byte{
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	})
}

func TestIsKernelSlot(t *testing.T) {
	assert.True(t, IsKernelSlot(CurrentSlot()))
	assert.True(t, IsKernelSlot(CapWordSlot(cap9.MustProcedureKey("x"), 0, 0)))
	assert.False(t, IsKernelSlot(cap9.Uint64ToBytes32(1)))

	var s cap9.Bytes32
	s[0], s[1], s[2] = 0xff, 0xff, 0xff
	assert.False(t, IsKernelSlot(s))
}

func TestNoCollisions(t *testing.T) {
	keys := []cap9.ProcedureKey{
		{},
		cap9.MustProcedureKey("init"),
		cap9.MustProcedureKey("initx"),
		cap9.MustProcedureKey("\x01"),
	}
	seen := make(map[cap9.Bytes32]string)
	add := func(slot cap9.Bytes32, what string) {
		if prev, ok := seen[slot]; ok {
			t.Fatalf("%s collides with %s", what, prev)
		}
		seen[slot] = what
	}

	add(KernelAddressSlot(), "kernel")
	add(CurrentSlot(), "current")
	add(EntrySlot(), "entry")
	for _, k := range keys {
		name := k.String()
		add(AddressSlot(k), "address "+name)
		add(IndexSlot(k), "index "+name)
		add(CapCountSlot(k), "count "+name)
		for c := range 3 {
			for w := range 3 {
				add(CapWordSlot(k, uint8(c), uint8(w)), "cap "+name)
			}
		}
	}
	for _, n := range []uint64{0, 1, 2, 255, 256, MaxProcIndex} {
		add(ListSlot(n), "list")
	}
}
