// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package layout derives the storage slots the kernel keeps its records in.
//
// Every kernel slot starts with the reserved prefix ff ff ff ff followed by a
// namespace byte:
//
//	heap      ff ff ff ff 00 | key (24) | field (3)
//	list      ff ff ff ff 01 | index (24) | 00 00 00
//	kernel    ff ff ff ff 02 | 00...
//	current   ff ff ff ff 03 | 00...
//	entry     ff ff ff ff 04 | 00...
//
// Heap fields are selected by the last three bytes: 00 00 00 is the
// address record, 00 00 01 the index record, 00 00 02 the capability
// count and 01 i w the w-th word of the i-th capability.
package layout

import (
	"math"

	"github.com/vechain/cap9/cap9"
)

// Namespace bytes at offset 4 of kernel slots.
const (
	NamespaceHeap    byte = 0x00
	NamespaceList    byte = 0x01
	NamespaceKernel  byte = 0x02
	NamespaceCurrent byte = 0x03
	NamespaceEntry   byte = 0x04
)

const (
	prefixLength    = 4
	namespaceOffset = 4
	idOffset        = 5
	fieldOffset     = idOffset + cap9.ProcedureKeyLength // 29

	fieldAddress  byte = 0x00
	fieldIndex    byte = 0x01
	fieldCapCount byte = 0x02
	fieldCapWord  byte = 0x01
)

// MaxProcIndex is the largest procedure index the table hands out.
const MaxProcIndex uint64 = math.MaxUint64

// MaxCaps is the number of capabilities a procedure may hold.
const MaxCaps = 256

// MaxCapWords is the number of words one capability may occupy, header included.
const MaxCapWords = 256

// Prefix returns the root slot of a kernel namespace.
func Prefix(ns byte) cap9.Bytes32 {
	var slot cap9.Bytes32
	for i := range prefixLength {
		slot[i] = 0xff
	}
	slot[namespaceOffset] = ns
	return slot
}

// IsKernelSlot reports whether slot lies in the reserved kernel space.
func IsKernelSlot(slot cap9.Bytes32) bool {
	return slot[0] == 0xff && slot[1] == 0xff && slot[2] == 0xff && slot[3] == 0xff
}

func heapBase(key cap9.ProcedureKey) cap9.Bytes32 {
	slot := Prefix(NamespaceHeap)
	copy(slot[idOffset:fieldOffset], key[:])
	return slot
}

// AddressSlot is where the code address of a procedure is kept.
func AddressSlot(key cap9.ProcedureKey) cap9.Bytes32 {
	slot := heapBase(key)
	slot[31] = fieldAddress
	return slot
}

// IndexSlot is where the list index of a procedure is kept.
func IndexSlot(key cap9.ProcedureKey) cap9.Bytes32 {
	slot := heapBase(key)
	slot[31] = fieldIndex
	return slot
}

// CapCountSlot is where the number of capabilities of a procedure is kept.
func CapCountSlot(key cap9.ProcedureKey) cap9.Bytes32 {
	slot := heapBase(key)
	slot[31] = fieldCapCount
	return slot
}

// CapWordSlot is the slot of word w of capability i of a procedure.
func CapWordSlot(key cap9.ProcedureKey, i, w uint8) cap9.Bytes32 {
	slot := heapBase(key)
	slot[29] = fieldCapWord
	slot[30] = i
	slot[31] = w
	return slot
}

// ListSlot is the slot of the list entry at index. ListSlot(0) is the list
// root, which holds the list length.
func ListSlot(index uint64) cap9.Bytes32 {
	slot := Prefix(NamespaceList)
	n := cap9.Uint64ToBytes32(index)
	// low 24 bytes of the 32-byte big-endian index
	copy(slot[idOffset:fieldOffset], n[32-cap9.ProcedureKeyLength:])
	return slot
}

// ListLengthSlot holds the number of indices handed out so far.
func ListLengthSlot() cap9.Bytes32 {
	return ListSlot(0)
}

// KernelAddressSlot holds the kernel's own address.
func KernelAddressSlot() cap9.Bytes32 {
	return Prefix(NamespaceKernel)
}

// CurrentSlot holds the key of the executing procedure.
func CurrentSlot() cap9.Bytes32 {
	return Prefix(NamespaceCurrent)
}

// EntrySlot holds the key of the entry procedure.
func EntrySlot() cap9.Bytes32 {
	return Prefix(NamespaceEntry)
}
