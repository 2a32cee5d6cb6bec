// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package proctable is the registry of procedures kept in kernel storage:
// key to address, key to index and index to key, capability lists, and the
// entry and current procedure markers.
//
// Indices start at 1 and are never reused. Deleting a procedure clears its
// records without shrinking the list, so a deleted procedure reads exactly
// like one that never existed.
package proctable

import (
	"github.com/pkg/errors"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/layout"
	"github.com/vechain/cap9/log"
	"github.com/vechain/cap9/metrics"
)

var logger = log.WithContext("pkg", "proctable")

var metricTableOps = metrics.LazyLoadCounterVec("proctable_ops_count", []string{"op", "result"})

var (
	ErrUsedID    = errors.New("procedure key already in use")
	ErrListFull  = errors.New("procedure list full")
	ErrInvalidID = errors.New("invalid procedure key")
	ErrEntryProc = errors.New("entry procedure cannot be deleted")
)

// Procedure is a registered procedure.
type Procedure struct {
	Key     cap9.ProcedureKey
	Address cap9.Address
	Index   uint64
	Caps    caps.List
}

// Table reads and writes the procedure table in storage.
type Table struct {
	storage  host.Storage
	maxIndex uint64
}

// Option configures a Table.
type Option func(*Table)

// WithMaxIndex limits the highest index the table hands out.
func WithMaxIndex(n uint64) Option {
	return func(t *Table) {
		t.maxIndex = n
	}
}

// New creates a Table over storage.
func New(storage host.Storage, opts ...Option) *Table {
	t := &Table{
		storage:  storage,
		maxIndex: layout.MaxProcIndex,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxIndex returns the highest index the table hands out.
func (t *Table) MaxIndex() uint64 {
	return t.maxIndex
}

func (t *Table) readUint64(slot cap9.Bytes32) (uint64, error) {
	w, err := t.storage.Read(slot)
	if err != nil {
		return 0, err
	}
	v := w.Uint256()
	if !v.IsUint64() {
		return 0, errors.Errorf("corrupted counter at %v", slot)
	}
	return v.Uint64(), nil
}

// Len returns the number of indices handed out, deleted procedures included.
func (t *Table) Len() (uint64, error) {
	return t.readUint64(layout.ListLengthSlot())
}

// Index returns the index of key.
func (t *Table) Index(key cap9.ProcedureKey) (uint64, bool, error) {
	idx, err := t.readUint64(layout.IndexSlot(key))
	if err != nil {
		return 0, false, err
	}
	return idx, idx != 0, nil
}

// Contains reports whether key is registered. Any non-zero index word
// marks the key as used.
func (t *Table) Contains(key cap9.ProcedureKey) (bool, error) {
	w, err := t.storage.Read(layout.IndexSlot(key))
	if err != nil {
		return false, err
	}
	return !w.IsZero(), nil
}

// Address returns the code address of key.
func (t *Table) Address(key cap9.ProcedureKey) (cap9.Address, bool, error) {
	ok, err := t.Contains(key)
	if err != nil || !ok {
		return cap9.Address{}, false, err
	}
	w, err := t.storage.Read(layout.AddressSlot(key))
	if err != nil {
		return cap9.Address{}, false, err
	}
	return cap9.BytesToAddress(w[:]), true, nil
}

// KeyAt returns the key registered at index.
func (t *Table) KeyAt(index uint64) (cap9.ProcedureKey, bool, error) {
	if index == 0 {
		return cap9.ProcedureKey{}, false, nil
	}
	w, err := t.storage.Read(layout.ListSlot(index))
	if err != nil {
		return cap9.ProcedureKey{}, false, err
	}
	key := cap9.KeyFromBytes32(w)
	return key, !key.IsZero(), nil
}

// CapCount returns the number of capabilities of key.
func (t *Table) CapCount(key cap9.ProcedureKey) (int, error) {
	n, err := t.readUint64(layout.CapCountSlot(key))
	if err != nil {
		return 0, err
	}
	if n > layout.MaxCaps {
		return 0, errors.Errorf("corrupted capability count %d", n)
	}
	return int(n), nil
}

// capWords returns the words of capability i, header first.
func (t *Table) capWords(key cap9.ProcedureKey, i int) ([]cap9.Bytes32, error) {
	h, err := t.storage.Read(layout.CapWordSlot(key, uint8(i), 0))
	if err != nil {
		return nil, err
	}
	_, n, err := caps.ParseHeader(h)
	if err != nil {
		return nil, err
	}
	words := []cap9.Bytes32{h}
	for w := 1; w <= n; w++ {
		word, err := t.storage.Read(layout.CapWordSlot(key, uint8(i), uint8(w)))
		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, nil
}

// Cap returns capability i of key.
func (t *Table) Cap(key cap9.ProcedureKey, i int) (caps.Capability, error) {
	n, err := t.CapCount(key)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= n {
		return nil, nil
	}
	words, err := t.capWords(key, i)
	if err != nil {
		return nil, err
	}
	typ, _, err := caps.ParseHeader(words[0])
	if err != nil {
		return nil, err
	}
	return caps.Decode(typ, words[1:])
}

// Caps returns the capability list of key.
func (t *Table) Caps(key cap9.ProcedureKey) (caps.List, error) {
	n, err := t.CapCount(key)
	if err != nil {
		return nil, err
	}
	var words []cap9.Bytes32
	for i := range n {
		w, err := t.capWords(key, i)
		if err != nil {
			return nil, err
		}
		words = append(words, w...)
	}
	return caps.DecodeList(words)
}

// Insert registers key at addr with the capability list.
// Nothing is written unless all checks pass.
func (t *Table) Insert(key cap9.ProcedureKey, addr cap9.Address, list caps.List) (err error) {
	defer func() { countOp("insert", err) }()

	if key.IsZero() {
		return errors.WithMessage(ErrInvalidID, "empty key")
	}
	used, err := t.Contains(key)
	if err != nil {
		return err
	}
	if used {
		return errors.WithMessage(ErrUsedID, key.String())
	}
	n, err := t.Len()
	if err != nil {
		return err
	}
	if n >= t.maxIndex {
		return ErrListFull
	}
	if len(list) > layout.MaxCaps {
		return errors.WithMessagef(caps.ErrMalformed, "%d capabilities", len(list))
	}
	encoded := make([][]cap9.Bytes32, len(list))
	for i, c := range list {
		if encoded[i] = caps.Encode(c); len(encoded[i]) > layout.MaxCapWords {
			return errors.WithMessagef(caps.ErrMalformed, "capability %d too large", i)
		}
		// stored capabilities must read back
		if _, err := caps.Decode(c.Type(), encoded[i][1:]); err != nil {
			return errors.WithMessagef(err, "capability %d", i)
		}
	}

	index := n + 1
	writes := []struct{ slot, value cap9.Bytes32 }{
		{layout.AddressSlot(key), addr.Bytes32()},
		{layout.IndexSlot(key), cap9.Uint64ToBytes32(index)},
		{layout.ListSlot(index), key.Bytes32()},
		{layout.ListLengthSlot(), cap9.Uint64ToBytes32(index)},
		{layout.CapCountSlot(key), cap9.Uint64ToBytes32(uint64(len(list)))},
	}
	for _, w := range writes {
		if err := t.storage.Write(w.slot, w.value); err != nil {
			return err
		}
	}
	for i, words := range encoded {
		for w, word := range words {
			if err := t.storage.Write(layout.CapWordSlot(key, uint8(i), uint8(w)), word); err != nil {
				return err
			}
		}
	}
	logger.Info("procedure registered", "key", key, "address", addr, "index", index, "caps", len(list))
	return nil
}

// Delete removes key. The entry procedure cannot be deleted.
func (t *Table) Delete(key cap9.ProcedureKey) (err error) {
	defer func() { countOp("delete", err) }()

	index, ok, err := t.Index(key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithMessage(ErrInvalidID, key.String())
	}
	entry, err := t.Entry()
	if err != nil {
		return err
	}
	if entry == key {
		return errors.WithMessage(ErrEntryProc, key.String())
	}

	n, err := t.CapCount(key)
	if err != nil {
		return err
	}
	var zero cap9.Bytes32
	for i := range n {
		words, err := t.capWords(key, i)
		if err != nil {
			return err
		}
		for w := range words {
			if err := t.storage.Write(layout.CapWordSlot(key, uint8(i), uint8(w)), zero); err != nil {
				return err
			}
		}
	}
	for _, slot := range []cap9.Bytes32{
		layout.CapCountSlot(key),
		layout.AddressSlot(key),
		layout.IndexSlot(key),
		layout.ListSlot(index),
	} {
		if err := t.storage.Write(slot, zero); err != nil {
			return err
		}
	}
	logger.Info("procedure deleted", "key", key, "index", index)
	return nil
}

// Entry returns the entry procedure key.
func (t *Table) Entry() (cap9.ProcedureKey, error) {
	w, err := t.storage.Read(layout.EntrySlot())
	if err != nil {
		return cap9.ProcedureKey{}, err
	}
	return cap9.KeyFromBytes32(w), nil
}

// SetEntry makes key the entry procedure. key must be registered.
func (t *Table) SetEntry(key cap9.ProcedureKey) (err error) {
	defer func() { countOp("set-entry", err) }()

	ok, err := t.Contains(key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithMessage(ErrInvalidID, key.String())
	}
	if err := t.storage.Write(layout.EntrySlot(), key.Bytes32()); err != nil {
		return err
	}
	logger.Info("entry procedure set", "key", key)
	return nil
}

// Current returns the key of the executing procedure, zero when idle.
func (t *Table) Current() (cap9.ProcedureKey, error) {
	w, err := t.storage.Read(layout.CurrentSlot())
	if err != nil {
		return cap9.ProcedureKey{}, err
	}
	return cap9.KeyFromBytes32(w), nil
}

// SetCurrent records the executing procedure.
func (t *Table) SetCurrent(key cap9.ProcedureKey) error {
	return t.storage.Write(layout.CurrentSlot(), key.Bytes32())
}

// KernelAddress returns the recorded kernel address.
func (t *Table) KernelAddress() (cap9.Address, error) {
	w, err := t.storage.Read(layout.KernelAddressSlot())
	if err != nil {
		return cap9.Address{}, err
	}
	return cap9.BytesToAddress(w[:]), nil
}

// SetKernelAddress records the kernel address.
func (t *Table) SetKernelAddress(addr cap9.Address) error {
	return t.storage.Write(layout.KernelAddressSlot(), addr.Bytes32())
}

// Procedures lists registered procedures in index order.
func (t *Table) Procedures() ([]*Procedure, error) {
	n, err := t.Len()
	if err != nil {
		return nil, err
	}
	var procs []*Procedure
	for i := uint64(1); i <= n; i++ {
		key, ok, err := t.KeyAt(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p, err := t.Procedure(key)
		if err != nil {
			return nil, err
		}
		if p != nil {
			procs = append(procs, p)
		}
	}
	return procs, nil
}

// Procedure returns the full record of key, or nil if key is not registered.
func (t *Table) Procedure(key cap9.ProcedureKey) (*Procedure, error) {
	index, ok, err := t.Index(key)
	if err != nil || !ok {
		return nil, err
	}
	addr, _, err := t.Address(key)
	if err != nil {
		return nil, err
	}
	list, err := t.Caps(key)
	if err != nil {
		return nil, err
	}
	return &Procedure{Key: key, Address: addr, Index: index, Caps: list}, nil
}

func countOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metricTableOps().AddWithLabel(1, map[string]string{"op": op, "result": result})
}
