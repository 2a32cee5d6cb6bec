// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package caps defines the capabilities a procedure may hold, how they are
// laid out in words, how they authorize actions, and the subset rule that
// keeps a procedure from granting authority it does not hold.
package caps

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/vechain/cap9/cap9"
)

// Type is the capability type tag. Tags are shared with syscall actions.
type Type byte

const (
	TypeCall        Type = 3
	TypeRegister    Type = 4
	TypeDelete      Type = 5
	TypeSetEntry    Type = 6
	TypeWrite       Type = 7
	TypeLog         Type = 8
	TypeAccountCall Type = 9
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t >= TypeCall && t <= TypeAccountCall
}

func (t Type) String() string {
	switch t {
	case TypeCall:
		return "call"
	case TypeRegister:
		return "register"
	case TypeDelete:
		return "delete"
	case TypeSetEntry:
		return "set-entry"
	case TypeWrite:
		return "write"
	case TypeLog:
		return "log"
	case TypeAccountCall:
		return "account-call"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

const (
	// MaxCallKeys is the number of keys a call capability may list.
	MaxCallKeys = 254
	// MaxLogTopics is the number of topics of a log.
	MaxLogTopics = 4
)

// Capability is one entry of a procedure's capability list.
type Capability interface {
	fmt.Stringer
	Type() Type
	// Covers reports whether holding this capability is enough to grant c.
	Covers(c Capability) bool

	dataWords() []cap9.Bytes32
}

// Write allows writing storage slots in [Start, Start+Size).
// A range whose end passes 2^256 extends to the top of the space.
type Write struct {
	Start uint256.Int
	Size  uint256.Int
}

// NewWrite creates a write capability.
func NewWrite(start, size *uint256.Int) *Write {
	return &Write{Start: *start, Size: *size}
}

func (w *Write) Type() Type { return TypeWrite }

func (w *Write) String() string {
	return fmt.Sprintf("write(%s+%s)", w.Start.Hex(), w.Size.Hex())
}

// end returns the exclusive end of the range, and true if it does not fit in 256 bits.
func (w *Write) end() (*uint256.Int, bool) {
	return new(uint256.Int).AddOverflow(&w.Start, &w.Size)
}

// AllowsWrite reports whether slot lies in the range.
func (w *Write) AllowsWrite(slot cap9.Bytes32) bool {
	if w.Size.IsZero() {
		return false
	}
	s := slot.Uint256()
	if s.Lt(&w.Start) {
		return false
	}
	end, overflow := w.end()
	return overflow || s.Lt(end)
}

func (w *Write) Covers(c Capability) bool {
	req, ok := c.(*Write)
	if !ok {
		return false
	}
	if req.Size.IsZero() {
		return true
	}
	if req.Start.Lt(&w.Start) || w.Size.IsZero() {
		return false
	}
	heldEnd, heldOverflow := w.end()
	reqEnd, reqOverflow := req.end()
	switch {
	case heldOverflow:
		return true
	case reqOverflow:
		return false
	default:
		return !heldEnd.Lt(reqEnd)
	}
}

func (w *Write) dataWords() []cap9.Bytes32 {
	return []cap9.Bytes32{cap9.Uint256ToBytes32(&w.Start), cap9.Uint256ToBytes32(&w.Size)}
}

// Call allows calling the listed procedures. An empty list allows any procedure.
type Call struct {
	Keys []cap9.ProcedureKey
}

// NewCall creates a call capability. Without keys it is a wildcard.
func NewCall(keys ...cap9.ProcedureKey) *Call {
	return &Call{Keys: keys}
}

func (c *Call) Type() Type { return TypeCall }

func (c *Call) String() string {
	if len(c.Keys) == 0 {
		return "call(*)"
	}
	names := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		names[i] = k.String()
	}
	return "call(" + strings.Join(names, ",") + ")"
}

// Wildcard reports whether any procedure may be called.
func (c *Call) Wildcard() bool {
	return len(c.Keys) == 0
}

// AllowsCall reports whether key may be called.
func (c *Call) AllowsCall(key cap9.ProcedureKey) bool {
	if c.Wildcard() {
		return true
	}
	for _, k := range c.Keys {
		if k == key {
			return true
		}
	}
	return false
}

func (c *Call) Covers(o Capability) bool {
	req, ok := o.(*Call)
	if !ok {
		return false
	}
	if c.Wildcard() {
		return true
	}
	if req.Wildcard() {
		return false
	}
	for _, k := range req.Keys {
		if !c.AllowsCall(k) {
			return false
		}
	}
	return true
}

func (c *Call) dataWords() []cap9.Bytes32 {
	words := make([]cap9.Bytes32, len(c.Keys))
	for i, k := range c.Keys {
		words[i] = k.Bytes32()
	}
	return words
}

// Log allows logs whose leading topics equal Topics. No topics allows any log.
type Log struct {
	Topics []cap9.Bytes32
}

// NewLog creates a log capability.
func NewLog(topics ...cap9.Bytes32) *Log {
	return &Log{Topics: topics}
}

func (l *Log) Type() Type { return TypeLog }

func (l *Log) String() string {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = t.AbbrevString()
	}
	return "log(" + strings.Join(topics, ",") + ")"
}

// AllowsLog reports whether a log with topics is allowed.
func (l *Log) AllowsLog(topics []cap9.Bytes32) bool {
	if len(l.Topics) > len(topics) {
		return false
	}
	for i, t := range l.Topics {
		if topics[i] != t {
			return false
		}
	}
	return true
}

func (l *Log) Covers(c Capability) bool {
	req, ok := c.(*Log)
	if !ok {
		return false
	}
	// every log req allows must be allowed here, so l.Topics must prefix req.Topics
	return l.AllowsLog(req.Topics)
}

func (l *Log) dataWords() []cap9.Bytes32 {
	return append([]cap9.Bytes32(nil), l.Topics...)
}

// AccountCall allows calling an account while sending at most MaxValue.
type AccountCall struct {
	Any      bool
	Address  cap9.Address
	MaxValue uint256.Int
}

// NewAccountCall creates an account call capability for one address.
func NewAccountCall(addr cap9.Address, maxValue *uint256.Int) *AccountCall {
	return &AccountCall{Address: addr, MaxValue: *maxValue}
}

// NewAnyAccountCall creates an account call capability for any address.
func NewAnyAccountCall(maxValue *uint256.Int) *AccountCall {
	return &AccountCall{Any: true, MaxValue: *maxValue}
}

func (a *AccountCall) Type() Type { return TypeAccountCall }

func (a *AccountCall) String() string {
	target := a.Address.String()
	if a.Any {
		target = "*"
	}
	return fmt.Sprintf("account-call(%s,%s)", target, a.MaxValue.Dec())
}

// AllowsAccountCall reports whether sending value to addr is allowed.
func (a *AccountCall) AllowsAccountCall(addr cap9.Address, value *uint256.Int) bool {
	if !a.Any && a.Address != addr {
		return false
	}
	return !value.Gt(&a.MaxValue)
}

func (a *AccountCall) Covers(c Capability) bool {
	req, ok := c.(*AccountCall)
	if !ok {
		return false
	}
	if !a.Any && (req.Any || req.Address != a.Address) {
		return false
	}
	return !req.MaxValue.Gt(&a.MaxValue)
}

const accountCallAnyFlag = 0x01

func (a *AccountCall) dataWords() []cap9.Bytes32 {
	w := a.Address.Bytes32()
	if a.Any {
		w[0] = accountCallAnyFlag
	}
	return []cap9.Bytes32{w, cap9.Uint256ToBytes32(&a.MaxValue)}
}

// Register allows registering procedures.
type Register struct{}

func (*Register) Type() Type                { return TypeRegister }
func (*Register) String() string            { return "register" }
func (*Register) dataWords() []cap9.Bytes32 { return nil }

func (*Register) Covers(c Capability) bool {
	_, ok := c.(*Register)
	return ok
}

// Delete allows deleting procedures.
type Delete struct{}

func (*Delete) Type() Type                { return TypeDelete }
func (*Delete) String() string            { return "delete" }
func (*Delete) dataWords() []cap9.Bytes32 { return nil }

func (*Delete) Covers(c Capability) bool {
	_, ok := c.(*Delete)
	return ok
}

// SetEntry allows changing the entry procedure.
type SetEntry struct{}

func (*SetEntry) Type() Type                { return TypeSetEntry }
func (*SetEntry) String() string            { return "set-entry" }
func (*SetEntry) dataWords() []cap9.Bytes32 { return nil }

func (*SetEntry) Covers(c Capability) bool {
	_, ok := c.(*SetEntry)
	return ok
}
