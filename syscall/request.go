// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package syscall defines the requests procedures send to the kernel and
// their binary encoding.
//
// A request is encoded as
//
//	cap_index (1) | tag (1) | fields
//
// where tag is the capability type the action needs.
package syscall

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
)

// Action is one of the privileged effects a procedure can request.
type Action interface {
	// Type is the capability type that authorizes the action.
	Type() caps.Type
	fmt.Stringer

	encode(b []byte) []byte
}

// Request is a capability index together with an action.
type Request struct {
	CapIndex uint8
	Action   Action
}

func (r *Request) String() string {
	return fmt.Sprintf("#%d %v", r.CapIndex, r.Action)
}

// Write stores Value at Key.
type Write struct {
	Key   cap9.Bytes32
	Value cap9.Bytes32
}

func (*Write) Type() Type { return caps.TypeWrite }

func (w *Write) String() string {
	return fmt.Sprintf("write(%v)", w.Key.AbbrevString())
}

// Call invokes a procedure.
type Call struct {
	Key     cap9.ProcedureKey
	Payload []byte
}

func (*Call) Type() Type { return caps.TypeCall }

func (c *Call) String() string {
	return fmt.Sprintf("call(%v, %d bytes)", c.Key, len(c.Payload))
}

// Log emits an event.
type Log struct {
	Topics  []cap9.Bytes32
	Payload []byte
}

func (*Log) Type() Type { return caps.TypeLog }

func (l *Log) String() string {
	return fmt.Sprintf("log(%d topics, %d bytes)", len(l.Topics), len(l.Payload))
}

// Register adds a procedure. CapWords is the serialized capability list
// the new procedure asks for; it is only parsed once the request is
// authorized.
type Register struct {
	Key      cap9.ProcedureKey
	Address  cap9.Address
	CapWords []cap9.Bytes32
}

func (*Register) Type() Type { return caps.TypeRegister }

func (r *Register) String() string {
	return fmt.Sprintf("register(%v, %v)", r.Key, r.Address)
}

// Delete removes a procedure.
type Delete struct {
	Key cap9.ProcedureKey
}

func (*Delete) Type() Type { return caps.TypeDelete }

func (d *Delete) String() string {
	return fmt.Sprintf("delete(%v)", d.Key)
}

// SetEntry changes the entry procedure.
type SetEntry struct {
	Key cap9.ProcedureKey
}

func (*SetEntry) Type() Type { return caps.TypeSetEntry }

func (s *SetEntry) String() string {
	return fmt.Sprintf("set-entry(%v)", s.Key)
}

// AccountCall sends Value to Address and runs its code, if any.
type AccountCall struct {
	Address cap9.Address
	Value   uint256.Int
	Payload []byte
}

func (*AccountCall) Type() Type { return caps.TypeAccountCall }

func (a *AccountCall) String() string {
	return fmt.Sprintf("account-call(%v, %v)", a.Address, a.Value.Dec())
}

// Type aliases caps.Type, the action tag on the wire.
type Type = caps.Type
