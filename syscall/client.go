// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package syscall

import (
	"github.com/holiman/uint256"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/host"
)

// Send encodes and issues req through env.
func Send(env host.Env, req *Request) ([]byte, error) {
	return env.Syscall(req.Encode())
}

func send(env host.Env, capIndex uint8, action Action) error {
	_, err := Send(env, &Request{CapIndex: capIndex, Action: action})
	return err
}

// WriteWord stores value at key using the write capability at capIndex.
func WriteWord(env host.Env, capIndex uint8, key, value cap9.Bytes32) error {
	return send(env, capIndex, &Write{Key: key, Value: value})
}

// CallProcedure invokes the procedure key and returns its output.
func CallProcedure(env host.Env, capIndex uint8, key cap9.ProcedureKey, payload []byte) ([]byte, error) {
	return Send(env, &Request{CapIndex: capIndex, Action: &Call{Key: key, Payload: payload}})
}

// EmitLog emits an event with the given topics.
func EmitLog(env host.Env, capIndex uint8, topics []cap9.Bytes32, payload []byte) error {
	return send(env, capIndex, &Log{Topics: topics, Payload: payload})
}

// RegisterProcedure registers key at addr with the capability list.
func RegisterProcedure(env host.Env, capIndex uint8, key cap9.ProcedureKey, addr cap9.Address, list caps.List) error {
	return send(env, capIndex, &Register{Key: key, Address: addr, CapWords: list.Words()})
}

// DeleteProcedure removes the procedure key.
func DeleteProcedure(env host.Env, capIndex uint8, key cap9.ProcedureKey) error {
	return send(env, capIndex, &Delete{Key: key})
}

// SetEntryProcedure makes key the entry procedure.
func SetEntryProcedure(env host.Env, capIndex uint8, key cap9.ProcedureKey) error {
	return send(env, capIndex, &SetEntry{Key: key})
}

// CallAccount sends value to addr and returns the output of its code.
func CallAccount(env host.Env, capIndex uint8, addr cap9.Address, value *uint256.Int, payload []byte) ([]byte, error) {
	a := &AccountCall{Address: addr, Payload: payload}
	if value != nil {
		a.Value = *value
	}
	return Send(env, &Request{CapIndex: capIndex, Action: a})
}

// Storage is a host.Storage for procedure code. Reads go straight to env,
// writes are Write syscalls under the capability at CapIndex.
type Storage struct {
	Env      host.Env
	CapIndex uint8
}

var _ host.Storage = (*Storage)(nil)

func (s *Storage) Read(key cap9.Bytes32) (cap9.Bytes32, error) {
	return s.Env.Read(key)
}

func (s *Storage) Write(key, value cap9.Bytes32) error {
	return WriteWord(s.Env, s.CapIndex, key, value)
}
