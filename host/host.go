// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package host provides the execution environment the kernel runs in:
// word addressed storage, procedure invocation, event logs and value
// transfer, all with checkpoint/revert.
package host

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
)

var (
	// ErrNoCode is returned when invoking an address without a program.
	ErrNoCode = errors.New("no code at address")
	// ErrInsufficientBalance is returned when a value transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoKernel is returned by the syscall interface of code running outside the kernel context.
	ErrNoKernel = errors.New("not running in kernel context")
)

// Storage is the word addressed storage of the kernel.
type Storage interface {
	Read(key cap9.Bytes32) (cap9.Bytes32, error)
	Write(key, value cap9.Bytes32) error
}

// Env is what running procedure code sees. Reads are unrestricted while
// every effect goes through Syscall.
type Env interface {
	Read(key cap9.Bytes32) (cap9.Bytes32, error)
	Syscall(input []byte) ([]byte, error)
}

// Program is procedure code. A failing program reverts its own effects.
type Program func(env Env, input []byte) ([]byte, error)

// Host is the set of primitives the kernel is built upon.
type Host interface {
	Storage

	// Address returns the address the kernel is deployed at.
	Address() cap9.Address
	// HasCode reports whether a program is deployed at addr.
	HasCode(addr cap9.Address) (bool, error)
	// Invoke runs the program at addr in the kernel's storage context.
	Invoke(addr cap9.Address, env Env, input []byte) ([]byte, error)
	// Log emits an event from the kernel.
	Log(topics []cap9.Bytes32, data []byte) error
	// AccountCall transfers value from the kernel to addr and runs its program, if any,
	// outside the kernel context.
	AccountCall(addr cap9.Address, value *uint256.Int, payload []byte) ([]byte, error)

	Checkpoint() int
	RevertTo(checkpoint int)
}

// Log is an event emitted by the kernel.
type Log struct {
	Topics []cap9.Bytes32
	Data   []byte
}
