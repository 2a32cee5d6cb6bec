// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kernel

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/proctable"
	"github.com/vechain/cap9/syscall"
)

var (
	ErrDeployed     = errors.New("kernel already deployed")
	ErrNoEntry      = errors.New("no entry procedure")
	ErrBusy         = errors.New("kernel is executing")
	ErrCallDepth    = errors.New("max call depth exceeded")
	ErrStaleContext = errors.New("syscall from inactive procedure context")
)

// AuthError is returned when the capability at CapIndex does not allow the action.
type AuthError struct {
	Action   caps.Type
	CapIndex uint8
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v denied by capability #%d: %s", e.Action, e.CapIndex, e.Reason)
}

// CallError is returned when a called procedure or account fails.
type CallError struct {
	Target string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s: %v", e.Target, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Code is the one byte result of a syscall.
type Code byte

const (
	CodeOK Code = iota
	CodeDecode
	CodeAuth
	CodeEscalation
	CodeUsedID
	CodeListFull
	CodeInvalidID
	CodeEntryProc
	CodeCallFailed
	CodeHost
)

var codeNames = [...]string{
	CodeOK:         "ok",
	CodeDecode:     "decode",
	CodeAuth:       "auth",
	CodeEscalation: "escalation",
	CodeUsedID:     "used-id",
	CodeListFull:   "list-full",
	CodeInvalidID:  "invalid-id",
	CodeEntryProc:  "entry-proc",
	CodeCallFailed: "call-failed",
	CodeHost:       "host",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", byte(c))
}

// ResultCode classifies err. A failed call is reported as such whatever
// made the callee fail.
func ResultCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var (
		callErr *CallError
		authErr *AuthError
		escErr  *caps.EscalationError
	)
	switch {
	case errors.As(err, &callErr):
		return CodeCallFailed
	case syscall.IsDecodeError(err), errors.Is(err, caps.ErrMalformed):
		return CodeDecode
	case errors.As(err, &authErr):
		return CodeAuth
	case errors.As(err, &escErr):
		return CodeEscalation
	case errors.Is(err, proctable.ErrUsedID):
		return CodeUsedID
	case errors.Is(err, proctable.ErrListFull):
		return CodeListFull
	case errors.Is(err, proctable.ErrInvalidID):
		return CodeInvalidID
	case errors.Is(err, proctable.ErrEntryProc):
		return CodeEntryProc
	}
	return CodeHost
}
