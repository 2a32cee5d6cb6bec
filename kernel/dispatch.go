// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kernel

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/layout"
	"github.com/vechain/cap9/proctable"
	"github.com/vechain/cap9/syscall"
)

// env is the execution context of one procedure frame.
type env struct {
	kernel *Kernel
	key    cap9.ProcedureKey
	done   bool
}

var _ host.Env = (*env)(nil)

func (e *env) Read(key cap9.Bytes32) (cap9.Bytes32, error) {
	return e.kernel.host.Read(key)
}

func (e *env) Syscall(input []byte) ([]byte, error) {
	return e.kernel.syscall(e, input)
}

func (k *Kernel) syscall(e *env, input []byte) (out []byte, err error) {
	if e.done || len(k.frames) == 0 || k.frames[len(k.frames)-1] != e {
		return nil, ErrStaleContext
	}

	start := time.Now()
	action := "invalid"
	defer func() {
		code := ResultCode(err)
		metricSyscalls().AddWithLabel(1, map[string]string{"action": action, "result": code.String()})
		metricSyscallDuration().ObserveWithLabels(time.Since(start).Microseconds(), map[string]string{"action": action})
		if err != nil {
			logger.Debug("syscall rejected", "proc", e.key, "action", action, "code", code, "err", err)
		}
	}()

	req, err := syscall.Decode(input)
	if err != nil {
		return nil, err
	}
	action = req.Action.Type().String()
	logger.Trace("syscall", "proc", e.key, "req", req)

	checkpoint := k.host.Checkpoint()
	out, err = k.dispatch(e, req)
	if err != nil {
		k.host.RevertTo(checkpoint)
		return nil, err
	}
	return out, nil
}

// capability resolves the capability at the request's index and checks its type.
func (k *Kernel) capability(e *env, req *syscall.Request) (caps.Capability, error) {
	c, err := k.table.Cap(e.key, int(req.CapIndex))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, k.deny(req, "no such capability")
	}
	if c.Type() != req.Action.Type() {
		return nil, k.deny(req, "capability is "+c.Type().String())
	}
	return c, nil
}

func (k *Kernel) deny(req *syscall.Request, reason string) error {
	return &AuthError{Action: req.Action.Type(), CapIndex: req.CapIndex, Reason: reason}
}

func (k *Kernel) dispatch(e *env, req *syscall.Request) ([]byte, error) {
	c, err := k.capability(e, req)
	if err != nil {
		return nil, err
	}

	switch a := req.Action.(type) {
	case *syscall.Write:
		if layout.IsKernelSlot(a.Key) {
			return nil, k.deny(req, "kernel storage")
		}
		if !c.(*caps.Write).AllowsWrite(a.Key) {
			return nil, k.deny(req, "slot out of range")
		}
		return nil, k.host.Write(a.Key, a.Value)

	case *syscall.Call:
		if !c.(*caps.Call).AllowsCall(a.Key) {
			return nil, k.deny(req, "procedure not allowed")
		}
		return k.call(a.Key, a.Payload)

	case *syscall.Log:
		if !c.(*caps.Log).AllowsLog(a.Topics) {
			return nil, k.deny(req, "topics not allowed")
		}
		return nil, k.host.Log(a.Topics, a.Payload)

	case *syscall.Register:
		return nil, k.register(e, a)

	case *syscall.Delete:
		return nil, k.table.Delete(a.Key)

	case *syscall.SetEntry:
		return nil, k.table.SetEntry(a.Key)

	case *syscall.AccountCall:
		if !c.(*caps.AccountCall).AllowsAccountCall(a.Address, &a.Value) {
			return nil, k.deny(req, "account or value not allowed")
		}
		out, err := k.host.AccountCall(a.Address, &a.Value, a.Payload)
		if err != nil {
			return nil, &CallError{Target: a.Address.String(), Err: err}
		}
		return out, nil
	}
	return nil, errors.Errorf("unhandled action %v", req.Action)
}

func (k *Kernel) call(key cap9.ProcedureKey, payload []byte) ([]byte, error) {
	addr, ok, err := k.table.Address(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithMessage(proctable.ErrInvalidID, key.String())
	}
	if len(k.frames) >= k.opts.MaxCallDepth {
		return nil, &CallError{Target: key.String(), Err: ErrCallDepth}
	}
	return k.invoke(key, addr, payload)
}

// register adds a procedure whose capabilities are all held by the requester.
func (k *Kernel) register(e *env, a *syscall.Register) error {
	requested, err := a.DecodeCaps()
	if err != nil {
		return err
	}
	held, err := k.table.Caps(e.key)
	if err != nil {
		return err
	}
	if err := caps.Subset(requested, held); err != nil {
		return err
	}
	return k.table.Insert(a.Key, a.Address, requested)
}
