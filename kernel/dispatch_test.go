// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kernel

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/layout"
	"github.com/vechain/cap9/syscall"
)

func TestWriteChecks(t *testing.T) {
	k, h := newKernel(t, Options{},
		caps.NewWrite(uint256.NewInt(0x10), uint256.NewInt(0x10)),
		caps.NewWrite(uint256.NewInt(0), new(uint256.Int).SetAllOne()),
		&caps.Delete{},
	)

	var codes []Code
	write := func(env host.Env, idx uint8, slot cap9.Bytes32) {
		codes = append(codes, ResultCode(syscall.WriteWord(env, idx, slot, cap9.Uint64ToBytes32(1))))
	}
	run(t, k, h, func(env host.Env) error {
		write(env, 0, cap9.Uint64ToBytes32(0x10))
		write(env, 0, cap9.Uint64ToBytes32(0x1f))
		write(env, 0, cap9.Uint64ToBytes32(0x20))
		write(env, 0, cap9.Uint64ToBytes32(0x0f))
		// the whole space still excludes kernel storage
		write(env, 1, layout.EntrySlot())
		write(env, 1, layout.IndexSlot(keyInit))
		write(env, 2, cap9.Uint64ToBytes32(0x10))
		write(env, 3, cap9.Uint64ToBytes32(0x10))
		return nil
	})

	assert.Equal(t, []Code{
		CodeOK, CodeOK, CodeAuth, CodeAuth,
		CodeAuth, CodeAuth,
		CodeAuth, CodeAuth,
	}, codes)

	entry, _ := k.Table().Entry()
	assert.Equal(t, keyInit, entry)
	assert.Equal(t, cap9.Uint64ToBytes32(1), readWord(t, h, cap9.Uint64ToBytes32(0x1f)))
	assert.True(t, readWord(t, h, cap9.Uint64ToBytes32(0x20)).IsZero())
}

func TestDecodeFailure(t *testing.T) {
	k, h := newKernel(t, Options{}, &caps.Register{})

	var codes []Code
	run(t, k, h, func(env host.Env) error {
		_, err := env.Syscall([]byte{0})
		codes = append(codes, ResultCode(err))
		_, err = env.Syscall([]byte{0, byte(caps.TypeDelete), 1})
		codes = append(codes, ResultCode(err))
		_, err = syscall.Send(env, &syscall.Request{Action: &syscall.Register{
			Key:      keyUser,
			Address:  addrUser,
			CapWords: []cap9.Bytes32{caps.Header(caps.TypeWrite, 2)},
		}})
		codes = append(codes, ResultCode(err))
		// decoding comes before the capability lookup
		_, err = syscall.Send(env, &syscall.Request{CapIndex: 9, Action: &syscall.Register{
			Key:      keyUser,
			Address:  addrUser,
			CapWords: []cap9.Bytes32{caps.Header(caps.TypeLog, 5)},
		}})
		codes = append(codes, ResultCode(err))
		return nil
	})
	assert.Equal(t, []Code{CodeDecode, CodeDecode, CodeDecode, CodeDecode}, codes)

	n, _ := k.Table().Len()
	assert.Equal(t, uint64(1), n)
}

func TestRegisterAndCall(t *testing.T) {
	k, h := newKernel(t, Options{},
		&caps.Register{},
		caps.NewCall(),
		caps.NewWrite(uint256.NewInt(0x100), uint256.NewInt(0x10)),
	)

	h.Deploy(addrUser, func(env host.Env, input []byte) ([]byte, error) {
		cur, err := env.Read(layout.CurrentSlot())
		if err != nil {
			return nil, err
		}
		if cap9.KeyFromBytes32(cur) != keyUser {
			return nil, errors.New("current is not user")
		}
		if err := syscall.WriteWord(env, 0, cap9.Uint64ToBytes32(0x100), cap9.Uint64ToBytes32(42)); err != nil {
			return nil, err
		}
		// outside its own range
		if err := syscall.WriteWord(env, 0, cap9.Uint64ToBytes32(0x101), cap9.Uint64ToBytes32(42)); err == nil {
			return nil, errors.New("write outside range allowed")
		}
		return append(input, 1), nil
	})

	var (
		out      []byte
		callErr  error
		afterCur cap9.ProcedureKey
	)
	run(t, k, h, func(env host.Env) error {
		err := syscall.RegisterProcedure(env, 0, keyUser, addrUser, caps.List{
			caps.NewWrite(uint256.NewInt(0x100), uint256.NewInt(1)),
		})
		if err != nil {
			return err
		}
		out, callErr = syscall.CallProcedure(env, 1, keyUser, []byte{9})
		w, err := env.Read(layout.CurrentSlot())
		afterCur = cap9.KeyFromBytes32(w)
		return err
	})

	require.NoError(t, callErr)
	assert.Equal(t, []byte{9, 1}, out)
	assert.Equal(t, keyInit, afterCur)
	assert.Equal(t, cap9.Uint64ToBytes32(42), readWord(t, h, cap9.Uint64ToBytes32(0x100)))

	p, err := k.Table().Procedure(keyUser)
	require.NoError(t, err)
	assert.Equal(t, addrUser, p.Address)
	assert.Equal(t, uint64(2), p.Index)
}

func TestCallChecks(t *testing.T) {
	k, h := newKernel(t, Options{}, caps.NewCall(keyUser), &caps.Register{})

	h.Deploy(addrUser, func(host.Env, []byte) ([]byte, error) { return nil, nil })

	var codes []Code
	run(t, k, h, func(env host.Env) error {
		call := func(idx uint8, key cap9.ProcedureKey) {
			_, err := syscall.CallProcedure(env, idx, key, nil)
			codes = append(codes, ResultCode(err))
		}
		call(0, keyUser) // not registered yet
		if err := syscall.RegisterProcedure(env, 1, keyUser, addrUser, nil); err != nil {
			return err
		}
		call(0, keyUser)
		call(0, keyInit)
		call(1, keyUser)
		return nil
	})
	assert.Equal(t, []Code{CodeInvalidID, CodeOK, CodeAuth, CodeAuth}, codes)
}

func TestCalleeFailureReverts(t *testing.T) {
	k, h := newKernel(t, Options{},
		caps.NewCall(),
		caps.NewWrite(uint256.NewInt(0), uint256.NewInt(0x10)),
	)
	require.NoError(t, k.Table().Insert(keyUser, addrUser, caps.List{
		caps.NewWrite(uint256.NewInt(0), uint256.NewInt(0x10)),
	}))

	h.Deploy(addrUser, func(env host.Env, _ []byte) ([]byte, error) {
		if err := syscall.WriteWord(env, 0, cap9.Uint64ToBytes32(2), cap9.Uint64ToBytes32(2)); err != nil {
			return nil, err
		}
		return nil, errors.New("boom")
	})

	var callErr error
	run(t, k, h, func(env host.Env) error {
		if err := syscall.WriteWord(env, 1, cap9.Uint64ToBytes32(1), cap9.Uint64ToBytes32(1)); err != nil {
			return err
		}
		_, callErr = syscall.CallProcedure(env, 0, keyUser, nil)
		return nil
	})

	assert.Equal(t, CodeCallFailed, ResultCode(callErr))
	var ce *CallError
	require.True(t, errors.As(callErr, &ce))
	assert.Equal(t, keyUser.String(), ce.Target)
	assert.EqualError(t, ce.Err, "boom")

	assert.Equal(t, cap9.Uint64ToBytes32(1), readWord(t, h, cap9.Uint64ToBytes32(1)))
	assert.True(t, readWord(t, h, cap9.Uint64ToBytes32(2)).IsZero())
}

func TestCallDepth(t *testing.T) {
	k, h := newKernel(t, Options{MaxCallDepth: 4}, caps.NewCall())

	var (
		depthErr error
		maxDepth int
	)
	h.Deploy(addrInit, func(env host.Env, _ []byte) ([]byte, error) {
		if d := k.Depth(); d > maxDepth {
			maxDepth = d
		}
		if _, err := syscall.CallProcedure(env, 0, keyInit, nil); err != nil && depthErr == nil {
			depthErr = err
		}
		return nil, nil
	})
	_, err := k.Execute(addrUser, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, maxDepth)
	assert.True(t, errors.Is(depthErr, ErrCallDepth))
	assert.Equal(t, CodeCallFailed, ResultCode(depthErr))
	assert.Zero(t, k.Depth())
}

func TestTableSyscalls(t *testing.T) {
	k, h := newKernel(t, Options{},
		&caps.Register{},
		&caps.Delete{},
		&caps.SetEntry{},
	)

	var codes []Code
	record := func(err error) { codes = append(codes, ResultCode(err)) }
	nobody := cap9.MustProcedureKey("nobody")

	run(t, k, h, func(env host.Env) error {
		record(syscall.RegisterProcedure(env, 0, keyUser, addrUser, nil))
		record(syscall.RegisterProcedure(env, 0, keyUser, addrUser, nil))
		record(syscall.RegisterProcedure(env, 0, cap9.ProcedureKey{}, addrUser, nil))
		record(syscall.DeleteProcedure(env, 1, keyInit))
		record(syscall.DeleteProcedure(env, 1, nobody))
		record(syscall.SetEntryProcedure(env, 2, nobody))
		record(syscall.SetEntryProcedure(env, 2, keyUser))
		// init is no longer the entry and may delete itself
		record(syscall.DeleteProcedure(env, 1, keyInit))
		// after which it holds nothing
		record(syscall.DeleteProcedure(env, 1, keyUser))
		return nil
	})

	assert.Equal(t, []Code{
		CodeOK, CodeUsedID, CodeInvalidID,
		CodeEntryProc, CodeInvalidID,
		CodeInvalidID, CodeOK,
		CodeOK, CodeAuth,
	}, codes)

	entry, _ := k.Table().Entry()
	assert.Equal(t, keyUser, entry)
	ok, _ := k.Table().Contains(keyInit)
	assert.False(t, ok)
	n, _ := k.Table().Len()
	assert.Equal(t, uint64(2), n)
}

func TestRegisterListFull(t *testing.T) {
	k, h := newKernel(t, Options{MaxProcedures: 2}, &caps.Register{})

	var codes []Code
	run(t, k, h, func(env host.Env) error {
		codes = append(codes, ResultCode(syscall.RegisterProcedure(env, 0, keyUser, addrUser, nil)))
		codes = append(codes, ResultCode(syscall.RegisterProcedure(env, 0, cap9.MustProcedureKey("b"), addrUser, nil)))
		return nil
	})
	assert.Equal(t, []Code{CodeOK, CodeListFull}, codes)
}

func TestLog(t *testing.T) {
	topic := cap9.Uint64ToBytes32(1)
	k, h := newKernel(t, Options{}, caps.NewLog(topic))

	var codes []Code
	run(t, k, h, func(env host.Env) error {
		codes = append(codes, ResultCode(syscall.EmitLog(env, 0, []cap9.Bytes32{topic, cap9.Uint64ToBytes32(2)}, []byte("data"))))
		codes = append(codes, ResultCode(syscall.EmitLog(env, 0, []cap9.Bytes32{cap9.Uint64ToBytes32(2)}, nil)))
		codes = append(codes, ResultCode(syscall.EmitLog(env, 0, nil, nil)))
		return nil
	})
	assert.Equal(t, []Code{CodeOK, CodeAuth, CodeAuth}, codes)

	logs, err := h.Logs()
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []cap9.Bytes32{topic, cap9.Uint64ToBytes32(2)}, logs[0].Topics)
	assert.Equal(t, []byte("data"), logs[0].Data)
}

func TestAccountCall(t *testing.T) {
	k, h := newKernel(t, Options{},
		caps.NewAccountCall(addrUser, uint256.NewInt(100)),
		caps.NewAnyAccountCall(uint256.NewInt(1_000_000)),
	)
	h.SetBalance(kernelAddr, uint256.NewInt(1000))
	other := cap9.MustParseAddress("0xdb6fd484cfa46eeeb73c71edee823e4812f9e2e1")

	var codes []Code
	run(t, k, h, func(env host.Env) error {
		call := func(idx uint8, addr cap9.Address, v uint64) {
			_, err := syscall.CallAccount(env, idx, addr, uint256.NewInt(v), nil)
			codes = append(codes, ResultCode(err))
		}
		call(0, addrUser, 50)
		call(0, addrUser, 150)
		call(0, other, 1)
		call(1, other, 200)
		call(1, other, 5000)
		return nil
	})
	assert.Equal(t, []Code{CodeOK, CodeAuth, CodeAuth, CodeOK, CodeCallFailed}, codes)

	bal, err := h.Balance(addrUser)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), bal.Uint64())
	bal, _ = h.Balance(other)
	assert.Equal(t, uint64(200), bal.Uint64())
	bal, _ = h.Balance(kernelAddr)
	assert.Equal(t, uint64(750), bal.Uint64())
}

func TestStaleContext(t *testing.T) {
	k, h := newKernel(t, Options{},
		caps.NewCall(),
		caps.NewWrite(uint256.NewInt(0), uint256.NewInt(0x10)),
	)
	require.NoError(t, k.Table().Insert(keyUser, addrUser, nil))

	var (
		saved    host.Env
		innerErr error
	)
	h.Deploy(addrUser, func(host.Env, []byte) ([]byte, error) {
		// the caller's context is suspended while the callee runs
		innerErr = syscall.WriteWord(saved, 1, cap9.Uint64ToBytes32(1), cap9.Uint64ToBytes32(1))
		return nil, nil
	})
	run(t, k, h, func(env host.Env) error {
		saved = env
		_, err := syscall.CallProcedure(env, 0, keyUser, nil)
		return err
	})

	assert.Equal(t, ErrStaleContext, innerErr)
	_, err := saved.Syscall(nil)
	assert.Equal(t, ErrStaleContext, err)
	assert.True(t, readWord(t, h, cap9.Uint64ToBytes32(1)).IsZero())
}
