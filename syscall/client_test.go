// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package syscall

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/cap9/bigmap"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
)

// recordingEnv decodes every syscall and applies writes to a map.
type recordingEnv struct {
	storage map[cap9.Bytes32]cap9.Bytes32
	reqs    []*Request
	out     []byte
}

func newRecordingEnv() *recordingEnv {
	return &recordingEnv{storage: make(map[cap9.Bytes32]cap9.Bytes32)}
}

func (e *recordingEnv) Read(key cap9.Bytes32) (cap9.Bytes32, error) {
	return e.storage[key], nil
}

func (e *recordingEnv) Syscall(input []byte) ([]byte, error) {
	req, err := Decode(input)
	if err != nil {
		return nil, err
	}
	e.reqs = append(e.reqs, req)
	if w, ok := req.Action.(*Write); ok {
		e.storage[w.Key] = w.Value
	}
	return e.out, nil
}

func TestClientHelpers(t *testing.T) {
	env := newRecordingEnv()
	env.out = []byte{42}

	require.NoError(t, WriteWord(env, 1, cap9.Uint64ToBytes32(3), cap9.Uint64ToBytes32(4)))
	out, err := CallProcedure(env, 2, keyUser, []byte{9})
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, out)
	require.NoError(t, EmitLog(env, 3, []cap9.Bytes32{cap9.Uint64ToBytes32(5)}, nil))
	require.NoError(t, RegisterProcedure(env, 4, keyUser, addrX, caps.List{&caps.Register{}}))
	require.NoError(t, DeleteProcedure(env, 5, keyUser))
	require.NoError(t, SetEntryProcedure(env, 6, keyUser))
	_, err = CallAccount(env, 7, addrX, uint256.NewInt(10), nil)
	require.NoError(t, err)
	_, err = CallAccount(env, 8, addrX, nil, nil)
	require.NoError(t, err)

	require.Len(t, env.reqs, 8)
	for i, req := range env.reqs {
		assert.Equal(t, uint8(i+1), req.CapIndex)
	}
	assert.Equal(t, caps.TypeRegister, env.reqs[3].Action.Type())
	assert.Equal(t, caps.List{&caps.Register{}}.Words(), env.reqs[3].Action.(*Register).CapWords)
	assert.Equal(t, uint64(10), env.reqs[6].Action.(*AccountCall).Value.Uint64())
	assert.True(t, env.reqs[7].Action.(*AccountCall).Value.IsZero())
}

func TestStorageBigMap(t *testing.T) {
	env := newRecordingEnv()
	storage := &Storage{Env: env, CapIndex: 3}

	m, err := bigmap.New[[]cap9.Bytes32](storage, 4, 2, bigmap.NamedLocation("balances"), bigmap.Words{})
	require.NoError(t, err)

	value := []cap9.Bytes32{cap9.Uint64ToBytes32(100), cap9.Uint64ToBytes32(200)}
	require.NoError(t, m.Insert(5, value))

	got, ok, err := m.Get(5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, value, got)

	require.NotEmpty(t, env.reqs)
	for _, req := range env.reqs {
		assert.Equal(t, uint8(3), req.CapIndex)
		assert.Equal(t, caps.TypeWrite, req.Action.Type())
	}
}
