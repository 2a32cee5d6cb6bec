// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cap9

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcedureKey(t *testing.T) {
	k, err := NewProcedureKey("init")
	require.NoError(t, err)
	assert.Equal(t, []byte("init"), k[:4])
	assert.Equal(t, make([]byte, 20), k[4:])
	assert.Equal(t, "init", k.Name())
	assert.Equal(t, "init", k.String())
	assert.False(t, k.IsZero())

	max := strings.Repeat("x", ProcedureKeyLength)
	k, err = NewProcedureKey(max)
	require.NoError(t, err)
	assert.Equal(t, max, k.Name())

	_, err = NewProcedureKey(max + "y")
	assert.Error(t, err)

	assert.True(t, ProcedureKey{}.IsZero())
}

func TestProcedureKeyWord(t *testing.T) {
	k := MustProcedureKey("FOO")
	w := k.Bytes32()

	assert.Equal(t, make([]byte, 8), w[:8])
	assert.Equal(t, k[:], w[8:])
	assert.Equal(t, k, KeyFromBytes32(w))
}

func TestProcedureKeyString(t *testing.T) {
	var k ProcedureKey
	k[0] = 0x01
	assert.Equal(t, "0x"+"01"+strings.Repeat("00", 23), k.String())

	parsed, err := ParseProcedureKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestProcedureKeyJSON(t *testing.T) {
	k := MustProcedureKey("writer")

	data, err := json.Marshal(&k)
	require.NoError(t, err)
	assert.Equal(t, `"writer"`, string(data))

	var decoded ProcedureKey
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, k, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"`+strings.Repeat("z", 25)+`"`), &decoded))
}
