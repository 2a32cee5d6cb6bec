// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRU(t *testing.T) {
	_, err := NewLRU[int, string](0)
	assert.Error(t, err)
}

func TestLRUGetOrLoad(t *testing.T) {
	c, err := NewLRU[int, string](2)
	require.NoError(t, err)

	loads := 0
	loader := func(k int) (string, error) {
		loads++
		if k < 0 {
			return "", errors.New("negative")
		}
		return string(rune('a' + k)), nil
	}

	v, err := c.GetOrLoad(1, loader)
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	v, err = c.GetOrLoad(1, loader)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, loads)

	_, err = c.GetOrLoad(-1, loader)
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len(), "failed loads are not cached")

	_, hit, miss := c.Stats().Stats()
	assert.Equal(t, int64(1), hit)
	assert.Equal(t, int64(2), miss)
}

func TestLRUEvict(t *testing.T) {
	c, err := NewLRU[int, int](2)
	require.NoError(t, err)

	c.Add(1, 1)
	c.Add(2, 2)
	c.Add(3, 3)

	_, ok := c.Get(1)
	assert.False(t, ok)
	v, ok := c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	c.Remove(3)
	_, ok = c.Get(3)
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
