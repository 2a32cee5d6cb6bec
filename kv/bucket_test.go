// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mem map[string]string

func (m mem) Get(k []byte) ([]byte, error) {
	if v, ok := m[string(k)]; ok {
		return []byte(v), nil
	}
	return nil, errors.New("not found")
}

func (m mem) Put(k, v []byte) error {
	m[string(k)] = string(v)
	return nil
}

func (m mem) Delete(k []byte) error {
	delete(m, string(k))
	return nil
}

func (m mem) IsNotFound(err error) bool {
	return err != nil
}

func TestBucketGetter(t *testing.T) {
	m := mem{"k1": "v1", "k2": "v2"}

	tests := []struct {
		b    Bucket
		key  string
		want string
		has  bool
	}{
		{Bucket(""), "k1", "v1", true},
		{Bucket(""), "k2", "v2", true},
		{Bucket("k"), "k1", "", false},
		{Bucket("k"), "1", "v1", true},
		{Bucket("k"), "2", "v2", true},
		{Bucket("k1"), "", "v1", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.b)+"/"+tt.key, func(t *testing.T) {
			g := tt.b.NewGetter(m)
			got, err := g.Get([]byte(tt.key))
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, !tt.has, g.IsNotFound(err))
		})
	}
}

func TestBucketPutter(t *testing.T) {
	m := mem{}
	p := Bucket("s").NewPutter(m)

	assert.NoError(t, p.Put([]byte("a"), []byte("1")))
	assert.Equal(t, mem{"sa": "1"}, m)

	assert.NoError(t, p.Delete([]byte("a")))
	assert.Empty(t, m)
}
