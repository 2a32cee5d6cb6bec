// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import "sync"

// Bucket namespaces a store: every key is prefixed with the bucket name.
type Bucket string

var keyPool = sync.Pool{
	New: func() any { return new([]byte) },
}

// withKey calls fn with the bucket key of key. The slice is reused after fn returns.
func (b Bucket) withKey(key []byte, fn func(k []byte) error) error {
	buf := keyPool.Get().(*[]byte)
	defer keyPool.Put(buf)

	*buf = append(append((*buf)[:0], b...), key...)
	return fn(*buf)
}

// NewGetter reads src through the bucket.
func (b Bucket) NewGetter(src Getter) Getter {
	return &struct {
		GetFunc
		IsNotFoundFunc
	}{
		func(key []byte) (val []byte, err error) {
			err = b.withKey(key, func(k []byte) error {
				val, err = src.Get(k)
				return err
			})
			return
		},
		src.IsNotFound,
	}
}

// NewPutter writes src through the bucket.
func (b Bucket) NewPutter(src Putter) Putter {
	return &struct {
		PutFunc
		DeleteFunc
	}{
		func(key, val []byte) error {
			return b.withKey(key, func(k []byte) error { return src.Put(k, val) })
		},
		func(key []byte) error {
			return b.withKey(key, src.Delete)
		},
	}
}
