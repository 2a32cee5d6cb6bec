// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kv defines the key/value store the host persists kernel state in.
package kv

// Getter reads values.
type Getter interface {
	// Get fails for a missing key, test the error with IsNotFound.
	Get(key []byte) ([]byte, error)
	IsNotFound(err error) bool
}

// Putter writes values.
type Putter interface {
	Put(key, val []byte) error
	Delete(key []byte) error
}

// Batch collects writes that are applied together by Write.
type Batch interface {
	Putter

	Len() int
	Write() error
}

// Store is a readable and writable store with atomic batches.
type Store interface {
	Getter
	Putter

	NewBatch() Batch
}
