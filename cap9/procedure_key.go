// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cap9

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ProcedureKeyLength length of procedure key in bytes.
const ProcedureKeyLength = 24

// ProcedureKey identifies a procedure. Keys are ASCII-like names,
// left-aligned and zero padded.
type ProcedureKey [ProcedureKeyLength]byte

var (
	_ json.Marshaler   = (*ProcedureKey)(nil)
	_ json.Unmarshaler = (*ProcedureKey)(nil)
)

// NewProcedureKey left-aligns name into a key.
// It fails if name is longer than ProcedureKeyLength.
func NewProcedureKey(name string) (ProcedureKey, error) {
	var k ProcedureKey
	if len(name) > ProcedureKeyLength {
		return k, fmt.Errorf("procedure key too long: %d bytes", len(name))
	}
	copy(k[:], name)
	return k, nil
}

// MustProcedureKey is NewProcedureKey that panics on error.
func MustProcedureKey(name string) ProcedureKey {
	k, err := NewProcedureKey(name)
	if err != nil {
		panic(err)
	}
	return k
}

// KeyFromBytes32 extracts a key stored at bytes [8,32) of a word.
func KeyFromBytes32(w Bytes32) ProcedureKey {
	var k ProcedureKey
	copy(k[:], w[32-ProcedureKeyLength:])
	return k
}

// Bytes32 returns the key stored at bytes [8,32) of a word.
func (k ProcedureKey) Bytes32() Bytes32 {
	var w Bytes32
	copy(w[32-ProcedureKeyLength:], k[:])
	return w
}

// Bytes returns byte slice form of the key.
func (k ProcedureKey) Bytes() []byte {
	return k[:]
}

// IsZero returns whether all bytes are zero.
func (k ProcedureKey) IsZero() bool {
	return k == ProcedureKey{}
}

// Name returns the key with trailing zero padding removed.
func (k ProcedureKey) Name() string {
	return string(bytes.TrimRight(k[:], "\x00"))
}

// String returns the name if the key is printable, otherwise its hex form.
func (k ProcedureKey) String() string {
	name := k.Name()
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return "0x" + hex.EncodeToString(k[:])
		}
	}
	return name
}

// MarshalJSON implements json.Marshaler.
func (k *ProcedureKey) MarshalJSON() ([]byte, error) {
	if k == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *ProcedureKey) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseProcedureKey(str)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseProcedureKey accepts either a plain name or the 0x-prefixed hex form of all 24 bytes.
func ParseProcedureKey(s string) (ProcedureKey, error) {
	if len(s) == 2+ProcedureKeyLength*2 && (s[:2] == "0x" || s[:2] == "0X") {
		var k ProcedureKey
		if _, err := hex.Decode(k[:], []byte(s[2:])); err != nil {
			return ProcedureKey{}, err
		}
		return k, nil
	}
	return NewProcedureKey(s)
}
