// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package caps

import (
	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/layout"
)

// ErrMalformed is returned when capability words cannot be decoded.
var ErrMalformed = errors.New("malformed capability")

// Header returns the header word of a capability of type t with n data words.
func Header(t Type, n int) cap9.Bytes32 {
	var h cap9.Bytes32
	h[30] = byte(t)
	h[31] = byte(n)
	return h
}

// ParseHeader splits a header word into type and data word count.
func ParseHeader(h cap9.Bytes32) (Type, int, error) {
	for _, b := range h[:30] {
		if b != 0 {
			return 0, 0, errors.WithMessage(ErrMalformed, "dirty header")
		}
	}
	t := Type(h[30])
	if !t.Valid() {
		return 0, 0, errors.WithMessagef(ErrMalformed, "unknown type %d", h[30])
	}
	return t, int(h[31]), nil
}

// Encode returns the header and data words of c.
func Encode(c Capability) []cap9.Bytes32 {
	data := c.dataWords()
	return append([]cap9.Bytes32{Header(c.Type(), len(data))}, data...)
}

// Decode decodes one capability of type t from its data words.
func Decode(t Type, data []cap9.Bytes32) (Capability, error) {
	switch t {
	case TypeWrite:
		if len(data) != 2 {
			return nil, errors.WithMessagef(ErrMalformed, "write with %d words", len(data))
		}
		return NewWrite(data[0].Uint256(), data[1].Uint256()), nil
	case TypeCall:
		if len(data) > MaxCallKeys {
			return nil, errors.WithMessagef(ErrMalformed, "call with %d keys", len(data))
		}
		var keys []cap9.ProcedureKey
		for _, w := range data {
			if !isZero(w[:32-cap9.ProcedureKeyLength]) {
				return nil, errors.WithMessage(ErrMalformed, "dirty call key")
			}
			keys = append(keys, cap9.KeyFromBytes32(w))
		}
		return NewCall(keys...), nil
	case TypeLog:
		if len(data) > MaxLogTopics {
			return nil, errors.WithMessagef(ErrMalformed, "log with %d topics", len(data))
		}
		var topics []cap9.Bytes32
		if len(data) > 0 {
			topics = append(topics, data...)
		}
		return NewLog(topics...), nil
	case TypeAccountCall:
		if len(data) != 2 {
			return nil, errors.WithMessagef(ErrMalformed, "account call with %d words", len(data))
		}
		w := data[0]
		if w[0]&^accountCallAnyFlag != 0 || !isZero(w[1:12]) {
			return nil, errors.WithMessage(ErrMalformed, "dirty account call")
		}
		return &AccountCall{
			Any:      w[0]&accountCallAnyFlag != 0,
			Address:  cap9.BytesToAddress(w[12:]),
			MaxValue: *data[1].Uint256(),
		}, nil
	case TypeRegister, TypeDelete, TypeSetEntry:
		if len(data) != 0 {
			return nil, errors.WithMessagef(ErrMalformed, "%v with %d words", t, len(data))
		}
		switch t {
		case TypeRegister:
			return &Register{}, nil
		case TypeDelete:
			return &Delete{}, nil
		default:
			return &SetEntry{}, nil
		}
	}
	return nil, errors.WithMessagef(ErrMalformed, "unknown type %d", byte(t))
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// List is an ordered capability list. Syscalls address entries by their
// position in the list.
type List []Capability

// At returns the capability at index i, or nil.
func (l List) At(i int) Capability {
	if i < 0 || i >= len(l) {
		return nil
	}
	return l[i]
}

// Words serializes the list as concatenated capabilities.
func (l List) Words() []cap9.Bytes32 {
	var words []cap9.Bytes32
	for _, c := range l {
		words = append(words, Encode(c)...)
	}
	return words
}

// DecodeList parses concatenated capabilities.
func DecodeList(words []cap9.Bytes32) (List, error) {
	var list List
	for len(words) > 0 {
		if len(list) == layout.MaxCaps {
			return nil, errors.WithMessage(ErrMalformed, "too many capabilities")
		}
		t, n, err := ParseHeader(words[0])
		if err != nil {
			return nil, err
		}
		if n > len(words)-1 {
			return nil, errors.WithMessage(ErrMalformed, "truncated capability")
		}
		c, err := Decode(t, words[1:1+n])
		if err != nil {
			return nil, err
		}
		list = append(list, c)
		words = words[1+n:]
	}
	return list, nil
}
