// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package syscall

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
)

const (
	keyLen     = cap9.ProcedureKeyLength
	addressLen = 20
	wordLen    = 32

	// MaxCapWords is the largest capability list a Register request can carry.
	MaxCapWords = 1<<16 - 1
)

// DecodeError reports a malformed request or capability list.
type DecodeError struct {
	msg   string
	cause error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("syscall decode: %s: %v", e.msg, e.cause)
	}
	return "syscall decode: " + e.msg
}

func (e *DecodeError) Unwrap() error { return e.cause }

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// NewDecodeError wraps err as a decode error.
func NewDecodeError(msg string, err error) error {
	return &DecodeError{msg: msg, cause: err}
}

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Encode serializes the request.
func (r *Request) Encode() []byte {
	b := []byte{r.CapIndex, byte(r.Action.Type())}
	return r.Action.encode(b)
}

func (w *Write) encode(b []byte) []byte {
	b = append(b, w.Key[:]...)
	return append(b, w.Value[:]...)
}

func (c *Call) encode(b []byte) []byte {
	b = append(b, c.Key[:]...)
	return append(b, c.Payload...)
}

// encode panics on more than 4 topics, which no valid request has.
func (l *Log) encode(b []byte) []byte {
	if len(l.Topics) > caps.MaxLogTopics {
		panic("syscall: too many log topics")
	}
	b = append(b, byte(len(l.Topics)))
	for _, t := range l.Topics {
		b = append(b, t[:]...)
	}
	return append(b, l.Payload...)
}

func (r *Register) encode(b []byte) []byte {
	if len(r.CapWords) > MaxCapWords {
		panic("syscall: capability list too long")
	}
	b = append(b, r.Key[:]...)
	b = append(b, r.Address[:]...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(r.CapWords)))
	for _, w := range r.CapWords {
		b = append(b, w[:]...)
	}
	return b
}

func (d *Delete) encode(b []byte) []byte {
	return append(b, d.Key[:]...)
}

func (s *SetEntry) encode(b []byte) []byte {
	return append(b, s.Key[:]...)
}

func (a *AccountCall) encode(b []byte) []byte {
	b = append(b, a.Address[:]...)
	v := a.Value.Bytes32()
	b = append(b, v[:]...)
	return append(b, a.Payload...)
}

// reader consumes a request body.
type reader struct {
	b   []byte
	err error
}

func (r *reader) next(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = decodeErrorf("short %s: want %d bytes, have %d", field, n, len(r.b))
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *reader) key() (k cap9.ProcedureKey) {
	copy(k[:], r.next(keyLen, "procedure key"))
	return
}

func (r *reader) address() (a cap9.Address) {
	copy(a[:], r.next(addressLen, "address"))
	return
}

func (r *reader) word(field string) (w cap9.Bytes32) {
	copy(w[:], r.next(wordLen, field))
	return
}

// rest returns the remaining bytes as a payload, nil if there are none.
func (r *reader) rest() []byte {
	if r.err != nil || len(r.b) == 0 {
		return nil
	}
	v := append([]byte(nil), r.b...)
	r.b = nil
	return v
}

// end fails if bytes remain after a fixed size action.
func (r *reader) end() error {
	if r.err == nil && len(r.b) > 0 {
		r.err = decodeErrorf("%d trailing bytes", len(r.b))
	}
	return r.err
}

// Decode parses an encoded request.
func Decode(data []byte) (*Request, error) {
	if len(data) < 2 {
		return nil, decodeErrorf("request of %d bytes", len(data))
	}
	req := &Request{CapIndex: data[0]}
	r := &reader{b: data[2:]}

	switch t := caps.Type(data[1]); t {
	case caps.TypeWrite:
		w := &Write{}
		w.Key = r.word("key")
		w.Value = r.word("value")
		req.Action = w
	case caps.TypeCall:
		c := &Call{}
		c.Key = r.key()
		c.Payload = r.rest()
		req.Action = c
	case caps.TypeLog:
		l := &Log{}
		n := r.next(1, "topic count")
		if r.err == nil {
			if int(n[0]) > caps.MaxLogTopics {
				return nil, decodeErrorf("%d log topics", n[0])
			}
			for i := 0; i < int(n[0]); i++ {
				l.Topics = append(l.Topics, r.word("topic"))
			}
		}
		l.Payload = r.rest()
		req.Action = l
	case caps.TypeRegister:
		reg := &Register{}
		reg.Key = r.key()
		reg.Address = r.address()
		if n := r.next(2, "capability word count"); r.err == nil {
			count := int(binary.BigEndian.Uint16(n))
			for i := 0; i < count && r.err == nil; i++ {
				reg.CapWords = append(reg.CapWords, r.word("capability word"))
			}
		}
		req.Action = reg
	case caps.TypeDelete:
		req.Action = &Delete{Key: r.key()}
	case caps.TypeSetEntry:
		req.Action = &SetEntry{Key: r.key()}
	case caps.TypeAccountCall:
		a := &AccountCall{}
		a.Address = r.address()
		v := r.word("value")
		a.Value.SetBytes32(v[:])
		a.Payload = r.rest()
		req.Action = a
	default:
		return nil, decodeErrorf("unknown action tag %d", byte(t))
	}
	if err := r.end(); err != nil {
		return nil, err
	}
	// a malformed capability list is a decoding failure, whatever the cap index
	if reg, ok := req.Action.(*Register); ok {
		if _, err := reg.DecodeCaps(); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// DecodeCaps parses the capability list of a Register request.
func (r *Register) DecodeCaps() (caps.List, error) {
	list, err := caps.DecodeList(r.CapWords)
	if err != nil {
		return nil, NewDecodeError("capability list", err)
	}
	return list, nil
}
