// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Format is the output format of a handler.
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatJSON     Format = "json"
	FormatLogfmt   Format = "logfmt"
)

// ParseFormat accepts terminal, json or logfmt.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTerminal, FormatJSON, FormatLogfmt:
		return f, nil
	}
	return "", errors.Errorf("unknown log format %q", s)
}

// NewLevelVar returns a level variable preset to lvl.
func NewLevelVar(lvl slog.Level) *slog.LevelVar {
	var v slog.LevelVar
	v.Set(lvl)
	return &v
}

// NewHandler returns a handler writing records at or above level to wr.
// Colors only apply to the terminal format.
func NewHandler(wr io.Writer, format Format, level *slog.LevelVar, useColor bool) slog.Handler {
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(wr, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr { return replaceAttr(a, false) },
		})
	case FormatLogfmt:
		return slog.NewTextHandler(wr, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr { return replaceAttr(a, true) },
		})
	default:
		return NewTerminalHandler(wr, level, useColor)
	}
}

type discardHandler struct{}

// DiscardHandler drops every record.
func DiscardHandler() slog.Handler { return discardHandler{} }

func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }

// TerminalHandler prints records for humans, one per line:
//
//	INFO [05-16|20:58:45.123] procedure registered     pkg=proctable key=init
type TerminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	lvl      *slog.LevelVar
	useColor bool
	attrs    []slog.Attr
	// widest value seen per key, for column alignment
	fieldPadding map[string]int

	buf []byte
}

func NewTerminalHandler(wr io.Writer, lvl *slog.LevelVar, useColor bool) *TerminalHandler {
	return &TerminalHandler{
		wr:           wr,
		lvl:          lvl,
		useColor:     useColor,
		fieldPadding: make(map[string]int),
	}
}

func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := h.format(h.buf, r, h.useColor)
	_, err := h.wr.Write(buf)
	h.buf = buf[:0]
	return err
}

func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl.Level()
}

// WithGroup is a no-op, groups are flattened.
func (h *TerminalHandler) WithGroup(string) slog.Handler { return h }

func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := NewTerminalHandler(h.wr, h.lvl, h.useColor)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return c
}

// replaceAttr shortens the builtin keys and renders numbers and stringers
// as plain strings.
func replaceAttr(attr slog.Attr, logfmt bool) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() != slog.KindTime {
			break
		}
		if logfmt {
			return slog.String("t", attr.Value.Time().Format(timeFormat))
		}
		return slog.Attr{Key: "t", Value: attr.Value}
	case slog.LevelKey:
		if l, ok := attr.Value.Any().(slog.Level); ok {
			return slog.String("lvl", LevelString(l))
		}
	}

	switch v := attr.Value.Any().(type) {
	case time.Time:
		if logfmt {
			attr.Value = slog.StringValue(v.Format(timeFormat))
		}
	case *big.Int:
		attr.Value = slog.StringValue("<nil>")
		if v != nil {
			attr.Value = slog.StringValue(v.String())
		}
	case *uint256.Int:
		attr.Value = slog.StringValue("<nil>")
		if v != nil {
			attr.Value = slog.StringValue(v.Dec())
		}
	case fmt.Stringer:
		attr.Value = slog.StringValue("<nil>")
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || !rv.IsNil() {
			attr.Value = slog.StringValue(v.String())
		}
	}
	return attr
}
