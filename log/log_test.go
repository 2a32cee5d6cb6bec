// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRoot(t *testing.T, h slog.Handler) {
	old := Root()
	SetDefault(NewLogger(h))
	t.Cleanup(func() { SetDefault(old) })
}

func TestTerminalHandler(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewTerminalHandler(out, NewLevelVar(LevelTrace), false))
	l.Info("procedure inserted", "key", "init", "index", 1)

	line := out.String()
	assert.True(t, strings.HasPrefix(line, "INFO ["))
	assert.Contains(t, line, "procedure inserted")
	assert.Contains(t, line, "key=init")
	assert.Contains(t, line, "index=1")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestTerminalHandlerLevel(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewTerminalHandler(out, NewLevelVar(LevelWarn), false))

	l.Info("hidden")
	assert.Empty(t, out.String())
	l.Warn("shown")
	assert.Contains(t, out.String(), "shown")
}

func TestJSONHandler(t *testing.T) {
	out := new(bytes.Buffer)
	l := NewLogger(NewHandler(out, FormatJSON, NewLevelVar(LevelTrace), false))
	l.Debug("syscall", "amount", uint256.NewInt(1000))

	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, "debug", m["lvl"])
	assert.Equal(t, "syscall", m["msg"])
	assert.Equal(t, "1000", m["amount"])
}

func TestLogfmtHandler(t *testing.T) {
	out := new(bytes.Buffer)
	level := NewLevelVar(LevelInfo)
	l := NewLogger(NewHandler(out, FormatLogfmt, level, false))

	l.Debug("hidden")
	assert.Empty(t, out.String())

	l.Info("registered", "amount", uint256.NewInt(7), "nil", (*uint256.Int)(nil))
	line := out.String()
	assert.Contains(t, line, "lvl=info")
	assert.Contains(t, line, "msg=registered")
	assert.Contains(t, line, "amount=7")
	assert.Contains(t, line, "nil=<nil>")

	// the level can be changed at runtime
	out.Reset()
	level.Set(LevelDebug)
	l.Debug("shown")
	assert.Contains(t, out.String(), "lvl=debug")
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"terminal", "json", "logfmt"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	out := new(bytes.Buffer)
	h := NewHandler(out, FormatTerminal, NewLevelVar(LevelInfo), false)
	assert.IsType(t, &TerminalHandler{}, h)
}

func TestWithContextFollowsRoot(t *testing.T) {
	// bound before the root is replaced, like package level loggers
	pkgLogger := WithContext("pkg", "kernel")

	out := new(bytes.Buffer)
	withRoot(t, NewHandler(out, FormatJSON, NewLevelVar(LevelTrace), false))

	pkgLogger.With("frame", 2).Info("call")

	var m map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(t, "kernel", m["pkg"])
	assert.Equal(t, float64(2), m["frame"])
}

func TestDiscardHandler(t *testing.T) {
	l := NewLogger(DiscardHandler())
	assert.False(t, l.Enabled(t.Context(), LevelCrit))
	l.Error("nothing")
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelCrit, FromLegacyLevel(0))
	assert.Equal(t, LevelInfo, FromLegacyLevel(3))
	assert.Equal(t, LevelTrace, FromLegacyLevel(5))
	assert.Equal(t, LevelTrace, FromLegacyLevel(9))
	assert.Equal(t, LevelCrit, FromLegacyLevel(-1))
	assert.Equal(t, "warn", LevelString(LevelWarn))
}

func TestAppendUint64(t *testing.T) {
	assert.Equal(t, "99999", string(appendUint64(nil, 99999, false)))
	assert.Equal(t, "1,000,000", string(appendUint64(nil, 1000000, false)))
	assert.Equal(t, "-123,456", string(appendInt64(nil, -123456)))
}
