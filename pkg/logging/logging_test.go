package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWriter_JSONGoesStraightThrough(t *testing.T) {
	var buf bytes.Buffer
	w, err := Writer(Settings{Format: "json"}, &buf)
	require.NoError(t, err)

	l := zerolog.New(w)
	l.Info().Str("k", "v").Msg("hello")
	require.JSONEq(t, `{"level":"info","k":"v","message":"hello"}`, buf.String())
}

func TestWriter_TextUsesConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := Writer(Settings{}, &buf)
	require.NoError(t, err)
	_, ok := w.(zerolog.ConsoleWriter)
	require.True(t, ok)
}

func TestWriter_FileRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marionette.log")
	w, err := Writer(Settings{Format: "json", File: path}, nil)
	require.NoError(t, err)
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	require.Equal(t, path, lj.Filename)
	require.NoError(t, lj.Close())
}

func TestWriter_UnknownFormat(t *testing.T) {
	_, err := Writer(Settings{Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestInitFromCommand(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	cmd := &cobra.Command{Use: "x"}
	AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug", "--log-format", "json"}))
	require.NoError(t, InitFromCommand(cmd))
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
