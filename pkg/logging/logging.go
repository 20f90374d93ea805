// Package logging configures the global zerolog logger from command line flags.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Settings struct {
	Level      string
	Format     string
	File       string
	WithCaller bool
}

// AddFlags registers the logging flags as persistent flags of cmd.
func AddFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	fs.String("log-format", "text", "Log format (text or json)")
	fs.String("log-file", "", "Write logs to a rotated file instead of stderr")
	fs.Bool("with-caller", false, "Log the caller file and line")
}

// ParseLevel converts a string level into zerolog.Level with a safe default.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "info":
		fallthrough
	default:
		return zerolog.InfoLevel
	}
}

// Writer returns the sink for s. Console output goes to stderr so it never mixes
// with the streamed model output on stdout.
func Writer(s Settings, stderr io.Writer) (io.Writer, error) {
	var w io.Writer = stderr
	if s.File != "" {
		w = &lumberjack.Logger{
			Filename:   s.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
	}

	switch strings.ToLower(s.Format) {
	case "", "text":
		return zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    s.File != "",
			TimeFormat: time.RFC3339,
		}, nil
	case "json":
		return w, nil
	default:
		return nil, errors.Errorf("unknown log format %q", s.Format)
	}
}

// Init replaces the global logger.
func Init(s Settings) error {
	w, err := Writer(s, os.Stderr)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(ParseLevel(s.Level))
	ctx := zerolog.New(w).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return nil
}

// InitFromCommand reads the flags registered by AddFlags.
func InitFromCommand(cmd *cobra.Command) error {
	fs := cmd.Flags()
	level, err := fs.GetString("log-level")
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	format, err := fs.GetString("log-format")
	if err != nil {
		return errors.Wrap(err, "log-format")
	}
	file, err := fs.GetString("log-file")
	if err != nil {
		return errors.Wrap(err, "log-file")
	}
	withCaller, err := fs.GetBool("with-caller")
	if err != nil {
		return errors.Wrap(err, "with-caller")
	}
	return Init(Settings{Level: level, Format: format, File: file, WithCaller: withCaller})
}
