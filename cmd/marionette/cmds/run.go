package cmds

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/marionette/pkg/backend/factory"
	"github.com/go-go-golems/marionette/pkg/chatrunner"
	"github.com/go-go-golems/marionette/pkg/console"
	"github.com/go-go-golems/marionette/pkg/prompts"
	"github.com/go-go-golems/marionette/pkg/settings"
	"github.com/go-go-golems/marionette/pkg/tokens"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const recapWordWrap = 100

// Run is the root command: it resolves the settings and runs a session until the
// operator quits or the process is interrupted.
func Run(cmd *cobra.Command, args []string) error {
	v, err := settings.NewViper(cmd)
	if err != nil {
		return err
	}
	s, err := settings.FromViper(v)
	if err != nil {
		return err
	}

	p, err := prompts.Load(s.PromptsFile)
	if err != nil {
		return err
	}

	be, err := factory.New(s)
	if err != nil {
		return err
	}

	out := os.Stdout
	color := !s.NoColor && isatty.IsTerminal(out.Fd())
	renderer := lipgloss.NewRenderer(out)
	if !color {
		renderer.SetColorProfile(termenv.Ascii)
	}

	builder := chatrunner.NewChatBuilder().
		WithBackend(be).
		WithPrompts(p).
		WithConsole(console.NewTerminal(os.Stdin, os.Stderr)).
		WithMode(chatrunner.RunMode(s.Mode)).
		WithOutputWriter(out).
		WithStyles(chatrunner.NewStyles(renderer)).
		WithModels(s.Model, s.SupervisorModel).
		WithThink(s.Think)

	// token counts only show up in debug logs
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		counter, err := tokens.NewCounter(tokens.DefaultEncoding)
		if err != nil {
			log.Warn().Err(err).Msg("token counting disabled")
		} else {
			builder = builder.WithTokenCounter(counter)
		}
	}

	if s.RenderMarkdown {
		styleOpt := glamour.WithAutoStyle()
		if !color {
			styleOpt = glamour.WithStandardStyle("notty")
		}
		md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(recapWordWrap))
		if err != nil {
			return errors.Wrap(err, "creating markdown renderer")
		}
		builder = builder.WithMarkdownRenderer(md)
	}

	session, err := builder.Build()
	if err != nil {
		return err
	}

	log.Debug().
		Str("provider", s.Provider).
		Str("base_url", s.BaseURL).
		Str("mode", s.Mode).
		Str("run_id", session.RunID()).
		Msg("session built")

	return session.Run(cmd.Context())
}
