package cmds

import (
	"github.com/go-go-golems/marionette/pkg/prompts"
	"github.com/go-go-golems/marionette/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewPromptsCommand prints the effective prompt set, built-in defaults overlaid
// with --prompts, as YAML that can be edited and passed back in.
func NewPromptsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "Print the effective prompts as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := settings.NewViper(cmd)
			if err != nil {
				return err
			}
			p, err := prompts.Load(v.GetString("prompts"))
			if err != nil {
				return err
			}
			out, err := prompts.ToYAML(p)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return errors.Wrap(err, "writing prompts")
			}
			return nil
		},
	}
}
