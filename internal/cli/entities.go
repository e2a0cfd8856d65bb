package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clodoo/internal/core"
	_ "github.com/JonMunkholm/clodoo/internal/core/tables" // Register entity providers
)

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the models with their own default rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(cmd, rootOpts.Format)
			if rootOpts.Format == "json" {
				return out.json(core.Providers())
			}
			for _, name := range core.Providers() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
