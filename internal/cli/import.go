package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clodoo/internal/backend"
	"github.com/JonMunkholm/clodoo/internal/core"
)

type importFlags struct {
	model          string
	key            string
	name           string
	dbTypeSelector string
	aliasModel     string
	aliasField     string
	hideCompany    bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import <file.csv>...",
		Short: "Create or update records from CSV files",
		Long: `Import each file in turn. The target model defaults to the file name
without its extension, so res.partner.csv loads partners.

Files are looked up under the data path. When a sibling named after the
schema version exists it is read instead, so res.partner_12.0.csv wins
over res.partner.csv against a 12.0 store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := core.ImportOptions{
				Entity:           flags.model,
				KeyField:         flags.key,
				DescriptionField: flags.name,
				DBTypeSelector:   flags.dbTypeSelector,
				AliasEntity:      flags.aliasModel,
				AliasField:       flags.aliasField,
			}
			if cmd.Flags().Changed("hide-company") {
				opts.HideCompany = &flags.hideCompany
			}
			return runImports(cmd, rootOpts, args, func(ctx context.Context, im *core.Importer, name string) (*core.ImportResult, error) {
				return im.ImportFile(ctx, name, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.model, "model", "m", "", "target model (default: from the file name)")
	f.StringVarP(&flags.key, "key", "k", "", "comma-separated key fields")
	f.StringVar(&flags.name, "name", "", "comma-separated description fields")
	f.StringVar(&flags.dbTypeSelector, "db-type-selector", "", "column holding the db types a row applies to")
	f.StringVar(&flags.aliasModel, "alias-model", "", "model of the secondary alias")
	f.StringVar(&flags.aliasField, "alias-field", "", "column holding the secondary alias")
	f.BoolVar(&flags.hideCompany, "hide-company", false, "disable (true) or force (false) company scoping")

	return cmd
}

// NewImportConfigCommand creates the import-config command.
func NewImportConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-config <file.csv>...",
		Short: "Apply parameter files (user,name,value)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImports(cmd, rootOpts, args, func(ctx context.Context, im *core.Importer, name string) (*core.ImportResult, error) {
				return im.ImportConfigFile(ctx, name)
			})
		},
	}
}

type importFunc func(ctx context.Context, im *core.Importer, name string) (*core.ImportResult, error)

// runImports opens the backend once and runs fn for every file. A FAILED
// file stops the remaining ones.
func runImports(cmd *cobra.Command, rootOpts *RootOptions, files []string, fn importFunc) error {
	cfg, err := loadConfig(cmd, rootOpts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	out := newOutput(cmd, rootOpts.Format)
	for _, name := range files {
		res, err := fn(ctx, b.Importer, name)
		out.result(res, err)
		if err != nil {
			out.flush()
			return ErrRunFailed
		}
	}
	out.flush()
	return nil
}
