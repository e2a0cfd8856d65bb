// Package cli implements the clodoo command line.
package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clodoo/internal/config"
	"github.com/JonMunkholm/clodoo/internal/logging"
)

// ErrRunFailed is returned when at least one import ended FAILED. The
// failure itself has already been reported.
var ErrRunFailed = errors.New("import failed")

// RootOptions holds global flags for all commands. Flags left unset keep
// the value from the environment.
type RootOptions struct {
	Format  string // "json" | "text"
	EnvFile string

	Protocol    string
	DataPath    string
	Catalog     string
	DBType      string
	Version     string
	Company     string
	DryRun      bool
	ExitOnError bool
	NoValidate  bool
	LogLevel    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the clodoo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "clodoo",
		Short: "Load CSV records into an Odoo database",
		Long: `clodoo reads CSV files and creates or updates the matching records,
resolving aliases and ${...} macros against the target database. Running the
same file twice changes nothing.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	f.StringVar(&opts.EnvFile, "env-file", ".env", "environment file loaded before reading settings")
	f.StringVar(&opts.Protocol, "protocol", "", "store protocol (jsonrpc|postgres|memory)")
	f.StringVar(&opts.DataPath, "data-path", "", "directory relative file names are resolved against")
	f.StringVar(&opts.Catalog, "catalog", "", "YAML catalogue of renames, defaults and formulas")
	f.StringVar(&opts.DBType, "db-type", "", "database type matched against the db_type column")
	f.StringVarP(&opts.Version, "oe-version", "b", "", "schema version of the target, e.g. 12.0")
	f.StringVarP(&opts.Company, "company", "c", "", "name of the ambient company")
	f.BoolVarP(&opts.DryRun, "dry-run", "n", false, "resolve everything but write nothing")
	f.BoolVar(&opts.ExitOnError, "exit-on-error", false, "stop at the first failed row")
	f.BoolVar(&opts.NoValidate, "no-validate", false, "accept columns missing from the schema")
	f.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewImportConfigCommand(opts))
	cmd.AddCommand(NewEncryptCommand(opts))
	cmd.AddCommand(NewEntitiesCommand(opts))

	return cmd
}

// loadConfig reads the env file and the environment, then applies the
// flags the user set. Logs go to stderr so text output stays clean.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", opts.EnvFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("protocol", func() { cfg.Store.Protocol = opts.Protocol })
	set("data-path", func() { cfg.Import.DataPath = opts.DataPath })
	set("catalog", func() { cfg.Import.CatalogPath = opts.Catalog })
	set("db-type", func() { cfg.Import.DBType = opts.DBType })
	set("oe-version", func() { cfg.Import.SchemaVersion = opts.Version })
	set("company", func() { cfg.Import.CompanyName = opts.Company })
	set("dry-run", func() { cfg.Import.DryRun = opts.DryRun })
	set("exit-on-error", func() { cfg.Import.ExitOnError = opts.ExitOnError })
	set("no-validate", func() { cfg.Import.NoFieldValidation = opts.NoValidate })
	set("log-level", func() { cfg.Logging.Level = opts.LogLevel })

	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
