package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clodoo/internal/crypt"
)

// NewEncryptCommand creates the encrypt command, which seals a value for
// use in a CSV cell.
func NewEncryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <text>",
		Short: "Encrypt a value with CLODOO_CRYPT_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			if cfg.Import.CryptKey == "" {
				return errors.New("CLODOO_CRYPT_KEY is not set")
			}
			c, err := crypt.New(cfg.Import.CryptKey)
			if err != nil {
				return err
			}
			sealed, err := c.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
