package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"heartline/internal/crypto"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			id, fp, err := wire.Identity.GenerateIdentity(passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nID: %s\nFingerprint: %s\n", id.ID, fp)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print identity id and fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := unlock()
			if err != nil {
				return err
			}
			fmt.Printf("ID: %s\nFingerprint: %s\n", id.ID, crypto.Fingerprint(id.XPub.Slice()))
			return nil
		},
	}
}
