package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"heartline/internal/app"
	"heartline/internal/config"
	"heartline/internal/domain"
	"heartline/internal/logging"
)

var (
	home       string
	passphrase string
	relayURL   string
	configPath string
	wire       *app.Wire
)

// Execute runs the root command with ctx and the process arguments.
func Execute(ctx context.Context) error {
	return Run(ctx, os.Args[1:])
}

// Run runs the root command with args. The wire opened for the command is
// closed before Run returns, including when the command fails.
func Run(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	defer func() {
		if wire != nil {
			if err := wire.Close(); err != nil {
				fmt.Fprintln(os.Stderr, "close:", err)
			}
			wire = nil
		}
	}()

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "heartline",
		Short:         "Send encrypted touches to your partner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if home != "" {
				cfg.Home = home
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			wire, err = app.NewWire(cfg, logging.NewWriter(os.Stderr, cfg.LogLevel))
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.heartline)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting your identity keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (.toml, .yaml or .json)")

	root.AddCommand(
		initCmd(),
		whoamiCmd(),
		codeCmd(),
		pairCmd(),
		statusCmd(),
		sendCmd(),
		recvCmd(),
		historyCmd(),
		unlinkCmd(),
	)
	return root
}

// unlock decrypts the identity using the --passphrase flag.
func unlock() (domain.LocalIdentity, error) {
	return wire.Unlock(passphrase)
}
