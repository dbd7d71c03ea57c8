package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"heartline/internal/crypto"
	"heartline/internal/domain"
)

func codeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Issue or redeem pairing codes",
	}
	cmd.AddCommand(codeIssueCmd(), codeRedeemCmd())
	return cmd
}

// code issue: publish a fresh code; the previous one stops working.
func codeIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue",
		Short: "Publish a pairing code for your partner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := unlock(); err != nil {
				return err
			}
			code, err := wire.Sessions.Offer(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Pairing code: %s\nExpires: %s\n", code.Value, code.ExpiresAt.Local().Format(time.Kitchen))
			fmt.Println("Once your partner redeems it, run: heartline pair complete")
			return nil
		},
	}
}

// code redeem <code>: link with the owner of <code>.
func codeRedeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem your partner's pairing code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := unlock()
			if err != nil {
				return err
			}
			p, err := wire.Sessions.Accept(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLinked(id, p)
			return nil
		},
	}
}

func pairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Manage pairing",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Finish pairing after your partner redeemed your code",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := unlock()
			if err != nil {
				return err
			}
			done, err := wire.Sessions.Complete(cmd.Context())
			if errors.Is(err, domain.ErrAwaitingPeer) {
				fmt.Println("Your partner has not redeemed the code yet.")
				return nil
			}
			for _, p := range done {
				printLinked(id, p)
			}
			return err
		},
	})
	return cmd
}

func unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink [peer]",
		Short: "Revoke a partnership (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := unlock()
			if err != nil {
				return err
			}
			var peer domain.Identity
			if len(args) == 1 {
				peer = domain.Identity(args[0])
			} else {
				p, err := wire.Sessions.Active(cmd.Context())
				if err != nil {
					return err
				}
				peer = p.Peer(id.ID)
			}
			p, err := wire.Sessions.Unlink(cmd.Context(), peer)
			if err != nil {
				return err
			}
			fmt.Printf("Unlinked from %s. This cannot be undone.\n", p.Peer(id.ID))
			return nil
		},
	}
}

func printLinked(id domain.LocalIdentity, p domain.Partnership) {
	fmt.Printf("Linked with %s\nSession: %s\nSafety number: %s\n",
		p.Peer(id.ID), p.SessionID, crypto.SafetyNumber(p.SessionID, id.XPub, p.PeerPublicKey))
	fmt.Println("Compare the safety number with your partner.")
}
