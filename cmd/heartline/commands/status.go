package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show partnerships and queued touches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := unlock(); err != nil {
				return err
			}
			st, err := wire.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("ID: %s\nFingerprint: %s\n", st.Identity.ID, st.Fingerprint)
			if len(st.Partnerships) == 0 {
				fmt.Println("Not paired.")
			}
			for _, p := range st.Partnerships {
				fmt.Printf("- %s [%s] since %s\n  safety number: %s\n",
					p.Partner, p.Status, p.LinkedAt.Local().Format(time.DateTime), p.SafetyNumber)
			}
			fmt.Printf("Queued touches: %d\n", st.Pending)
			return nil
		},
	}
}
