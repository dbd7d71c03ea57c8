package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"heartline/internal/domain"
)

// recv: fetch, verify and play queued touches.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and play touches from your partner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := unlock(); err != nil {
				return err
			}
			if err := wire.Sync(cmd.Context()); err != nil {
				wire.Log.Warn("outbound touches still queued", "error", err)
			}
			got, err := wire.Touch.Receive(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(got) == 0 {
				fmt.Println("No new touches.")
			}
			for _, d := range got {
				fmt.Printf("[%s] %s: %s (%d pulses, %s)\n",
					d.SentAt.Local().Format(time.DateTime), d.From, describe(d.Payload),
					len(d.Instruction.Pulses), d.Instruction.Duration())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum touches to fetch")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent touches with your partner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := unlock(); err != nil {
				return err
			}
			recs, err := wire.Touch.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range recs {
				arrow := "->"
				if r.Direction == domain.DirectionIncoming {
					arrow = "<-"
				}
				fmt.Printf("%s %s %s %s\n", r.SentAt.Local().Format(time.DateTime), arrow, r.Kind, r.EnvelopeID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	return cmd
}

func describe(p domain.Payload) string {
	switch v := p.(type) {
	case domain.Gesture:
		return fmt.Sprintf("%s %.2f", v.Name, v.Intensity)
	case domain.Path:
		return fmt.Sprintf("drawing with %d points", len(v.Points))
	default:
		return string(p.Kind())
	}
}
