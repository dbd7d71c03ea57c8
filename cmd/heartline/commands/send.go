package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"heartline/internal/codec"
	"heartline/internal/domain"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a touch to your partner",
	}
	cmd.AddCommand(sendGestureCmd(), sendPathCmd())
	return cmd
}

// send gesture <name>: seal and queue a catalog gesture, then flush.
func sendGestureCmd() *cobra.Command {
	var intensity float64
	cmd := &cobra.Command{
		Use:       "gesture <name>",
		Short:     "Send a gesture",
		Args:      cobra.ExactArgs(1),
		ValidArgs: gestureNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := unlock(); err != nil {
				return err
			}
			syncBeforeSend(cmd)
			env, err := wire.Touch.SendGesture(cmd.Context(), domain.GestureName(args[0]), intensity)
			if err != nil {
				return err
			}
			return flushSent(cmd, env)
		},
	}
	cmd.Flags().Float64Var(&intensity, "intensity", codec.DefaultIntensity, "gesture intensity in [0,1]")
	return cmd
}

// send path <file>: send a drawing path stored as JSON.
func sendPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <file.json>",
		Short: "Send a drawing path from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var path domain.Path
			if err := json.Unmarshal(raw, &path); err != nil {
				return fmt.Errorf("parse path: %w", err)
			}
			if _, err := unlock(); err != nil {
				return err
			}
			syncBeforeSend(cmd)
			env, err := wire.Touch.SendPath(cmd.Context(), path)
			if err != nil {
				return err
			}
			return flushSent(cmd, env)
		},
	}
}

// syncBeforeSend completes a pending pairing and retries earlier touches so
// every send kind sees the same partnership state.
func syncBeforeSend(cmd *cobra.Command) {
	if err := wire.Sync(cmd.Context()); err != nil {
		wire.Log.Warn("earlier touches still queued", "error", err)
	}
}

func flushSent(cmd *cobra.Command, env domain.SealedEnvelope) error {
	if err := wire.Outbox.Flush(cmd.Context()); err != nil {
		fmt.Printf("queued %s; delivery will be retried: %v\n", env.ID, err)
		return nil
	}
	fmt.Printf("sent %s\n", env.ID)
	return nil
}

func gestureNames() []string {
	out := make([]string, len(domain.Gestures))
	for i, g := range domain.Gestures {
		out[i] = string(g)
	}
	return out
}
