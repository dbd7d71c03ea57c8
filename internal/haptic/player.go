package haptic

import (
	"context"
	"log/slog"

	"heartline/internal/domain"
)

// LogPlayer is a HapticPlayer for development builds and the CLI: it logs the
// instruction instead of driving a motor.
type LogPlayer struct {
	log *slog.Logger
}

// NewLogPlayer returns a player that writes to log.
func NewLogPlayer(log *slog.Logger) *LogPlayer {
	return &LogPlayer{log: log}
}

// Play implements domain.HapticPlayer.
func (p *LogPlayer) Play(ctx context.Context, instr domain.HapticInstruction) error {
	p.log.InfoContext(ctx, "haptic playback",
		slog.Int("pulses", len(instr.Pulses)),
		slog.Duration("duration", instr.Duration()),
	)
	return nil
}

var _ domain.HapticPlayer = (*LogPlayer)(nil)
