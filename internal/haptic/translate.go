package haptic

import (
	"fmt"
	"math"

	"heartline/internal/domain"
)

const (
	// BaseSharpness is the sharpness of a straight stroke segment.
	BaseSharpness = 0.2
	// TurnSharpness is added at a full reversal (π radians).
	TurnSharpness = 1 - BaseSharpness
)

// Translate maps a decoded payload to a haptic instruction.
func Translate(p domain.Payload) (domain.HapticInstruction, error) {
	switch v := p.(type) {
	case domain.Gesture:
		return translateGesture(v)
	case domain.Path:
		return translatePath(v)
	default:
		return domain.HapticInstruction{}, fmt.Errorf("%w: cannot translate %T", domain.ErrMalformedPayload, p)
	}
}

func translateGesture(g domain.Gesture) (domain.HapticInstruction, error) {
	pulses, ok := Pattern(g.Name)
	if !ok {
		return domain.HapticInstruction{}, fmt.Errorf("%w: no pattern for gesture %q", domain.ErrMalformedPayload, g.Name)
	}
	for i := range pulses {
		pulses[i].Intensity *= g.Intensity
	}
	return domain.HapticInstruction{Pulses: pulses}, nil
}

func translatePath(p domain.Path) (domain.HapticInstruction, error) {
	if len(p.Points) < 2 {
		return domain.HapticInstruction{}, fmt.Errorf("%w: path needs two points", domain.ErrMalformedPayload)
	}
	pulses := make([]domain.Pulse, 0, len(p.Points)-1)

	var heading float64
	haveHeading := false
	for i := 1; i < len(p.Points); i++ {
		prev, cur := p.Points[i-1], p.Points[i]

		turn := 0.0
		dx, dy := cur.X-prev.X, cur.Y-prev.Y
		if dx != 0 || dy != 0 {
			h := math.Atan2(dy, dx)
			if haveHeading {
				turn = turnAngle(heading, h)
			}
			heading, haveHeading = h, true
		}

		pulses = append(pulses, domain.Pulse{
			DelayMs:   cur.OffsetMs - prev.OffsetMs,
			Intensity: cur.Intensity,
			Sharpness: BaseSharpness + TurnSharpness*turn/math.Pi,
		})
	}
	return domain.HapticInstruction{Pulses: pulses}, nil
}

// turnAngle returns the absolute heading change from a to b in [0, π].
func turnAngle(a, b float64) float64 {
	d := math.Mod(b-a, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
