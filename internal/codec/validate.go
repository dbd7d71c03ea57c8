package codec

import (
	"fmt"
	"math"

	"heartline/internal/domain"
)

const (
	// MinPathPoints and MaxPathPoints bound a drawing path.
	MinPathPoints = 2
	MaxPathPoints = 500

	// DefaultIntensity is the fixed intensity of a gesture sent without one.
	DefaultIntensity = 1.0
)

// NewGesture returns the payload for a catalog gesture.
func NewGesture(name domain.GestureName, intensity float64) (domain.Gesture, error) {
	g := domain.Gesture{Name: name, Intensity: intensity}
	if err := Validate(g); err != nil {
		return domain.Gesture{}, err
	}
	return g, nil
}

// Validate checks the invariants of a payload.
func Validate(p domain.Payload) error {
	switch v := p.(type) {
	case domain.Gesture:
		if !v.Name.Known() {
			return fmt.Errorf("%w: unknown gesture %q", domain.ErrMalformedPayload, v.Name)
		}
		if !unit(v.Intensity) {
			return fmt.Errorf("%w: gesture intensity %v outside [0,1]", domain.ErrMalformedPayload, v.Intensity)
		}
		return nil
	case domain.Path:
		return validatePath(v)
	case nil:
		return fmt.Errorf("%w: empty payload", domain.ErrMalformedPayload)
	default:
		return fmt.Errorf("%w: unsupported payload %T", domain.ErrMalformedPayload, p)
	}
}

func validatePath(p domain.Path) error {
	n := len(p.Points)
	if n < MinPathPoints || n > MaxPathPoints {
		return fmt.Errorf("%w: path has %d points, want %d..%d",
			domain.ErrMalformedPayload, n, MinPathPoints, MaxPathPoints)
	}
	var prev int64
	for i, pt := range p.Points {
		if !unit(pt.X) || !unit(pt.Y) {
			return fmt.Errorf("%w: point %d at (%v,%v) outside unit square", domain.ErrMalformedPayload, i, pt.X, pt.Y)
		}
		if !unit(pt.Intensity) {
			return fmt.Errorf("%w: point %d intensity %v outside [0,1]", domain.ErrMalformedPayload, i, pt.Intensity)
		}
		if pt.OffsetMs < 0 || (i > 0 && pt.OffsetMs < prev) {
			return fmt.Errorf("%w: point %d offset %dms decreases", domain.ErrMalformedPayload, i, pt.OffsetMs)
		}
		prev = pt.OffsetMs
	}
	return nil
}

// unit reports whether v is a real number in [0,1]. NaN fails both comparisons.
func unit(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
