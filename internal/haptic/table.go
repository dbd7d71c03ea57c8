package haptic

import "heartline/internal/domain"

// patterns holds the rhythm for each gesture at full intensity.
var patterns = map[domain.GestureName][]domain.Pulse{
	domain.GestureTap: {
		{DelayMs: 0, Intensity: 1.0, Sharpness: 0.8},
	},
	domain.GestureDoubleTap: {
		{DelayMs: 0, Intensity: 1.0, Sharpness: 0.8},
		{DelayMs: 120, Intensity: 1.0, Sharpness: 0.8},
	},
	domain.GestureHeartbeat: {
		{DelayMs: 0, Intensity: 1.0, Sharpness: 0.3},
		{DelayMs: 150, Intensity: 0.6, Sharpness: 0.2},
		{DelayMs: 600, Intensity: 1.0, Sharpness: 0.3},
		{DelayMs: 150, Intensity: 0.6, Sharpness: 0.2},
	},
	domain.GestureHug: {
		{DelayMs: 0, Intensity: 0.4, Sharpness: 0.1},
		{DelayMs: 100, Intensity: 0.6, Sharpness: 0.1},
		{DelayMs: 100, Intensity: 0.8, Sharpness: 0.1},
		{DelayMs: 100, Intensity: 1.0, Sharpness: 0.1},
		{DelayMs: 200, Intensity: 0.8, Sharpness: 0.1},
		{DelayMs: 100, Intensity: 0.5, Sharpness: 0.1},
	},
	domain.GestureKiss: {
		{DelayMs: 0, Intensity: 0.7, Sharpness: 0.6},
		{DelayMs: 80, Intensity: 0.9, Sharpness: 0.7},
	},
	domain.GestureSqueeze: {
		{DelayMs: 0, Intensity: 0.5, Sharpness: 0.2},
		{DelayMs: 150, Intensity: 0.8, Sharpness: 0.3},
		{DelayMs: 150, Intensity: 1.0, Sharpness: 0.4},
		{DelayMs: 300, Intensity: 0.6, Sharpness: 0.2},
	},
	domain.GestureWave: {
		{DelayMs: 0, Intensity: 0.3, Sharpness: 0.2},
		{DelayMs: 120, Intensity: 0.6, Sharpness: 0.2},
		{DelayMs: 120, Intensity: 0.9, Sharpness: 0.2},
		{DelayMs: 120, Intensity: 0.6, Sharpness: 0.2},
		{DelayMs: 120, Intensity: 0.3, Sharpness: 0.2},
	},
	domain.GesturePoke: {
		{DelayMs: 0, Intensity: 1.0, Sharpness: 1.0},
	},
}

// Pattern returns a copy of the unscaled pulses for name.
func Pattern(name domain.GestureName) ([]domain.Pulse, bool) {
	p, ok := patterns[name]
	if !ok {
		return nil, false
	}
	return append([]domain.Pulse(nil), p...), true
}
