package haptic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/domain"
	"heartline/internal/haptic"
)

func TestTranslate_HugScaled(t *testing.T) {
	instr, err := haptic.Translate(domain.Gesture{Name: domain.GestureHug, Intensity: 0.8})
	require.NoError(t, err)

	want, ok := haptic.Pattern(domain.GestureHug)
	require.True(t, ok)
	require.Len(t, instr.Pulses, len(want))
	for i, p := range instr.Pulses {
		assert.Equal(t, want[i].DelayMs, p.DelayMs)
		assert.InDelta(t, want[i].Intensity*0.8, p.Intensity, 1e-9)
		assert.Equal(t, want[i].Sharpness, p.Sharpness)
	}
}

func TestTranslate_EveryGestureHasPattern(t *testing.T) {
	for _, name := range domain.Gestures {
		instr, err := haptic.Translate(domain.Gesture{Name: name, Intensity: 1})
		require.NoError(t, err, name)
		assert.NotEmpty(t, instr.Pulses, name)
	}
}

func TestTranslate_DoesNotMutateTable(t *testing.T) {
	_, err := haptic.Translate(domain.Gesture{Name: domain.GestureTap, Intensity: 0.1})
	require.NoError(t, err)
	p, _ := haptic.Pattern(domain.GestureTap)
	assert.Equal(t, 1.0, p[0].Intensity)
}

func TestTranslate_PathStraightThenSharpTurn(t *testing.T) {
	path := domain.Path{Points: []domain.PathPoint{
		{X: 0.1, Y: 0.5, OffsetMs: 0, Intensity: 0.5},
		{X: 0.3, Y: 0.5, OffsetMs: 20, Intensity: 0.6},
		{X: 0.5, Y: 0.5, OffsetMs: 45, Intensity: 0.7},
		{X: 0.3, Y: 0.5, OffsetMs: 60, Intensity: 0.9}, // reversal
		{X: 0.3, Y: 0.7, OffsetMs: 60, Intensity: 0.4}, // right angle
	}}
	instr, err := haptic.Translate(path)
	require.NoError(t, err)
	require.Len(t, instr.Pulses, 4)

	assert.Equal(t, []int64{20, 25, 15, 0}, []int64{
		instr.Pulses[0].DelayMs, instr.Pulses[1].DelayMs, instr.Pulses[2].DelayMs, instr.Pulses[3].DelayMs,
	})
	assert.Equal(t, 0.6, instr.Pulses[0].Intensity)
	assert.Equal(t, 0.4, instr.Pulses[3].Intensity)

	assert.InDelta(t, haptic.BaseSharpness, instr.Pulses[0].Sharpness, 1e-9)
	assert.InDelta(t, haptic.BaseSharpness, instr.Pulses[1].Sharpness, 1e-9)
	assert.InDelta(t, 1.0, instr.Pulses[2].Sharpness, 1e-9)
	assert.InDelta(t, haptic.BaseSharpness+haptic.TurnSharpness/2, instr.Pulses[3].Sharpness, 1e-9)
}

func TestTranslate_ZeroLengthSegmentKeepsHeading(t *testing.T) {
	path := domain.Path{Points: []domain.PathPoint{
		{X: 0.1, Y: 0.1, OffsetMs: 0},
		{X: 0.2, Y: 0.1, OffsetMs: 10},
		{X: 0.2, Y: 0.1, OffsetMs: 20},
		{X: 0.3, Y: 0.1, OffsetMs: 30},
	}}
	instr, err := haptic.Translate(path)
	require.NoError(t, err)
	for _, p := range instr.Pulses {
		assert.InDelta(t, haptic.BaseSharpness, p.Sharpness, 1e-9)
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	path := domain.Path{Points: []domain.PathPoint{
		{X: 0, Y: 0, OffsetMs: 0, Intensity: 0.2},
		{X: 0.4, Y: 0.9, OffsetMs: 33, Intensity: 0.8},
		{X: 0.9, Y: 0.1, OffsetMs: 70, Intensity: 1},
	}}
	a, err := haptic.Translate(path)
	require.NoError(t, err)
	b, err := haptic.Translate(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTranslate_Rejects(t *testing.T) {
	_, err := haptic.Translate(domain.Gesture{Name: "slap", Intensity: 1})
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	_, err = haptic.Translate(domain.Path{Points: []domain.PathPoint{{}}})
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	_, err = haptic.Translate(nil)
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}
