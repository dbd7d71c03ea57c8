package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/domain"
)

// Frames built without Encode's validation must still be rejected on decode.
func TestDecode_RejectsUnvalidatedFrames(t *testing.T) {
	points := func(n int) *domain.Path {
		p := &domain.Path{Points: make([]domain.PathPoint, n)}
		for i := range p.Points {
			p.Points[i] = domain.PathPoint{X: 0.5, Y: 0.5, OffsetMs: int64(i)}
		}
		return p
	}
	cases := map[string]wirePayload{
		"one point":    {Kind: domain.KindPath, Path: points(1)},
		"501 points":   {Kind: domain.KindPath, Path: points(MaxPathPoints + 1)},
		"both bodies":  {Kind: domain.KindPath, Path: points(3), Gesture: &domain.Gesture{Name: domain.GestureTap}},
		"missing body": {Kind: domain.KindGesture},
		"unknown kind": {Kind: "scribble", Path: points(3)},
		"bad gesture":  {Kind: domain.KindGesture, Gesture: &domain.Gesture{Name: "slap", Intensity: 1}},
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := marshalFrame(w)
			require.NoError(t, err)
			_, err = Decode(w.Kind, data)
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}
