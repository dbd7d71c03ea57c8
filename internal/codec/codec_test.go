package codec_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/codec"
	"heartline/internal/domain"
)

func linePath(n int) domain.Path {
	pts := make([]domain.PathPoint, n)
	for i := range pts {
		f := float64(i) / float64(max(n-1, 1))
		pts[i] = domain.PathPoint{X: f, Y: 1 - f, OffsetMs: int64(i * 16), Intensity: 0.5}
	}
	return domain.Path{Points: pts}
}

func TestGesture_RoundTrip(t *testing.T) {
	g, err := codec.NewGesture(domain.GestureHug, 0.8)
	require.NoError(t, err)

	data, err := codec.Encode(g)
	require.NoError(t, err)

	got, err := codec.Decode(domain.KindGesture, data)
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := codec.Encode(linePath(10))
	require.NoError(t, err)
	b, err := codec.Encode(linePath(10))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPath_RoundTripCompressed(t *testing.T) {
	p := linePath(codec.MaxPathPoints)
	data, err := codec.Encode(p)
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[1]&1, "large path should be compressed")

	got, err := codec.Decode(domain.KindPath, data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPath_Bounds(t *testing.T) {
	for _, n := range []int{0, 1, codec.MaxPathPoints + 1} {
		_, err := codec.Encode(linePath(n))
		assert.ErrorIs(t, err, domain.ErrMalformedPayload, "n=%d", n)
	}
	for _, n := range []int{codec.MinPathPoints, codec.MaxPathPoints} {
		_, err := codec.Encode(linePath(n))
		assert.NoError(t, err, "n=%d", n)
	}
}

func TestValidate_Rejects(t *testing.T) {
	mutate := func(f func(p *domain.Path)) domain.Path {
		p := linePath(3)
		f(&p)
		return p
	}
	cases := map[string]domain.Payload{
		"x above 1":          mutate(func(p *domain.Path) { p.Points[1].X = 1.01 }),
		"y negative":         mutate(func(p *domain.Path) { p.Points[2].Y = -0.1 }),
		"nan":                mutate(func(p *domain.Path) { p.Points[0].X = math.NaN() }),
		"intensity":          mutate(func(p *domain.Path) { p.Points[1].Intensity = 2 }),
		"decreasing offsets": mutate(func(p *domain.Path) { p.Points[2].OffsetMs = 1 }),
		"negative offset":    mutate(func(p *domain.Path) { p.Points[0].OffsetMs = -5 }),
		"unknown gesture":    domain.Gesture{Name: "slap", Intensity: 1},
		"gesture intensity":  domain.Gesture{Name: domain.GestureTap, Intensity: 1.5},
		"nil":                nil,
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, codec.Validate(p), domain.ErrMalformedPayload)
		})
	}

	equal := linePath(3)
	equal.Points[2].OffsetMs = equal.Points[1].OffsetMs
	assert.NoError(t, codec.Validate(equal), "equal offsets are non-decreasing")
}

func TestDecode_KindMismatch(t *testing.T) {
	data, err := codec.Encode(domain.Gesture{Name: domain.GestureKiss, Intensity: 1})
	require.NoError(t, err)
	_, err = codec.Decode(domain.KindPath, data)
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}

func TestDecode_Garbage(t *testing.T) {
	for _, data := range [][]byte{nil, {1}, {9, 0, 0xa0}, {1, 0x80, 0xa0}, {1, 0, 0xff, 0xff}, {1, 1, 0xde, 0xad}} {
		_, err := codec.Decode(domain.KindGesture, data)
		assert.ErrorIs(t, err, domain.ErrMalformedPayload, "%x", data)
	}
}

func TestRecorder_CoalescesFastMoves(t *testing.T) {
	t0 := time.Unix(100, 0)
	r := codec.NewPathRecorder()
	r.Begin(codec.Sample{X: 0.1, Y: 0.1, At: t0})
	// 1ms after begin: dropped, never merged into the start point.
	r.Move(codec.Sample{X: 0.11, Y: 0.1, At: t0.Add(time.Millisecond)})
	assert.Equal(t, 1, r.Len())

	r.Move(codec.Sample{X: 0.2, Y: 0.1, At: t0.Add(20 * time.Millisecond)})
	r.Move(codec.Sample{X: 0.25, Y: 0.1, At: t0.Add(25 * time.Millisecond)})
	assert.Equal(t, 2, r.Len(), "second move within 16ms coalesces")

	path, err := r.End(codec.Sample{X: 0.3, Y: 0.1, At: t0.Add(30 * time.Millisecond)})
	require.NoError(t, err)
	require.Len(t, path.Points, 2)
	assert.InDelta(t, 0.3, path.Points[1].X, 1e-9)
	assert.Equal(t, int64(30), path.Points[1].OffsetMs)
	assert.Equal(t, 0, r.Len(), "recorder resets after End")
}

func TestRecorder_IntensityFromVelocityAndPressure(t *testing.T) {
	t0 := time.Unix(100, 0)
	r := codec.NewPathRecorder()
	r.Begin(codec.Sample{X: 0, Y: 0.5, At: t0})
	// 0.15 units in 100ms = 1.5 units/s = ReferenceSpeed.
	r.Move(codec.Sample{X: 0.15, Y: 0.5, At: t0.Add(100 * time.Millisecond)})
	// Slow: 0.015 units in 100ms.
	r.Move(codec.Sample{X: 0.165, Y: 0.5, At: t0.Add(200 * time.Millisecond)})
	path, err := r.End(codec.Sample{X: 0.9, Y: 0.5, At: t0.Add(300 * time.Millisecond), Pressure: 0.3})
	require.NoError(t, err)

	require.Len(t, path.Points, 4)
	assert.InDelta(t, 0.5, path.Points[0].Intensity, 1e-9)
	assert.InDelta(t, 1.0, path.Points[1].Intensity, 1e-9)
	assert.InDelta(t, 0.1, path.Points[2].Intensity, 1e-9)
	assert.InDelta(t, 0.3, path.Points[3].Intensity, 1e-9)
}

func TestRecorder_CapsPoints(t *testing.T) {
	t0 := time.Unix(100, 0)
	r := codec.NewPathRecorder()
	r.Begin(codec.Sample{X: 0, Y: 0, At: t0})
	for i := 1; i < 2*codec.MaxPathPoints; i++ {
		r.Move(codec.Sample{X: 0.5, Y: 0.5, At: t0.Add(time.Duration(i) * 20 * time.Millisecond)})
	}
	assert.Equal(t, codec.MaxPathPoints, r.Len())

	path, err := r.End(codec.Sample{X: 1, Y: 1, At: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, path.Points, codec.MaxPathPoints)
	assert.Equal(t, 1.0, path.Points[codec.MaxPathPoints-1].X, "end sample always lands")
}

func TestRecorder_ClampsAndTapStroke(t *testing.T) {
	t0 := time.Unix(100, 0)
	r := codec.NewPathRecorder()
	r.Begin(codec.Sample{X: -0.2, Y: 1.4, At: t0})
	path, err := r.End(codec.Sample{X: -0.2, Y: 1.4, At: t0.Add(5 * time.Millisecond)})
	require.NoError(t, err)
	require.Len(t, path.Points, 2)
	assert.Equal(t, 0.0, path.Points[0].X)
	assert.Equal(t, 1.0, path.Points[0].Y)
}

func TestRecorder_EndWithoutBegin(t *testing.T) {
	_, err := codec.NewPathRecorder().End(codec.Sample{})
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}
