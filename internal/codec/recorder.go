package codec

import (
	"fmt"
	"math"
	"time"

	"heartline/internal/domain"
)

const (
	// MinSampleInterval coalesces move events arriving faster than ~60/s.
	MinSampleInterval = 16 * time.Millisecond

	// ReferenceSpeed is the stroke speed, in normalized units per second,
	// that maps to full intensity when no pressure is reported.
	ReferenceSpeed = 1.5

	// startIntensity is used for the first point when no pressure is reported.
	startIntensity = 0.5
)

// Sample is one touch event from the input layer. Pressure is zero when the
// device has no analog pressure sensor.
type Sample struct {
	X, Y     float64
	At       time.Time
	Pressure float64
}

// PathRecorder samples a drag interaction into a Path. It is not safe for
// concurrent use; the input layer delivers events on one goroutine.
type PathRecorder struct {
	start   time.Time
	lastAt  time.Time // time of the last appended (not coalesced) sample
	points  []domain.PathPoint
	started bool
}

// NewPathRecorder returns an idle recorder.
func NewPathRecorder() *PathRecorder {
	return &PathRecorder{}
}

// Begin starts a new stroke, discarding any unfinished one.
func (r *PathRecorder) Begin(s Sample) {
	r.start = s.At
	r.lastAt = s.At
	r.started = true
	intensity := startIntensity
	if s.Pressure > 0 {
		intensity = clampUnit(s.Pressure)
	}
	r.points = append(r.points[:0], domain.PathPoint{
		X:         clampUnit(s.X),
		Y:         clampUnit(s.Y),
		OffsetMs:  0,
		Intensity: intensity,
	})
}

// Move records a drag event. Events closer than MinSampleInterval to the
// previous kept sample replace the last point instead of adding one.
func (r *PathRecorder) Move(s Sample) {
	if !r.started {
		r.Begin(s)
		return
	}
	r.add(s, false)
}

// End closes the stroke and returns the validated path. The final sample is
// always kept. The recorder is reset afterwards.
func (r *PathRecorder) End(s Sample) (domain.Path, error) {
	if !r.started {
		return domain.Path{}, fmt.Errorf("%w: stroke ended before it began", domain.ErrMalformedPayload)
	}
	r.add(s, true)

	path := domain.Path{Points: append([]domain.PathPoint(nil), r.points...)}
	r.points = r.points[:0]
	r.started = false
	if err := Validate(path); err != nil {
		return domain.Path{}, err
	}
	return path, nil
}

// Len returns the number of points recorded so far.
func (r *PathRecorder) Len() int { return len(r.points) }

func (r *PathRecorder) add(s Sample, final bool) {
	tooSoon := s.At.Sub(r.lastAt) < MinSampleInterval
	full := len(r.points) >= MaxPathPoints

	switch {
	case len(r.points) == 1 && tooSoon && !final:
		// Never coalesce into the starting point.
		return
	case full && !final:
		return
	case (tooSoon || full) && len(r.points) > 1:
		r.points[len(r.points)-1] = r.point(s, r.points[len(r.points)-2])
	default:
		r.points = append(r.points, r.point(s, r.points[len(r.points)-1]))
		r.lastAt = s.At
	}
}

// point builds the sample relative to prev, the point preceding it.
func (r *PathRecorder) point(s Sample, prev domain.PathPoint) domain.PathPoint {
	pt := domain.PathPoint{
		X:        clampUnit(s.X),
		Y:        clampUnit(s.Y),
		OffsetMs: s.At.Sub(r.start).Milliseconds(),
	}
	if pt.OffsetMs < prev.OffsetMs {
		pt.OffsetMs = prev.OffsetMs
	}
	switch {
	case s.Pressure > 0:
		pt.Intensity = clampUnit(s.Pressure)
	case pt.OffsetMs == prev.OffsetMs:
		pt.Intensity = prev.Intensity
	default:
		dist := math.Hypot(pt.X-prev.X, pt.Y-prev.Y)
		dt := float64(pt.OffsetMs-prev.OffsetMs) / 1000
		pt.Intensity = clampUnit(dist / dt / ReferenceSpeed)
	}
	return pt
}
