package types

import "time"

// Kind tags the payload variant carried by an envelope.
type Kind string

const (
	KindGesture Kind = "discreteGesture"
	KindPath    Kind = "drawingPath"
	// KindUnlink marks a sealed notice that the sender revoked the partnership.
	// It carries no payload.
	KindUnlink Kind = "unlink"
)

// GestureName names an entry in the fixed gesture catalog.
type GestureName string

const (
	GestureTap       GestureName = "tap"
	GestureDoubleTap GestureName = "doubleTap"
	GestureHeartbeat GestureName = "heartbeat"
	GestureHug       GestureName = "hug"
	GestureKiss      GestureName = "kiss"
	GestureSqueeze   GestureName = "squeeze"
	GestureWave      GestureName = "wave"
	GesturePoke      GestureName = "poke"
)

// Gestures lists the catalog in a stable order.
var Gestures = []GestureName{
	GestureTap,
	GestureDoubleTap,
	GestureHeartbeat,
	GestureHug,
	GestureKiss,
	GestureSqueeze,
	GestureWave,
	GesturePoke,
}

// Known reports whether n is in the gesture catalog.
func (n GestureName) Known() bool {
	for _, g := range Gestures {
		if g == n {
			return true
		}
	}
	return false
}

// Payload is the plaintext content of a touch: a Gesture or a Path.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Gesture is a discrete, named haptic gesture.
type Gesture struct {
	Name      GestureName `cbor:"1,keyasint" json:"name"`
	Intensity float64     `cbor:"2,keyasint" json:"intensity"`
}

// Kind implements Payload.
func (Gesture) Kind() Kind { return KindGesture }
func (Gesture) isPayload() {}

// PathPoint is a sample of a drawing path in normalized coordinates.
type PathPoint struct {
	X         float64 `cbor:"1,keyasint" json:"x"`
	Y         float64 `cbor:"2,keyasint" json:"y"`
	OffsetMs  int64   `cbor:"3,keyasint" json:"offset_ms"`
	Intensity float64 `cbor:"4,keyasint" json:"intensity"`
}

// Path is a sampled freehand stroke.
type Path struct {
	Points []PathPoint `cbor:"1,keyasint" json:"points"`
}

// Kind implements Payload.
func (Path) Kind() Kind { return KindPath }
func (Path) isPayload() {}

// SealedEnvelope is the wire form of a touch: routing metadata in the clear,
// payload encrypted and authenticated.
type SealedEnvelope struct {
	ID         EnvelopeID `json:"id"`
	Sender     Identity   `json:"sender"`
	Receiver   Identity   `json:"receiver"`
	Kind       Kind       `json:"kind"`
	SentAt     time.Time  `json:"sent_at"`
	Nonce      []byte     `json:"nonce"`
	Ciphertext []byte     `json:"ciphertext"`
	AuthTag    []byte     `json:"auth_tag"`
}

// Pulse is one timed vibration step.
type Pulse struct {
	DelayMs   int64   `json:"delay_ms"`
	Intensity float64 `json:"intensity"`
	Sharpness float64 `json:"sharpness"`
}

// HapticInstruction is an ordered pulse sequence for the playback device.
type HapticInstruction struct {
	Pulses []Pulse `json:"pulses"`
}

// Duration returns the sum of all pulse delays.
func (h HapticInstruction) Duration() time.Duration {
	var total int64
	for _, p := range h.Pulses {
		total += p.DelayMs
	}
	return time.Duration(total) * time.Millisecond
}

// Delivered is a received touch that passed authentication and validation.
type Delivered struct {
	EnvelopeID  EnvelopeID        `json:"envelope_id"`
	From        Identity          `json:"from"`
	SentAt      time.Time         `json:"sent_at"`
	Payload     Payload           `json:"-"`
	Instruction HapticInstruction `json:"instruction"`
}
