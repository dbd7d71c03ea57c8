// Package haptic translates decoded touch payloads into haptic instructions.
//
// Translation is pure and deterministic. Gestures come from a hand-authored
// rhythm table scaled by the gesture intensity; drawing paths produce one
// pulse per segment whose sharpness follows the turn angle at that segment.
package haptic
