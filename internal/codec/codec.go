package codec

import (
	"fmt"

	"heartline/internal/domain"
)

const (
	frameVersion byte = 0x01

	flagZstd byte = 1 << 0

	// CompressThreshold is the body size above which frames are compressed.
	CompressThreshold = 1024

	// maxDecodedSize caps decompressed bodies; a full 500-point path is far smaller.
	maxDecodedSize = 256 << 10
)

// wirePayload is the tagged-union form of a Payload on the wire.
type wirePayload struct {
	Kind    domain.Kind     `cbor:"1,keyasint"`
	Gesture *domain.Gesture `cbor:"2,keyasint,omitempty"`
	Path    *domain.Path    `cbor:"3,keyasint,omitempty"`
}

// Encode validates p and returns its framed plaintext.
func Encode(p domain.Payload) ([]byte, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	var w wirePayload
	switch v := p.(type) {
	case domain.Gesture:
		w = wirePayload{Kind: domain.KindGesture, Gesture: &v}
	case domain.Path:
		w = wirePayload{Kind: domain.KindPath, Path: &v}
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", domain.ErrMalformedPayload, p)
	}
	return marshalFrame(w)
}

// Decode parses a frame, checks it carries kind, and validates the payload.
func Decode(kind domain.Kind, data []byte) (domain.Payload, error) {
	w, err := unmarshalFrame(data)
	if err != nil {
		return nil, err
	}
	if w.Kind != kind {
		return nil, fmt.Errorf("%w: envelope kind %q carries %q", domain.ErrMalformedPayload, kind, w.Kind)
	}

	var p domain.Payload
	switch {
	case w.Kind == domain.KindGesture && w.Gesture != nil && w.Path == nil:
		p = *w.Gesture
	case w.Kind == domain.KindPath && w.Path != nil && w.Gesture == nil:
		p = *w.Path
	default:
		return nil, fmt.Errorf("%w: kind %q with mismatched body", domain.ErrMalformedPayload, w.Kind)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func marshalFrame(w wirePayload) ([]byte, error) {
	body, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	flags := byte(0)
	if len(body) > CompressThreshold {
		body = zstdEncoder.EncodeAll(body, make([]byte, 0, len(body)/2))
		flags |= flagZstd
	}
	out := make([]byte, 0, 2+len(body))
	out = append(out, frameVersion, flags)
	return append(out, body...), nil
}

func unmarshalFrame(data []byte) (wirePayload, error) {
	var w wirePayload
	if len(data) < 2 {
		return w, fmt.Errorf("%w: frame too short", domain.ErrMalformedPayload)
	}
	if data[0] != frameVersion {
		return w, fmt.Errorf("%w: unsupported frame version %d", domain.ErrMalformedPayload, data[0])
	}
	flags, body := data[1], data[2:]
	if flags&^flagZstd != 0 {
		return w, fmt.Errorf("%w: unknown frame flags %#x", domain.ErrMalformedPayload, flags)
	}
	if flags&flagZstd != 0 {
		var err error
		body, err = zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return w, fmt.Errorf("%w: decompress: %v", domain.ErrMalformedPayload, err)
		}
	}
	if err := decMode.Unmarshal(body, &w); err != nil {
		return w, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return w, nil
}
