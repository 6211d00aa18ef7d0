package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType is returned for JSON objects without a usable "type" field.
var ErrMissingType = errors.New("envelope has no type")

type typeTag struct {
	Type Type `json:"type"`
}

// PeekType extracts the type tag without decoding the rest of the frame.
func PeekType(data []byte) (Type, error) {
	var tag typeTag
	if err := json.Unmarshal(data, &tag); err != nil {
		return "", fmt.Errorf("malformed envelope: %w", err)
	}
	if tag.Type == "" {
		return "", ErrMissingType
	}
	return tag.Type, nil
}

// Decode validates a frame and wraps it in an Envelope. The raw bytes are
// copied, so the caller may reuse data.
func Decode(data []byte) (*Envelope, error) {
	t, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &Envelope{Type: t, Raw: raw}, nil
}

// Unmarshal decodes the full envelope body into v.
func (e *Envelope) Unmarshal(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode %s envelope: %w", e.Type, err)
	}
	return nil
}

// Encode serializes one of the envelope structs for transmission.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Compose builds an envelope of type t whose remaining fields come from
// payload, which must marshal to a JSON object (or be nil). It is used by
// feature modules that define their own envelope types.
func Compose(t Type, payload any) ([]byte, error) {
	if t == "" {
		return nil, ErrMissingType
	}

	fields := map[string]json.RawMessage{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("%s payload is not a JSON object: %w", t, err)
		}
	}

	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	tag, _ := json.Marshal(t)
	fields["type"] = tag
	return json.Marshal(fields)
}
