package report

import (
	"errors"
	"fmt"
)

// MaxPayloadBytes is the largest encoded event accepted for delivery.
const MaxPayloadBytes = 200 * 1024

var ErrPayloadTooLarge = errors.New("payload too large")

// Payload is an encoded event ready for delivery.
type Payload struct {
	EventID         string
	Body            []byte
	ContentType     string
	ContentEncoding string
	// Size is the encoded length before compression.
	Size int
}

// Encoder turns events into payloads.
type Encoder struct {
	Codec       Codec
	Compression Compression
}

// NewEncoder resolves a codec and a compression by name.
func NewEncoder(codec, compression string) (*Encoder, error) {
	c, err := ParseCodec(codec)
	if err != nil {
		return nil, err
	}
	comp, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return &Encoder{Codec: c, Compression: comp}, nil
}

// Encode encodes ev. Events whose encoding exceeds MaxPayloadBytes are
// rejected before compression.
func (enc *Encoder) Encode(ev *Event) (*Payload, error) {
	codec := enc.Codec
	if codec == nil {
		codec = JSONCodec{}
	}
	data, err := codec.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}
	if len(data) > MaxPayloadBytes {
		return nil, fmt.Errorf("event %s is %d bytes: %w", ev.EventID, len(data), ErrPayloadTooLarge)
	}
	body, err := enc.Compression.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("compress event %s: %w", ev.EventID, err)
	}
	return &Payload{
		EventID:         ev.EventID,
		Body:            body,
		ContentType:     codec.ContentType(),
		ContentEncoding: enc.Compression.ContentEncoding(),
		Size:            len(data),
	}, nil
}

// Encode encodes ev with codec and compression.
func Encode(ev *Event, codec Codec, compression Compression) (*Payload, error) {
	return (&Encoder{Codec: codec, Compression: compression}).Encode(ev)
}

// Decode reverses Encode for a body read off the wire.
func Decode(body []byte, codec Codec, compression Compression) (*Event, error) {
	data, err := compression.Decompress(body, MaxPayloadBytes)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := codec.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}
