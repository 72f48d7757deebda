package report

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/fxamacker/cbor/v2"
)

// Codec encodes events for the wire.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes with sonic. HTML characters are not escaped.
type JSONCodec struct{}

func (JSONCodec) Name() string        { return "json" }
func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return sonic.ConfigDefault.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return sonic.ConfigDefault.Unmarshal(data, v)
}

// CBORCodec encodes with Core Deterministic Encoding: sorted map keys and
// the smallest integer forms, so identical events produce identical bytes.
type CBORCodec struct{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	cborEnc, err = opts.EncMode()
	if err != nil {
		panic("report: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("report: CBOR decoder initialization failed: " + err.Error())
	}
}

func (CBORCodec) Name() string        { return "cbor" }
func (CBORCodec) ContentType() string { return "application/cbor" }

func (CBORCodec) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (CBORCodec) Unmarshal(data []byte, v any) error {
	return cborDec.Unmarshal(data, v)
}

// ParseCodec returns the codec registered under name.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
}

// CodecForContentType picks a codec for an incoming media type.
func CodecForContentType(contentType string) (Codec, bool) {
	switch contentType {
	case "application/json", "":
		return JSONCodec{}, true
	case "application/cbor":
		return CBORCodec{}, true
	}
	return nil, false
}
