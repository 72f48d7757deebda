package normalize

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/bytedance/sonic"
	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-yaml"
)

// Get returns the value of the first entry named key.
func (f Fields) Get(key string) (any, bool) {
	for _, e := range f {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys lists the entry names in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, e := range f {
		keys[i] = e.Key
	}
	return keys
}

// Map copies the entries into a Go map, converting nested mappings too.
// The order is lost.
func (f Fields) Map() map[string]any {
	out := make(map[string]any, len(f))
	for _, e := range f {
		out[e.Key] = Plain(e.Value)
	}
	return out
}

// Plain converts the ordered mappings of a normalized tree into Go maps,
// for callers that index into the result rather than encode it.
func Plain(tree any) any {
	switch t := tree.(type) {
	case Fields:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Plain(child)
		}
		return out
	}
	return tree
}

// MarshalJSON encodes the entries as a JSON object in order. HTML
// characters are not escaped, as in Size.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := sonic.ConfigDefault.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := sonic.ConfigDefault.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var fieldsCBOR = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MarshalCBOR encodes the entries as a CBOR map in order rather than in
// the sorted key order of the deterministic encoding.
func (f Fields) MarshalCBOR() ([]byte, error) {
	buf := bytes.NewBuffer(cborMapHead(len(f)))
	for _, e := range f {
		key, err := fieldsCBOR.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := fieldsCBOR.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.Write(value)
	}
	return buf.Bytes(), nil
}

// cborMapHead is the initial byte, plus length argument, of a definite
// length map with n pairs (major type 5).
func cborMapHead(n int) []byte {
	const major = 5 << 5
	u := uint64(n)
	switch {
	case u < 24:
		return []byte{byte(major | u)}
	case u <= math.MaxUint8:
		return []byte{major | 24, byte(u)}
	case u <= math.MaxUint16:
		return binary.BigEndian.AppendUint16([]byte{major | 25}, uint16(u))
	case u <= math.MaxUint32:
		return binary.BigEndian.AppendUint32([]byte{major | 26}, uint32(u))
	}
	return binary.BigEndian.AppendUint64([]byte{major | 27}, u)
}

// MarshalYAML renders the entries as an ordered YAML mapping.
func (f Fields) MarshalYAML() (any, error) {
	out := make(yaml.MapSlice, len(f))
	for i, e := range f {
		out[i] = yaml.MapItem{Key: e.Key, Value: e.Value}
	}
	return out, nil
}
