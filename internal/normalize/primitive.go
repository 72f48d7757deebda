package normalize

import (
	"encoding/json"
	"math"
	"reflect"
	"unicode/utf8"
)

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Uintptr: reflect.TypeOf(uintptr(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
	reflect.String:  reflect.TypeOf(""),
}

// primitive returns value as already-serializable data: strings, booleans
// and finite numbers, with named kinds converted to their predeclared base
// type. Valid UTF-8 byte slices become strings.
func primitive(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr:
		return v, true
	case float64:
		return v, finite(v)
	case float32:
		return v, finite(float64(v))
	case []byte:
		if utf8.Valid(v) {
			return string(v), true
		}
		return nil, false
	}

	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		if !finite(rv.Float()) {
			return nil, false
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 && utf8.Valid(rv.Bytes()) {
			return string(rv.Bytes()), true
		}
		return nil, false
	}
	base, ok := basicTypes[rv.Kind()]
	if !ok {
		return nil, false
	}
	return rv.Convert(base).Interface(), true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
