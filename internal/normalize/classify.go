package normalize

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Reserved keys naming event-emitter internals.
const (
	domainKey        = "domain"
	domainEmitterKey = "domainEmitter"
)

// Stringify renders a value that is not plain primitive data as a short
// label. Anything it does not recognize is rendered as "[object <Name>]",
// which callers treat as expandable. Stringify never panics: a failure
// while inspecting value yields a non-serializable marker.
func Stringify(key string, value any, host *Host) string {
	if host == nil {
		host = DefaultHost()
	}
	return host.stringify(key, value)
}

func (h *Host) stringify(key string, value any) (label string) {
	defer func() {
		if r := recover(); r != nil {
			label = NonSerializable(panicMessage(r))
		}
	}()

	if key == domainKey && value != nil && h.hasEventRegistry(value) {
		return MarkerDomain
	}
	if key == domainEmitterKey {
		return MarkerDomainEmitter
	}
	for _, s := range h.Sentinels {
		if s.Match != nil && s.Match(value) {
			return s.Label
		}
	}
	if h.isSyntheticEvent(value) {
		return MarkerSynthetic
	}
	if h.isNaN(value) {
		return MarkerNaN
	}
	if label, ok := infinity(value); ok {
		return label
	}
	if h.isUndefined(value) {
		return MarkerUndefined
	}
	if name, ok := h.functionName(value); ok {
		return "[Function: " + name + "]"
	}
	if s, ok := h.symbol(value); ok {
		return "[" + s + "]"
	}
	if s, ok := h.bigInt(value); ok {
		return "[BigInt: " + s + "]"
	}
	if label, ok := opaque(value); ok {
		return label
	}
	return objectPrefix + h.typeName(value) + "]"
}

func infinity(value any) (string, bool) {
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return "", false
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsInf(f, 1) {
			return MarkerInfinity, true
		}
		if math.IsInf(f, -1) {
			return MarkerNegInfinity, true
		}
	}
	return "", false
}

// opaque labels Go values that have a kind but no enumerable structure.
func opaque(value any) (string, bool) {
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return "", false
	}
	switch rv.Kind() {
	case reflect.Chan:
		return "[Channel: " + rv.Type().String() + "]", true
	case reflect.Complex64, reflect.Complex128:
		return "[Complex: " + strconv.FormatComplex(rv.Complex(), 'g', -1, 128) + "]", true
	case reflect.UnsafePointer:
		return "[Pointer]", true
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return "[Bytes: " + strconv.Itoa(rv.Len()) + "]", true
		}
	}
	return "", false
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	}
	return fmt.Sprint(r)
}
