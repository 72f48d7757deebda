package normalize

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"reflect"
	"runtime"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
)

// Serializer is implemented by values that provide their own JSON-safe
// representation. It takes priority over every other rule; the returned
// value is used as is.
type Serializer interface {
	SerializeValue() (any, error)
}

// Sentinel pairs a well-known reference with the label it renders as.
type Sentinel struct {
	Label string
	Match func(value any) bool
}

// SameAs returns a Sentinel matcher reporting whether a value is ref itself.
// A nil ref never matches, so a missing singleton can be registered safely.
func SameAs(ref any) func(any) bool {
	return func(value any) bool {
		return sameRef(value, ref)
	}
}

// Field is one entry of an ordered mapping.
type Field struct {
	Key   string
	Value any
}

// Fields is an ordered mapping. Plain-object adapters return it when the
// source value has no enumerable Go shape of its own, and every mapping in
// a normalized tree is one, so that encoders keep the enumeration order.
type Fields []Field

// Host is the injectable table of collaborators used to classify and
// enumerate values. Every hook is optional and is consulted before the
// Go-native behaviour; a nil *Host means DefaultHost.
type Host struct {
	// Sentinels are checked in order by reference equality.
	Sentinels []Sentinel

	IsSyntheticEvent func(value any) bool
	IsNaN            func(value any) bool
	IsUndefined      func(value any) bool
	HasEventRegistry func(value any) bool

	// FunctionName reports the resolved name of a callable value.
	FunctionName func(value any) (string, bool)
	// Symbol reports the string form of a symbolic token.
	Symbol func(value any) (string, bool)
	// BigInt reports the decimal digits of an arbitrary-precision integer.
	BigInt func(value any) (string, bool)
	// TypeName reports the constructor name of a non-plain object.
	TypeName func(value any) (string, bool)
	// IsArray reports whether an expandable value is sequence-shaped.
	IsArray func(value any) (array bool, ok bool)

	// Unwrap maps foreign primitives to Go primitives before any rule runs.
	Unwrap func(value any) any
	// Hook returns a custom serialization capability for value. A nil
	// function with ok set means value has no hook, skipping the Go-native
	// Serializer and JSON/text marshaler checks.
	Hook func(key string, value any) (fn func() (any, error), ok bool)
	// ToPlainObject exposes hidden fields of exotic values as Fields.
	ToPlainObject func(value any) (any, bool)
	// Identity returns the reference used for cycle detection.
	Identity func(value any) (any, bool)
}

var stdSentinels = []Sentinel{
	{Label: "[Stdin]", Match: SameAs(os.Stdin)},
	{Label: "[Stdout]", Match: SameAs(os.Stdout)},
	{Label: "[Stderr]", Match: SameAs(os.Stderr)},
}

// DefaultHost returns the Go-native host. Its sentinel table holds the
// process standard streams.
func DefaultHost() *Host {
	return &Host{Sentinels: append([]Sentinel(nil), stdSentinels...)}
}

func (h *Host) hasEventRegistry(value any) bool {
	if h.HasEventRegistry != nil && h.HasEventRegistry(value) {
		return true
	}
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return false
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false
		}
		ev := rv.MapIndex(reflect.ValueOf("_events").Convert(rv.Type().Key()))
		return ev.IsValid() && !isNilValue(ev)
	case reflect.Struct:
		for _, f := range structFields(rv.Type()) {
			if f.name == "_events" {
				return !isNilValue(rv.FieldByIndex(f.index))
			}
		}
	}
	return false
}

func (h *Host) isSyntheticEvent(value any) bool {
	return h.IsSyntheticEvent != nil && h.IsSyntheticEvent(value)
}

func (h *Host) isNaN(value any) bool {
	if h.IsNaN != nil && h.IsNaN(value) {
		return true
	}
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return false
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return math.IsNaN(rv.Float())
	}
	return false
}

func (h *Host) isUndefined(value any) bool {
	if h.IsUndefined != nil && h.IsUndefined(value) {
		return true
	}
	_, ok := value.(undefined)
	return ok
}

func (h *Host) functionName(value any) (string, bool) {
	if h.FunctionName != nil {
		if name, ok := h.FunctionName(value); ok {
			return name, true
		}
	}
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok || rv.Kind() != reflect.Func {
		return "", false
	}
	return FunctionName(rv.Interface()), true
}

func (h *Host) symbol(value any) (string, bool) {
	if h.Symbol != nil {
		return h.Symbol(value)
	}
	return "", false
}

func (h *Host) bigInt(value any) (string, bool) {
	if h.BigInt != nil {
		if s, ok := h.BigInt(value); ok {
			return s, true
		}
	}
	switch v := value.(type) {
	case *big.Int:
		return v.String(), true
	case big.Int:
		return v.String(), true
	}
	return "", false
}

func (h *Host) typeName(value any) string {
	if h.TypeName != nil {
		if name, ok := h.TypeName(value); ok {
			return name
		}
	}
	if value == nil {
		return "Null"
	}
	if _, ok := value.(Fields); ok {
		return "Object"
	}
	t := baseType(reflect.TypeOf(value))
	if t.Name() != "" {
		return t.Name()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Struct:
		return "Object"
	case reflect.Slice, reflect.Array:
		return "Array"
	}
	return t.Kind().String()
}

func (h *Host) isArray(value any) bool {
	if h.IsArray != nil {
		if array, ok := h.IsArray(value); ok {
			return array
		}
	}
	switch value.(type) {
	case error, Fields:
		return false
	}
	rv, ok := indirect(reflect.ValueOf(value))
	if !ok {
		return false
	}
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

func (h *Host) unwrap(value any) any {
	if h.Unwrap != nil {
		return h.Unwrap(value)
	}
	return value
}

func (h *Host) hook(key string, value any) (func() (any, error), bool) {
	if h.Hook != nil {
		if fn, ok := h.Hook(key, value); ok {
			return fn, fn != nil
		}
	}
	switch v := value.(type) {
	case *big.Int, big.Int:
		// Rendered by the classifier, not by their JSON methods.
		return nil, false
	case Fields:
		// Enumerated in order; its JSON method would go through a map.
		return nil, false
	case Serializer:
		return v.SerializeValue, true
	case json.Marshaler:
		return func() (any, error) {
			data, err := v.MarshalJSON()
			if err != nil {
				return nil, err
			}
			var out any
			if err := hookDecoder.Unmarshal(data, &out); err != nil {
				return nil, fmt.Errorf("invalid JSON from %T: %w", value, err)
			}
			return out, nil
		}, true
	case encoding.TextMarshaler:
		return func() (any, error) {
			text, err := v.MarshalText()
			if err != nil {
				return nil, err
			}
			return string(text), nil
		}, true
	}
	return nil, false
}

var hookDecoder = sonic.Config{UseInt64: true}.Froze()

func (h *Host) toPlainObject(value any) any {
	if h.ToPlainObject != nil {
		if source, ok := h.ToPlainObject(value); ok {
			return source
		}
	}
	if err, ok := value.(error); ok {
		return errorFields(err)
	}
	return value
}

func (h *Host) identity(value any) (any, bool) {
	if h.Identity != nil {
		if id, ok := h.Identity(value); ok {
			return id, true
		}
	}
	return refKey(value)
}

// errorFields expands an error into its name, message and exported fields.
// The unwrapped cause is added only for errors that expose no fields.
func errorFields(err error) Fields {
	t := baseType(reflect.TypeOf(err))
	out := Fields{
		{Key: "name", Value: t.String()},
		{Key: "message", Value: err.Error()},
	}
	n := len(out)
	if rv, ok := indirect(reflect.ValueOf(err)); ok && rv.Kind() == reflect.Struct {
		for _, f := range structFields(rv.Type()) {
			out = append(out, Field{Key: f.name, Value: rv.FieldByIndex(f.index).Interface()})
		}
	}
	if len(out) > n {
		return out
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		if errs := u.Unwrap(); len(errs) > 0 {
			out = append(out, Field{Key: "errors", Value: errs})
		}
	default:
		if cause := errors.Unwrap(err); cause != nil {
			out = append(out, Field{Key: "cause", Value: cause})
		}
	}
	return out
}

// FunctionName returns the best-effort name of a Go function value,
// trimmed to its last import path element. Anonymous or unresolvable
// functions are named "<anonymous>".
func FunctionName(fn any) string {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return "<anonymous>"
	}
	f := runtime.FuncForPC(rv.Pointer())
	if f == nil {
		return "<anonymous>"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "<anonymous>"
	}
	return name
}

type refID struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// refKey identifies reference-kind values. Pointer chains resolve to the
// innermost pointer so that p and &p share an identity.
func refKey(value any) (any, bool) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		var seen []uintptr
		for rv.Elem().Kind() == reflect.Pointer && !rv.Elem().IsNil() {
			if slices.Contains(seen, rv.Pointer()) {
				break
			}
			seen = append(seen, rv.Pointer())
			rv = rv.Elem()
		}
		return refID{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
		return refID{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.IsNil() || rv.Len() == 0 {
			return nil, false
		}
		return refID{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}, true
	}
	return nil, false
}

func sameRef(value, ref any) bool {
	if value == nil || ref == nil {
		return false
	}
	a, b := reflect.ValueOf(value), reflect.ValueOf(ref)
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	}
	if a.Type().Comparable() {
		return value == ref
	}
	return false
}

// indirect follows pointers and interfaces to the underlying value.
// It reports false if a nil is encountered on the way or if the chain
// leads back to a pointer it already passed.
func indirect(rv reflect.Value) (reflect.Value, bool) {
	rv, ok, _ := deref(rv)
	return rv, ok
}

// selfReferential reports whether value is a pointer chain that never
// reaches a non-pointer value, such as x after x = &x.
func selfReferential(value any) bool {
	_, _, cycle := deref(reflect.ValueOf(value))
	return cycle
}

func deref(rv reflect.Value) (out reflect.Value, ok bool, cycle bool) {
	var seen []uintptr
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return rv, false, false
		}
		if rv.Kind() == reflect.Pointer {
			p := rv.Pointer()
			if slices.Contains(seen, p) {
				return rv, false, true
			}
			seen = append(seen, p)
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid(), false
}

// baseType strips pointer types, stopping at a named pointer type that
// points to itself.
func baseType(t reflect.Type) reflect.Type {
	var seen []reflect.Type
	for t.Kind() == reflect.Pointer && !slices.Contains(seen, t) {
		seen = append(seen, t)
		t = t.Elem()
	}
	return t
}

func isNilValue(rv reflect.Value) bool {
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}
