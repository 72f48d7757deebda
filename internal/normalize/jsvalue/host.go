package jsvalue

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
)

// Well-known globals and the labels they render as, in match order.
var globals = []struct {
	name  string
	label string
}{
	{name: "globalThis", label: "[Global]"},
	{name: "window", label: "[Window]"},
	{name: "document", label: "[Document]"},
}

var decoder = sonic.Config{UseInt64: true}.Froze()

// NewHost builds a normalize.Host that understands values of vm. Globals
// missing from vm are skipped. The host must only be used on the goroutine
// that owns vm.
func NewHost(vm *goja.Runtime) *normalize.Host {
	h := &host{vm: vm}
	return &normalize.Host{
		Sentinels:        h.sentinels(),
		IsSyntheticEvent: h.isSyntheticEvent,
		IsNaN:            isNaN,
		IsUndefined:      isUndefined,
		HasEventRegistry: hasEventRegistry,
		FunctionName:     functionName,
		Symbol:           symbol,
		TypeName:         typeName,
		IsArray:          isArray,
		Unwrap:           Unwrap,
		Hook:             h.hook,
		ToPlainObject:    toPlainObject,
	}
}

type host struct {
	vm *goja.Runtime
}

func (h *host) sentinels() []normalize.Sentinel {
	out := make([]normalize.Sentinel, 0, len(globals))
	for _, g := range globals {
		obj := lookup(h.vm, g.name)
		if obj == nil {
			continue
		}
		out = append(out, normalize.Sentinel{Label: g.label, Match: normalize.SameAs(obj)})
	}
	return out
}

// lookup resolves a global object, tolerating getters that throw.
func lookup(vm *goja.Runtime, name string) (obj *goja.Object) {
	defer func() {
		if recover() != nil {
			obj = nil
		}
	}()
	if name == "globalThis" {
		return vm.GlobalObject()
	}
	obj, _ = vm.Get(name).(*goja.Object)
	return obj
}

// Unwrap converts JS primitives to their Go form. undefined becomes
// normalize.Undefined, null becomes nil, BigInt becomes *big.Int. Objects
// and symbols are returned unchanged.
func Unwrap(value any) any {
	v, ok := value.(goja.Value)
	if !ok || v == nil {
		return value
	}
	switch {
	case goja.IsUndefined(v):
		return normalize.Undefined
	case goja.IsNull(v):
		return nil
	}
	switch v.(type) {
	case *goja.Object, *goja.Symbol:
		return v
	}
	return v.Export()
}

func object(value any) (*goja.Object, bool) {
	obj, ok := value.(*goja.Object)
	return obj, ok && obj != nil
}

func isNaN(value any) bool {
	v, ok := value.(goja.Value)
	return ok && v != nil && goja.IsNaN(v)
}

func isUndefined(value any) bool {
	v, ok := value.(goja.Value)
	return ok && v != nil && goja.IsUndefined(v)
}

func has(obj *goja.Object, name string) bool {
	v := obj.Get(name)
	return v != nil && !goja.IsUndefined(v)
}

func (h *host) isSyntheticEvent(value any) bool {
	obj, ok := object(value)
	if !ok || obj.ClassName() == "Array" {
		return false
	}
	return has(obj, "nativeEvent") && has(obj, "preventDefault") && has(obj, "stopPropagation")
}

func hasEventRegistry(value any) bool {
	obj, ok := object(value)
	if !ok {
		return false
	}
	v := obj.Get("_events")
	return v != nil && v.ToBoolean()
}

func functionName(value any) (string, bool) {
	obj, ok := object(value)
	if !ok {
		return "", false
	}
	if _, callable := goja.AssertFunction(obj); !callable {
		return "", false
	}
	if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
		if s := name.String(); s != "" {
			return s, true
		}
	}
	return "<anonymous>", true
}

func symbol(value any) (string, bool) {
	sym, ok := value.(*goja.Symbol)
	if !ok || sym == nil {
		return "", false
	}
	return sym.String(), true
}

// typeName reports the prototype's constructor name, falling back to the
// internal class for objects without a prototype.
func typeName(value any) (string, bool) {
	obj, ok := object(value)
	if !ok {
		return "", false
	}
	if proto := obj.Prototype(); proto != nil {
		if ctor, ok := proto.Get("constructor").(*goja.Object); ok {
			if name := ctor.Get("name"); name != nil && !goja.IsUndefined(name) && name.String() != "" {
				return name.String(), true
			}
		}
	}
	return obj.ClassName(), true
}

func isArray(value any) (bool, bool) {
	obj, ok := object(value)
	if !ok {
		return false, false
	}
	return obj.ClassName() == "Array", true
}

// hook exposes a callable toJSON as the serialization capability. Objects
// without one report no hook, so their Go-side JSON methods are ignored.
func (h *host) hook(key string, value any) (func() (any, error), bool) {
	obj, ok := object(value)
	if !ok {
		return nil, false
	}
	toJSON, callable := goja.AssertFunction(obj.Get("toJSON"))
	if !callable {
		return nil, true
	}
	return func() (any, error) {
		out, err := toJSON(obj, h.vm.ToValue(key))
		if err != nil {
			return nil, err
		}
		return plain(out)
	}, true
}

// plain converts a toJSON result into Go values.
func plain(v goja.Value) (any, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return Unwrap(v), nil
	}
	data, err := obj.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out any
	if err := decoder.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// toPlainObject lists the own enumerable properties of an object in
// insertion order. Arrays list their present indices only, keyed by index,
// and the walk renders the holes between them as null. Errors also expose
// name, message and stack. A property whose getter throws becomes a
// non-serializable marker without aborting its siblings.
func toPlainObject(value any) (any, bool) {
	obj, ok := object(value)
	if !ok {
		return nil, false
	}
	if obj.ClassName() == "Array" {
		elems := normalize.Fields{}
		for _, k := range obj.Keys() {
			if _, err := strconv.ParseUint(k, 10, 32); err != nil {
				continue
			}
			elems = append(elems, normalize.Field{Key: k, Value: get(obj, k)})
		}
		return elems, true
	}

	var fields normalize.Fields
	seen := map[string]bool{}
	if obj.ClassName() == "Error" {
		for _, k := range []string{"name", "message", "stack"} {
			fields = append(fields, normalize.Field{Key: k, Value: get(obj, k)})
			seen[k] = true
		}
	}
	for _, k := range obj.Keys() {
		if seen[k] {
			continue
		}
		fields = append(fields, normalize.Field{Key: k, Value: get(obj, k)})
	}
	return fields, true
}

func get(obj *goja.Object, key string) (v any) {
	defer func() {
		if r := recover(); r != nil {
			v = normalize.NonSerializable(message(r))
		}
	}()
	if got := obj.Get(key); got != nil {
		return got
	}
	return nil
}

func message(r any) string {
	switch e := r.(type) {
	case *goja.Exception:
		return e.Value().String()
	case goja.Value:
		return e.String()
	case error:
		return e.Error()
	}
	return "unknown error"
}
