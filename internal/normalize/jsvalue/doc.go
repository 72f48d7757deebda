/*
Package jsvalue adapts goja values to the normalize package.

NewHost returns a normalize.Host bound to one goja runtime. The host turns
JS primitives into Go primitives, names functions, symbols and class
instances the way a JS console would, honours toJSON and exposes the own
enumerable properties of objects so that the core walker can expand them:

	vm := goja.New()
	v, _ := vm.RunString(`({a: 1, self: null, f() {}})`)
	out := normalize.Normalize(v, normalize.WithHost(jsvalue.NewHost(vm)))

goja runtimes are not goroutine-safe; run normalization on the goroutine
that owns the runtime.
*/
package jsvalue
