package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize/jsvalue"
)

// Runtime wraps a goja VM with security controls. Completion values,
// console arguments and thrown values leave the VM normalized.
type Runtime struct {
	vm     *goja.Runtime
	norm   *normalize.Normalizer
	config Config
	mu     sync.Mutex

	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	r := &Runtime{
		config: config.withDefaults(),
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) init() error {
	r.vm = goja.New()
	r.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	r.console = []LogEntry{}
	return r.setupGlobals()
}

// Execute runs JavaScript code with timeout and resource limits. An
// uncaught throw, syntax errors included, is reported in Result.Exception
// with a nil error; interruptions are returned as errors.
func (r *Runtime) Execute(ctx context.Context, script string, dom *DOM) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	start := time.Now()
	result := &Result{
		Console: []LogEntry{},
	}

	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	if dom != nil && r.config.EnableDOM {
		if err := r.injectDOM(dom); err != nil {
			return nil, fmt.Errorf("failed to inject DOM: %w", err)
		}
	}

	// The host snapshots globals, so build it after the DOM is in place.
	r.norm = normalize.New(
		normalize.WithHost(jsvalue.NewHost(r.vm)),
		normalize.WithDepth(r.config.Depth),
		normalize.WithMaxProperties(r.config.MaxProperties),
	)

	stop := r.watch(ctx)
	val, err := r.vm.RunString(script)
	if err == nil {
		result.Value = r.norm.Normalize(val)
	} else {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			result.Exception = r.exception(ex)
			err = nil
		}
	}
	stop()

	result.Duration = time.Since(start)

	r.consoleMu.Lock()
	result.Console = append(result.Console, r.console...)
	r.consoleMu.Unlock()

	if dom != nil {
		result.DOMChanges = dom.GetChanges()
	}

	if err != nil {
		err = interruptCause(err)
		result.Error = err
		return result, err
	}
	return result, nil
}

// watch interrupts the VM on timeout or cancellation until stop is called.
// stop leaves the VM free of pending interrupts.
func (r *Runtime) watch(ctx context.Context) (stop func()) {
	timer := time.NewTimer(r.config.Timeout)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-timer.C:
			r.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		timer.Stop()
		close(done)
		wg.Wait()
		r.vm.ClearInterrupt()
	}
}

func interruptCause(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return cause
		}
	}
	return err
}

func (r *Runtime) exception(ex *goja.Exception) *Exception {
	out := &Exception{
		Stack: ex.String(),
		Value: r.norm.Normalize(ex.Value()),
	}
	thrown := ex.Value()
	if obj, ok := thrown.(*goja.Object); ok && obj.ClassName() == "Error" {
		out.Type = safeString(obj.Get("name"))
		out.Message = safeString(obj.Get("message"))
		return out
	}
	out.Message = safeString(thrown)
	return out
}

func safeString(v goja.Value) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = normalize.NonSerializable(fmt.Sprint(r))
		}
	}()
	if v == nil || goja.IsUndefined(v) {
		return ""
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return sym.String()
	}
	return v.String()
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Timers are no-ops
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		args := make([]any, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, safeString(arg))
			args = append(args, r.norm.Normalize(arg))
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Args:    args,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// injectDOM exposes dom as the document global
func (r *Runtime) injectDOM(dom *DOM) error {
	document := r.vm.NewObject()

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"querySelector":          r.first(dom, func(s string) string { return s }),
		"getElementById":         r.first(dom, func(s string) string { return "#" + s }),
		"querySelectorAll":       r.all(dom, func(s string) string { return s }),
		"getElementsByClassName": r.all(dom, func(s string) string { return "." + s }),
		"getElementsByTagName":   r.all(dom, func(s string) string { return s }),
	}
	for name, fn := range methods {
		if err := document.Set(name, fn); err != nil {
			return err
		}
	}
	return r.vm.Set("document", document)
}

func (r *Runtime) first(dom *DOM, selector func(string) string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		sel := selector(call.Arguments[0].String())
		elements := dom.Query(sel)
		if len(elements) == 0 {
			return goja.Null()
		}
		return r.createElementProxy(dom, sel, elements[0])
	}
}

func (r *Runtime) all(dom *DOM, selector func(string) string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return r.vm.NewArray()
		}
		sel := selector(call.Arguments[0].String())
		elements := dom.Query(sel)
		proxies := make([]any, 0, len(elements))
		for _, elem := range elements {
			proxies = append(proxies, r.createElementProxy(dom, sel, elem))
		}
		return r.vm.NewArray(proxies...)
	}
}

// createElementProxy exposes a read-mostly view of elem; attribute writes
// are recorded on dom.
func (r *Runtime) createElementProxy(dom *DOM, selector string, elem *Element) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("tagName", strings.ToUpper(elem.TagName))
	_ = obj.Set("id", elem.ID)
	_ = obj.Set("className", elem.ClassName)
	_ = obj.Set("textContent", elem.TextContent)
	_ = obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := elem.Attribute(name); ok {
			return r.vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(name, value string) {
		elem.SetAttribute(name, value)
		dom.RecordChange(DOMChange{
			Type:     "set_attribute",
			Selector: selector,
			Property: name,
			Value:    value,
		})
	})
	return obj
}

// Reset replaces the VM, dropping all script state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrClosed
	}
	return r.init()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.norm = nil
	r.console = nil
	return nil
}
