package normalize

import (
	"reflect"
	"strconv"
	"strings"
)

// visitor holds the state of one top-level normalization. Its memo holds
// the references on the active recursion path only.
type visitor struct {
	host          *Host
	maxProperties int
	memo          map[any]struct{}
}

func newVisitor(host *Host, maxProperties int) *visitor {
	return &visitor{
		host:          host,
		maxProperties: maxProperties,
		memo:          make(map[any]struct{}),
	}
}

func (w *visitor) visit(key string, value any, depth int) any {
	value = w.host.unwrap(value)
	if value == nil || isNilValue(reflect.ValueOf(value)) {
		return nil
	}
	if selfReferential(value) {
		return MarkerCircular
	}

	if hook, ok := w.host.hook(key, value); ok {
		out, err := callHook(hook)
		if err != nil {
			return NonSerializable(err.Error())
		}
		return out
	}

	if p, ok := primitive(value); ok {
		return p
	}

	label := w.host.stringify(key, value)
	if !strings.HasPrefix(label, objectPrefix) {
		return label
	}
	if depth <= 0 {
		return strings.Replace(label, "object ", "", 1)
	}

	source, err := w.plainObject(value)
	if err != nil {
		return NonSerializable(err.Error())
	}

	id, tracked := w.host.identity(value)
	if tracked {
		if _, seen := w.memo[id]; seen {
			return MarkerCircular
		}
		w.memo[id] = struct{}{}
		defer delete(w.memo, id)
	}

	if w.host.isArray(value) {
		return w.visitSequence(source, depth)
	}
	return w.visitMapping(source, depth)
}

// visitSequence renders a sequence source. A Fields source is sparse: its
// keys are element indices and missing indices become nil. Only present
// elements count toward the property budget.
func (w *visitor) visitSequence(source any, depth int) []any {
	out := []any{}
	_, sparse := source.(Fields)
	added := 0
	each(source, func(key string, child any) bool {
		if sparse {
			if i, err := strconv.Atoi(key); err == nil && i > len(out) {
				if i-len(out) > maxHoleRun {
					out = append(out, MarkerMaxProperties)
					return false
				}
				out = append(out, make([]any, i-len(out))...)
			}
		}
		if added >= w.maxProperties {
			out = append(out, MarkerMaxProperties)
			return false
		}
		out = append(out, w.visit(key, child, depth-1))
		added++
		return true
	})
	return out
}

// maxHoleRun bounds the run of missing elements padded between two present
// ones, so a sparse array with a huge length cannot inflate the output.
const maxHoleRun = 1 << 16

func (w *visitor) visitMapping(source any, depth int) Fields {
	out := Fields{}
	each(source, func(key string, child any) bool {
		if len(out) >= w.maxProperties {
			out = append(out, Field{Key: key, Value: MarkerMaxProperties})
			return false
		}
		out = append(out, Field{Key: key, Value: w.visit(key, child, depth-1)})
		return true
	})
	return out
}

func (w *visitor) plainObject(value any) (source any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return w.host.toPlainObject(value), nil
}

func callHook(hook func() (any, error)) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, panicError{r}
		}
	}()
	return hook()
}

type panicError struct{ value any }

func (e panicError) Error() string { return panicMessage(e.value) }
