package normalize

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name string
	Boss *person
}

type tagged struct {
	Visible string `json:"visible"`
	Hidden  string `json:"-"`
	Plain   int
	private int
}

type level int

type selfPointer *selfPointer

func TestNormalizePrimitives(t *testing.T) {
	x := 5
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{name: "nil", input: nil, want: nil},
		{name: "int", input: 42, want: 42},
		{name: "string", input: "x", want: "x"},
		{name: "bool", input: true, want: true},
		{name: "float", input: 1.5, want: 1.5},
		{name: "NaN", input: math.NaN(), want: MarkerNaN},
		{name: "float32 NaN", input: float32(math.NaN()), want: MarkerNaN},
		{name: "positive infinity", input: math.Inf(1), want: MarkerInfinity},
		{name: "negative infinity", input: math.Inf(-1), want: MarkerNegInfinity},
		{name: "undefined", input: Undefined, want: MarkerUndefined},
		{name: "named int", input: level(3), want: 3},
		{name: "pointer to int", input: &x, want: 5},
		{name: "nil pointer", input: (*person)(nil), want: nil},
		{name: "nil map", input: map[string]any(nil), want: nil},
		{name: "utf8 bytes", input: []byte("hi"), want: "hi"},
		{name: "binary bytes", input: []byte{0xff, 0xfe}, want: "[Bytes: 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeCircular(t *testing.T) {
	t.Run("map refers to itself", func(t *testing.T) {
		m := map[string]any{"name": "root"}
		m["self"] = m

		assert.Equal(t, Fields{
			{Key: "name", Value: "root"},
			{Key: "self", Value: MarkerCircular},
		}, Normalize(m))
	})

	t.Run("pointer cycle between two structs", func(t *testing.T) {
		a := &person{Name: "a"}
		b := &person{Name: "b", Boss: a}
		a.Boss = b

		assert.Equal(t, Fields{
			{Key: "Name", Value: "a"},
			{Key: "Boss", Value: Fields{
				{Key: "Name", Value: "b"},
				{Key: "Boss", Value: MarkerCircular},
			}},
		}, Normalize(a))
	})

	t.Run("slice contains itself", func(t *testing.T) {
		s := []any{1, nil}
		s[1] = s

		assert.Equal(t, []any{1, MarkerCircular}, Normalize(s))
	})

	t.Run("terminates with finite budgets", func(t *testing.T) {
		a := map[string]any{}
		b := map[string]any{"a": a}
		a["b"] = b

		out := Normalize(a, WithDepth(10), WithMaxProperties(10))
		assert.Equal(t, Fields{
			{Key: "b", Value: Fields{{Key: "a", Value: MarkerCircular}}},
		}, out)
	})
}

func TestNormalizeSelfReferentialPointers(t *testing.T) {
	var x any
	x = &x
	var p selfPointer
	p = &p

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{name: "interface holding its own address", input: x, want: MarkerCircular},
		{name: "named pointer to itself", input: p, want: MarkerCircular},
		{name: "nested in a map", input: map[string]any{"x": x, "n": 1}, want: Fields{
			{Key: "n", Value: 1},
			{Key: "x", Value: MarkerCircular},
		}},
		{name: "nested in a slice", input: []any{p}, want: []any{MarkerCircular}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan any, 1)
			go func() { done <- Normalize(tt.input, WithDepth(3)) }()

			select {
			case got := <-done:
				assert.Equal(t, tt.want, got)
			case <-time.After(3 * time.Second):
				t.Fatal("Normalize did not return")
			}
		})
	}

	t.Run("helpers stop on the cycle", func(t *testing.T) {
		_, ok := indirect(reflect.ValueOf(x))
		assert.False(t, ok)
		_, ok = indirect(reflect.ValueOf(p))
		assert.False(t, ok)

		_, tracked := refKey(p)
		assert.True(t, tracked)
		assert.Equal(t, "[object selfPointer]", Stringify("", p, nil))
	})
}

func TestNormalizeSharedSiblingsAreExpandedTwice(t *testing.T) {
	shared := map[string]any{"v": 1}
	root := map[string]any{"left": shared, "right": shared}

	assert.Equal(t, map[string]any{
		"left":  map[string]any{"v": 1},
		"right": map[string]any{"v": 1},
	}, Plain(Normalize(root)))
}

func TestNormalizeDepth(t *testing.T) {
	input := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": map[string]any{"d": 1},
			},
		},
	}

	t.Run("bounded", func(t *testing.T) {
		assert.Equal(t, map[string]any{
			"a": map[string]any{"b": "[Object]"},
		}, Plain(Normalize(input, WithDepth(2))))
	})

	t.Run("unlimited", func(t *testing.T) {
		assert.Equal(t, input, Plain(Normalize(input)))
	})

	t.Run("depth zero names the type", func(t *testing.T) {
		assert.Equal(t, "[person]", Normalize(&person{Name: "x"}, WithDepth(0)))
		assert.Equal(t, "[Array]", Normalize([]int{1, 2}, WithDepth(0)))
		assert.Equal(t, "[Object]", Normalize(map[string]int{"a": 1}, WithDepth(0)))
	})

	t.Run("negative depth behaves as zero", func(t *testing.T) {
		assert.Equal(t, "[Object]", Normalize(map[string]int{"a": 1}, WithDepth(-4)))
	})
}

func TestNormalizeMaxProperties(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		input := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		out := Normalize(input, WithMaxProperties(3))
		require.IsType(t, []any{}, out)
		assert.Equal(t, []any{0, 1, 2, MarkerMaxProperties}, out)
		assert.Len(t, out, 4)
	})

	t.Run("mapping marks the next key", func(t *testing.T) {
		input := map[string]int{"c": 3, "a": 1, "b": 2, "d": 4}

		assert.Equal(t, Fields{
			{Key: "a", Value: 1},
			{Key: "b", Value: 2},
			{Key: "c", Value: MarkerMaxProperties},
		}, Normalize(input, WithMaxProperties(2)))
	})

	t.Run("budget is per node", func(t *testing.T) {
		input := [][]int{{1, 2, 3}, {4, 5, 6}}

		assert.Equal(t, []any{
			[]any{1, 2, MarkerMaxProperties},
			[]any{4, 5, MarkerMaxProperties},
		}, Normalize(input, WithMaxProperties(2)))
	})

	t.Run("zero budget", func(t *testing.T) {
		assert.Equal(t, []any{MarkerMaxProperties}, Normalize([]string{"a"}, WithMaxProperties(0)))
		assert.Equal(t, []any{}, Normalize([]string{}, WithMaxProperties(0)))
	})
}

func TestNormalizeReturnsIndependentCopy(t *testing.T) {
	input := map[string]any{
		"s":      "x",
		"n":      1.5,
		"b":      true,
		"none":   nil,
		"list":   []any{"a", 2},
		"nested": map[string]any{"k": "v"},
	}

	out := Normalize(input)
	require.Equal(t, input, Plain(out))

	fields := out.(Fields)
	nested, _ := fields.Get("nested")
	nested.(Fields)[0].Value = "changed"
	list, _ := fields.Get("list")
	list.([]any)[0] = "changed"
	assert.Equal(t, "v", input["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", input["list"].([]any)[0])
}

func TestNormalizeStructs(t *testing.T) {
	out := Normalize(tagged{Visible: "yes", Hidden: "no", Plain: 7, private: 1})

	assert.Equal(t, Fields{{Key: "visible", Value: "yes"}, {Key: "Plain", Value: 7}}, out)
}

func TestNormalizeFieldsKeepOrder(t *testing.T) {
	input := Fields{
		{Key: "b", Value: 1},
		{Key: "a", Value: Fields{{Key: "d", Value: math.NaN()}, {Key: "c", Value: 2}}},
	}

	assert.Equal(t, Fields{
		{Key: "b", Value: 1},
		{Key: "a", Value: Fields{{Key: "d", Value: MarkerNaN}, {Key: "c", Value: 2}}},
	}, Normalize(input))
	assert.Equal(t, Fields{{Key: "b", Value: 1}, {Key: "a", Value: MarkerMaxProperties}}, Normalize(input, WithMaxProperties(1)))
	assert.Equal(t, "[Object]", Normalize(input, WithDepth(0)))
}

func TestNormalizeMapKeys(t *testing.T) {
	out := Normalize(map[int]string{2: "two", 1: "one"})

	assert.Equal(t, Fields{{Key: "1", Value: "one"}, {Key: "2", Value: "two"}}, out)
}

func TestNormalizeErrors(t *testing.T) {
	t.Run("opaque error", func(t *testing.T) {
		assert.Equal(t, Fields{
			{Key: "name", Value: "errors.errorString"},
			{Key: "message", Value: "boom"},
		}, Normalize(errors.New("boom")))
	})

	t.Run("wrapped error keeps its cause", func(t *testing.T) {
		err := fmt.Errorf("loading config: %w", errors.New("boom"))

		assert.Equal(t, Fields{
			{Key: "name", Value: "fmt.wrapError"},
			{Key: "message", Value: "loading config: boom"},
			{Key: "cause", Value: Fields{
				{Key: "name", Value: "errors.errorString"},
				{Key: "message", Value: "boom"},
			}},
		}, Normalize(err))
	})

	t.Run("error fields are exposed", func(t *testing.T) {
		err := &os.PathError{Op: "open", Path: "/tmp/x", Err: errors.New("denied")}

		out := Normalize(err, WithDepth(1))
		assert.Equal(t, Fields{
			{Key: "name", Value: "fs.PathError"},
			{Key: "message", Value: "open /tmp/x: denied"},
			{Key: "Op", Value: "open"},
			{Key: "Path", Value: "/tmp/x"},
			{Key: "Err", Value: "[errorString]"},
		}, out)
	})

	t.Run("joined errors", func(t *testing.T) {
		err := errors.Join(errors.New("a"), errors.New("b"))

		out := Normalize(err, WithDepth(2)).(Fields).Map()
		assert.Equal(t, "errors.joinError", out["name"])
		assert.Equal(t, []any{"[errorString]", "[errorString]"}, out["errors"])
	})
}

func TestNormalizeWalkFailureIsContained(t *testing.T) {
	host := DefaultHost()
	host.Identity = func(any) (any, bool) { panic("identity exploded") }

	out := Normalize(map[string]any{"a": 1}, WithHost(host))

	assert.Equal(t, Fields{{Key: ErrorKey, Value: "**non-serializable** (identity exploded)"}}, out)
}

func TestNormalizePlainObjectFailureIsLocal(t *testing.T) {
	host := DefaultHost()
	host.ToPlainObject = func(v any) (any, bool) {
		if m, ok := v.(map[string]any); ok && m["hostile"] == true {
			panic("getter threw")
		}
		return nil, false
	}

	out := Normalize(map[string]any{
		"ok":  map[string]any{"v": 1},
		"bad": map[string]any{"hostile": true},
	}, WithHost(host))

	assert.Equal(t, Fields{
		{Key: "bad", Value: "**non-serializable** (getter threw)"},
		{Key: "ok", Value: Fields{{Key: "v", Value: 1}}},
	}, out)
}

func TestNormalizerConcurrentUse(t *testing.T) {
	m := map[string]any{"name": "root", "list": []any{1, 2, 3}}
	m["self"] = m
	n := New(WithDepth(5), WithMaxProperties(10))
	want := n.Normalize(m)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = n.Normalize(m)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestNormalizerWith(t *testing.T) {
	base := New(WithDepth(1))
	deeper := base.With(WithDepth(2))

	input := map[string]any{"a": map[string]any{"b": 1}}
	assert.Equal(t, Fields{{Key: "a", Value: "[Object]"}}, base.Normalize(input))
	assert.Equal(t, input, Plain(deeper.Normalize(input)))
}

func TestNonSerializable(t *testing.T) {
	marker := NonSerializable("bad getter")

	assert.Equal(t, "**non-serializable** (bad getter)", marker)
	assert.True(t, IsNonSerializable(marker))
	assert.False(t, IsNonSerializable("[object Foo]"))
	assert.True(t, strings.HasPrefix(marker, "**non-serializable**"))
}
