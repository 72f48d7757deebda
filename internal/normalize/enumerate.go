package normalize

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type structField struct {
	name  string
	index []int
}

var fieldCache sync.Map // reflect.Type -> []structField

// structFields lists the exported fields of t in declaration order, named
// by their JSON tag when one is present. Fields tagged "-" are skipped.
func structFields(t reflect.Type) []structField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]structField)
	}
	fields := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, structField{name: name, index: sf.Index})
	}
	fieldCache.Store(t, fields)
	return fields
}

// each calls fn for every own entry of source in enumeration order until
// fn returns false. Sequences use their decimal index as key; map keys are
// visited sorted by their string form.
func each(source any, fn func(key string, child any) bool) {
	switch s := source.(type) {
	case Fields:
		for _, f := range s {
			if !fn(f.Key, f.Value) {
				return
			}
		}
		return
	case []any:
		for i, child := range s {
			if !fn(strconv.Itoa(i), child) {
				return
			}
		}
		return
	case map[string]any:
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !fn(k, s[k]) {
				return
			}
		}
		return
	}

	rv, ok := indirect(reflect.ValueOf(source))
	if !ok {
		return
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !fn(strconv.Itoa(i), rv.Index(i).Interface()) {
				return
			}
		}
	case reflect.Map:
		type entry struct {
			key   string
			value reflect.Value
		}
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, entry{key: mapKey(iter.Key()), value: iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		for _, e := range entries {
			if !fn(e.key, e.value.Interface()) {
				return
			}
		}
	case reflect.Struct:
		for _, f := range structFields(rv.Type()) {
			if !fn(f.name, rv.FieldByIndex(f.index).Interface()) {
				return
			}
		}
	}
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}
