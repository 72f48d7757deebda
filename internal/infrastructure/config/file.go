package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile loads configuration from a TOML file layered between the
// defaults and the environment: a setting present in the environment
// wins over the file.
//
// Keys are the lowercased environment variable names. Tables join their
// name to the key with an underscore, so both of these set
// SANDBOX_POOL_SIZE:
//
//	sandbox_pool_size = 8
//
//	[sandbox]
//	pool_size = 8
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.apply(data); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) apply(data []byte) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return err
	}
	values := make(map[string]any)
	flatten("", doc, values)

	fields := make(map[string]reflect.Value)
	collect(reflect.ValueOf(c).Elem(), fields)

	for key, raw := range values {
		field, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown setting %q", key)
		}
		if _, set := os.LookupEnv(strings.ToUpper(key)); set {
			continue
		}
		if err := assign(field, raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func flatten(prefix string, doc map[string]any, out map[string]any) {
	for k, v := range doc {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		if table, ok := v.(map[string]any); ok {
			flatten(key, table, out)
			continue
		}
		out[key] = v
	}
}

// collect indexes the settable leaves of v by their lowercased envconfig name.
func collect(v reflect.Value, out map[string]reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() == reflect.Struct {
			collect(v.Field(i), out)
			continue
		}
		if name := f.Tag.Get("envconfig"); name != "" {
			out[strings.ToLower(name)] = v.Field(i)
		}
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

func assign(field reflect.Value, raw any) error {
	if field.Type() == durationType {
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected a duration string, got %T", raw)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", raw)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("expected a boolean, got %T", raw)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("expected an integer, got %T", raw)
		}
		field.SetInt(n)
	case reflect.Uint32:
		n, ok := raw.(int64)
		if !ok || n < 0 {
			return fmt.Errorf("expected a non-negative integer, got %v", raw)
		}
		field.SetUint(uint64(n))
	case reflect.Float64:
		switch n := raw.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		default:
			return fmt.Errorf("expected a number, got %T", raw)
		}
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("expected an array, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case int64:
				out = append(out, strconv.FormatInt(s, 10))
			default:
				return fmt.Errorf("expected an array of strings, got %T", item)
			}
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported setting type %s", field.Type())
	}
	return nil
}
