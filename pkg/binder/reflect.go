package binder

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	timeType            = reflect.TypeFor[time.Time]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func bindToStruct(v any, tag string, values map[string][]string, bindErr error) error {
	return bindFields(v, tag, func(name string) []string { return values[name] }, bindErr)
}

// bindFields sets every tagged exported field of the struct v points to.
// Fields without a value keep their zero value.
func bindFields(v any, tag string, lookup func(name string) []string, bindErr error) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer", bindErr)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a pointer to struct", bindErr)
	}

	rt := rv.Type()
	for i := range rv.NumField() {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		name, ok := fieldName(sf, tag)
		if !ok {
			continue
		}
		vals := lookup(name)
		if len(vals) == 0 {
			continue
		}
		if err := setField(field, vals); err != nil {
			return fmt.Errorf("%w: %s: %v", bindErr, name, err)
		}
	}
	return nil
}

// fieldName only binds fields carrying the tag, so one struct can mix
// query, path and JSON fields.
func fieldName(sf reflect.StructField, tag string) (string, bool) {
	name, _, _ := strings.Cut(sf.Tag.Get(tag), ",")
	if name == "" || name == "-" {
		return "", false
	}
	return name, true
}

func setField(field reflect.Value, values []string) error {
	t := field.Type()
	switch {
	case t.Kind() == reflect.Pointer:
		ptr := reflect.New(t.Elem())
		if err := setField(ptr.Elem(), values); err != nil {
			return err
		}
		field.Set(ptr)
		return nil
	case t == timeType:
		ts, err := parseTime(values[0])
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(ts))
		return nil
	case reflect.PointerTo(t).Implements(textUnmarshalerType):
		return field.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(values[0]))
	case t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8:
		var items []string
		for _, v := range values {
			for item := range strings.SplitSeq(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
		}
		slice := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			if err := setField(slice.Index(i), []string{item}); err != nil {
				return err
			}
		}
		field.Set(slice)
		return nil
	}

	value := values[0]
	switch t.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, t.Bits())
		if err != nil {
			return fmt.Errorf("invalid int value %q", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, t.Bits())
		if err != nil {
			return fmt.Errorf("invalid uint value %q", value)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, t.Bits())
		if err != nil {
			return fmt.Errorf("invalid float value %q", value)
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value %q", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type %s", t)
	}
	return nil
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time value %q, expected RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
