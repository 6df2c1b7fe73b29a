package awsinvoker

import (
	"fmt"
	"reflect"
	"time"

	"github.com/aws/smithy-go/middleware"
	"github.com/spf13/cast"

	"github.com/conduit-lang/dynres/internal/naming"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	metadataType = reflect.TypeOf(middleware.Metadata{})
)

// typeTag names the value shape of an input member
func typeTag(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "timestamp"
	}

	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "blob"
		}
		return "list"
	case reflect.Map:
		return "map"
	case reflect.Struct:
		return "structure"
	default:
		return "any"
	}
}

// assignStruct sets the members of dst from a wire-keyed map. Keys may also
// use the local spelling of a member name.
func assignStruct(dst reflect.Value, params map[string]any, tc naming.Transcoder) error {
	for key, value := range params {
		if value == nil {
			continue
		}

		field := dst.FieldByName(key)
		if !field.IsValid() {
			field = dst.FieldByName(tc.ToWire(key))
		}
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("unknown parameter %q", key)
		}

		if err := assign(field, value, tc); err != nil {
			return fmt.Errorf("parameter %s: %w", key, err)
		}
	}
	return nil
}

// assign converts value into dst's type and stores it
func assign(dst reflect.Value, value any, tc naming.Transcoder) error {
	if value == nil {
		return nil
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if dst.Type() == timeType {
		t, err := cast.ToTimeE(value)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), value, tc); err != nil {
			return err
		}
		dst.Set(elem)

	case reflect.String:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		dst.SetString(s)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(value)
		if err != nil {
			return err
		}
		if dst.OverflowUint(n) {
			return fmt.Errorf("%d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)

	case reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		dst.SetBool(b)

	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		dst.SetFloat(f)

	case reflect.Slice:
		return assignSlice(dst, src, tc)

	case reflect.Map:
		return assignMap(dst, src, tc)

	case reflect.Struct:
		m, err := cast.ToStringMapE(value)
		if err != nil {
			return err
		}
		return assignStruct(dst, m, tc)

	case reflect.Interface:
		if !src.Type().Implements(dst.Type()) {
			return fmt.Errorf("%T does not implement %s", value, dst.Type())
		}
		dst.Set(src)

	default:
		return fmt.Errorf("cannot assign %T to %s", value, dst.Type())
	}
	return nil
}

func assignSlice(dst, src reflect.Value, tc naming.Transcoder) error {
	if dst.Type().Elem().Kind() == reflect.Uint8 && src.Kind() == reflect.String {
		dst.SetBytes([]byte(src.String()))
		return nil
	}

	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		// A single value becomes a one element list
		out := reflect.MakeSlice(dst.Type(), 1, 1)
		if err := assign(out.Index(0), src.Interface(), tc); err != nil {
			return err
		}
		dst.Set(out)
		return nil
	}

	out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := assign(out.Index(i), src.Index(i).Interface(), tc); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

func assignMap(dst, src reflect.Value, tc naming.Transcoder) error {
	if src.Kind() != reflect.Map {
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}

	out := reflect.MakeMapWithSize(dst.Type(), src.Len())
	iter := src.MapRange()
	for iter.Next() {
		k := reflect.New(dst.Type().Key()).Elem()
		if err := assign(k, iter.Key().Interface(), tc); err != nil {
			return fmt.Errorf("key %v: %w", iter.Key(), err)
		}
		v := reflect.New(dst.Type().Elem()).Elem()
		if err := assign(v, iter.Value().Interface(), tc); err != nil {
			return fmt.Errorf("key %v: %w", iter.Key(), err)
		}
		out.SetMapIndex(k, v)
	}
	dst.Set(out)
	return nil
}

// toWire flattens an SDK output value into maps, slices and scalars. Nil
// pointers become nil and are omitted from enclosing structures.
func toWire(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return toWire(v.Elem())

	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface()
		}
		out := make(map[string]any)
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Type == metadataType {
				continue
			}
			if value := toWire(v.Field(i)); value != nil {
				out[f.Name] = value
			}
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), v.Bytes()...)
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = toWire(v.Index(i))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(toWire(iter.Key()))] = toWire(iter.Value())
		}
		return out

	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Bool:
		return v.Bool()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		return v.Interface()
	}
}
