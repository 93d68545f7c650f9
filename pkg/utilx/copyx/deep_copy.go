// Package copyx provides deep copies of document attribute trees.
package copyx

import (
	"reflect"
)

// DeepCopy performs a deep copy from the source (src) to the destination (dst).
// It uses reflection to recursively copy all fields of the source object,
// ensuring that nested structures are also duplicated rather than simply referenced.
// dst and src must be pointers to the same type.
func DeepCopy(dst, src interface{}) {
	dstValue := reflect.ValueOf(dst).Elem()
	srcValue := reflect.ValueOf(src).Elem()

	deepCopyValue(dstValue, srcValue)
}

// CloneMap returns a deep copy of an attribute map. Nested maps, slices and
// interface values are duplicated, so mutating the copy never affects m.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	DeepCopy(&out, &m)

	return out
}

func deepCopyValue(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Ptr:
		if !src.IsNil() {
			dst.Set(reflect.New(src.Elem().Type()))
			deepCopyValue(dst.Elem(), src.Elem())
		}
	case reflect.Interface:
		if src.IsNil() {
			return
		}

		elem := reflect.New(src.Elem().Type()).Elem()
		deepCopyValue(elem, src.Elem())
		dst.Set(elem)
	case reflect.Struct:
		// Structs with unexported state (time.Time, ...) are copied by value.
		if !allFieldsExported(src.Type()) {
			dst.Set(src)
			return
		}

		for i := 0; i < src.NumField(); i++ {
			deepCopyValue(dst.Field(i), src.Field(i))
		}
	case reflect.Slice:
		if !src.IsNil() {
			dst.Set(reflect.MakeSlice(src.Type(), src.Len(), src.Cap()))
			for i := 0; i < src.Len(); i++ {
				deepCopyValue(dst.Index(i), src.Index(i))
			}
		}
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			deepCopyValue(dst.Index(i), src.Index(i))
		}
	case reflect.Map:
		if !src.IsNil() {
			dst.Set(reflect.MakeMapWithSize(src.Type(), src.Len()))
			iter := src.MapRange()
			for iter.Next() {
				dstValue := reflect.New(src.Type().Elem()).Elem()
				deepCopyValue(dstValue, iter.Value())
				dst.SetMapIndex(iter.Key(), dstValue)
			}
		}
	default:
		dst.Set(src)
	}
}

func allFieldsExported(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			return false
		}
	}

	return true
}
