package monitor

import (
	"reflect"
	"strings"
)

// Descriptor renders t as a JVM-style type descriptor.
//
// Mapping:
//   - bool Z, int8/uint8 B, int16/uint16 S, int32/uint32 I, int/uint/int64/uint64/uintptr J,
//     float32 F, float64 D
//   - named types: L<pkgpath>/<Name>; (predeclared names have no path: Lstring;)
//   - pointers: the pointee's descriptor (references are implicit)
//   - slices and arrays: [ followed by the element descriptor
//   - other unnamed types: L<go type string>;
//
// A nil type renders as the descriptor of Monitor itself.
func Descriptor(t reflect.Type) string {
	if t == nil {
		t = monitorType
	}

	var sb strings.Builder
	writeDescriptor(&sb, t)
	return sb.String()
}

var monitorType = reflect.TypeOf((*Monitor)(nil)).Elem()

func writeDescriptor(sb *strings.Builder, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.PkgPath() == "" {
		if c, ok := primitive(t.Kind()); ok {
			sb.WriteByte(c)
			return
		}
	}

	switch {
	case t.Name() != "":
		sb.WriteByte('L')
		if p := t.PkgPath(); p != "" {
			sb.WriteString(p)
			sb.WriteByte('/')
		}
		sb.WriteString(t.Name())
		sb.WriteByte(';')
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		sb.WriteByte('[')
		writeDescriptor(sb, t.Elem())
	default:
		sb.WriteByte('L')
		sb.WriteString(t.String())
		sb.WriteByte(';')
	}
}

func primitive(k reflect.Kind) (byte, bool) {
	switch k {
	case reflect.Bool:
		return 'Z', true
	case reflect.Int8, reflect.Uint8:
		return 'B', true
	case reflect.Int16, reflect.Uint16:
		return 'S', true
	case reflect.Int32, reflect.Uint32:
		return 'I', true
	case reflect.Int, reflect.Uint, reflect.Int64, reflect.Uint64, reflect.Uintptr:
		return 'J', true
	case reflect.Float32:
		return 'F', true
	case reflect.Float64:
		return 'D', true
	}
	return 0, false
}
