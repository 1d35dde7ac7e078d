package normalizer

import (
	"fmt"
	"reflect"

	"github.com/Ramsey-B/docket/pkg/models"
)

var timestampType = reflect.TypeOf(models.Timestamp{})

// unrecognizedDate finds the first date anywhere in v that failed to parse,
// child collections included.
func unrecognizedDate(v reflect.Value, path string) error {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem() == timestampType {
			if raw, ok := v.Interface().(*models.Timestamp).Unrecognized(); ok {
				return fmt.Errorf("field '%s' has unrecognized date %q", path, raw)
			}
			return nil
		}
		return unrecognizedDate(v.Elem(), path)

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := unrecognizedDate(v.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Name
			if path != "" {
				name = path + "." + name
			}
			if err := unrecognizedDate(v.Field(i), name); err != nil {
				return err
			}
		}
	}
	return nil
}
