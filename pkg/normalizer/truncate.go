package normalizer

import (
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Truncate cuts value to at most limit characters. A limit of zero means unbounded.
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

// clean trims every string reachable from v and truncates it to the limit in the
// field's maxlen tag. Slices and string pointers are replaced rather than written
// through, so the caller's payload is left untouched.
func clean(v reflect.Value, limit int) {
	switch v.Kind() {
	case reflect.String:
		v.SetString(Truncate(strings.TrimSpace(v.String()), limit))

	case reflect.Pointer:
		if v.IsNil() || v.Elem().Kind() != reflect.String {
			return
		}
		s := Truncate(strings.TrimSpace(v.Elem().String()), limit)
		v.Set(reflect.ValueOf(&s))

	case reflect.Slice:
		if v.IsNil() || v.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		copied := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(copied, v)
		for i := 0; i < copied.Len(); i++ {
			clean(copied.Index(i), limit)
		}
		v.Set(copied)

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			fieldLimit, _ := strconv.Atoi(field.Tag.Get("maxlen"))
			clean(v.Field(i), fieldLimit)
		}
	}
}

// cleanRecord returns a trimmed, truncated copy of rec.
func cleanRecord[T any](rec T) T {
	v := reflect.ValueOf(&rec).Elem()
	clean(v, 0)
	return rec
}
