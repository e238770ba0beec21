// Package sqlfmt renders Go values and identifiers as MySQL lexical SQL.
package sqlfmt

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SQLer is implemented by values that render themselves as raw SQL.
// The output is emitted verbatim; escaping it is the implementer's job.
type SQLer interface {
	ToSQLString() string
}

var charsRe = regexp.MustCompile(`[\x00\x08\t\n\r\x1a\\"']`)

var charsEscape = map[string]string{
	"\x00": `\0`,
	"\x08": `\b`,
	"\t":   `\t`,
	"\n":   `\n`,
	"\r":   `\r`,
	"\x1a": `\Z`,
	`"`:    `\"`,
	"'":    `\'`,
	`\`:    `\\`,
}

// EscapeID quotes an identifier with backticks, doubling embedded backticks.
// Unless forbidQualified is set, dots split the name into qualified parts
// ("a.b" becomes `a`.`b`). Lists are escaped item by item and joined with ", ".
func EscapeID(v any, forbidQualified bool) string {
	switch id := v.(type) {
	case []string:
		parts := make([]string, len(id))
		for i, s := range id {
			parts[i] = EscapeID(s, forbidQualified)
		}
		return strings.Join(parts, ", ")
	case []any:
		parts := make([]string, len(id))
		for i, s := range id {
			parts[i] = EscapeID(s, forbidQualified)
		}
		return strings.Join(parts, ", ")
	}

	name, ok := v.(string)
	if !ok {
		name = fmt.Sprint(v)
	}
	name = strings.ReplaceAll(name, "`", "``")
	if !forbidQualified {
		name = strings.ReplaceAll(name, ".", "`.`")
	}
	return "`" + name + "`"
}

// Escape renders v as a MySQL literal.
//
// Lists become comma separated items (nested lists are parenthesised), byte
// slices become X'..' hex literals, times are rendered in timeZone, maps with
// string keys become a `k` = v assignment list unless stringifyObjects is set.
func Escape(v any, stringifyObjects bool, timeZone string) string {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "NULL"
	}
	switch val := v.(type) {
	case nil:
		return "NULL"
	case SQLer:
		return val.ToSQLString()
	case func() any:
		return Escape(val(), stringifyObjects, timeZone)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return escapeString(val)
	case []byte:
		return bufferToString(val)
	case time.Time:
		return DateToString(val, timeZone)
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return escapeString(fmt.Sprint(v))
		}
		return Escape(dv, stringifyObjects, timeZone)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "NULL"
		}
		return Escape(rv.Elem().Interface(), stringifyObjects, timeZone)
	case reflect.Func:
		if rv.IsNil() {
			return "NULL"
		}
		if rv.Type().NumIn() == 0 && rv.Type().NumOut() > 0 {
			return Escape(rv.Call(nil)[0].Interface(), stringifyObjects, timeZone)
		}
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		return escapeString(rv.String())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return bufferToString(rv.Bytes())
		}
		return arrayToList(rv, timeZone)
	case reflect.Array:
		return arrayToList(rv, timeZone)
	case reflect.Map:
		if !stringifyObjects && rv.Type().Key().Kind() == reflect.String {
			return objectToValues(rv, timeZone)
		}
	}

	if s, ok := v.(fmt.Stringer); ok {
		return escapeString(s.String())
	}
	return escapeString(fmt.Sprint(v))
}

// listValue reports whether v should be rendered as a nested list.
func listValue(v any) (reflect.Value, bool) {
	switch v.(type) {
	case nil, []byte, SQLer, driver.Valuer:
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return rv, rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return rv, true
	}
	return reflect.Value{}, false
}

func arrayToList(rv reflect.Value, timeZone string) string {
	var b strings.Builder
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		item := rv.Index(i).Interface()
		if nested, ok := listValue(item); ok {
			b.WriteString("(" + arrayToList(nested, timeZone) + ")")
			continue
		}
		b.WriteString(Escape(item, true, timeZone))
	}
	return b.String()
}

// objectToValues renders a string keyed map as an assignment list. Keys are
// sorted so the output is stable; function values are skipped.
func objectToValues(rv reflect.Value, timeZone string) string {
	keys := make([]string, 0, rv.Len())
	values := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		val := iter.Value()
		if val.Kind() == reflect.Interface && !val.IsNil() {
			val = val.Elem()
		}
		if val.Kind() == reflect.Func {
			continue
		}
		k := iter.Key().String()
		keys = append(keys, k)
		values[k] = iter.Value().Interface()
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(EscapeID(k, false) + " = " + Escape(values[k], true, timeZone))
	}
	return b.String()
}

func bufferToString(buf []byte) string {
	return "X" + escapeString(hex.EncodeToString(buf))
}

func escapeString(val string) string {
	return "'" + charsRe.ReplaceAllStringFunc(val, func(ch string) string {
		return charsEscape[ch]
	}) + "'"
}
