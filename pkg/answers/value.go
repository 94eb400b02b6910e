package answers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies which member of the Value union is populated.
type Kind string

const (
	KindNull   Kind = "null"
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "boolean"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// Value is a JSON-compatible answer value.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
	arr  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// Int returns a numeric value from an integer.
func Int(i int64) Value { return Number(decimal.NewFromInt(i)) }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array value holding the given elements.
func Array(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

// Object returns an object value holding a copy of the given fields.
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, obj: cp}
}

// FromAny converts a decoded JSON/YAML value into a Value.
// Unsupported Go types fall back to their fmt representation as a string.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case int:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint:
		return fromUint64(uint64(val))
	case uint8:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	case uint64:
		return fromUint64(val)
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return String(val.String())
		}
		return Number(d)
	case decimal.Decimal:
		return Number(val)
	case []any:
		elems := make([]Value, len(val))
		for i, e := range val {
			elems[i] = FromAny(e)
		}
		return Value{kind: KindArray, arr: elems}
	case []string:
		elems := make([]Value, len(val))
		for i, e := range val {
			elems[i] = String(e)
		}
		return Value{kind: KindArray, arr: elems}
	case map[string]any:
		fields := make(map[string]Value, len(val))
		for k, e := range val {
			fields[k] = FromAny(e)
		}
		return Value{kind: KindObject, obj: fields}
	case map[any]any:
		fields := make(map[string]Value, len(val))
		for k, e := range val {
			fields[fmt.Sprint(k)] = FromAny(e)
		}
		return Value{kind: KindObject, obj: fields}
	case map[string]Value:
		return Object(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elems[i] = FromAny(rv.Index(i).Interface())
		}
		return Value{kind: KindArray, arr: elems}
	case reflect.Map:
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[fmt.Sprint(iter.Key().Interface())] = FromAny(iter.Value().Interface())
		}
		return Value{kind: KindObject, obj: fields}
	}
	return String(fmt.Sprint(v))
}

// fromFloat converts a float, mapping NaN and infinities to null since they
// have no JSON representation.
func fromFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Number(decimal.NewFromFloat(f))
}

// Kind returns the populated member of the union.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// IsBlank reports whether v is null or the empty string.
func (v Value) IsBlank() bool {
	return v.IsNull() || (v.kind == KindString && v.str == "")
}

// Truthy reports whether v counts as "set" in a template conditional:
// a non-empty string, a non-zero number, a non-empty array or object, or true.
func (v Value) Truthy() bool {
	switch v.Kind() {
	case KindString:
		return v.str != ""
	case KindNumber:
		return !v.num.IsZero()
	case KindBool:
		return v.b
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return len(v.obj) > 0
	default:
		return false
	}
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func fromUint64(u uint64) Value {
	return Number(decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0))
}

// AsNumber returns v as a decimal. Numbers are returned directly and strings
// are parsed when they look numeric; every other kind fails.
func (v Value) AsNumber() (decimal.Decimal, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		return parseNumeric(v.str)
	default:
		return decimal.Decimal{}, false
	}
}

// AsArray returns the array elements. The slice must not be modified.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Field returns a field of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Len returns the element count of arrays and objects and the byte length of strings.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	case KindString:
		return len(v.str)
	default:
		return 0
	}
}

// Equal compares two values strictly, except that when both sides are
// numeric-looking they are compared as numbers ("85" equals 85).
func (v Value) Equal(o Value) bool {
	if vn, ok := v.AsNumber(); ok {
		if on, ok := o.AsNumber(); ok {
			return vn.Equal(on)
		}
	}
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num.Equal(o.num)
	case KindBool:
		return v.b == o.b
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, fv := range v.obj {
			ov, ok := o.obj[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Text returns the display form used when a value is interpolated into text:
// strings verbatim, numbers in plain decimal notation, booleans as true/false,
// arrays as their elements' text joined by ", ". Objects and null render empty.
func (v Value) Text() string {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindArray:
		parts := make([]string, 0, len(v.arr))
		for _, e := range v.arr {
			if t := e.Text(); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// String implements fmt.Stringer for logging.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return v.Text()
	}
	return string(b)
}

// Interface returns v as plain Go data suitable for encoding/json.
// Numbers are returned as json.Number to keep their exact representation.
func (v Value) Interface() any {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindNumber:
		return json.Number(v.num.String())
	case KindBool:
		return v.b
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes v as its natural JSON form. Object keys are sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON decodes any JSON document into v, keeping numbers exact.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// parseNumeric parses a numeric-looking string. Surrounding whitespace is
// ignored; empty strings, hex literals and words like "NaN" are rejected.
func parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
