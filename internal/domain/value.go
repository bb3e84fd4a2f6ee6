package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a loosely typed CMS field value: string, number, bool, list, map or null.
// Numbers keep their JSON literal so integer ids round-trip exactly.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string // string payload, or number literal
	b    bool
	list []Value
	obj  *Fields
}

// NullValue returns the null Value.
func NullValue() Value { return Value{} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: KindNumber, str: strconv.FormatInt(i, 10)} }

// FloatValue wraps a float. NaN and infinities have no JSON form and become null.
func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, str: strconv.FormatFloat(f, 'f', -1, 64)}
}

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue wraps a list of values.
func ListValue(items ...Value) Value {
	list := make([]Value, len(items))
	copy(list, items)
	return Value{kind: KindList, list: list}
}

// MapValue wraps an ordered field map. A nil map becomes an empty one.
func MapValue(f *Fields) Value {
	if f == nil {
		f = NewFields()
	}
	return Value{kind: KindMap, obj: f}
}

// ValueOf converts plain Go values (as produced by encoding/json or written by hand)
// into a Value. time.Time values are stored as RFC 3339 strings.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return v, nil
	case *Fields:
		return MapValue(v), nil
	case string:
		return StringValue(v), nil
	case *string:
		if v == nil {
			return NullValue(), nil
		}
		return StringValue(*v), nil
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint:
		return Value{kind: KindNumber, str: strconv.FormatUint(uint64(v), 10)}, nil
	case uint32:
		return IntValue(int64(v)), nil
	case uint64:
		return Value{kind: KindNumber, str: strconv.FormatUint(v, 10)}, nil
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case json.Number:
		return Value{kind: KindNumber, str: v.String()}, nil
	case time.Time:
		return StringValue(v.UTC().Format(time.RFC3339)), nil
	case []Value:
		return ListValue(v...), nil
	case []string:
		list := make([]Value, len(v))
		for i, s := range v {
			list[i] = StringValue(s)
		}
		return Value{kind: KindList, list: list}, nil
	case []any:
		list := make([]Value, len(v))
		for i, item := range v {
			converted, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			list[i] = converted
		}
		return Value{kind: KindList, list: list}, nil
	case map[string]any:
		f, err := FieldsOf(v)
		if err != nil {
			return Value{}, err
		}
		return MapValue(f), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrTypeMismatch, x)
	}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("%w: value is %s, not %s", ErrTypeMismatch, v.kind, want)
}

// AsString returns the string payload.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.str, nil
}

// AsInt returns the number as an int64. Fractional numbers are a mismatch.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	if i, err := strconv.ParseInt(v.str, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(v.str, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: number %s is not an integer", ErrTypeMismatch, v.str)
	}
	return int64(f), nil
}

// AsFloat returns the number as a float64.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	f, err := strconv.ParseFloat(v.str, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrTypeMismatch, v.str)
	}
	return f, nil
}

// AsBool returns the bool payload.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.mismatch(KindBool)
	}
	return v.b, nil
}

// AsList returns a copy of the list payload.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, v.mismatch(KindList)
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, nil
}

// AsMap returns the map payload.
func (v Value) AsMap() (*Fields, error) {
	if v.kind != KindMap {
		return nil, v.mismatch(KindMap)
	}
	return v.obj, nil
}

// Equal reports whether two values hold the same data. Numbers compare by value,
// so 1 and 1.0 are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		if v.str == o.str {
			return true
		}
		a, errA := strconv.ParseFloat(v.str, 64)
		b, errB := strconv.ParseFloat(o.str, 64)
		return errA == nil && errB == nil && a == b
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.obj.Equal(o.obj)
	}
	return false
}

// String renders v for display: strings unquoted, everything else as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.str
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Interface converts v back to plain Go values (string, json.Number, bool,
// []any, map[string]any, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return json.Number(v.str)
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		return v.obj.Map()
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		data, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindNumber:
		buf.WriteString(v.str)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		return v.obj.writeJSON(buf)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes a JSON document into a Value, keeping object key order.
func ParseValue(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("%w: invalid JSON", ErrParse)
	}
	return valueFromResult(gjson.ParseBytes(data)), nil
}

func valueFromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.String:
		return StringValue(r.Str)
	case gjson.Number:
		return Value{kind: KindNumber, str: strings.TrimSpace(r.Raw)}
	case gjson.True:
		return BoolValue(true)
	case gjson.False:
		return BoolValue(false)
	case gjson.JSON:
		if r.IsArray() {
			list := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				list = append(list, valueFromResult(item))
				return true
			})
			return Value{kind: KindList, list: list}
		}
		f := NewFields()
		r.ForEach(func(key, item gjson.Result) bool {
			f.Set(key.Str, valueFromResult(item))
			return true
		})
		return MapValue(f)
	default:
		return NullValue()
	}
}

// Fields is an insertion-ordered map of field name to Value.
type Fields struct {
	keys   []string
	values map[string]Value
}

// NewFields returns an empty field map.
func NewFields() *Fields {
	return &Fields{values: make(map[string]Value)}
}

// FieldsOf converts a Go map. Keys are inserted in sorted order so the result
// is deterministic.
func FieldsOf(m map[string]any) (*Fields, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := NewFields()
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		f.Set(k, v)
	}
	return f, nil
}

// ParseFields decodes a JSON object.
func ParseFields(data []byte) (*Fields, error) {
	v, err := ParseValue(data)
	if err != nil {
		return nil, err
	}
	f, err := v.AsMap()
	if err != nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrParse)
	}
	return f, nil
}

// Len returns the number of fields. A nil map is empty.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Get returns the value stored under key.
func (f *Fields) Get(key string) (Value, bool) {
	if f == nil {
		return Value{}, false
	}
	v, ok := f.values[key]
	return v, ok
}

// Has reports whether key is present (even if null).
func (f *Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Set stores v under key, keeping the original position of existing keys.
func (f *Fields) Set(key string, v Value) {
	if f.values == nil {
		f.values = make(map[string]Value)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = v
}

// Delete removes key if present.
func (f *Fields) Delete(key string) {
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns field names in insertion order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Range calls fn for each field in order until fn returns false.
func (f *Fields) Range(fn func(key string, v Value) bool) {
	if f == nil {
		return
	}
	for _, k := range f.keys {
		if !fn(k, f.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy; values are immutable so this is safe to mutate.
func (f *Fields) Clone() *Fields {
	out := NewFields()
	f.Range(func(k string, v Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Merge returns a new map holding f overlaid with other.
func (f *Fields) Merge(other *Fields) *Fields {
	out := f.Clone()
	other.Range(func(k string, v Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Filter returns a new map with only the fields keep accepts.
func (f *Fields) Filter(keep func(key string) bool) *Fields {
	out := NewFields()
	f.Range(func(k string, v Value) bool {
		if keep(k) {
			out.Set(k, v)
		}
		return true
	})
	return out
}

// Equal compares key sets and values; order is ignored.
func (f *Fields) Equal(o *Fields) bool {
	if f.Len() != o.Len() {
		return false
	}
	equal := true
	f.Range(func(k string, v Value) bool {
		ov, ok := o.Get(k)
		if !ok || !v.Equal(ov) {
			equal = false
		}
		return equal
	})
	return equal
}

// Map converts to a plain Go map.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, f.Len())
	f.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}

// MarshalJSON writes the fields in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *Fields) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	var err error
	f.Range(func(k string, v Value) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, kerr := json.Marshal(k)
		if kerr != nil {
			err = kerr
			return false
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err = v.writeJSON(buf); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Fields) UnmarshalJSON(data []byte) error {
	parsed, err := ParseFields(data)
	if err != nil {
		return err
	}
	*f = *parsed
	return nil
}
