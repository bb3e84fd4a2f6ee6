package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IDField is the primary key field every record carries.
const IDField = "id"

// timeLayouts are tried in order when reading timestamp fields.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Record is a loosely schemaed CMS item. Reads see pending changes first,
// then the raw server fields.
type Record struct {
	raw     *Fields
	pending *Fields
}

// NewRecord wraps decoded server fields. The id field must be present and non-null.
func NewRecord(fields *Fields) (*Record, error) {
	id, ok := fields.Get(IDField)
	if !ok || id.IsNull() {
		return nil, ErrMissingID
	}
	return &Record{raw: fields.Clone(), pending: NewFields()}, nil
}

// RecordFromMap builds a record from a plain Go map.
func RecordFromMap(m map[string]any) (*Record, error) {
	f, err := FieldsOf(m)
	if err != nil {
		return nil, err
	}
	return NewRecord(f)
}

// RecordFromJSON decodes a JSON object into a record.
func RecordFromJSON(data []byte) (*Record, error) {
	f, err := ParseFields(data)
	if err != nil {
		return nil, err
	}
	return NewRecord(f)
}

// NewItem returns an empty record with a freshly generated UUID id, for
// collections whose primary key is a uuid.
func NewItem() *Record {
	raw := NewFields()
	raw.Set(IDField, StringValue(uuid.NewString()))
	return &Record{raw: raw, pending: NewFields()}
}

// Get returns the effective value of key.
func (r *Record) Get(key string) Value {
	v, _ := r.Lookup(key)
	return v
}

// Lookup returns the effective value of key and whether it is set at all.
func (r *Record) Lookup(key string) (Value, bool) {
	if v, ok := r.pending.Get(key); ok {
		return v, true
	}
	return r.raw.Get(key)
}

// Set records a change to key unless v equals the current effective value.
func (r *Record) Set(key string, v Value) {
	current, ok := r.Lookup(key)
	if ok && current.Equal(v) {
		return
	}
	if !ok && v.IsNull() {
		return
	}
	r.pending.Set(key, v)
}

// SetAny converts x with ValueOf and sets it.
func (r *Record) SetAny(key string, x any) error {
	v, err := ValueOf(x)
	if err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	r.Set(key, v)
	return nil
}

// NeedsSaving reports whether the record holds unsaved changes.
func (r *Record) NeedsSaving() bool { return r.pending.Len() > 0 }

// HasChanged reports whether key has a pending change.
func (r *Record) HasChanged(key string) bool { return r.pending.Has(key) }

// ID returns the record id as a string. Numeric ids are rendered in decimal.
func (r *Record) ID() string {
	return r.raw.values[IDField].String()
}

// IntID returns the record id as an integer.
func (r *Record) IntID() (int64, error) {
	v := r.raw.values[IDField]
	if v.Kind() == KindString {
		i, err := strconv.ParseInt(v.str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: id %q is not an integer", ErrTypeMismatch, v.str)
		}
		return i, nil
	}
	return v.AsInt()
}

// Raw returns a copy of the server fields.
func (r *Record) Raw() *Fields { return r.raw.Clone() }

// Pending returns a copy of the unsaved changes.
func (r *Record) Pending() *Fields { return r.pending.Clone() }

// Merged returns raw fields overlaid with pending changes.
func (r *Record) Merged() *Fields { return r.raw.Merge(r.pending) }

// ForCreation returns the merged fields without the id, for collections whose
// ids are assigned by the server.
func (r *Record) ForCreation() *Fields {
	f := r.Merged()
	f.Delete(IDField)
	return f
}

// MergeResponse folds a server response into the raw fields and drops pending changes.
func (r *Record) MergeResponse(fields *Fields) {
	r.raw = r.raw.Merge(fields)
	r.pending = NewFields()
}

// MarshalJSON writes the merged fields.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.Merged().MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, enforcing the id requirement.
func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := RecordFromJSON(data)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

var _ json.Marshaler = (*Record)(nil)

func fieldErr(key string, err error) error {
	return fmt.Errorf("field %q: %w", key, err)
}

func (r *Record) present(key string) (Value, bool) {
	v, ok := r.Lookup(key)
	if !ok || v.IsNull() {
		return Value{}, false
	}
	return v, true
}

// GetString returns key as a string.
func (r *Record) GetString(key string) (string, error) {
	s, err := r.Get(key).AsString()
	if err != nil {
		return "", fieldErr(key, err)
	}
	return s, nil
}

// GetInt returns key as an integer.
func (r *Record) GetInt(key string) (int64, error) {
	i, err := r.Get(key).AsInt()
	if err != nil {
		return 0, fieldErr(key, err)
	}
	return i, nil
}

// GetFloat returns key as a float.
func (r *Record) GetFloat(key string) (float64, error) {
	f, err := r.Get(key).AsFloat()
	if err != nil {
		return 0, fieldErr(key, err)
	}
	return f, nil
}

// GetBool returns key as a bool.
func (r *Record) GetBool(key string) (bool, error) {
	b, err := r.Get(key).AsBool()
	if err != nil {
		return false, fieldErr(key, err)
	}
	return b, nil
}

// GetTime parses key as a timestamp.
func (r *Record) GetTime(key string) (time.Time, error) {
	s, err := r.GetString(key)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fieldErr(key, fmt.Errorf("%w: %q is not a timestamp", ErrTypeMismatch, s))
}

// GetList returns key as a list.
func (r *Record) GetList(key string) ([]Value, error) {
	l, err := r.Get(key).AsList()
	if err != nil {
		return nil, fieldErr(key, err)
	}
	return l, nil
}

// GetMap returns key as a nested field map.
func (r *Record) GetMap(key string) (*Fields, error) {
	m, err := r.Get(key).AsMap()
	if err != nil {
		return nil, fieldErr(key, err)
	}
	return m, nil
}

// OptionalString returns key as a string, or false when it is absent, null or
// of another type.
func (r *Record) OptionalString(key string) (string, bool) {
	v, ok := r.present(key)
	if !ok {
		return "", false
	}
	s, err := v.AsString()
	return s, err == nil
}

// OptionalInt is the integer form of OptionalString.
func (r *Record) OptionalInt(key string) (int64, bool) {
	v, ok := r.present(key)
	if !ok {
		return 0, false
	}
	i, err := v.AsInt()
	return i, err == nil
}

// OptionalFloat is the float form of OptionalString.
func (r *Record) OptionalFloat(key string) (float64, bool) {
	v, ok := r.present(key)
	if !ok {
		return 0, false
	}
	f, err := v.AsFloat()
	return f, err == nil
}

// OptionalBool is the bool form of OptionalString.
func (r *Record) OptionalBool(key string) (bool, bool) {
	v, ok := r.present(key)
	if !ok {
		return false, false
	}
	b, err := v.AsBool()
	return b, err == nil
}

// OptionalTime is the timestamp form of OptionalString.
func (r *Record) OptionalTime(key string) (time.Time, bool) {
	if _, ok := r.present(key); !ok {
		return time.Time{}, false
	}
	t, err := r.GetTime(key)
	return t, err == nil
}

// SetString sets key to s.
func (r *Record) SetString(key, s string) { r.Set(key, StringValue(s)) }

// SetOptionalString sets key to s, or null when s is nil.
func (r *Record) SetOptionalString(key string, s *string) {
	if s == nil {
		r.Set(key, NullValue())
		return
	}
	r.Set(key, StringValue(*s))
}
